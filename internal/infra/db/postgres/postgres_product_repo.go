package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"video-monetization/internal/domain"
	"video-monetization/internal/domain/model"
	"video-monetization/internal/domain/ports/repository"
)

var _ repository.ProductLookup = (*productRepo)(nil)

type productRepo struct{ pool *pgxpool.Pool }

func NewProductRepo(pool *pgxpool.Pool) *productRepo {
	return &productRepo{pool: pool}
}

func productTable(kind model.ProductKind) (string, error) {
	switch kind {
	case model.ProductKindVideo:
		return "videos", nil
	case model.ProductKindBundle:
		return "bundles", nil
	default:
		return "", domain.ErrValidation
	}
}

func (r *productRepo) FindProduct(ctx context.Context, ref model.ProductRef) (*model.Product, error) {
	table, err := productTable(ref.Kind)
	if err != nil {
		return nil, err
	}
	q := `SELECT id, creator_id, title, slug, price, currency FROM ` + table + ` WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, nil, q, ref.ID)
	if err != nil {
		return nil, err
	}
	p := &model.Product{Ref: model.ProductRef{Kind: ref.Kind}}
	if err := row.Scan(&p.Ref.ID, &p.CreatorID, &p.Title, &p.Slug, &p.Price, &p.Currency); err != nil {
		return nil, scanErr(err)
	}
	return p, nil
}

func (r *productRepo) IncrementSales(ctx context.Context, ref model.ProductRef) error {
	table, err := productTable(ref.Kind)
	if err != nil {
		return err
	}
	cmd, err := execSQL(ctx, r.pool, nil, `UPDATE `+table+` SET sales_count = sales_count + 1 WHERE id=$1;`, ref.ID)
	if err != nil {
		return writeErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
