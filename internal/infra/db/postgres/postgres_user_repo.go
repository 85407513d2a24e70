package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"video-monetization/internal/domain"
	"video-monetization/internal/domain/model"
	"video-monetization/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*PostgresUserRepo)(nil)

// FieldSealer encrypts single column values. Open must accept values that
// were stored before sealing was enabled.
type FieldSealer interface {
	Seal(plaintext string) (string, error)
	Open(stored string) (string, error)
}

type PostgresUserRepo struct {
	pool   *pgxpool.Pool
	sealer FieldSealer
}

// NewPostgresUserRepo stores bank account numbers through sealer. A nil
// sealer stores them as given.
func NewPostgresUserRepo(pool *pgxpool.Pool, sealer FieldSealer) *PostgresUserRepo {
	return &PostgresUserRepo{pool: pool, sealer: sealer}
}

// Save upserts the profile and bank columns. Recipient codes are written only
// through SaveRecipientCode.
func (r *PostgresUserRepo) Save(ctx context.Context, u *model.User) error {
	const q = `
INSERT INTO users (
  id, email, name, bank_account_number, bank_code, bank_name, bank_account_name
) VALUES (
  $1,$2,$3,$4,$5,$6,$7
) ON CONFLICT (id) DO UPDATE SET
  email=$2, name=$3, bank_account_number=$4, bank_code=$5, bank_name=$6, bank_account_name=$7;
`
	account := u.Bank.AccountNumber
	if r.sealer != nil {
		sealed, err := r.sealer.Seal(account)
		if err != nil {
			return domain.ErrOperationFailed
		}
		account = sealed
	}
	_, err := execSQL(ctx, r.pool, nil, q, u.ID, u.Email, u.Name, account, u.Bank.BankCode, u.Bank.BankName, u.Bank.AccountName)
	return writeErr(err)
}

func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	const q = `
SELECT id, email, name, bank_account_number, bank_code, bank_name, bank_account_name
  FROM users WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, nil, q, id)
	if err != nil {
		return nil, err
	}
	var u model.User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Bank.AccountNumber, &u.Bank.BankCode, &u.Bank.BankName, &u.Bank.AccountName); err != nil {
		return nil, scanErr(err)
	}
	if r.sealer != nil {
		plain, err := r.sealer.Open(u.Bank.AccountNumber)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		u.Bank.AccountNumber = plain
	}

	rows, err := queryRows(ctx, r.pool, nil, `SELECT provider, code FROM user_payout_recipients WHERE user_id=$1;`, id)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()
	for rows.Next() {
		var provider, code string
		if err := rows.Scan(&provider, &code); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		if u.Bank.RecipientCodes == nil {
			u.Bank.RecipientCodes = make(map[string]string)
		}
		u.Bank.RecipientCodes[provider] = code
	}
	if rows.Err() != nil {
		return nil, domain.ErrOperationFailed
	}
	return &u, nil
}

func (r *PostgresUserRepo) SaveRecipientCode(ctx context.Context, userID, provider, code string) error {
	const q = `
INSERT INTO user_payout_recipients (user_id, provider, code, updated_at)
VALUES ($1,$2,$3,NOW())
ON CONFLICT (user_id, provider) DO UPDATE SET code=EXCLUDED.code, updated_at=NOW();`
	_, err := execSQL(ctx, r.pool, nil, q, userID, provider, code)
	return writeErr(err)
}
