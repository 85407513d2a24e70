//go:build integration

package postgres

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"video-monetization/internal/domain"
	"video-monetization/internal/domain/model"
	"video-monetization/internal/domain/ports/repository"
)

func newTestTransaction(t *testing.T, ref string, price int64) *model.Transaction {
	t.Helper()
	product := &model.Product{
		Ref:       model.ProductRef{Kind: model.ProductKindVideo, ID: "video-1"},
		Price:     price,
		Currency:  "NGN",
		Title:     "Intro to Go",
		CreatorID: "creator-1",
		Slug:      "intro-to-go",
	}
	tx, err := model.NewPendingTransaction(uuid.NewString(), ref, "buyer-1", product, "paystack")
	if err != nil {
		t.Fatalf("NewPendingTransaction: %v", err)
	}
	return tx
}

func TestTransactionRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	repo := NewTransactionRepo(testPool)
	tm := NewTxManager(testPool)
	ctx := context.Background()

	t.Run("should save and find by reference", func(t *testing.T) {
		cleanup(t)
		seedUsers(t, "buyer-1", "creator-1")

		tr := newTestTransaction(t, "VID-01TEST", 50000)
		if err := repo.Save(ctx, nil, tr); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if err := repo.Save(ctx, nil, newTestTransaction(t, "VID-01TEST", 50000)); !errors.Is(err, domain.ErrAlreadyExists) {
			t.Errorf("expected ErrAlreadyExists for duplicate reference, got %v", err)
		}
		if err := repo.SetCheckoutRef(ctx, nil, tr.ID, "cs_test_1"); err != nil {
			t.Fatalf("SetCheckoutRef failed: %v", err)
		}

		found, err := repo.FindByReference(ctx, nil, "VID-01TEST")
		if err != nil {
			t.Fatalf("FindByReference failed: %v", err)
		}
		if found.CheckoutRef != "cs_test_1" || found.Product.Kind != model.ProductKindVideo || found.GrossAmount != 50000 {
			t.Errorf("unexpected transaction %+v", found)
		}
		if _, err := repo.FindByReference(ctx, nil, "VID-NOPE"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("should settle a pending transaction exactly once under concurrency", func(t *testing.T) {
		cleanup(t)
		seedUsers(t, "buyer-1", "creator-1")
		tr := newTestTransaction(t, "VID-02TEST", 50000)
		if err := repo.Save(ctx, nil, tr); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		s := model.NewSettlement(50000, 50000, "psk_1", 0.15, time.Now())
		var applied int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := repo.MarkSuccessfulIfPending(ctx, nil, tr.ID, s)
				if err != nil {
					t.Errorf("MarkSuccessfulIfPending: %v", err)
					return
				}
				if ok {
					atomic.AddInt32(&applied, 1)
				}
			}()
		}
		wg.Wait()

		if applied != 1 {
			t.Fatalf("expected exactly one confirmation to apply, got %d", applied)
		}
		found, _ := repo.FindByID(ctx, nil, tr.ID)
		if found.Status != model.TransactionStatusSuccessful || found.Commission != 7500 || found.CreatorEarnings != 42500 {
			t.Errorf("unexpected settled transaction %+v", found)
		}
		if found.ProviderRef == nil || *found.ProviderRef != "psk_1" || found.PaidAt == nil {
			t.Errorf("expected provider ref and paid_at to be set, got %v %v", found.ProviderRef, found.PaidAt)
		}

		if ok, _ := repo.MarkFailedIfPending(ctx, nil, tr.ID); ok {
			t.Error("a successful transaction must not be marked failed")
		}
		earnings, err := repo.SumCreatorEarnings(ctx, nil, "creator-1")
		if err != nil || earnings != 42500 {
			t.Errorf("expected 42500 earnings, got %d (%v)", earnings, err)
		}

		if ok, _ := repo.MarkRefundedIfSuccessful(ctx, nil, tr.ID); !ok {
			t.Error("expected refund to apply")
		}
		earnings, _ = repo.SumCreatorEarnings(ctx, nil, "creator-1")
		if earnings != 0 {
			t.Errorf("refunded sale must not count, got %d", earnings)
		}
	})

	t.Run("should lock the row inside a transaction", func(t *testing.T) {
		cleanup(t)
		seedUsers(t, "buyer-1", "creator-1")
		tr := newTestTransaction(t, "VID-03TEST", 1000)
		if err := repo.Save(ctx, nil, tr); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		err := tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			found, err := repo.FindByID(ctx, tx, tr.ID)
			if err != nil {
				return err
			}
			_, err = repo.MarkFailedIfPending(ctx, tx, found.ID)
			return err
		})
		if err != nil {
			t.Fatalf("WithTx failed: %v", err)
		}
		found, _ := repo.FindByID(ctx, nil, tr.ID)
		if found.Status != model.TransactionStatusFailed {
			t.Errorf("expected failed, got %s", found.Status)
		}
	})

	t.Run("should list stale pending transactions oldest first", func(t *testing.T) {
		cleanup(t)
		seedUsers(t, "buyer-1", "creator-1")
		old := newTestTransaction(t, "VID-OLD", 1000)
		old.CreatedAt = time.Now().Add(-time.Hour)
		older := newTestTransaction(t, "VID-OLDER", 1000)
		older.CreatedAt = time.Now().Add(-2 * time.Hour)
		fresh := newTestTransaction(t, "VID-FRESH", 1000)
		for _, tr := range []*model.Transaction{old, older, fresh} {
			if err := repo.Save(ctx, nil, tr); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
		}

		list, err := repo.ListPendingOlderThan(ctx, nil, time.Now().Add(-30*time.Minute), 10)
		if err != nil {
			t.Fatalf("ListPendingOlderThan failed: %v", err)
		}
		if len(list) != 2 || list[0].Reference != "VID-OLDER" || list[1].Reference != "VID-OLD" {
			t.Errorf("unexpected stale list %v", list)
		}
	})
}
