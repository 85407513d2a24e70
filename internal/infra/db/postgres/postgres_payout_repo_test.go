//go:build integration

package postgres

import (
	"context"
	"errors"
	"strings"
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

func ptr(s string) *string { return &s }

func TestPayoutRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	repo := NewPayoutRepo(testPool)
	tm := NewTxManager(testPool)
	ctx := context.Background()

	t.Run("should apply transitions conditionally and keep the audit trail", func(t *testing.T) {
		cleanup(t)
		seedUsers(t, "creator-1")

		p, _ := model.NewPayout(uuid.NewString(), "creator-1", 20000, "NGN", model.PayoutModeManual)
		if err := repo.Save(ctx, nil, p); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		ok, err := repo.Transition(ctx, nil, p.ID, model.PayoutTransition{
			From:        []model.PayoutStatus{model.PayoutStatusPending},
			To:          model.PayoutStatusCompleted,
			ProcessedBy: ptr("admin-1"),
			Note:        "approved by admin-1",
			At:          time.Now(),
		})
		if err != nil || !ok {
			t.Fatalf("expected approve to apply, got %v %v", ok, err)
		}

		ok, err = repo.Transition(ctx, nil, p.ID, model.PayoutTransition{
			From: []model.PayoutStatus{model.PayoutStatusPending},
			To:   model.PayoutStatusRejected,
			Note: "too late",
			At:   time.Now(),
		})
		if err != nil || ok {
			t.Fatalf("expected reject of a completed payout to be a no-op, got %v %v", ok, err)
		}

		ok, err = repo.Transition(ctx, nil, p.ID, model.PayoutTransition{
			From: []model.PayoutStatus{model.PayoutStatusCompleted},
			To:   model.PayoutStatusFailed,
			Note: "transfer reversed",
			At:   time.Now(),
		})
		if err != nil || !ok {
			t.Fatalf("expected reversal to apply, got %v %v", ok, err)
		}

		found, err := repo.FindByID(ctx, nil, p.ID)
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		if found.Status != model.PayoutStatusFailed {
			t.Errorf("expected failed, got %s", found.Status)
		}
		if found.ProcessedBy == nil || *found.ProcessedBy != "admin-1" || found.ProcessedAt == nil {
			t.Errorf("expected processed_by to survive later transitions, got %v %v", found.ProcessedBy, found.ProcessedAt)
		}
		if lines := strings.Split(found.Notes, "\n"); len(lines) != 2 || lines[0] != "approved by admin-1" {
			t.Errorf("unexpected audit trail %q", found.Notes)
		}
	})

	t.Run("should find by provider ref and reject an empty From", func(t *testing.T) {
		cleanup(t)
		seedUsers(t, "creator-1")
		p, _ := model.NewPayout(uuid.NewString(), "creator-1", 5000, "NGN", model.PayoutModeAutomatic)
		p.Provider = "paystack"
		if err := repo.Save(ctx, nil, p); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		ok, err := repo.Transition(ctx, nil, p.ID, model.PayoutTransition{
			From:        []model.PayoutStatus{model.PayoutStatusProcessing},
			To:          model.PayoutStatusProcessing,
			ProviderRef: ptr("TRF_1"),
			At:          time.Now(),
		})
		if err != nil || !ok {
			t.Fatalf("expected provider ref write, got %v %v", ok, err)
		}
		found, err := repo.FindByProviderRef(ctx, nil, "TRF_1")
		if err != nil || found.ID != p.ID {
			t.Fatalf("expected payout by provider ref, got %v %v", found, err)
		}
		if found.Notes != "" {
			t.Errorf("an empty note must not touch the trail, got %q", found.Notes)
		}
		if _, err := repo.Transition(ctx, nil, p.ID, model.PayoutTransition{To: model.PayoutStatusFailed}); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("should record a provider ref once regardless of status", func(t *testing.T) {
		cleanup(t)
		seedUsers(t, "creator-1")
		p, _ := model.NewPayout(uuid.NewString(), "creator-1", 5000, "NGN", model.PayoutModeAutomatic)
		p.Provider = "nomba"
		p.Status = model.PayoutStatusCompleted
		if err := repo.Save(ctx, nil, p); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		ok, err := repo.SetProviderRef(ctx, nil, p.ID, "NB-1")
		if err != nil || !ok {
			t.Fatalf("expected provider ref on a completed payout, got %v %v", ok, err)
		}
		ok, err = repo.SetProviderRef(ctx, nil, p.ID, "NB-2")
		if err != nil || ok {
			t.Fatalf("expected an existing ref to win, got %v %v", ok, err)
		}
		found, err := repo.FindByProviderRef(ctx, nil, "NB-1")
		if err != nil || found.ID != p.ID || found.Status != model.PayoutStatusCompleted {
			t.Fatalf("expected completed payout by provider ref, got %+v %v", found, err)
		}
		if _, err := repo.SetProviderRef(ctx, nil, p.ID, ""); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("should sum reserved balance and list newest first", func(t *testing.T) {
		cleanup(t)
		seedUsers(t, "creator-1", "creator-2")
		statuses := []model.PayoutStatus{model.PayoutStatusPending, model.PayoutStatusProcessing, model.PayoutStatusCompleted, model.PayoutStatusFailed, model.PayoutStatusRejected}
		base := time.Now().Add(-time.Hour)
		for i, st := range statuses {
			p, _ := model.NewPayout(uuid.NewString(), "creator-1", 1000, "NGN", model.PayoutModeManual)
			p.Status = st
			p.CreatedAt = base.Add(time.Duration(i) * time.Minute)
			if err := repo.Save(ctx, nil, p); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
		}
		other, _ := model.NewPayout(uuid.NewString(), "creator-2", 9999, "NGN", model.PayoutModeManual)
		_ = repo.Save(ctx, nil, other)

		sum, err := repo.SumReserved(ctx, nil, "creator-1")
		if err != nil || sum != 3000 {
			t.Errorf("expected 3000 reserved, got %d (%v)", sum, err)
		}

		list, err := repo.List(ctx, nil, model.PayoutFilter{CreatorID: "creator-1", Limit: 2})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(list) != 2 || list[0].Status != model.PayoutStatusRejected {
			t.Errorf("expected newest first, got %v", list)
		}
		pending, _ := repo.List(ctx, nil, model.PayoutFilter{Status: model.PayoutStatusPending, Limit: 10})
		if len(pending) != 2 {
			t.Errorf("expected 2 pending payouts across creators, got %d", len(pending))
		}
	})

	t.Run("should require a transaction for the creator lock", func(t *testing.T) {
		if err := repo.LockCreator(ctx, nil, "creator-1"); !errors.Is(err, domain.ErrInvalidExecContext) {
			t.Fatalf("expected ErrInvalidExecContext, got %v", err)
		}
	})

	t.Run("should serialize concurrent requests with the creator lock", func(t *testing.T) {
		cleanup(t)
		seedUsers(t, "creator-1")
		const earnings = int64(30000)

		var created int32
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
					if err := repo.LockCreator(ctx, tx, "creator-1"); err != nil {
						return err
					}
					reserved, err := repo.SumReserved(ctx, tx, "creator-1")
					if err != nil {
						return err
					}
					if earnings-reserved < 10000 {
						return domain.ErrInsufficientBalance
					}
					p, _ := model.NewPayout(uuid.NewString(), "creator-1", 10000, "NGN", model.PayoutModeManual)
					return repo.Save(ctx, tx, p)
				})
				if err == nil {
					atomic.AddInt32(&created, 1)
				} else if !errors.Is(err, domain.ErrInsufficientBalance) {
					t.Errorf("unexpected error %v", err)
				}
			}()
		}
		wg.Wait()

		if created != 3 {
			t.Fatalf("expected exactly 3 payouts, got %d", created)
		}
		sum, _ := repo.SumReserved(ctx, nil, "creator-1")
		if sum != 30000 {
			t.Errorf("expected 30000 reserved, got %d", sum)
		}
	})
}
