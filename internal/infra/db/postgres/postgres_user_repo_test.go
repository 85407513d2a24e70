//go:build integration

package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"

	"video-monetization/internal/domain"
	"video-monetization/internal/domain/model"
	"video-monetization/internal/infra/security"
)

func TestUserRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	repo := NewPostgresUserRepo(testPool, nil)
	ctx := context.Background()

	t.Run("should round-trip bank details and recipient codes", func(t *testing.T) {
		cleanup(t)

		u := &model.User{
			ID:    "creator-1",
			Email: "creator@example.com",
			Name:  "Ada",
			Bank:  model.BankDetails{AccountNumber: "0123456789", BankCode: "058", BankName: "GTBank", AccountName: "ADA O"},
		}
		if err := repo.Save(ctx, u); err != nil {
			t.Fatalf("Failed to save user: %v", err)
		}

		found, err := repo.FindByID(ctx, "creator-1")
		if err != nil {
			t.Fatalf("Failed to find user: %v", err)
		}
		b := found.Bank
		if b.AccountNumber != "0123456789" || b.BankCode != "058" || b.BankName != "GTBank" || b.AccountName != "ADA O" {
			t.Errorf("unexpected bank details %+v", b)
		}
		if found.RecipientCode("paystack") != "" {
			t.Error("expected no recipient code before one is saved")
		}

		if err := repo.SaveRecipientCode(ctx, "creator-1", "paystack", "RCP_1"); err != nil {
			t.Fatalf("SaveRecipientCode failed: %v", err)
		}
		if err := repo.SaveRecipientCode(ctx, "creator-1", "paystack", "RCP_2"); err != nil {
			t.Fatalf("SaveRecipientCode overwrite failed: %v", err)
		}
		if err := repo.SaveRecipientCode(ctx, "creator-1", "nomba", "-"); err != nil {
			t.Fatalf("SaveRecipientCode second provider failed: %v", err)
		}

		found, err = repo.FindByID(ctx, "creator-1")
		if err != nil {
			t.Fatalf("Failed to reload user: %v", err)
		}
		if found.RecipientCode("paystack") != "RCP_2" || found.RecipientCode("nomba") != "-" {
			t.Errorf("unexpected recipient codes %v", found.Bank.RecipientCodes)
		}
	})

	t.Run("should seal account numbers at rest", func(t *testing.T) {
		cleanup(t)
		cipher, err := security.NewFieldCipher("0123456789abcdef0123456789abcdef")
		if err != nil {
			t.Fatalf("cipher: %v", err)
		}
		sealed := NewPostgresUserRepo(testPool, cipher)

		u := &model.User{ID: "creator-2", Bank: model.BankDetails{AccountNumber: "0001112223", BankCode: "044"}}
		if err := sealed.Save(ctx, u); err != nil {
			t.Fatalf("Failed to save user: %v", err)
		}

		var stored string
		if err := testPool.QueryRow(ctx, `SELECT bank_account_number FROM users WHERE id=$1`, "creator-2").Scan(&stored); err != nil {
			t.Fatalf("raw read: %v", err)
		}
		if stored == "0001112223" || !strings.HasPrefix(stored, "enc:") {
			t.Errorf("expected sealed column, got %q", stored)
		}

		found, err := sealed.FindByID(ctx, "creator-2")
		if err != nil {
			t.Fatalf("Failed to find user: %v", err)
		}
		if found.Bank.AccountNumber != "0001112223" {
			t.Errorf("expected opened account number, got %q", found.Bank.AccountNumber)
		}
	})

	t.Run("should return ErrNotFound for unknown users", func(t *testing.T) {
		cleanup(t)
		if _, err := repo.FindByID(ctx, "ghost"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}
