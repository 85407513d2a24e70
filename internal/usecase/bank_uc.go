package usecase

import (
	"context"
	"fmt"
	"regexp"

	"github.com/rs/zerolog"

	"video-monetization/internal/domain"
	"video-monetization/internal/domain/model"
	"video-monetization/internal/infra/logging"
)

// Compile-time check
var _ BankUseCase = (*bankUC)(nil)

var accountNumberRe = regexp.MustCompile(`^[0-9]{6,20}$`)

// BankUseCase serves bank directory lookups through the active payout provider.
type BankUseCase interface {
	GetBankList(ctx context.Context) ([]model.Bank, error)
	ResolveBankAccount(ctx context.Context, accountNumber, bankCode string) (string, error)
}

type bankUC struct {
	router *GatewayRouter
	log    *zerolog.Logger
}

func NewBankUseCase(router *GatewayRouter, logger *zerolog.Logger) *bankUC {
	return &bankUC{router: router, log: logger}
}

func (u *bankUC) GetBankList(ctx context.Context) ([]model.Bank, error) {
	provider, _, err := u.router.ActivePayout(ctx)
	if err != nil {
		return nil, err
	}
	return provider.ListBanks(ctx)
}

func (u *bankUC) ResolveBankAccount(ctx context.Context, accountNumber, bankCode string) (string, error) {
	if !accountNumberRe.MatchString(accountNumber) || bankCode == "" {
		return "", fmt.Errorf("%w: account number and bank code are required", domain.ErrValidation)
	}
	provider, key, err := u.router.ActivePayout(ctx)
	if err != nil {
		return "", err
	}
	name, err := provider.ResolveBankAccount(ctx, accountNumber, bankCode)
	if err != nil {
		u.log.Info().Err(err).Str("provider", key).Str("bank_code", bankCode).
			Str("account", logging.Redact(accountNumber, false)).Msg("bank account resolution failed")
		return "", err
	}
	return name, nil
}
