package model

import (
	"time"

	"video-monetization/internal/domain"
)

type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "pending"    // manual mode: waiting for an admin
	PayoutStatusProcessing PayoutStatus = "processing" // automatic mode: transfer submitted to provider
	PayoutStatusCompleted  PayoutStatus = "completed"
	PayoutStatusFailed     PayoutStatus = "failed"
	PayoutStatusRejected   PayoutStatus = "rejected"
)

func (s PayoutStatus) IsTerminal() bool {
	switch s {
	case PayoutStatusCompleted, PayoutStatusFailed, PayoutStatusRejected:
		return true
	}
	return false
}

// ReservesBalance reports whether a payout in this status counts against the creator's balance.
func (s PayoutStatus) ReservesBalance() bool {
	switch s {
	case PayoutStatusPending, PayoutStatusProcessing, PayoutStatusCompleted:
		return true
	}
	return false
}

type PayoutMode string

const (
	PayoutModeManual    PayoutMode = "manual"
	PayoutModeAutomatic PayoutMode = "automatic"
)

func (m PayoutMode) Valid() bool {
	return m == PayoutModeManual || m == PayoutModeAutomatic
}

// Payout is one creator withdrawal request.
type Payout struct {
	ID          string
	CreatorID   string
	Amount      int64 // minor units
	Currency    string
	Status      PayoutStatus
	Mode        PayoutMode
	Provider    string  // payout adapter used for the transfer, empty in manual mode
	ProviderRef *string // provider transfer reference
	ProcessedBy *string // admin actor for manual transitions
	ProcessedAt *time.Time
	Notes       string // audit trail, one line per transition
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func NewPayout(id, creatorID string, amount int64, currency string, mode PayoutMode) (*Payout, error) {
	if id == "" || creatorID == "" || !mode.Valid() {
		return nil, domain.ErrInvalidArgument
	}
	if amount <= 0 {
		return nil, domain.ErrValidation
	}
	status := PayoutStatusPending
	if mode == PayoutModeAutomatic {
		status = PayoutStatusProcessing
	}
	now := time.Now()
	return &Payout{
		ID:        id,
		CreatorID: creatorID,
		Amount:    amount,
		Currency:  currency,
		Status:    status,
		Mode:      mode,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// PayoutTransition describes a single conditional status change.
// It is applied only when the stored status is one of From.
type PayoutTransition struct {
	From        []PayoutStatus
	To          PayoutStatus
	ProviderRef *string
	ProcessedBy *string
	Note        string
	At          time.Time
}

// PayoutFilter narrows payout listings. Zero values mean "any".
type PayoutFilter struct {
	CreatorID string
	Status    PayoutStatus
	Limit     int
	Offset    int
}

// AppendNote adds a line to an audit trail.
func AppendNote(notes, line string) string {
	if line == "" {
		return notes
	}
	if notes == "" {
		return line
	}
	return notes + "\n" + line
}
