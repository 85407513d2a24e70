package model

import (
	"strings"
	"time"

	"video-monetization/internal/domain"
)

// PlatformSettings is the admin-editable provider configuration.
// It is read fresh for every operation; nothing caches it.
type PlatformSettings struct {
	IncomingProvider string
	PayoutProvider   string
	PayoutMode       PayoutMode
	CommissionRate   float64 // fraction in [0,1), e.g. 0.15
	UpdatedAt        time.Time
	UpdatedBy        string
}

func (s *PlatformSettings) Normalize() {
	s.IncomingProvider = strings.ToLower(strings.TrimSpace(s.IncomingProvider))
	s.PayoutProvider = strings.ToLower(strings.TrimSpace(s.PayoutProvider))
	s.PayoutMode = PayoutMode(strings.ToLower(string(s.PayoutMode)))
}

func (s *PlatformSettings) Validate() error {
	if s.IncomingProvider == "" || s.PayoutProvider == "" {
		return domain.ErrValidation
	}
	if !s.PayoutMode.Valid() {
		return domain.ErrValidation
	}
	if s.CommissionRate < 0 || s.CommissionRate >= 1 {
		return domain.ErrValidation
	}
	return nil
}
