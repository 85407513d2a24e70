package usecase

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const referencePrefix = "VID-"

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewReference returns a unique, time-ordered transaction reference such as
// VID-01HZX3J8Q4K6S1V9T2M5N7P0RB.
func NewReference() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return referencePrefix + ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
