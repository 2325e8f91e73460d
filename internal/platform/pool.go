package platform

import (
	"fmt"
	"sync/atomic"

	"github.com/creator-shield/youtube-sync-go/internal/metrics"
)

// CredentialPool hands out API keys for read calls. The rotation cursor
// advances once per call so load spreads evenly across credentials and a
// quota-exhausted key is skipped on the following call too.
type CredentialPool interface {
	// Size returns the number of credentials in the pool.
	Size() int

	// Start advances the rotation cursor and returns the index to try first.
	Start() int

	// Key returns the credential at the given index, wrapping around.
	Key(i int) string
}

type keyPool struct {
	keys   []string
	cursor atomic.Int64
}

// NewCredentialPool builds a pool over the given API keys. Empty keys are
// dropped.
func NewCredentialPool(keys []string) CredentialPool {
	valid := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			valid = append(valid, k)
		}
	}
	return &keyPool{keys: valid}
}

func (p *keyPool) Size() int {
	return len(p.keys)
}

func (p *keyPool) Start() int {
	if len(p.keys) == 0 {
		return 0
	}
	n := p.cursor.Add(1) - 1
	// Euclidean remainder keeps the index valid after int64 wraparound.
	i := int(n % int64(len(p.keys)))
	if i < 0 {
		i += len(p.keys)
	}
	return i
}

func (p *keyPool) Key(i int) string {
	return p.keys[i%len(p.keys)]
}

// withRotation tries attempt once per pool credential starting at the
// rotation cursor. Quota errors move on to the next credential; any other
// error propagates immediately. When the whole pool is exhausted the
// fallback token provider, if any, gets one OAuth-backed attempt.
func withRotation(pool CredentialPool, attempt func(apiKey string) error, fallback func() error) error {
	n := pool.Size()
	start := pool.Start()

	for i := 0; i < n; i++ {
		err := attempt(pool.Key(start + i))
		if err == nil {
			return nil
		}
		if !IsQuotaError(err) {
			return err
		}
		metrics.CredentialRotations.Inc()
	}

	if fallback != nil {
		return fallback()
	}

	if n == 0 {
		return fmt.Errorf("%w: credential pool is empty", ErrNoAvailableCredential)
	}
	return ErrNoAvailableCredential
}
