package nonce

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var (
	ErrNotFound = errors.New("nonce not found")
	ErrExpired  = errors.New("nonce expired")
	ErrReplayed = errors.New("nonce already consumed")
)

// Store holds issued nonces and enforces single-use consumption.
// Consume MUST be atomic: two concurrent calls for the same value must
// yield exactly one success, regardless of backend.
type Store interface {
	Save(ctx context.Context, value string, issuedAt time.Time) error
	// Consume removes (or marks) the nonce and returns its issuance
	// time. Returns ErrNotFound or ErrReplayed otherwise.
	Consume(ctx context.Context, value string) (time.Time, error)
	// Sweep drops nonces issued before the cutoff. Backends with
	// native expiry may no-op.
	Sweep(ctx context.Context, before time.Time) error
}

// Authority issues unpredictable challenge tokens and validates their
// single-use consumption within the freshness window.
type Authority struct {
	store  Store
	window time.Duration
	log    *zap.Logger
}

func NewAuthority(store Store, window time.Duration, log *zap.Logger) *Authority {
	return &Authority{store: store, window: window, log: log}
}

// Issue generates a 256-bit random token and registers it.
func (a *Authority) Issue(ctx context.Context) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	value := base64.RawURLEncoding.EncodeToString(buf)

	if err := a.store.Save(ctx, value, time.Now()); err != nil {
		return "", fmt.Errorf("save nonce: %w", err)
	}
	return value, nil
}

// Consume atomically invalidates the nonce. The sub-reason (unknown,
// expired, replayed) is for diagnostics only; callers present a uniform
// message to clients.
func (a *Authority) Consume(ctx context.Context, value string) error {
	if value == "" {
		return ErrNotFound
	}
	issuedAt, err := a.store.Consume(ctx, value)
	if err != nil {
		return err
	}
	if time.Since(issuedAt) >= a.window {
		return ErrExpired
	}
	return nil
}

// RunSweeper periodically evicts stale nonces until ctx is cancelled.
func (a *Authority) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Keep expired nonces around for one extra window so a
			// late consume reports "expired" rather than "unknown".
			cutoff := time.Now().Add(-2 * a.window)
			if err := a.store.Sweep(ctx, cutoff); err != nil {
				a.log.Warn("nonce sweep failed", zap.Error(err))
			}
		}
	}
}
