// Package rotator multiplexes archive requests over a pool of API
// credentials with per-credential rate-limit state. Eligibility is always
// checked against live repository state; the rotator never blocks waiting
// for a credential to free up.
package rotator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/adscout/adscout/ent"
	"github.com/adscout/adscout/ent/credential"
	"github.com/adscout/adscout/pkg/models"
)

// ErrNoCredentialAvailable indicates no credential is currently
// dispatchable. Callers treat it as transient: sleep until the earliest
// cooldown expires, then retry.
var ErrNoCredentialAvailable = errors.New("no credential available")

// DefaultCooldown is applied when a rate-limit outcome carries no
// retry-after hint.
const DefaultCooldown = 60 * time.Second

// outcomeKind discriminates Report outcomes.
type outcomeKind int

const (
	outcomeSuccess outcomeKind = iota
	outcomeTransient
	outcomeRateLimited
	outcomeFatal
)

// Outcome is the result of using a leased credential.
type Outcome struct {
	kind       outcomeKind
	message    string
	retryAfter time.Duration
}

// Success reports a successful call.
func Success() Outcome { return Outcome{kind: outcomeSuccess} }

// TransientError reports a retryable failure.
func TransientError(msg string) Outcome {
	return Outcome{kind: outcomeTransient, message: msg}
}

// RateLimited reports a rate-limit hit. A zero retryAfter applies the
// rotator's default cooldown.
func RateLimited(retryAfter time.Duration) Outcome {
	return Outcome{kind: outcomeRateLimited, retryAfter: retryAfter, message: "rate limited"}
}

// FatalError reports an unrecoverable credential failure; the credential
// is deactivated.
func FatalError(msg string) Outcome {
	return Outcome{kind: outcomeFatal, message: msg}
}

// Lease is the release handle for one acquired credential. It must be
// reported exactly once.
type Lease struct {
	Cred models.CredentialRef

	r        *Rotator
	reported bool
}

// Rotator hands out credentials round-robin by oldest last_used_at.
type Rotator struct {
	client   *ent.Client
	cooldown time.Duration
	logger   *slog.Logger

	// mu guards the leased set; selection and lease bookkeeping form a
	// single critical section so a credential in flight is never handed
	// out twice.
	mu     sync.Mutex
	leased map[int]struct{}
}

// New creates a rotator. A zero defaultCooldown falls back to DefaultCooldown.
func New(client *ent.Client, defaultCooldown time.Duration) *Rotator {
	if defaultCooldown <= 0 {
		defaultCooldown = DefaultCooldown
	}
	return &Rotator{
		client:   client,
		cooldown: defaultCooldown,
		logger:   slog.Default().With("component", "rotator"),
		leased:   make(map[int]struct{}),
	}
}

// Acquire returns the eligible credential with the oldest last_used_at
// (never-used first, ties broken by id). Returns ErrNoCredentialAvailable
// when the dispatchable set is empty.
func (r *Rotator) Acquire(ctx context.Context) (*Lease, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	creds, err := r.eligible(ctx)
	if err != nil {
		return nil, err
	}

	for _, c := range creds {
		if _, inFlight := r.leased[c.ID]; inFlight {
			continue
		}
		r.leased[c.ID] = struct{}{}
		return &Lease{Cred: toRef(c), r: r}, nil
	}
	return nil, ErrNoCredentialAvailable
}

// Report records the outcome of a lease and releases the credential.
func (r *Rotator) Report(ctx context.Context, lease *Lease, outcome Outcome) error {
	if lease == nil {
		return fmt.Errorf("nil lease")
	}

	r.mu.Lock()
	if lease.reported {
		r.mu.Unlock()
		return fmt.Errorf("lease for credential %d already reported", lease.Cred.ID)
	}
	lease.reported = true
	delete(r.leased, lease.Cred.ID)
	r.mu.Unlock()

	now := time.Now()
	update := r.client.Credential.UpdateOneID(lease.Cred.ID).
		AddTotalCalls(1).
		SetLastUsedAt(now)

	switch outcome.kind {
	case outcomeSuccess:
		// Counters only.
	case outcomeTransient:
		update = update.
			AddTotalErrors(1).
			SetLastErrorAt(now).
			SetLastErrorMessage(truncate(outcome.message, 500))
	case outcomeRateLimited:
		retryAfter := outcome.retryAfter
		if retryAfter <= 0 {
			retryAfter = r.cooldown
		}
		update = update.
			AddTotalErrors(1).
			AddRateLimitHits(1).
			SetLastErrorAt(now).
			SetLastErrorMessage(truncate(outcome.message, 500)).
			SetRateLimitedUntil(now.Add(retryAfter))
		r.logger.Warn("Credential rate limited",
			"credential_id", lease.Cred.ID,
			"until", now.Add(retryAfter))
	case outcomeFatal:
		update = update.
			AddTotalErrors(1).
			SetLastErrorAt(now).
			SetLastErrorMessage(truncate(outcome.message, 500)).
			SetActive(false)
		r.logger.Warn("Credential deactivated after fatal error",
			"credential_id", lease.Cred.ID,
			"error", outcome.message)
	}

	if err := update.Exec(ctx); err != nil {
		return fmt.Errorf("recording credential outcome: %w", err)
	}
	return nil
}

// ListUsable returns the currently dispatchable credentials, in dispatch
// order. Leased credentials are included — they are usable, just busy.
func (r *Rotator) ListUsable(ctx context.Context) ([]models.CredentialRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	creds, err := r.eligible(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.CredentialRef, len(creds))
	for i, c := range creds {
		out[i] = toRef(c)
	}
	return out, nil
}

// NextEligibleAt returns the earliest instant at which some currently
// rate-limited active credential becomes dispatchable again. ok is false
// when no active credential is in cooldown (nothing to wait for).
func (r *Rotator) NextEligibleAt(ctx context.Context) (time.Time, bool, error) {
	creds, err := r.client.Credential.Query().
		Where(credential.Active(true)).
		All(ctx)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("querying credentials: %w", err)
	}

	now := time.Now()
	var earliest time.Time
	found := false
	for _, c := range creds {
		if c.RateLimitedUntil == nil || !c.RateLimitedUntil.After(now) {
			continue
		}
		if !found || c.RateLimitedUntil.Before(earliest) {
			earliest = *c.RateLimitedUntil
			found = true
		}
	}
	return earliest, found, nil
}

// eligible queries live state and orders by last_used_at ascending with
// never-used credentials first, ties broken by id.
func (r *Rotator) eligible(ctx context.Context) ([]*ent.Credential, error) {
	creds, err := r.client.Credential.Query().
		Where(credential.Active(true)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("querying credentials: %w", err)
	}

	now := time.Now()
	usable := creds[:0]
	for _, c := range creds {
		if c.RateLimitedUntil != nil && c.RateLimitedUntil.After(now) {
			continue
		}
		usable = append(usable, c)
	}

	sort.Slice(usable, func(i, j int) bool {
		a, b := usable[i], usable[j]
		switch {
		case a.LastUsedAt == nil && b.LastUsedAt == nil:
			return a.ID < b.ID
		case a.LastUsedAt == nil:
			return true
		case b.LastUsedAt == nil:
			return false
		case a.LastUsedAt.Equal(*b.LastUsedAt):
			return a.ID < b.ID
		default:
			return a.LastUsedAt.Before(*b.LastUsedAt)
		}
	})
	return usable, nil
}

func toRef(c *ent.Credential) models.CredentialRef {
	ref := models.CredentialRef{
		ID:    c.ID,
		Name:  c.Name,
		Token: c.Token,
	}
	if c.ProxyURL != nil {
		ref.ProxyURL = *c.ProxyURL
	}
	return ref
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
