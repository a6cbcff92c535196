package auth

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/2beens/gymtracker/internal/securestore"

	log "github.com/sirupsen/logrus"
)

const (
	MaxAttempts  = 5
	LockDuration = 30 * time.Minute
)

type LoginAttemptRecord struct {
	Email       string     `json:"email"`
	Attempts    int        `json:"attempts"`
	LockedUntil *time.Time `json:"lockedUntil"`
	LastAttempt time.Time  `json:"lastAttempt"`
}

type attemptsTable map[string]LoginAttemptRecord

func (t *attemptsTable) Validate() error {
	for email, record := range *t {
		if record.Attempts < 0 {
			return fmt.Errorf("negative attempts for %s", email)
		}
	}
	return nil
}

type AttemptResult struct {
	Locked          bool `json:"locked"`
	AttemptsLeft    int  `json:"attemptsLeft"`
	LockTimeMinutes *int `json:"lockTimeMinutes,omitempty"`
}

// AttemptGuard counts failed logins per email and locks the identity for
// LockDuration once MaxAttempts is reached. Expired locks are only cleared
// when observed.
type AttemptGuard struct {
	store *securestore.Store
	mutex sync.Mutex

	// ability to inject the clock (for unit testing)
	NowFunc func() time.Time
}

func NewAttemptGuard(store *securestore.Store) *AttemptGuard {
	return &AttemptGuard{
		store:   store,
		NowFunc: time.Now,
	}
}

func (g *AttemptGuard) IsAccountLocked(ctx context.Context, email string) bool {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	table := g.load(ctx)
	record, ok := table[normalizeEmail(email)]
	if !ok || record.LockedUntil == nil {
		return false
	}

	if !g.NowFunc().Before(*record.LockedUntil) {
		g.remove(ctx, table, email)
		return false
	}

	return true
}

// RemainingLockTime returns the remaining lock in whole minutes, rounded up.
func (g *AttemptGuard) RemainingLockTime(ctx context.Context, email string) int {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	table := g.load(ctx)
	record, ok := table[normalizeEmail(email)]
	if !ok || record.LockedUntil == nil {
		return 0
	}

	remaining := record.LockedUntil.Sub(g.NowFunc())
	if remaining <= 0 {
		g.remove(ctx, table, email)
		return 0
	}

	return minutesCeil(remaining)
}

// RecordFailedAttempt registers one failed login. While the identity is
// locked the record is left untouched, so the lock is neither reset nor
// extended.
func (g *AttemptGuard) RecordFailedAttempt(ctx context.Context, email string) AttemptResult {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	now := g.NowFunc()
	key := normalizeEmail(email)
	table := g.load(ctx)

	record, ok := table[key]
	if ok && record.LockedUntil != nil {
		remaining := record.LockedUntil.Sub(now)
		if remaining > 0 {
			lockMinutes := minutesCeil(remaining)
			return AttemptResult{
				Locked:          true,
				AttemptsLeft:    0,
				LockTimeMinutes: &lockMinutes,
			}
		}
		// expired lock nobody observed yet, start over
		ok = false
	}

	if !ok {
		record = LoginAttemptRecord{
			Email: key,
		}
	}
	record.Attempts++
	record.LastAttempt = now.UTC()

	if record.Attempts >= MaxAttempts {
		lockedUntil := now.Add(LockDuration).UTC()
		record.LockedUntil = &lockedUntil
		table[key] = record
		g.save(ctx, table)

		log.Warnf("login guard: [%s] locked until %s", key, lockedUntil.Format(time.RFC3339))
		lockMinutes := minutesCeil(LockDuration)
		return AttemptResult{
			Locked:          true,
			AttemptsLeft:    0,
			LockTimeMinutes: &lockMinutes,
		}
	}

	table[key] = record
	g.save(ctx, table)

	return AttemptResult{
		Locked:       false,
		AttemptsLeft: MaxAttempts - record.Attempts,
	}
}

func (g *AttemptGuard) RecordSuccessfulLogin(ctx context.Context, email string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.remove(ctx, g.load(ctx), email)
}

// UnlockAccount clears the record, used after a password reset.
func (g *AttemptGuard) UnlockAccount(ctx context.Context, email string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.remove(ctx, g.load(ctx), email)
}

func (g *AttemptGuard) AttemptCount(ctx context.Context, email string) int {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	record, ok := g.load(ctx)[normalizeEmail(email)]
	if !ok {
		return 0
	}
	return record.Attempts
}

func (g *AttemptGuard) load(ctx context.Context) attemptsTable {
	table, err := securestore.Get[attemptsTable](ctx, g.store, securestore.LoginAttemptsKey)
	if err != nil {
		if !errors.Is(err, securestore.ErrNotFound) {
			log.Errorf("login guard: read attempts, treating as empty: %s", err)
		}
		return attemptsTable{}
	}
	if table == nil {
		return attemptsTable{}
	}
	return table
}

func (g *AttemptGuard) save(ctx context.Context, table attemptsTable) {
	if err := g.store.SetItem(ctx, securestore.LoginAttemptsKey, table); err != nil {
		log.Errorf("login guard: save attempts: %s", err)
	}
}

func (g *AttemptGuard) remove(ctx context.Context, table attemptsTable, email string) {
	key := normalizeEmail(email)
	if _, ok := table[key]; !ok {
		return
	}
	delete(table, key)
	g.save(ctx, table)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func minutesCeil(d time.Duration) int {
	return int(math.Ceil(d.Minutes()))
}
