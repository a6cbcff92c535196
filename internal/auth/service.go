package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/2beens/gymtracker/internal/securestore"
	"github.com/2beens/gymtracker/internal/telemetry/metrics"
	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/pkg"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultTTL       = 24 * 7 * time.Hour
	sessionKeyPrefix = "gymtracker-session||"
	tokensSetKey     = "gymtracker-sessions"
	tokenLength      = 35
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrSessionNotFound    = errors.New("session not found")
	ErrInvalidSessionData = errors.New("invalid session data")
)

type LoginStatus string

const (
	LoginStatusOK                 LoginStatus = "ok"
	LoginStatusInvalidCredentials LoginStatus = "invalid_credentials"
	LoginStatusLocked             LoginStatus = "locked"
)

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type account struct {
	User
	PasswordHash string `json:"passwordHash"`
}

type accountsRegistry map[string]account

func (r *accountsRegistry) Validate() error {
	for email, acc := range *r {
		if acc.ID == "" || acc.PasswordHash == "" {
			return fmt.Errorf("incomplete account %s", email)
		}
	}
	return nil
}

type LoginSession struct {
	UserID    string `json:"userId"`
	CreatedAt int64  `json:"createdAt"`
}

// LoginResult is the outcome of a login. A locked account is a regular
// outcome, not an error.
type LoginResult struct {
	Status       LoginStatus `json:"status"`
	Token        string      `json:"token,omitempty"`
	User         *User       `json:"user,omitempty"`
	AttemptsLeft int         `json:"attemptsLeft"`
	LockMinutes  int         `json:"lockMinutes,omitempty"`
}

type NewServiceParams struct {
	Store          *securestore.Store
	Guard          *AttemptGuard
	RedisClient    *redis.Client
	TTL            time.Duration
	HashCost       int
	MetricsManager *metrics.Manager
}

type Service struct {
	store          *securestore.Store
	guard          *AttemptGuard
	redisClient    *redis.Client
	ttl            time.Duration
	hashCost       int
	metricsManager *metrics.Manager
	registryMutex  sync.Mutex
	// ability to inject random string generator func for tokens (for unit and dev testing)
	RandStringFunc func(s int) (string, error)
}

func NewAuthService(params NewServiceParams) *Service {
	ttl := params.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	hashCost := params.HashCost
	if hashCost <= 0 {
		hashCost = pkg.DefaultPasswordHashCost
	}
	return &Service{
		store:          params.Store,
		guard:          params.Guard,
		redisClient:    params.RedisClient,
		ttl:            ttl,
		hashCost:       hashCost,
		metricsManager: params.MetricsManager,
		RandStringFunc: pkg.GenerateRandomString,
	}
}

func (as *Service) Signup(ctx context.Context, email, password, name string, now time.Time) (*User, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "authService.signup")
	defer span.End()

	email = strings.TrimSpace(email)
	if !IsValidEmail(email) {
		return nil, ErrInvalidEmail
	}
	if !IsValidPassword(password) {
		return nil, ErrWeakPassword
	}

	as.registryMutex.Lock()
	defer as.registryMutex.Unlock()

	registry, err := as.loadRegistry(ctx)
	if err != nil {
		return nil, err
	}

	key := normalizeEmail(email)
	if _, taken := registry[key]; taken {
		return nil, ErrEmailTaken
	}

	passwordHash, err := pkg.HashPassword(password, as.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	newAccount := account{
		User: User{
			ID:        uuid.NewString(),
			Email:     email,
			Name:      strings.TrimSpace(name),
			CreatedAt: now.UTC(),
		},
		PasswordHash: passwordHash,
	}
	registry[key] = newAccount

	if err := as.store.SetItem(ctx, securestore.UsersKey, registry); err != nil {
		return nil, fmt.Errorf("save account: %w", err)
	}

	span.SetAttributes(attribute.String("user.id", newAccount.ID))
	log.Debugf("auth service: new account [%s] created", newAccount.ID)

	user := newAccount.User
	return &user, nil
}

// Login consults the attempt guard before verifying the credentials and
// records the verification outcome afterwards.
func (as *Service) Login(ctx context.Context, email, password string, createdAt time.Time) (*LoginResult, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "authService.login")
	defer span.End()

	if lockMinutes := as.guard.RemainingLockTime(ctx, email); lockMinutes > 0 {
		as.countLogin(LoginStatusLocked)
		return &LoginResult{
			Status:      LoginStatusLocked,
			LockMinutes: lockMinutes,
		}, nil
	}

	acc, err := as.findAccount(ctx, email)
	if err != nil {
		return nil, err
	}

	if acc == nil || !pkg.CheckPasswordHash(password, acc.PasswordHash) {
		attempt := as.guard.RecordFailedAttempt(ctx, email)
		if attempt.Locked {
			as.countLogin(LoginStatusLocked)
			if as.metricsManager != nil {
				as.metricsManager.CounterAccountLockouts.Inc()
			}
			result := &LoginResult{Status: LoginStatusLocked}
			if attempt.LockTimeMinutes != nil {
				result.LockMinutes = *attempt.LockTimeMinutes
			}
			return result, nil
		}
		as.countLogin(LoginStatusInvalidCredentials)
		return &LoginResult{
			Status:       LoginStatusInvalidCredentials,
			AttemptsLeft: attempt.AttemptsLeft,
		}, nil
	}

	as.guard.RecordSuccessfulLogin(ctx, email)

	token, err := as.createSession(ctx, acc.ID, createdAt)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	as.countLogin(LoginStatusOK)
	user := acc.User
	return &LoginResult{
		Status:       LoginStatusOK,
		Token:        token,
		User:         &user,
		AttemptsLeft: MaxAttempts,
	}, nil
}

func (as *Service) createSession(ctx context.Context, userID string, createdAt time.Time) (string, error) {
	token, err := as.RandStringFunc(tokenLength)
	if err != nil {
		return "", err
	}

	sessionJson, err := json.Marshal(LoginSession{
		UserID:    userID,
		CreatedAt: createdAt.Unix(),
	})
	if err != nil {
		return "", err
	}

	sessionKey := sessionKeyPrefix + token
	cmdSet := as.redisClient.Set(ctx, sessionKey, string(sessionJson), 0)
	if err := cmdSet.Err(); err != nil {
		return "", err
	}

	// add token to list of sessions
	cmdSAdd := as.redisClient.SAdd(ctx, tokensSetKey, token)
	if err := cmdSAdd.Err(); err != nil {
		return "", err
	}

	return token, nil
}

func (as *Service) Logout(ctx context.Context, token string) error {
	sessionKey := sessionKeyPrefix + token
	cmd := as.redisClient.Get(ctx, sessionKey)
	if err := cmd.Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrSessionNotFound
		}
		return err
	}

	cmdDel := as.redisClient.Del(ctx, sessionKey)
	if err := cmdDel.Err(); err != nil {
		return err
	}

	// remove token from the list of sessions
	cmdSRem := as.redisClient.SRem(ctx, tokensSetKey, token)
	if err := cmdSRem.Err(); err != nil {
		return err
	}

	return nil
}

// Unlock clears the failed attempts of an account, e.g. after a password reset.
func (as *Service) Unlock(ctx context.Context, email string) {
	as.guard.UnlockAccount(ctx, email)
	log.Infof("auth service: [%s] unlocked", normalizeEmail(email))
}

// ScanAndClean will run through all sessions, check the TTL, and clean them if old
func (as *Service) ScanAndClean(ctx context.Context) {
	cmd := as.redisClient.SMembers(ctx, tokensSetKey)
	if err := cmd.Err(); err != nil {
		log.Errorf("!!! auth service, scan and clean, get sessions: %s", err)
		return
	}

	sessionTokens := cmd.Val()
	if len(sessionTokens) == 0 {
		log.Debugln("=> auth service, scan and clean abort, no sessions")
		return
	}

	log.Infof("=> auth service, scan and clean [%d sessions] start ...", len(sessionTokens))
	var toRemove []string
	for _, token := range sessionTokens {
		sessionKey := sessionKeyPrefix + token
		cmd := as.redisClient.Get(ctx, sessionKey)
		if err := cmd.Err(); err != nil {
			if errors.Is(err, redis.Nil) {
				// dangling token in the set
				toRemove = append(toRemove, token)
				continue
			}
			log.Errorf("=> auth service, scan and clean token %s: %s", token, err)
			continue
		}

		session, err := parseSession(cmd.Val())
		if err != nil {
			log.Errorf("=> auth service, scan and clean token %s: %s", token, err)
			toRemove = append(toRemove, token)
			continue
		}

		createdAt := time.Unix(session.CreatedAt, 0)
		if time.Since(createdAt) > as.ttl {
			log.Debugf("=>\twill clean the session with token: %s", token)
			toRemove = append(toRemove, token)
		}
	}

	for _, token := range toRemove {
		sessionKey := sessionKeyPrefix + token
		cmdDel := as.redisClient.Del(ctx, sessionKey)
		if err := cmdDel.Err(); err != nil {
			log.Errorf("=> auth service, clean token %s: %s", token, err)
			continue
		}

		// remove token from the list of sessions
		cmdSRem := as.redisClient.SRem(ctx, tokensSetKey, token)
		if err := cmdSRem.Err(); err != nil {
			log.Errorf("=> auth service, clean token %s: %s", token, err)
			continue
		}
	}
}

func (as *Service) findAccount(ctx context.Context, email string) (*account, error) {
	as.registryMutex.Lock()
	defer as.registryMutex.Unlock()

	registry, err := as.loadRegistry(ctx)
	if err != nil {
		return nil, err
	}

	acc, ok := registry[normalizeEmail(email)]
	if !ok {
		return nil, nil
	}
	return &acc, nil
}

func (as *Service) loadRegistry(ctx context.Context) (accountsRegistry, error) {
	registry, err := securestore.Get[accountsRegistry](ctx, as.store, securestore.UsersKey)
	if errors.Is(err, securestore.ErrNotFound) {
		return accountsRegistry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	if registry == nil {
		registry = accountsRegistry{}
	}
	return registry, nil
}

func (as *Service) countLogin(status LoginStatus) {
	if as.metricsManager == nil {
		return
	}
	as.metricsManager.CounterLoginAttempts.WithLabelValues(string(status)).Inc()
}

func parseSession(raw string) (*LoginSession, error) {
	var session LoginSession
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSessionData, err)
	}
	if session.UserID == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidSessionData)
	}
	return &session, nil
}
