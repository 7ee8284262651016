package service

import (
	"alcyxob/gym-sessions/internal/domain"
	"alcyxob/gym-sessions/internal/repository"
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

// --- Error Definitions ---
var (
	ErrAuthenticationFailed = errors.New("authentication failed: invalid email or password")
	ErrTokenGeneration      = errors.New("failed to generate authentication token")
	ErrRateLimited          = errors.New("too many attempts, try again later")
)

// TokenIssuer is the JWT issuer claim.
const TokenIssuer = "gym-sessions"

// Claims is the JWT payload shared by the issuer and the HTTP middleware.
type Claims struct {
	UserID string      `json:"uid"`
	Role   domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// --- Service Interface ---
type AuthService interface {
	// Register is public self sign-up. New accounts always start as OT.
	Register(ctx context.Context, name, email, phone, password string) (*domain.Member, error)
	Login(ctx context.Context, email, password string) (token string, member *domain.Member, err error)
	GetJWTSecret() string
}

// --- Service Implementation ---

type authService struct {
	members       repository.MemberRepository
	jwtSecret     string
	jwtExpiration time.Duration
	limiter       *keyedLimiter
}

// NewAuthService creates the auth service. Attempts are throttled per email address.
func NewAuthService(members repository.MemberRepository, jwtSecret string, jwtExpiration time.Duration, perMinute, burst int) AuthService {
	if jwtSecret == "" {
		panic("JWT secret cannot be empty")
	}
	if jwtExpiration <= 0 {
		jwtExpiration = time.Hour
	}
	return &authService{
		members:       members,
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
		limiter:       newKeyedLimiter(perMinute, burst),
	}
}

func (s *authService) Register(ctx context.Context, name, email, phone, password string) (*domain.Member, error) {
	// 1. Basic Input Validation
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" || password == "" {
		return nil, domain.NewValidationError("email", "name, email and password cannot be empty")
	}
	if !s.limiter.allow(email) {
		return nil, ErrRateLimited
	}

	// 2. Check if member already exists
	_, err := s.members.GetByEmail(ctx, email)
	if err == nil {
		return nil, ErrEmailTaken
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	// 3. Hash the password
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	// 4. Save as the base tier
	member := &domain.Member{
		Name:         name,
		Email:        email,
		Phone:        phone,
		PasswordHash: hash,
		Role:         domain.RoleOT,
	}
	if _, err := s.members.Create(ctx, member); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	member.PasswordHash = ""
	return member, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (token string, member *domain.Member, err error) {
	// 1. Basic Input Validation
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", nil, domain.NewValidationError("email", "email and password cannot be empty")
	}
	if !s.limiter.allow(email) {
		return "", nil, ErrRateLimited
	}

	// 2. Fetch member by email
	member, err = s.members.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil, ErrAuthenticationFailed
		}
		return "", nil, err
	}

	// 3. Compare the provided password with the stored hash
	if err = bcrypt.CompareHashAndPassword([]byte(member.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrAuthenticationFailed
	}

	// 4. Issue the token
	token, err = s.generateJWT(member)
	if err != nil {
		return "", nil, ErrTokenGeneration
	}

	member.PasswordHash = ""
	return token, member, nil
}

func (s *authService) generateJWT(member *domain.Member) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: member.ID.Hex(),
		Role:   member.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   member.ID.Hex(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtExpiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    TokenIssuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwtSecret))
}

// GetJWTSecret returns the JWT secret for middleware authentication
func (s *authService) GetJWTSecret() string {
	return s.jwtSecret
}

// keyedLimiter keeps one token bucket per key. A bucket left idle long enough
// to refill completely is indistinguishable from a new one, so it is dropped
// on the next sweep.
type keyedLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	every     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newKeyedLimiter(perMinute, burst int) *keyedLimiter {
	if perMinute <= 0 {
		perMinute = 10
	}
	if burst <= 0 {
		burst = 5
	}
	interval := time.Minute / time.Duration(perMinute)
	return &keyedLimiter{
		buckets: make(map[string]*bucket),
		every:   rate.Every(interval),
		burst:   burst,
		idle:    interval * time.Duration(burst),
		now:     time.Now,
	}
}

func (k *keyedLimiter) allow(key string) bool {
	now := k.now()

	k.mu.Lock()
	defer k.mu.Unlock()

	if now.Sub(k.lastSweep) >= k.idle {
		k.sweep(now)
	}
	b, ok := k.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(k.every, k.burst)}
		k.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// sweep drops idle buckets. Callers hold k.mu.
func (k *keyedLimiter) sweep(now time.Time) {
	for key, b := range k.buckets {
		if now.Sub(b.lastSeen) >= k.idle {
			delete(k.buckets, key)
		}
	}
	k.lastSweep = now
}

func (k *keyedLimiter) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.buckets)
}
