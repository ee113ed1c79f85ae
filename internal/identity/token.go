package identity

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/arunika-edu/arunika-edu/internal/shared"
)

// Token kinds carried in the "kind" claim.
const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

var (
	// ErrInvalidToken covers malformed, mistyped and tampered tokens.
	ErrInvalidToken = errors.New("identity: invalid token")
	// ErrWrongTokenKind occurs when a refresh token is presented where an
	// access token is required, or vice versa.
	ErrWrongTokenKind = errors.New("identity: wrong token kind")
)

// Claims represents the platform's JWT claims. SchoolID is optional; tokens
// minted before school binding existed omit it and rely on the tenancy
// guard's membership fallback.
type Claims struct {
	UserID   int64  `json:"uid"`
	Role     string `json:"role"`
	SchoolID int64  `json:"school_id,omitempty"`
	Email    string `json:"email"`
	Kind     string `json:"kind"`
	jwt.RegisteredClaims
}

// Actor converts verified claims into the per-request actor.
func (c *Claims) Actor() (shared.Actor, error) {
	role, ok := shared.ParseRole(c.Role)
	if !ok {
		return shared.Actor{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, c.Role)
	}
	return shared.Actor{
		UserID:   c.UserID,
		Role:     role,
		SchoolID: c.SchoolID,
		Email:    c.Email,
	}, nil
}

// TokenService mints and verifies HS256 bearer tokens.
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
}

// NewTokenService constructs a TokenService.
func NewTokenService(secret string, accessTTL, refreshTTL time.Duration, issuer string) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("identity: token secret required")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("identity: token lifetimes must be positive")
	}
	return &TokenService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		issuer:     issuer,
	}, nil
}

// TokenPair bundles the tokens returned by login/refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Issue mints an access/refresh pair for the actor.
func (s *TokenService) Issue(actor shared.Actor) (TokenPair, error) {
	access, err := s.mint(actor, KindAccess, s.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.mint(actor, KindRefresh, s.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

func (s *TokenService) mint(actor shared.Actor, kind string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   actor.UserID,
		Role:     string(actor.Role),
		SchoolID: actor.SchoolID,
		Email:    actor.Email,
		Kind:     kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(actor.UserID, 10),
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("identity: sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token of the expected kind.
func (s *TokenService) Verify(tokenString, kind string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: unexpected signing method", ErrInvalidToken)
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Kind != kind {
		return nil, ErrWrongTokenKind
	}
	return claims, nil
}
