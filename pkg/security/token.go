package security

import (
	"errors"
	"time"

	"rewards-controlplane/pkg/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/fx"
)

var Module = fx.Module("security", fx.Provide(ProvideTokenIssuer, NewSessionStore))

var (
	ErrEmptySecret  = errors.New("jwt secret is empty")
	ErrInvalidToken = errors.New("invalid token")
)

// Claims is the session payload carried by every access token.
type Claims struct {
	Role       string `json:"role"`
	RoleStatus string `json:"role_status,omitempty"`
	CompanyID  string `json:"company_id,omitempty"`
	jwt.RegisteredClaims
}

// Identity is what a token is issued for.
type Identity struct {
	UserID     string
	Role       string
	RoleStatus string
	CompanyID  string
}

// UserID is the profile id the token was issued for.
func (c *Claims) UserID() string {
	return c.Subject
}

type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func ProvideTokenIssuer(cfg *config.Config) (*TokenIssuer, error) {
	return NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
}

func NewTokenIssuer(secret, issuer string, ttl time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenIssuer{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

func (t *TokenIssuer) TTL() time.Duration {
	return t.ttl
}

// Issue signs a HS256 token for id with a fresh jti.
func (t *TokenIssuer) Issue(id Identity) (string, *Claims, error) {
	now := t.now()
	claims := &Claims{
		Role:       id.Role,
		RoleStatus: id.RoleStatus,
		CompanyID:  id.CompanyID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id.UserID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

func (t *TokenIssuer) Parse(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
