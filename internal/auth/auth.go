package auth

import (
	"context"
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

const (
	RoleAdmin     = "ADMIN"
	RoleDashboard = "DASHBOARD"
)

type ctxKey int

// Key is used to store/retrieve a Claims value from a context.Context.
const Key ctxKey = 1

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrForbidden    = errors.New("attempted action is not allowed")
)

// Claims is the token payload used by the dashboard and admin screens.
type Claims struct {
	jwt.StandardClaims
	UserId int64  `json:"user_id"`
	Role   string `json:"role"`
}

// Authorized reports whether the claims carry one of roles. No roles means
// any authenticated user.
func (c Claims) Authorized(roles ...string) bool {
	if len(roles) == 0 {
		return true
	}
	for _, role := range roles {
		if c.Role == role {
			return true
		}
	}
	return false
}

// Auth signs and validates HS256 tokens.
type Auth struct {
	key    []byte
	ttl    time.Duration
	method jwt.SigningMethod
	now    func() time.Time
}

func New(key string, ttl time.Duration) (*Auth, error) {
	if key == "" {
		return nil, errors.New("empty signing key")
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Auth{
		key:    []byte(key),
		ttl:    ttl,
		method: jwt.SigningMethodHS256,
		now:    time.Now,
	}, nil
}

func (a *Auth) GenerateToken(userID int64, role string) (string, error) {
	now := a.now()
	claims := Claims{
		StandardClaims: jwt.StandardClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(a.ttl).Unix(),
		},
		UserId: userID,
		Role:   role,
	}

	token, err := jwt.NewWithClaims(a.method, claims).SignedString(a.key)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return token, nil
}

func (a *Auth) ValidateToken(tokenStr string) (Claims, error) {
	var claims Claims
	parser := jwt.Parser{ValidMethods: []string{a.method.Alg()}}

	token, err := parser.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		return a.key, nil
	})
	if err != nil {
		return Claims{}, errors.Wrap(ErrInvalidToken, err.Error())
	}
	if !token.Valid {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

// FromContext returns the claims stored by the authentication middleware.
func FromContext(ctx context.Context) (Claims, bool) {
	claims, ok := ctx.Value(Key).(Claims)
	return claims, ok
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "hashing password")
	}
	return string(hash), nil
}

func ComparePassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
