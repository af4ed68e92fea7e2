package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hackgods/dental-booking/internal/booking"
)

var (
	ErrInvalidToken = errors.New("invalid bearer token")
	ErrAuthDisabled = errors.New("bearer authentication is not configured")
)

// Claims is the token payload issued by the clinic's auth service.
type Claims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Principal is who a request acts for. Identity is nil for guests; Token is
// forwarded to the clinic API for authenticated calls.
type Principal struct {
	Identity *booking.Identity
	Token    string
}

func (p Principal) Guest() bool { return p.Identity == nil }

type Resolver struct {
	secret []byte
}

func NewResolver(secret string) *Resolver {
	return &Resolver{secret: []byte(secret)}
}

// FromRequest resolves the principal of r. A request without an
// Authorization header is a guest.
func (r *Resolver) FromRequest(req *http.Request) (Principal, error) {
	auth := strings.TrimSpace(req.Header.Get("Authorization"))
	if auth == "" {
		return Principal{}, nil
	}
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return Principal{}, fmt.Errorf("%w: expected a bearer scheme", ErrInvalidToken)
	}
	token = strings.TrimSpace(token)

	id, err := r.Parse(token)
	if err != nil {
		return Principal{}, err
	}
	return Principal{Identity: id, Token: token}, nil
}

// Parse validates an HS256 token and maps its claims onto an Identity.
func (r *Resolver) Parse(token string) (*booking.Identity, error) {
	if len(r.secret) == 0 {
		return nil, ErrAuthDisabled
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return r.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: subject %q is not a user id", ErrInvalidToken, claims.Subject)
	}

	return &booking.Identity{
		ID:    userID,
		Name:  claims.Name,
		Email: claims.Email,
		Phone: claims.Phone,
		Role:  claims.Role,
	}, nil
}

type principalKey struct{}

func NewContext(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored by NewContext, or a guest.
func FromContext(ctx context.Context) Principal {
	p, _ := ctx.Value(principalKey{}).(Principal)
	return p
}
