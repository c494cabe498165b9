package tenancy

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoSigningKey is returned when a JWTAuthenticator has no key
var ErrNoSigningKey = errors.New("jwt signing key is required")

// Claims is the bearer token payload. Subject carries the user ID. A token
// without tenant_id lets the request pick a tenant with X-Tenant-ID;
// membership is still checked when grants are resolved.
type Claims struct {
	TenantID int64 `json:"tenant_id,omitempty"`
	jwt.RegisteredClaims
}

// JWTAuthenticator validates HS256 bearer tokens
type JWTAuthenticator struct {
	key    []byte
	issuer string
	now    func() time.Time
}

// NewJWTAuthenticator creates an authenticator for tokens signed with key.
// A non-empty issuer must match the iss claim.
func NewJWTAuthenticator(key []byte, issuer string) (*JWTAuthenticator, error) {
	if len(key) == 0 {
		return nil, ErrNoSigningKey
	}
	return &JWTAuthenticator{key: key, issuer: issuer, now: time.Now}, nil
}

// Authenticate implements Authenticator. Requests without an Authorization
// header are anonymous.
func (a *JWTAuthenticator) Authenticate(r *http.Request) (*Identity, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return nil, nil
	}

	scheme, raw, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: malformed authorization header", ErrInvalidIdentity)
	}

	claims, err := a.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return nil, fmt.Errorf("%w: subject %q is not a user id", ErrInvalidIdentity, claims.Subject)
	}

	tenantID := claims.TenantID
	if tenantID == 0 {
		rawTenant := strings.TrimSpace(r.Header.Get(TenantIDHeader))
		if rawTenant == "" {
			return nil, fmt.Errorf("%w: no tenant in token or %s", ErrInvalidIdentity, TenantIDHeader)
		}
		tenantID, err = strconv.ParseInt(rawTenant, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed %s", ErrInvalidIdentity, TenantIDHeader)
		}
	}
	if tenantID <= 0 {
		return nil, fmt.Errorf("%w: tenant must be positive", ErrInvalidIdentity)
	}

	return &Identity{UserID: userID, TenantID: tenantID}, nil
}

// Parse validates a compact token and returns its claims
func (a *JWTAuthenticator) Parse(token string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := &Claims{}
	if _, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return a.key, nil
	}, opts...); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}
	return claims, nil
}

// Issue signs a token for userID valid for ttl. A zero tenantID leaves the
// tenant to the X-Tenant-ID header.
func (a *JWTAuthenticator) Issue(userID, tenantID int64, ttl time.Duration) (string, error) {
	if userID <= 0 || tenantID < 0 || ttl <= 0 {
		return "", fmt.Errorf("%w: user %d tenant %d ttl %s", ErrInvalidIdentity, userID, tenantID, ttl)
	}

	now := a.now()
	claims := Claims{
		TenantID: tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.key)
}
