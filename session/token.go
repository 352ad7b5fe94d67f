package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/benjaminabbitt/gainlabz/storefront"
)

// Claims is the JWT payload carrying the storefront identity.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier turns HS256 bearer tokens into identities.
type TokenVerifier struct {
	secret []byte
	issuer string
}

// NewTokenVerifier creates a verifier for tokens signed with secret.
// An empty issuer disables the issuer check.
func NewTokenVerifier(secret []byte, issuer string) (*TokenVerifier, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt secret must not be empty")
	}
	return &TokenVerifier{secret: secret, issuer: issuer}, nil
}

// Verify validates token and returns the identity it names. Any failure is
// reported as Unauthenticated.
func (v *TokenVerifier) Verify(token string) (storefront.Identity, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return storefront.Identity{}, storefront.NewError(storefront.ReasonUnauthenticated, ErrMsgTokenMissing)
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return storefront.Identity{}, &storefront.CommandError{
			Code:    storefront.StatusUnauthenticated,
			Reason:  storefront.ReasonUnauthenticated,
			Message: ErrMsgTokenInvalid,
			Cause:   err,
		}
	}
	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return storefront.Identity{}, storefront.NewError(storefront.ReasonUnauthenticated, ErrMsgTokenIssuer)
	}
	if claims.Subject == "" {
		return storefront.Identity{}, storefront.NewError(storefront.ReasonUnauthenticated, ErrMsgTokenSubject)
	}

	return storefront.Identity{
		UserID: claims.Subject,
		Email:  claims.Email,
		Name:   claims.Name,
		Role:   storefront.ParseRole(claims.Role),
		Token:  token,
	}, nil
}

// Issue signs a token for id valid for ttl. Used by tools and tests; the
// production identity provider issues its own tokens.
func (v *TokenVerifier) Issue(id storefront.Identity, ttl time.Duration) (string, error) {
	if !id.Valid() {
		return "", storefront.NewInvalidArgument(ErrMsgTokenSubject)
	}
	now := time.Now()
	claims := &Claims{
		Email: id.Email,
		Name:  id.Name,
		Role:  string(id.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
