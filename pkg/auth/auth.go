// Package auth verifies the opaque bearer credential presented by clients
// against the identity provider and resolves it to a stable user identity.
package auth

import (
	"context"

	"github.com/dgrijalva/jwt-go"

	jwtdecode "github.com/alexbrdn/wingmate-api/internal"
	"github.com/alexbrdn/wingmate-api/pkg/domain"
)

// Identity is the result of a successful credential check.
type Identity struct {
	UserID string
	Email  string
}

// Verifier validates a bearer token. It is a pure check: no account state is
// read or written.
type Verifier interface {
	Verify(ctx context.Context, bearerToken string) (Identity, error)
}

// JWKSVerifier validates RS256 ID tokens against the provider's published
// key set.
type JWKSVerifier struct {
	keys *jwtdecode.KeySet
}

func NewJWKSVerifier(jwksURL string) *JWKSVerifier {
	return &JWKSVerifier{keys: jwtdecode.NewKeySet(jwksURL)}
}

func (v *JWKSVerifier) Verify(ctx context.Context, bearerToken string) (Identity, error) {
	if bearerToken == "" {
		return Identity{}, domain.E(domain.CodeUnauthenticated, "missing bearer token")
	}

	token, err := v.parse(bearerToken, false)
	if err != nil || !token.Valid {
		// The provider rotates keys; one forced refresh covers a token
		// signed with a key the cache has not seen yet.
		token, err = v.parse(bearerToken, true)
		if err != nil || !token.Valid {
			return Identity{}, domain.Wrap(domain.CodeUnauthenticated, "invalid or expired token", err)
		}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, domain.E(domain.CodeUnauthenticated, "invalid token claims")
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		sub, _ = claims["user_id"].(string)
	}
	if sub == "" {
		return Identity{}, domain.E(domain.CodeUnauthenticated, "token has no subject")
	}

	email, _ := claims["email"].(string)
	return Identity{UserID: sub, Email: email}, nil
}

func (v *JWKSVerifier) parse(bearerToken string, forceRefresh bool) (*jwt.Token, error) {
	return jwt.Parse(bearerToken, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, jwt.NewValidationError("unexpected signing method", jwt.ValidationErrorSignatureInvalid)
		}
		return v.keys.Key(token, forceRefresh)
	})
}

// StaticVerifier maps literal tokens to identities. Used in tests and in
// local development where no identity provider is reachable.
type StaticVerifier map[string]Identity

func (v StaticVerifier) Verify(_ context.Context, bearerToken string) (Identity, error) {
	id, ok := v[bearerToken]
	if !ok {
		return Identity{}, domain.E(domain.CodeUnauthenticated, "invalid or expired token")
	}
	return id, nil
}
