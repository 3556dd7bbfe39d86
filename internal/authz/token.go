package authz

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	dErrors "idledger/pkg/errors"
)

// Claims carried by admin-surface bearer tokens.
type Claims struct {
	ActorID string   `json:"actor_id"`
	Roles   []string `json:"roles"`
	jwt.RegisteredClaims
}

// TokenVerifier authenticates admin-surface bearer tokens and extracts the
// actor and roles baked into them. The HTTP layer uses it to establish who
// is calling before the role checker decides what they may do.
type TokenVerifier struct {
	signingKey []byte
	issuer     string
}

func NewTokenVerifier(signingKey []byte, issuer string) *TokenVerifier {
	return &TokenVerifier{signingKey: signingKey, issuer: issuer}
}

// Verify parses and validates a bearer token, returning its claims.
func (v *TokenVerifier) Verify(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return v.signingKey, nil
	}, jwt.WithIssuer(v.issuer))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	if claims.ActorID == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token carries no actor id")
	}
	return claims, nil
}

// Issue mints a token for an actor. Exposed for provisioning tooling and
// tests; the server itself only verifies.
func (v *TokenVerifier) Issue(actorID string, roles []Role, ttl time.Duration) (string, error) {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		ActorID: actorID,
		Roles:   names,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	})
	signed, err := token.SignedString(v.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "sign token")
	}
	return signed, nil
}
