package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const ActorHeader = "X-User-Id"

var ErrInvalidToken = errors.New("invalid bearer token")

type actorKey struct{}

func WithActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, actorID)
}

// GetActorID returns the user recorded on stock movements, or "" when the
// request was anonymous.
func GetActorID(ctx context.Context) string {
	if val, ok := ctx.Value(actorKey{}).(string); ok {
		return val
	}
	return ""
}

// Middleware copies the caller's user id header into the request context.
func Middleware(next http.Handler) http.Handler {
	return NewMiddleware("")(next)
}

// NewMiddleware resolves the actor from an HS256 bearer token signed with
// secret. With a secret configured the user id header is ignored and a
// request without a token stays anonymous. An empty secret disables token
// verification and trusts the header.
func NewMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var actor string
			if secret == "" {
				actor = strings.TrimSpace(r.Header.Get(ActorHeader))
			} else if token, ok := bearerToken(r); ok {
				userID, err := ParseToken(token, secret)
				if err != nil {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusUnauthorized)
					_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
					return
				}
				actor = userID
			}

			if actor != "" {
				r = r.WithContext(WithActorID(r.Context(), actor))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ParseToken verifies tokenString and returns its user_id claim.
func ParseToken(tokenString, secret string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	switch v := claims["user_id"].(type) {
	case string:
		if v != "" {
			return v, nil
		}
	case float64:
		return fmt.Sprintf("%.0f", v), nil
	}
	return "", fmt.Errorf("%w: missing user_id claim", ErrInvalidToken)
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if len(header) < 7 || !strings.EqualFold(header[:7], "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[7:])
	return token, token != ""
}
