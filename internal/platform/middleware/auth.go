package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	id "credready/pkg/domain"
)

type ctxKeyActor struct{}

// actorClaims are the JWT claims the identity provider issues. Identity
// itself is out of scope here; this middleware only translates verified
// claims into a domain Actor.
type actorClaims struct {
	jwt.RegisteredClaims
	OrgID       string `json:"org_id"`
	Role        string `json:"role"`
	ClinicianID string `json:"clinician_id,omitempty"`
}

// RequireAuth verifies the bearer token and stores the resulting Actor in the
// request context. Requests without a valid token get 401 before any handler
// runs.
func RequireAuth(signingKey []byte, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			claims := &actorClaims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return signingKey, nil
			})
			if err != nil || !token.Valid {
				logger.WarnContext(r.Context(), "rejected bearer token", "error", err)
				http.Error(w, "invalid bearer token", http.StatusUnauthorized)
				return
			}

			actor, err := actorFromClaims(claims, r)
			if err != nil {
				logger.WarnContext(r.Context(), "rejected token claims", "error", err)
				http.Error(w, "invalid token claims", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyActor{}, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func actorFromClaims(claims *actorClaims, r *http.Request) (id.Actor, error) {
	userID, err := id.ParseUserID(claims.Subject)
	if err != nil {
		return id.Actor{}, err
	}
	orgID, err := id.ParseOrgID(claims.OrgID)
	if err != nil {
		return id.Actor{}, err
	}

	actor := id.Actor{
		UserID: userID,
		OrgID:  orgID,
		Role:   id.Role(claims.Role),
		IP:     clientIP(r),
	}
	if !actor.Role.IsValid() {
		return id.Actor{}, jwt.ErrTokenInvalidClaims
	}
	if claims.ClinicianID != "" {
		clinicianID, err := id.ParseClinicianID(claims.ClinicianID)
		if err != nil {
			return id.Actor{}, err
		}
		actor.ClinicianID = clinicianID
	}
	return actor, nil
}

// GetActor returns the authenticated actor; the bool is false outside
// RequireAuth.
func GetActor(ctx context.Context) (id.Actor, bool) {
	actor, ok := ctx.Value(ctxKeyActor{}).(id.Actor)
	return actor, ok
}

// WithActor injects an actor directly; test helper.
func WithActor(ctx context.Context, actor id.Actor) context.Context {
	return context.WithValue(ctx, ctxKeyActor{}, actor)
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i > 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return fwd
	}
	host := r.RemoteAddr
	if i := strings.LastIndexByte(host, ':'); i > 0 {
		return host[:i]
	}
	return host
}
