package middleware

import (
	"net/http"
	"strings"

	"github.com/kestrelcommerce/storefront-backend/api/responses"
	"github.com/kestrelcommerce/storefront-backend/internal/identity"
	"github.com/kestrelcommerce/storefront-backend/pkg/config"
	pkgerrors "github.com/kestrelcommerce/storefront-backend/pkg/errors"
	"github.com/kestrelcommerce/storefront-backend/pkg/logger"
)

const guestSessionHeader = "X-Guest-Session"

// Identity resolves the caller for cart routes. A valid bearer token makes
// the caller authenticated (verified or not per the token); no token plus a
// guest session header makes the caller anonymous. A request with neither,
// or with a bad token, is rejected: cart authority cannot be decided for it.
func Identity(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := strings.TrimSpace(r.Header.Get(guestSessionHeader))

			token := bearerToken(r)
			if token == "" {
				if sessionID == "" {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "a guest session or bearer token is required"))
					return
				}
				ctx := WithIdentity(r.Context(), identity.Anonymous(sessionID))
				if logg != nil {
					ctx = logg.WithSessionID(ctx, sessionID)
				}
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			claims, err := identity.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ident := identity.FromClaims(claims, sessionID)
			ctx := WithIdentity(r.Context(), ident)
			if logg != nil {
				fields := map[string]any{
					"user_id":        ident.UserID.String(),
					"identity_state": string(ident.State),
				}
				if sessionID != "" {
					fields["session_id"] = sessionID
				}
				ctx = logg.WithFields(ctx, fields)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(raw), "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return raw
}
