package session

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/playforge/gamehost/internal/v1/auth"
)

// extractToken reads the JWT from the Sec-WebSocket-Protocol header when
// present, falling back to the token query parameter. Browsers cannot set
// arbitrary headers on WebSocket upgrades, so the subprotocol slot is the
// least-bad secure channel.
func extractToken(c *gin.Context) string {
	headerVal := c.GetHeader("Sec-WebSocket-Protocol")
	if headerVal != "" {
		for _, p := range strings.Split(headerVal, ",") {
			p = strings.TrimSpace(p)
			if p == "" || p == "access_token" {
				continue
			}
			return p
		}
	}
	return c.Query("token")
}

// resolveDisplayName prefers the explicit name parameter, then token claims.
func resolveDisplayName(nameParam string, claims *auth.CustomClaims) string {
	if nameParam != "" {
		return nameParam
	}
	if claims.Name != "" {
		return claims.Name
	}
	if claims.Email != "" {
		if parts := strings.Split(claims.Email, "@"); len(parts) > 0 && parts[0] != "" {
			return parts[0]
		}
	}
	return claims.Subject
}

// originChecker matches the request origin against the allowed list by
// scheme and host. Requests without an Origin header (non-browser clients)
// are allowed.
func originChecker(allowedOrigins []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		originURL, err := url.Parse(origin)
		if err != nil {
			return false
		}

		for _, allowed := range allowedOrigins {
			allowedURL, err := url.Parse(strings.TrimSpace(allowed))
			if err != nil {
				continue
			}
			if originURL.Scheme == allowedURL.Scheme && originURL.Host == allowedURL.Host {
				return true
			}
		}
		return false
	}
}

func contextWithTimeout(d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d)
}
