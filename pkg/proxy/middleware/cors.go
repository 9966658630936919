package middleware

import (
	"context"
	"net/http"
	"strings"
)

// WebviewOriginPrefix matches editor webview origins, which carry a
// per-session random authority and can only be matched by scheme.
const WebviewOriginPrefix = "vscode-webview://"

// allowedRemoteOrigins are the fixed remote frontends permitted to call
// the bridge through the tunnel.
var allowedRemoteOrigins = []string{
	"https://app.mercator.dev",
	"https://studio.mercator.dev",
}

// OriginAllowed reports whether an Origin header value is on the bridge
// allow-list. Webview origins match by scheme prefix; everything else
// must match a fixed remote origin exactly.
func OriginAllowed(origin string) bool {
	if strings.HasPrefix(origin, WebviewOriginPrefix) {
		return true
	}
	for _, allowed := range allowedRemoteOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// CORSMiddleware applies the bridge's fixed origin policy. Allowed
// origins are echoed back; everything else gets the literal "null",
// which browsers treat as a denial without the bridge having to reject
// the request itself. Preflight OPTIONS requests are answered directly
// with 200 and never reach the forwarder.
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if OriginAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "null")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		ctx := context.WithValue(r.Context(), OriginKey, origin)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetOrigin extracts the request origin from the context. Returns empty
// string if not set.
func GetOrigin(ctx context.Context) string {
	if origin, ok := ctx.Value(OriginKey).(string); ok {
		return origin
	}
	return ""
}
