package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/cors"
)

// AllowedOrigin reports whether a browser origin may call the API:
// Vercel previews, paylive.cc and its subdomains, and local dev servers.
func AllowedOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}

	host := u.Hostname()
	switch {
	case host == "localhost" || host == "127.0.0.1":
		return u.Scheme == "http" || u.Scheme == "https"
	case u.Scheme != "https":
		return false
	case strings.HasSuffix(host, ".vercel.app"):
		return true
	case host == "paylive.cc" || strings.HasSuffix(host, ".paylive.cc"):
		return true
	}
	return false
}

// CORS answers preflights for allowed origins. Other OPTIONS requests reach
// the router.
var CORS = cors.Handler(cors.Options{
	AllowOriginFunc: func(_ *http.Request, origin string) bool {
		return AllowedOrigin(origin)
	},
	AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
	AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID", "X-Device-ID", "X-Client-Type", "X-Service-Auth"},
	ExposedHeaders:   []string{"X-Request-ID"},
	AllowCredentials: true,
	MaxAge:           300,
})
