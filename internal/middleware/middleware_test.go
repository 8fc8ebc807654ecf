package middleware

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"paylive-be/internal/logger"
	"paylive-be/internal/utils"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signHS(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return tok
}

func newVerifier(t *testing.T) *Verifier {
	t.Helper()
	v, err := NewVerifier(testSecret, "")
	require.NoError(t, err)
	return v
}

func TestCors(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := CORS(next)

	t.Run("Preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/carts", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")
		assert.NotEqual(t, http.StatusTeapot, w.Code)
	})

	t.Run("Preflight from unknown origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/carts", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("Plain OPTIONS reaches the router", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/carts", nil)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusTeapot, w.Code)
	})

	t.Run("Unknown origin gets no headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/carts/summary", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, http.StatusTeapot, w.Code)
	})

	t.Run("Allowed origin on a simple request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/carts/summary", nil)
		req.Header.Set("Origin", "https://shop.paylive.cc")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, "https://shop.paylive.cc", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, http.StatusTeapot, w.Code)
	})
}

func TestAllowedOrigin(t *testing.T) {
	cases := map[string]bool{
		"https://paylive.cc":               true,
		"https://shop.paylive.cc":          true,
		"https://paylive-git-x.vercel.app": true,
		"http://localhost:5173":            true,
		"http://127.0.0.1:8080":            true,
		"http://paylive.cc":                false,
		"https://paylive.cc.evil.com":      false,
		"https://notpaylive.cc":            false,
		"":                                 false,
	}
	for origin, want := range cases {
		assert.Equal(t, want, AllowedOrigin(origin), origin)
	}
}

func TestRequireAuth(t *testing.T) {
	v := newVerifier(t)

	t.Run("Missing Token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/protected", nil)
		w := httptest.NewRecorder()

		v.RequireAuth(http.NotFoundHandler()).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"error":"unauthorized"}`, w.Body.String())
	})

	t.Run("Invalid Token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Bearer invalid-token")
		w := httptest.NewRecorder()

		v.RequireAuth(http.NotFoundHandler()).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Session Cookie", func(t *testing.T) {
		tok := signHS(t, jwt.MapClaims{
			"sub": "user_cookie",
			"exp": time.Now().Add(time.Hour).Unix(),
		})

		req := httptest.NewRequest("GET", "/protected", nil)
		req.AddCookie(&http.Cookie{Name: "__session", Value: tok})
		w := httptest.NewRecorder()

		var got string
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, _ = utils.GetUserIDFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		})

		v.RequireAuth(next).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "user_cookie", got)
	})

	t.Run("Valid Token", func(t *testing.T) {
		tok := signHS(t, jwt.MapClaims{
			"sub":   "user_2abc",
			"email": "seller@paylive.cc",
			"exp":   time.Now().Add(time.Hour).Unix(),
		})

		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		w := httptest.NewRecorder()

		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := utils.GetUserIDFromContext(r.Context())
			assert.True(t, ok)
			assert.Equal(t, "user_2abc", userID)
			assert.Equal(t, "seller@paylive.cc", utils.GetUserEmailFromContext(r.Context()))
			assert.Equal(t, "user_2abc", logger.UserIDFrom(r.Context()))
			w.WriteHeader(http.StatusOK)
		})

		v.RequireAuth(next).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Expired Token", func(t *testing.T) {
		tok := signHS(t, jwt.MapClaims{
			"sub": "user_2abc",
			"exp": time.Now().Add(-time.Hour).Unix(),
		})

		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		w := httptest.NewRecorder()

		v.RequireAuth(http.NotFoundHandler()).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Token without expiry", func(t *testing.T) {
		tok := signHS(t, jwt.MapClaims{"sub": "user_2abc"})

		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		w := httptest.NewRecorder()

		v.RequireAuth(http.NotFoundHandler()).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Unconfigured verifier denies", func(t *testing.T) {
		empty, err := NewVerifier("", "")
		require.NoError(t, err)
		tok := signHS(t, jwt.MapClaims{"sub": "u", "exp": time.Now().Add(time.Hour).Unix()})

		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		w := httptest.NewRecorder()

		empty.RequireAuth(http.NotFoundHandler()).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAuthenticate(t *testing.T) {
	v := newVerifier(t)

	t.Run("Malformed Header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/public", nil)
		req.Header.Set("Authorization", "Basic user:pass")
		w := httptest.NewRecorder()

		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, ok := utils.GetUserIDFromContext(r.Context())
			assert.False(t, ok)
			w.WriteHeader(http.StatusOK)
		})

		v.Authenticate(next).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Valid token populates context", func(t *testing.T) {
		tok := signHS(t, jwt.MapClaims{"sub": "user_9", "exp": time.Now().Add(time.Hour).Unix()})
		req := httptest.NewRequest("GET", "/public", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		w := httptest.NewRecorder()

		called := false
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			id, ok := utils.GetUserIDFromContext(r.Context())
			assert.True(t, ok)
			assert.Equal(t, "user_9", id)
		})

		v.Authenticate(next).ServeHTTP(w, req)

		assert.True(t, called)
	})
}

func TestVerifierRSA(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pemKey := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	v, err := NewVerifier("", string(pemKey))
	require.NoError(t, err)

	tok, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub": "user_rsa",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(key)
	require.NoError(t, err)

	claims, err := v.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "user_rsa", claims.Subject)

	// HS256 must not be accepted when only the RSA key is configured.
	_, err = v.Verify(signHS(t, jwt.MapClaims{"sub": "x", "exp": time.Now().Add(time.Hour).Unix()}))
	assert.Error(t, err)
}

func TestNewVerifierBadPEM(t *testing.T) {
	_, err := NewVerifier("", "not a pem")
	assert.Error(t, err)
}

func TestRateLimiter(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("Strict tier on checkout", func(t *testing.T) {
		l := NewRateLimiter("")
		h := l.Middleware(ok)

		codes := make([]int, 0, burstStrict+1)
		for i := 0; i < burstStrict+1; i++ {
			req := httptest.NewRequest("POST", "/api/stripe/create-checkout-session", nil)
			req.RemoteAddr = "10.0.0.1:1234"
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			codes = append(codes, w.Code)
		}

		assert.Equal(t, http.StatusTooManyRequests, codes[len(codes)-1])
		for _, c := range codes[:burstStrict] {
			assert.Equal(t, http.StatusOK, c)
		}
	})

	t.Run("Internal key bypasses strict tier", func(t *testing.T) {
		l := NewRateLimiter("svc-key")
		req := httptest.NewRequest("POST", "/api/stripe/webhook", nil)
		req.Header.Set("X-Service-Auth", "svc-key")

		_, burst, tier := l.resolveRateTier(req)
		assert.Equal(t, "internal", tier)
		assert.Equal(t, burstInternal, burst)
	})

	t.Run("Tier selection", func(t *testing.T) {
		l := NewRateLimiter("")

		req := httptest.NewRequest("GET", "/api/cart/summary", nil)
		_, _, tier := l.resolveRateTier(req)
		assert.Equal(t, "general", tier)

		req.Header.Set("X-Client-Type", "frontend-heavy")
		_, _, tier = l.resolveRateTier(req)
		assert.Equal(t, "frontend", tier)
	})

	t.Run("Identity prefers user then device then ip", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "192.168.1.5:5555"
		assert.Equal(t, "ip:192.168.1.5", identity(req))

		req.Header.Set("X-Device-ID", "dev-1")
		assert.Equal(t, "device:dev-1", identity(req))

		req = req.WithContext(utils.SetUserContext(req.Context(), "user_1", ""))
		assert.Equal(t, "user:user_1", identity(req))
	})

	t.Run("Cleanup evicts idle visitors", func(t *testing.T) {
		l := NewRateLimiter("")
		now := time.Now()
		l.now = func() time.Time { return now }
		l.getVisitor("ip:1:general", limitGeneral, burstGeneral)

		now = now.Add(visitorTTL + time.Second)
		l.cleanup()

		assert.Empty(t, l.visitors)
	})
}

func TestVerify_EmptyToken(t *testing.T) {
	_, err := newVerifier(t).Verify("")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestRequireInternal(t *testing.T) {
	l := NewRateLimiter("svc-key")
	h := l.Middleware(RequireInternal(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	t.Run("Service key", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/metrics", nil)
		req.Header.Set("X-Service-Auth", "svc-key")
		w := httptest.NewRecorder()

		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Wrong key", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/metrics", nil)
		req.Header.Set("X-Service-Auth", "guess")
		w := httptest.NewRecorder()

		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
