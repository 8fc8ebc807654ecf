package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"paylive-be/internal/auth"
	"paylive-be/internal/logger"
	"paylive-be/internal/utils"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

var (
	ErrMissingToken   = errors.New("missing session token")
	ErrInvalidToken   = errors.New("invalid token")
	ErrNoVerification = errors.New("no verification key configured")
)

// Claims is the subset of a Clerk session token the API relies on.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks Clerk session tokens. Production uses the instance RSA
// public key; an HMAC secret is accepted for local setups.
type Verifier struct {
	hmacKey []byte
	rsaKey  any
	parser  *jwt.Parser
}

func NewVerifier(hmacSecret, publicKeyPEM string) (*Verifier, error) {
	v := &Verifier{}
	methods := []string{}

	if hmacSecret != "" {
		v.hmacKey = []byte(hmacSecret)
		methods = append(methods, jwt.SigningMethodHS256.Alg())
	}
	if publicKeyPEM != "" {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(publicKeyPEM))
		if err != nil {
			return nil, err
		}
		v.rsaKey = key
		methods = append(methods, jwt.SigningMethodRS256.Alg())
	}

	v.parser = jwt.NewParser(
		jwt.WithValidMethods(methods),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(5*time.Second),
	)
	return v, nil
}

func (v *Verifier) Configured() bool {
	return v != nil && (v.hmacKey != nil || v.rsaKey != nil)
}

// Verify parses tokenStr and returns its claims when the signature, expiry
// and subject are valid.
func (v *Verifier) Verify(tokenStr string) (*Claims, error) {
	if !v.Configured() {
		return nil, ErrNoVerification
	}
	if tokenStr == "" {
		return nil, ErrMissingToken
	}

	claims := &Claims{}
	token, err := v.parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		switch t.Method.(type) {
		case *jwt.SigningMethodHMAC:
			return v.hmacKey, nil
		case *jwt.SigningMethodRSA:
			return v.rsaKey, nil
		}
		return nil, ErrInvalidToken
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func sessionToken(r *http.Request) (string, bool) {
	tok := auth.ExtractSessionToken(r)
	return tok, tok != ""
}

// Authenticate is passive: a valid token populates the user context, anything
// else continues anonymously. It runs globally so the rate limiter can key on
// the user.
func (v *Verifier) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, ok := sessionToken(r)
		if !ok || !v.Configured() {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := v.Verify(tok)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(withClaims(r, claims)))
	})
}

// RequireAuth rejects the request with 401 unless a valid Clerk token is
// present.
func (v *Verifier) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := utils.GetUserIDFromContext(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}

		log := logger.FromCtx(r.Context()).With(
			zap.String("layer", "middleware"),
			zap.String("method", "RequireAuth"),
		)

		tok, ok := sessionToken(r)
		if !ok {
			utils.WriteJSONError(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		claims, err := v.Verify(tok)
		if err != nil {
			log.Warn("token rejected", zap.Error(err))
			utils.WriteJSONError(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(withClaims(r, claims)))
	})
}

func withClaims(r *http.Request, c *Claims) context.Context {
	ctx := utils.SetUserContext(r.Context(), c.Subject, c.Email)
	return logger.WithUserID(ctx, c.Subject)
}
