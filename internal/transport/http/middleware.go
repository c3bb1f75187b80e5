package httptransport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKeyCaller struct{}
type contextKeyRequestID struct{}

var (
	// ContextKeyCaller is exported for use in tests.
	ContextKeyCaller    = contextKeyCaller{}
	contextKeyReqID any = contextKeyRequestID{}
)

// GetCaller retrieves the authenticated caller address from the context.
func GetCaller(ctx context.Context) common.Address {
	caller, ok := ctx.Value(ContextKeyCaller).(common.Address)
	if !ok {
		return common.Address{}
	}
	return caller
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	id, ok := ctx.Value(contextKeyReqID).(string)
	if !ok {
		return ""
	}
	return id
}

// RequestID assigns each request a UUID for log correlation.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKeyReqID, id)))
	})
}

func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":%q,"error_description":%q}`, errCode, errDesc))
}

// RequireCaller authenticates admin-facing routes. The bearer JWT's subject
// is the caller's account address; the service layer then checks that
// address against the resolved administrator.
func RequireCaller(signingKey []byte, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing bearer token")
				return
			}

			claims := jwt.RegisteredClaims{}
			parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return signingKey, nil
			})
			if err != nil || !parsed.Valid {
				logger.WarnContext(r.Context(), "unauthorized access - invalid token",
					"error", err, "request_id", GetRequestID(r.Context()))
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}
			if !common.IsHexAddress(claims.Subject) {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Token subject is not an account address")
				return
			}

			caller := common.HexToAddress(claims.Subject)
			ctx := context.WithValue(r.Context(), ContextKeyCaller, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
