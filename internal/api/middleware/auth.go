// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/betspecs/betspecs/internal/api/problem"
	"github.com/betspecs/betspecs/internal/audit"
	"github.com/betspecs/betspecs/internal/log"
	"github.com/betspecs/betspecs/internal/ratelimit"
)

// BearerAuth requires "Authorization: Bearer <token>" when token() returns
// a non-empty value. token is read per request so a reloaded config applies
// without restarting the server.
func BearerAuth(token func() string, auditLog *audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			want := token()
			if want == "" {
				next.ServeHTTP(w, r)
				return
			}

			logger := log.WithComponentFromContext(r.Context(), "auth")
			got, ok := bearerToken(r)
			if !ok {
				logger.Warn().Str(log.FieldEvent, "auth.missing_header").Msg("authorization header missing")
				if auditLog != nil {
					auditLog.AuthMissing(ratelimit.GetClientIP(r), r.URL.Path)
				}
				unauthorized(w, r)
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
				logger.Warn().Str(log.FieldEvent, "auth.invalid_token").Msg("invalid api token")
				if auditLog != nil {
					auditLog.AuthFailure(ratelimit.GetClientIP(r), r.URL.Path, "invalid token")
				}
				unauthorized(w, r)
				return
			}
			if auditLog != nil && r.Method != http.MethodGet {
				auditLog.AuthSuccess(ratelimit.GetClientIP(r), r.URL.Path)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, tok, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="betspecs"`)
	problem.Write(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized", "UNAUTHORIZED",
		"A valid bearer token is required.", nil)
}
