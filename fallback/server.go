package fallback

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

// mockSigningKey signs the development tokens handed out by the mock server. They carry no authority.
var mockSigningKey = []byte("portal-mock-server")

// NewHandler serves a registry as a development backend: every GET answers with the registry's
// payload for the request path, and the auth endpoints hand out short-lived development tokens.
func NewHandler(reg *Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Post("/*", func(w http.ResponseWriter, req *http.Request) {
		switch base := chi.URLParam(req, "*"); {
		case strings.HasSuffix(base, "auth/login"), strings.HasSuffix(base, "auth/register"), strings.HasSuffix(base, "auth/refresh"):
			issueTokens(w)
		default:
			writeJSON(w, http.StatusCreated, reg.Resolve(req.URL.RequestURI()))
		}
	})
	r.Get("/*", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, reg.Resolve(req.URL.RequestURI()))
	})
	r.Put("/*", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, reg.Resolve(req.URL.RequestURI()))
	})
	r.Patch("/*", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, reg.Resolve(req.URL.RequestURI()))
	})
	r.Delete("/*", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

func issueTokens(w http.ResponseWriter) {
	now := time.Now()
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":             1,
		"role":           "admin",
		"municipalityId": nil,
		"iat":            now.Unix(),
		"exp":            now.Add(15 * time.Minute).Unix(),
	}).SignedString(mockSigningKey)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"token":        access,
		"refreshToken": "mock-refresh-" + now.Format("150405.000000"),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to write mock response")
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("Served mock response")
	})
}
