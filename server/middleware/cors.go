package middleware

import (
	"net/http"
	"slices"
	"strings"
)

const preflightMaxAge = "600"

// CORS lets browsers on any origin call the wrapped routes. A preflight for
// a known path is answered with the methods that path serves. Other
// requests, and preflights for unknown paths, reach the next handler.
type CORS struct {
	methods map[string]string
}

// NewCORS creates a CORS middleware for routes, a map from path to the
// methods served on it.
func NewCORS(routes map[string][]string) *CORS {
	methods := make(map[string]string, len(routes))
	for path, allowed := range routes {
		allowed = append(slices.Clone(allowed), http.MethodOptions)
		slices.Sort(allowed)
		methods[path] = strings.Join(slices.Compact(allowed), ", ")
	}
	return &CORS{methods: methods}
}

// Intercept sets the CORS headers and answers preflight requests.
func (c *CORS) Intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")

		methods, ok := c.methods[r.URL.Path]
		if !ok || !isPreflight(r) {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", preflightMaxAge)
		w.WriteHeader(http.StatusNoContent)
	})
}

func isPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
}
