// Package middleware contains common middleware functions for HTTP handlers.
package middleware

import "net/http"

// Interceptor wraps a handler with extra behavior.
type Interceptor interface {
	Intercept(next http.Handler) http.Handler
}

// InterceptorFunc adapts a plain function to Interceptor.
type InterceptorFunc func(next http.Handler) http.Handler

// Intercept calls f(next).
func (f InterceptorFunc) Intercept(next http.Handler) http.Handler {
	return f(next)
}

// Set wraps h so that requests pass through the interceptors in the order
// given. Set(h, logger, cors) logs every request, including the preflights
// cors answers on its own.
func Set(h http.Handler, m ...Interceptor) http.Handler {
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i].Intercept(h)
	}
	return h
}
