// Package middleware provides composable wrappers around a SessionStore:
// at-rest encryption and PII masking. Middlewares apply on the way into the
// backing store; the in-memory session the pipeline works on is never touched.
package middleware

import "github.com/resolvd/resolvd/pkg/ports"

// Middleware wraps a SessionStore to add behavior.
type Middleware func(ports.SessionStore) ports.SessionStore

// Chain applies middlewares so the first listed is the outermost.
func Chain(store ports.SessionStore, mws ...Middleware) ports.SessionStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
