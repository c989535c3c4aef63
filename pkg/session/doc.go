// Package session provides linearized, per-session access to the session
// store. The orchestrator runs each message pipeline inside Manager.Update so
// no two ProcessMessage calls for the same session interleave; cross-session
// calls are independent.
package session
