// Package domain contains the core types of the decision engine: sessions
// and their audit trace, declarative workflow definitions, policy overrides,
// the Decision variant, and escalation payloads. It has no dependencies on
// the runtime packages so adapters and hosts can share it freely.
package domain
