/*
Package resolvd is a deterministic decision engine and session orchestrator for
automated customer support.

Support policy lives in externally authored JSON workflow documents, one per
intent. Each document is an ordered list of rules; a rule pairs a condition
tree over the session's case context with exactly one action: ask a clarifying
question, call a tool, respond from a template, escalate to a human, or route
to another workflow. Evaluation is first-match and side-effect free, so the
same session state and the same documents always produce the same decision.

# Concept

The orchestrator owns the session pipeline. A customer message is appended to
the session, classified into an intent, evaluated against the matching
workflow, and the resulting decision is executed: tools run, templates render,
context accumulates. Every step lands in an append-only trace, so any reply
can be explained after the fact. Escalation is a one-way door: once a session
is handed to a human, the pipeline refuses to touch it again.

Operations teams adjust behavior at runtime through policy overrides, which
swap the action of a single rule without editing the documents. Overrides are
journaled, toggleable, and revert cleanly.

# Usage

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/resolvd/resolvd"
		"github.com/resolvd/resolvd/pkg/domain"
	)

	func main() {
		desk, err := resolvd.New("./workflows")
		if err != nil {
			log.Fatal(err)
		}

		ctx := context.Background()
		sess, err := desk.Start(ctx, domain.CustomerInfo{FirstName: "Alex", Email: "alex@example.com"})
		if err != nil {
			log.Fatal(err)
		}

		result, err := desk.ProcessMessage(ctx, sess.ID, "Where is my order 12345?")
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(result.Reply)
	}

By default the Desk runs entirely in process: in-memory session store, keyword
classifier, template responder, and canned tool data. Production deployments
inject real implementations through the ports package and a Redis-backed
session store.
*/
package resolvd
