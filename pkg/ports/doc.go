// Package ports defines the interfaces between the decision core and its
// collaborators: persistence, workflow documents, and the nondeterministic
// external agents (classifier, responder, tool executor). Core logic depends
// on these abstractions, never on concrete adapters.
package ports
