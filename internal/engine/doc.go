// package engine implements the sync orchestrator: the state machine that
// keeps local tasks and remote calendar events consistent.
//
// One Engine serves one user. Callers must not run two sync passes
// concurrently for the same user; Registry provides the per-user lock the
// engine itself deliberately does not take.
package engine
