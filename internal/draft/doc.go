// Package draft implements the Draft Session Orchestrator.
//
// The orchestrator:
//   - Runs the turn state machine for each league's draft session
//   - Validates and commits picks, removing assets from the shared pool
//   - Serializes all mutation per session so concurrent submissions for the
//     same turn resolve to exactly one committed pick
//   - Enforces optional per-turn deadlines with generation-guarded timers
//   - Emits committed picks to the scoring engine and to persistence
package draft
