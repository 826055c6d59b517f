// Package scoring implements the Scoring Engine.
//
// The engine:
//   - Records each committed pick's price-at-pick as its scoring baseline
//   - Subscribes to price cache changes only for drafted assets
//   - Recomputes contributions as a pure function of (baseline, latest price)
//   - Serves per-session leaderboards, ties broken by draft order position
package scoring
