// Package pricecache implements the in-memory price store.
//
// The cache:
//   - Holds the latest tick per asset, gated on upstream sequence numbers
//   - Retains a bounded trailing history per asset for scoring deltas
//   - Notifies change subscribers once per applied update, in order per asset
//   - Never notifies for discarded out-of-order ticks
package pricecache
