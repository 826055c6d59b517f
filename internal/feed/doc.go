// Package feed implements the Market Feed Client.
//
// The feed client:
//   - Maintains one shared websocket connection to the upstream price feed
//   - Tracks a reference-counted asset subscription set across sessions
//   - Reconnects with exponential backoff and full jitter, then re-issues
//     the subscribe for the full current asset set
//   - Parses inbound messages and writes ticks into the price cache,
//     dropping malformed messages without crashing
package feed
