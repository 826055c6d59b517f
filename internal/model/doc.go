// Package model defines shared data types used across the market draft engine.
//
// Conventions:
//   - Prices: integer hundred-thousandths (0-100,000 = $0.00-$1.00)
//   - Timestamps: int64 microseconds since Unix epoch
//   - IDs: uuid.UUID for leagues, members, sessions and picks; string for assets
package model
