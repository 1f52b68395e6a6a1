// Package model defines shared data types used across the esports collector.
//
// Conventions:
//   - Prices: float64 probabilities in [0, 1]
//   - PricePoint timestamps: int64 seconds since Unix epoch
//   - Tick and snapshot timestamps: int64 milliseconds since Unix epoch
//   - IDs: opaque strings assigned by the exchange
package model
