// Package historical backfills price history, trade history, and open
// interest for known markets from the CLOB and data APIs.
package historical
