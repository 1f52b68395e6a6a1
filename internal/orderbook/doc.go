// Package orderbook periodically snapshots CLOB books for known markets.
package orderbook
