package httpclient

import (
	"time"
)

// PoolStats is a snapshot of the pooled transport's settings.
type PoolStats struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	IdleConnTimeout     time.Duration
	DisableKeepAlives   bool

	// ConnectionLease is the recycle interval; zero when disabled.
	ConnectionLease time.Duration

	// Replaced is true when a cache handler or mock owns the network send,
	// in which case the other fields are zero.
	Replaced bool
}

// PoolStats returns the connection pool configuration.
func (c *Client) PoolStats() PoolStats {
	if c.transport == nil {
		return PoolStats{Replaced: true}
	}

	stats := PoolStats{
		MaxIdleConns:        c.transport.MaxIdleConns,
		MaxIdleConnsPerHost: c.transport.MaxIdleConnsPerHost,
		MaxConnsPerHost:     c.transport.MaxConnsPerHost,
		IdleConnTimeout:     c.transport.IdleConnTimeout,
		DisableKeepAlives:   c.transport.DisableKeepAlives,
	}
	if c.lease != nil {
		stats.ConnectionLease = c.leaseInterval
	}
	return stats
}
