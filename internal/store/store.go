// Package store is the durable record of signals, trades, and rejections.
package store

import (
	"context"
	"errors"

	"quantbot-go/internal/trade"
)

var (
	// ErrNotFound means no record exists for the id.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyClosed means a terminal mutation was attempted twice.
	ErrAlreadyClosed = errors.New("record already closed")
)

// Filter narrows Query results. Zero fields match everything.
type Filter struct {
	State     trade.State
	Strategy  string
	Pair      string
	Direction trade.Direction
}

// Matches reports whether the record satisfies the filter.
func (f Filter) Matches(r trade.Record) bool {
	if f.State != "" && r.State != f.State {
		return false
	}
	if f.Strategy != "" && r.Strategy != f.Strategy {
		return false
	}
	if f.Pair != "" && r.Pair != f.Pair {
		return false
	}
	if f.Direction != "" && r.Direction != f.Direction {
		return false
	}
	return true
}

// Store persists trade records and rejections. A successful Close must be
// visible to subsequent Query calls, and closes of different record ids must
// not interfere.
type Store interface {
	AppendSignal(ctx context.Context, rec trade.Record) error
	// Close applies the terminal mutation exactly once per record;
	// a second close returns ErrAlreadyClosed.
	Close(ctx context.Context, id string, c trade.Close) error
	Query(ctx context.Context, f Filter) ([]trade.Record, error)
	AppendRejection(ctx context.Context, rej trade.Rejection) error
}
