package store

import (
	"context"
	"sync"

	"quantbot-go/internal/trade"
)

// Memory keeps records in a mutex-guarded map, optionally journaling every
// mutation to a JSONL file for crash recovery.
type Memory struct {
	mu         sync.RWMutex
	records    map[string]trade.Record
	order      []string
	rejections []trade.Rejection
	journal    *Journal
}

// NewMemory builds an empty in-memory store. journal may be nil.
func NewMemory(journal *Journal) *Memory {
	return &Memory{
		records: make(map[string]trade.Record),
		journal: journal,
	}
}

// AppendSignal persists a new record.
func (m *Memory) AppendSignal(_ context.Context, rec trade.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[rec.ID]; !exists {
		m.order = append(m.order, rec.ID)
	}
	m.records[rec.ID] = rec
	if m.journal != nil {
		m.journal.Record(event{Type: eventSignal, Record: &rec})
	}
	return nil
}

// Close applies the terminal mutation under the store lock, enforcing
// open-exactly-once semantics.
func (m *Memory) Close(_ context.Context, id string, c trade.Close) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	if rec.State == trade.StateClosed {
		return ErrAlreadyClosed
	}
	rec.State = trade.StateClosed
	rec.Result = c.Result
	rec.ExitPrice = c.ExitPrice
	rec.PnLPercent = c.PnLPercent
	rec.ClosedAt = c.ClosedAt
	m.records[id] = rec
	if m.journal != nil {
		m.journal.Record(event{Type: eventClose, ID: id, Close: &c})
	}
	return nil
}

// Query returns matching records in insertion order.
func (m *Memory) Query(_ context.Context, f Filter) ([]trade.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []trade.Record
	for _, id := range m.order {
		if rec := m.records[id]; f.Matches(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// AppendRejection records a declined candidate. Append-only.
func (m *Memory) AppendRejection(_ context.Context, rej trade.Rejection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejections = append(m.rejections, rej)
	if m.journal != nil {
		m.journal.Record(event{Type: eventRejection, Rejection: &rej})
	}
	return nil
}

// Rejections returns a copy of the rejection ledger.
func (m *Memory) Rejections() []trade.Rejection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]trade.Rejection, len(m.rejections))
	copy(out, m.rejections)
	return out
}

func (m *Memory) apply(ev event) {
	switch ev.Type {
	case eventSignal:
		if ev.Record != nil {
			if _, exists := m.records[ev.Record.ID]; !exists {
				m.order = append(m.order, ev.Record.ID)
			}
			m.records[ev.Record.ID] = *ev.Record
		}
	case eventClose:
		if ev.Close != nil {
			if rec, ok := m.records[ev.ID]; ok && rec.State == trade.StateOpen {
				rec.State = trade.StateClosed
				rec.Result = ev.Close.Result
				rec.ExitPrice = ev.Close.ExitPrice
				rec.PnLPercent = ev.Close.PnLPercent
				rec.ClosedAt = ev.Close.ClosedAt
				m.records[ev.ID] = rec
			}
		}
	case eventRejection:
		if ev.Rejection != nil {
			m.rejections = append(m.rejections, *ev.Rejection)
		}
	}
}
