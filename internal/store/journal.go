package store

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"quantbot-go/internal/trade"
)

const (
	eventSignal    = "signal"
	eventClose     = "close"
	eventRejection = "rejection"
)

type event struct {
	Type      string           `json:"type"`
	ID        string           `json:"id,omitempty"`
	Record    *trade.Record    `json:"record,omitempty"`
	Close     *trade.Close     `json:"close,omitempty"`
	Rejection *trade.Rejection `json:"rejection,omitempty"`
}

// Journal appends store mutations as JSON lines for later replay.
type Journal struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// OpenJournal creates/opens the target file in append mode.
func OpenJournal(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &Journal{file: file, enc: json.NewEncoder(file)}, nil
}

// Record writes a single event. Journal failures never surface to trading
// paths; the in-memory state stays authoritative.
func (j *Journal) Record(ev event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	_ = j.enc.Encode(ev)
}

// Close flushes and closes the file handle.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	err := j.file.Close()
	j.file = nil
	return err
}

// Restore replays a journal file into the store. Corrupt lines are skipped
// with a warning so a damaged journal degrades to a partial history instead
// of stopping the process.
func (m *Memory) Restore(path string, log zerolog.Logger) error {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("journal unreadable, starting fresh")
		return nil
	}
	defer file.Close()

	m.mu.Lock()
	defer m.mu.Unlock()
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		var ev event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			log.Warn().Int("line", line).Err(err).Msg("skipping corrupt journal line")
			continue
		}
		m.apply(ev)
	}
	if err := scanner.Err(); err != nil {
		log.Warn().Err(err).Msg("journal replay stopped early")
	}
	return nil
}
