package audit

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/guillermoBallester/partwise/internal/core/port"
)

// fileEntry is the NDJSON-serializable form of a probe record.
type fileEntry struct {
	Timestamp    string  `json:"ts"`
	Probe        string  `json:"probe"`
	Table        string  `json:"table"`
	Column       string  `json:"column"`
	ParallelHint int     `json:"parallel_hint"`
	DurationMS   int64   `json:"duration_ms"`
	Error        *string `json:"error"`
}

// FileAuditor writes one NDJSON line per probe to a file.
type FileAuditor struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
	now  func() time.Time
}

var _ port.ProbeAuditor = (*FileAuditor)(nil)

// NewFileAuditor opens (or creates) the file at path for append-only writing.
func NewFileAuditor(path string) (*FileAuditor, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &FileAuditor{
		file: f,
		enc:  json.NewEncoder(f),
		now:  time.Now,
	}, nil
}

func (a *FileAuditor) Record(_ context.Context, entry port.ProbeEntry) {
	fe := fileEntry{
		Timestamp:    a.now().UTC().Format(time.RFC3339Nano),
		Probe:        entry.Probe,
		Table:        entry.Table.String(),
		Column:       entry.Column,
		ParallelHint: entry.ParallelHint,
		DurationMS:   entry.DurationMS,
	}
	if entry.Err != nil {
		s := entry.Err.Error()
		fe.Error = &s
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	_ = a.enc.Encode(fe) // best-effort; audit I/O never fails a probe
}

func (a *FileAuditor) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.file.Close()
}

// NoopAuditor discards all probe entries.
type NoopAuditor struct{}

func (NoopAuditor) Record(context.Context, port.ProbeEntry) {}
func (NoopAuditor) Close() error                            { return nil }
