package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"leadflow/internal/logging"
)

// FileSink appends events as JSON lines. Each Append opens, writes, and
// closes the file so rotation by external tools is safe.
type FileSink struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewFileSink constructs a sink writing to path.
func NewFileSink(path string, logger *slog.Logger) *FileSink {
	return &FileSink{path: path, logger: logging.NewComponentLogger(logger, "audit")}
}

// Path returns the trail location.
func (s *FileSink) Path() string { return s.path }

// Append implements Sink.
func (s *FileSink) Append(ctx context.Context, event Event) {
	if err := s.write(event); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "audit append failed", "audit_write_failed",
			logging.String("kind", string(event.Kind)),
			logging.String(logging.FieldItemID, event.ItemID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "event missing from audit trail"),
		)
	}
}

func (s *FileSink) write(event Event) error {
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create audit dir: %w", err)
	}
	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open audit trail: %w", err)
	}
	if _, err := file.Write(line); err != nil {
		_ = file.Close()
		return fmt.Errorf("write audit trail: %w", err)
	}
	return file.Close()
}

// Filter selects events when reading the trail. Zero values match all.
type Filter struct {
	ItemID string
	Stage  string
	Kinds  []Kind
}

func (f Filter) match(event Event) bool {
	if f.ItemID != "" && event.ItemID != f.ItemID {
		return false
	}
	if f.Stage != "" && event.Stage != f.Stage {
		return false
	}
	if len(f.Kinds) == 0 {
		return true
	}
	for _, kind := range f.Kinds {
		if event.Kind == kind {
			return true
		}
	}
	return false
}

// Read returns the last limit matching events from the trail at path, oldest
// first. limit <= 0 returns every match. A missing file yields no events.
// Lines that are not valid JSON are skipped.
func Read(path string, filter Filter, limit int) ([]Event, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open audit trail: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var ring []Event
	idx := 0
	count := 0
	if limit > 0 {
		ring = make([]Event, limit)
	}
	var all []Event
	for scanner.Scan() {
		var event Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			continue
		}
		if !filter.match(event) {
			continue
		}
		if limit <= 0 {
			all = append(all, event)
			continue
		}
		ring[idx] = event
		idx = (idx + 1) % limit
		if count < limit {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit trail: %w", err)
	}
	if limit <= 0 {
		return all, nil
	}

	events := make([]Event, count)
	if count == limit {
		for i := 0; i < count; i++ {
			events[i] = ring[(idx+i)%limit]
		}
	} else {
		copy(events, ring[:count])
	}
	return events, nil
}
