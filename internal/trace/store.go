package trace

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Store persists captured traces.
type Store interface {
	Append(t Trace) error
	List(filter Filter) ([]Trace, error)
}

// Filter narrows a List call.
type Filter struct {
	ConversationIDs []string
	Since           *time.Time
	Until           *time.Time
	Limit           int
}

// LocalStore appends traces to date-partitioned JSONL files under baseDir.
type LocalStore struct {
	baseDir string
	mu      sync.Mutex
}

func NewLocalStore(baseDir string) *LocalStore {
	return &LocalStore{baseDir: baseDir}
}

func (s *LocalStore) Append(t Trace) error {
	if t.StartedAt.IsZero() {
		t.StartedAt = time.Now().UTC()
	}
	dateDir := filepath.Join(s.baseDir, t.StartedAt.Format("2006-01-02"))
	if err := os.MkdirAll(dateDir, 0755); err != nil {
		return err
	}
	path := filepath.Join(dateDir, "traces.jsonl")

	line, err := json.Marshal(t)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return err
	}
	return nil
}

func (s *LocalStore) List(filter Filter) ([]Trace, error) {
	if _, err := os.Stat(s.baseDir); err != nil {
		return nil, err
	}

	conversations := make(map[string]bool)
	for _, id := range filter.ConversationIDs {
		conversations[id] = true
	}

	var traces []Trace
	err := filepath.WalkDir(s.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, "traces.jsonl") {
			return nil
		}

		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()

		scanner := bufio.NewScanner(file)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			var t Trace
			if err := json.Unmarshal(scanner.Bytes(), &t); err != nil {
				return fmt.Errorf("parse trace: %w", err)
			}
			if len(conversations) > 0 && !conversations[t.StringAttr(AttrConversationID)] {
				continue
			}
			if filter.Since != nil && t.StartedAt.Before(*filter.Since) {
				continue
			}
			if filter.Until != nil && t.StartedAt.After(*filter.Until) {
				continue
			}
			traces = append(traces, t)
			if filter.Limit > 0 && len(traces) >= filter.Limit {
				return nil
			}
		}
		return scanner.Err()
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(traces, func(i, j int) bool {
		return traces[i].StartedAt.Before(traces[j].StartedAt)
	})
	return traces, nil
}

// ReadFile loads traces from an explicit file. A .jsonl file holds one trace
// per line; anything else is parsed as a JSON array of traces.
func ReadFile(path string) ([]Trace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read traces: %w", err)
	}

	if strings.HasSuffix(path, ".jsonl") {
		var traces []Trace
		scanner := bufio.NewScanner(strings.NewReader(string(data)))
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			var t Trace
			if err := json.Unmarshal([]byte(line), &t); err != nil {
				return nil, fmt.Errorf("parse traces: %w", err)
			}
			traces = append(traces, t)
		}
		return traces, scanner.Err()
	}

	var traces []Trace
	if err := json.Unmarshal(data, &traces); err != nil {
		return nil, fmt.Errorf("parse traces: %w", err)
	}
	return traces, nil
}
