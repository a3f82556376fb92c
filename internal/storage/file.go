package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "rallybot/pkg/logx"
)

// fileStore is a dependency-free jsonl audit log: one JSON object per line,
// append-only. Good enough for a single-instance bot; sqlite is the step up.
type fileStore struct {
	mu   sync.Mutex
	path string
	f    *os.File
	w    *bufio.Writer
	log  logx.Logger
}

type fileEntry struct {
	At         string `json:"at"`
	UserID     string `json:"user_id"`
	Type       string `json:"type"`
	Action     string `json:"action"`
	DispatchID string `json:"dispatch_id,omitempty"`
	MessageID  string `json:"message_id,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("file storage path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &fileStore{path: path, f: f, w: bufio.NewWriter(f), log: log}, nil
}

func (s *fileStore) Append(ctx context.Context, e Entry) error {
	if s == nil {
		return ErrDisabled
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	b, err := json.Marshal(fileEntry{
		At:         e.At.Format(time.RFC3339Nano),
		UserID:     e.UserID,
		Type:       e.Type,
		Action:     e.Action,
		DispatchID: e.DispatchID,
		MessageID:  e.MessageID,
		Detail:     e.Detail,
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return ErrDisabled
	}
	if _, err := s.w.Write(append(b, '\n')); err != nil {
		return err
	}
	return s.w.Flush()
}

// Recent returns the newest entries, up to limit, oldest first. The file is
// never rotated; bounding its growth is left to external log management.
func (s *fileStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if s == nil {
		return nil, ErrDisabled
	}
	if limit <= 0 {
		limit = 50
	}

	s.mu.Lock()
	path := s.path
	if s.w != nil {
		_ = s.w.Flush()
	}
	s.mu.Unlock()

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}

	out := make([]Entry, 0, len(lines))
	for _, ln := range lines {
		ln = strings.TrimSpace(ln)
		if ln == "" {
			continue
		}
		var fe fileEntry
		if err := json.Unmarshal([]byte(ln), &fe); err != nil {
			// Skip torn/corrupt lines rather than failing the whole read.
			s.log.Debug("skipping corrupt audit line", logx.Err(err))
			continue
		}
		at, _ := time.Parse(time.RFC3339Nano, fe.At)
		out = append(out, Entry{
			At:         at,
			UserID:     fe.UserID,
			Type:       fe.Type,
			Action:     fe.Action,
			DispatchID: fe.DispatchID,
			MessageID:  fe.MessageID,
			Detail:     fe.Detail,
		})
	}
	return out, nil
}

func (s *fileStore) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w != nil {
		_ = s.w.Flush()
		s.w = nil
	}
	if s.f != nil {
		err := s.f.Close()
		s.f = nil
		return err
	}
	return nil
}
