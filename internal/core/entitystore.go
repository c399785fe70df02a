package core

import (
	"context"
	"duesdesk/pkg/domain"
	"encoding/json"
	"fmt"
	"strings"
)

// EntityStore provides typed access to the persisted collections. Reads fail
// soft: a missing key, a backend error or an undecodable payload yields the
// caller's default and is logged. Every call re-reads the backend.
type EntityStore struct {
	kv     domain.KVStore
	logger Logger
}

// NewEntityStore wraps kv. A nil logger discards log output.
func NewEntityStore(kv domain.KVStore, logger Logger) *EntityStore {
	if logger == nil {
		logger = noopLogger{}
	}
	return &EntityStore{kv: kv, logger: logger}
}

// Get decodes the value stored under key, or returns def when the key is
// absent or unreadable.
func Get[T any](ctx context.Context, s *EntityStore, key string, def T) T {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		s.logger.Error("read storage key", "key", key, "error", err)
		return def
	}
	if !ok || len(raw) == 0 {
		return def
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		s.logger.Warn("decode storage key", "key", key, "error", err)
		return def
	}
	return out
}

// Set serializes value under key and reports whether the write succeeded.
// Failures are logged, never returned.
func (s *EntityStore) Set(ctx context.Context, key string, value any) bool {
	return s.write(ctx, key, value) == nil
}

// Has reports whether key is present in the backend.
func (s *EntityStore) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check %s: %w", key, err)
	}
	return ok, nil
}

func (s *EntityStore) write(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		s.logger.Error("encode storage key", "key", key, "error", err)
		return fmt.Errorf("%w: encode %s: %w", domain.ErrStorageWrite, key, err)
	}
	if err := s.kv.Set(ctx, key, raw); err != nil {
		s.logger.Error("write storage key", "key", key, "error", err)
		return fmt.Errorf("%w: %s: %w", domain.ErrStorageWrite, key, err)
	}
	return nil
}

// Students returns every stored student.
func (s *EntityStore) Students(ctx context.Context) []Student {
	return Get(ctx, s, domain.KeyStudents, []Student{})
}

// Fees returns every stored fee.
func (s *EntityStore) Fees(ctx context.Context) []Fee {
	return Get(ctx, s, domain.KeyFees, []Fee{})
}

// DRCCApplications returns every stored refund application.
func (s *EntityStore) DRCCApplications(ctx context.Context) []DRCCApplication {
	return Get(ctx, s, domain.KeyDRCCApplications, []DRCCApplication{})
}

// NoDueApplications returns every stored clearance application.
func (s *EntityStore) NoDueApplications(ctx context.Context) []NoDueApplication {
	return Get(ctx, s, domain.KeyNoDueApplications, []NoDueApplication{})
}

// FindStudentByID returns the first student with the given id.
func (s *EntityStore) FindStudentByID(ctx context.Context, id int) (Student, bool) {
	return findStudent(s.Students(ctx), id)
}

// FindStudentByRollNo matches either the short or the university roll number.
func (s *EntityStore) FindStudentByRollNo(ctx context.Context, rollNo string) (Student, bool) {
	return findStudentByRollNo(s.Students(ctx), rollNo)
}

func findStudent(students []Student, id int) (Student, bool) {
	for _, st := range students {
		if st.ID == id {
			return st, true
		}
	}
	return Student{}, false
}

func findStudentByRollNo(students []Student, rollNo string) (Student, bool) {
	rollNo = strings.TrimSpace(rollNo)
	if rollNo == "" {
		return Student{}, false
	}
	for _, st := range students {
		if st.RollNo == rollNo || st.UniRollNo == rollNo {
			return st, true
		}
	}
	return Student{}, false
}
