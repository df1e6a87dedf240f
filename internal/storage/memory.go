package storage

import (
	"context"
	"fmt"
	"sync"
)

type memoryTable struct {
	columns []string
	rows    int
}

// MemoryStorage is an in-process Storage. Tables that were never created
// fail the same way a missing Postgres relation does.
type MemoryStorage struct {
	mu     sync.RWMutex
	tables map[string]*memoryTable
	errs   map[string]error
	calls  int
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		tables: make(map[string]*memoryTable),
		errs:   make(map[string]error),
	}
}

func (s *MemoryStorage) CreateTable(name string, columns ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tables[name] = &memoryTable{columns: columns}
}

func (s *MemoryStorage) AddRow(table string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, exists := s.tables[table]; exists {
		t.rows++
	}
}

// FailWith makes every read of table return err.
func (s *MemoryStorage) FailWith(table string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.errs[table] = err
}

// Calls returns the number of reads issued so far.
func (s *MemoryStorage) Calls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.calls
}

func (s *MemoryStorage) read(table string) (*memoryTable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if err, exists := s.errs[table]; exists {
		return nil, err
	}
	t, exists := s.tables[table]
	if !exists {
		return nil, fmt.Errorf("relation \"public.%s\" does not exist", table)
	}
	return t, nil
}

func (s *MemoryStorage) Probe(ctx context.Context, table string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.read(table)
	return err
}

func (s *MemoryStorage) Sample(ctx context.Context, table string) (*Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, err := s.read(table)
	if err != nil {
		return nil, err
	}
	if t.rows == 0 {
		return &Sample{Empty: true}, nil
	}
	return newSample(t.columns), nil
}

func (s *MemoryStorage) Close() error {
	return nil
}
