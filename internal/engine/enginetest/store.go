// Package enginetest provides in-memory engine implementations for tests.
package enginetest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/infracollect/zipexport/internal/engine"
	"github.com/samber/lo"
)

// MemoryStore is an engine.ObjectStore backed by a map. Keys are listed in
// lexical order, like S3.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte

	// Errors injected per operation. GetErrs and DeleteErrs are keyed by object key.
	ListErr    error
	GetErrs    map[string]error
	PutErr     error
	DeleteErrs map[string]error

	// AfterList runs after every successful List, with the call number starting at 1.
	AfterList func(call int)

	listCalls int
	gets      []string
	puts      []string
	deletes   []string
}

func NewMemoryStore(objects map[string]string) *MemoryStore {
	s := &MemoryStore{objects: make(map[string][]byte, len(objects))}
	for k, v := range objects {
		s.objects[k] = []byte(v)
	}
	return s
}

func (s *MemoryStore) Name() string {
	return "memory"
}

func (s *MemoryStore) Kind() string {
	return "memory"
}

func (s *MemoryStore) List(ctx context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	s.listCalls++
	call := s.listCalls
	if s.ListErr != nil {
		s.mu.Unlock()
		return nil, s.ListErr
	}
	keys := lo.Filter(lo.Keys(s.objects), func(k string, _ int) bool {
		return strings.HasPrefix(k, prefix)
	})
	s.mu.Unlock()

	slices.Sort(keys)
	if s.AfterList != nil {
		s.AfterList(call)
	}
	return keys, nil
}

func (s *MemoryStore) Get(ctx context.Context, key string, w io.WriterAt) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gets = append(s.gets, key)
	if err := s.GetErrs[key]; err != nil {
		return 0, err
	}
	data, ok := s.objects[key]
	if !ok {
		return 0, fmt.Errorf("no such key: %s", key)
	}
	n, err := w.WriteAt(data, 0)
	return int64(n), err
}

func (s *MemoryStore) Put(ctx context.Context, key string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.puts = append(s.puts, key)
	if s.PutErr != nil {
		return s.PutErr
	}
	s.objects[key] = data
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deletes = append(s.deletes, key)
	if err := s.DeleteErrs[key]; err != nil {
		return err
	}
	delete(s.objects, key)
	return nil
}

// Set writes an object directly, bypassing call recording.
func (s *MemoryStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = []byte(value)
}

// Object returns the stored bytes for key.
func (s *MemoryStore) Object(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	return bytes.Clone(data), ok
}

// Keys returns every stored key in lexical order.
func (s *MemoryStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := lo.Keys(s.objects)
	slices.Sort(keys)
	return keys
}

func (s *MemoryStore) Gets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.gets)
}

func (s *MemoryStore) Puts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.puts)
}

func (s *MemoryStore) Deletes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.deletes)
}

// RecordingNotifier records every notification it receives.
type RecordingNotifier struct {
	Err           error
	Notifications []engine.Notification
}

func (n *RecordingNotifier) Name() string {
	return "recording"
}

func (n *RecordingNotifier) Kind() string {
	return "recording"
}

func (n *RecordingNotifier) Notify(ctx context.Context, notification engine.Notification) error {
	n.Notifications = append(n.Notifications, notification)
	return n.Err
}

var (
	_ engine.ObjectStore = (*MemoryStore)(nil)
	_ engine.Notifier    = (*RecordingNotifier)(nil)
)
