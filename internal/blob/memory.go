package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	info Info
	data []byte
}

// Memory implements Store backed by process memory. Intended for tests.
type Memory struct {
	mu   sync.RWMutex
	objs map[string]memoryEntry
}

// NewMemory returns an in-memory blob store.
func NewMemory() *Memory { return &Memory{objs: make(map[string]memoryEntry)} }

// Driver returns the blob driver identifier.
func (m *Memory) Driver() Driver { return DriverMemory }

// Put stores a new blob; errors if key exists.
func (m *Memory) Put(_ context.Context, key string, r io.Reader, opts PutOptions) (Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.objs[key]; exists {
		return Info{}, fmt.Errorf("blob %s already exists", key)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return Info{}, err
	}
	now := time.Now().UTC()
	info := Info{Key: key, Size: int64(len(b)), ContentType: opts.ContentType, Metadata: cloneMetadata(opts.Metadata), LastModified: now}
	m.objs[key] = memoryEntry{info: info, data: b}
	return info, nil
}

// Get returns blob metadata and a read closer to its content.
func (m *Memory) Get(_ context.Context, key string) (Info, io.ReadCloser, error) {
	m.mu.RLock()
	obj, ok := m.objs[key]
	m.mu.RUnlock()
	if !ok {
		return Info{}, nil, fmt.Errorf("blob %s not found", key)
	}
	dataCopy := make([]byte, len(obj.data))
	copy(dataCopy, obj.data)
	infoCopy := obj.info
	infoCopy.Metadata = cloneMetadata(infoCopy.Metadata)
	return infoCopy, io.NopCloser(bytes.NewReader(dataCopy)), nil
}

// Head returns blob metadata only.
func (m *Memory) Head(_ context.Context, key string) (Info, error) {
	m.mu.RLock()
	obj, ok := m.objs[key]
	m.mu.RUnlock()
	if !ok {
		return Info{}, fmt.Errorf("blob %s not found", key)
	}
	infoCopy := obj.info
	infoCopy.Metadata = cloneMetadata(infoCopy.Metadata)
	return infoCopy, nil
}

// Delete removes the blob returning true if it existed.
func (m *Memory) Delete(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objs[key]
	if ok {
		delete(m.objs, key)
	}
	return ok, nil
}

// List returns all blobs matching prefix sorted by key.
func (m *Memory) List(_ context.Context, prefix string) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Info, 0, len(m.objs))
	for k, v := range m.objs {
		if prefix == "" || strings.HasPrefix(k, prefix) {
			inf := v.info
			inf.Metadata = cloneMetadata(inf.Metadata)
			out = append(out, inf)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// PresignURL returns unsupported for the memory driver.
func (m *Memory) PresignURL(_ context.Context, _ string, _ SignedURLOptions) (string, error) {
	return "", ErrUnsupported
}
