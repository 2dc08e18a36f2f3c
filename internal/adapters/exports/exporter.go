// Package exports snapshots the user directory into blob storage as JSON or
// CSV artifacts and tracks the produced records.
package exports

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"userdir/internal/blob"
	"userdir/pkg/domain"
)

// Format selects the artifact encoding.
type Format string

const (
	// FormatJSON writes the directory as a JSON document.
	FormatJSON Format = "json"
	// FormatCSV writes the directory as a CSV table.
	FormatCSV Format = "csv"
)

// Status reports the outcome of an export run.
type Status string

const (
	// StatusCompleted marks a successfully stored artifact.
	StatusCompleted Status = "completed"
	// StatusFailed marks an export that could not be stored.
	StatusFailed Status = "failed"
)

// Record describes one export run.
type Record struct {
	ID          string    `json:"id"`
	Format      Format    `json:"format"`
	Status      Status    `json:"status"`
	Key         string    `json:"key,omitempty"`
	URL         string    `json:"url,omitempty"`
	SizeBytes   int64     `json:"size_bytes,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	UserCount   int       `json:"user_count"`
	CreatedAt   time.Time `json:"created_at"`
	Error       string    `json:"error,omitempty"`
}

// UserLister supplies the directory contents to export.
type UserLister interface {
	ListUsers() []domain.User
}

// Exporter runs exports against a blob store and remembers their records in
// creation order.
type Exporter struct {
	mu      sync.RWMutex
	users   UserLister
	blobs   blob.Store
	records []Record
	byID    map[string]int
}

// New returns an Exporter writing artifacts from users into blobs.
func New(users UserLister, blobs blob.Store) *Exporter {
	return &Exporter{users: users, blobs: blobs, byID: make(map[string]int)}
}

// Run exports the current directory in the requested format. The record is
// retained even when the run fails, with Status and Error set accordingly.
func (e *Exporter) Run(ctx context.Context, format Format) (Record, error) {
	rec := Record{ID: "exp-" + randomSuffix(), Format: format, CreatedAt: time.Now().UTC()}

	payload, contentType, err := e.render(format, &rec)
	if err == nil {
		var info blob.Info
		info, err = e.store(ctx, format, payload, contentType)
		if err == nil {
			rec.Status = StatusCompleted
			rec.Key = info.Key
			rec.URL = info.URL
			rec.SizeBytes = info.Size
			rec.ContentType = contentType
		}
	}
	if err != nil {
		rec.Status = StatusFailed
		rec.Error = err.Error()
	}

	e.mu.Lock()
	e.byID[rec.ID] = len(e.records)
	e.records = append(e.records, rec)
	e.mu.Unlock()

	return rec, err
}

func (e *Exporter) render(format Format, rec *Record) ([]byte, string, error) {
	users := e.users.ListUsers()
	rec.UserCount = len(users)
	switch format {
	case FormatJSON:
		payload, err := json.MarshalIndent(map[string][]domain.User{"users": users}, "", "  ")
		if err != nil {
			return nil, "", err
		}
		return payload, "application/json", nil
	case FormatCSV:
		payload, err := renderCSV(users)
		if err != nil {
			return nil, "", err
		}
		return payload, "text/csv", nil
	default:
		return nil, "", fmt.Errorf("unknown export format %q", format)
	}
}

func (e *Exporter) store(ctx context.Context, format Format, payload []byte, contentType string) (blob.Info, error) {
	key := fmt.Sprintf("exports/users-%s-%s.%s", time.Now().UTC().Format("20060102T150405"), randomSuffix(), format)
	info, err := e.blobs.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: contentType,
		Metadata:    map[string]string{"format": string(format)},
	})
	if err != nil {
		return blob.Info{}, fmt.Errorf("store artifact: %w", err)
	}
	if info.URL == "" {
		if url, err := e.blobs.PresignURL(ctx, key, blob.SignedURLOptions{}); err == nil {
			info.URL = url
		} else if !errors.Is(err, blob.ErrUnsupported) {
			return blob.Info{}, fmt.Errorf("presign artifact: %w", err)
		}
	}
	return info, nil
}

func renderCSV(users []domain.User) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"id", "name", "surname", "email", "company", "jobTitle"}); err != nil {
		return nil, err
	}
	for _, u := range users {
		if err := w.Write([]string{u.ID, u.Name, u.Surname, u.Email, u.Company, u.JobTitle}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// List returns all records in creation order.
func (e *Exporter) List() []Record {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Record, len(e.records))
	copy(out, e.records)
	return out
}

// Get returns the record with the given id.
func (e *Exporter) Get(id string) (Record, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	idx, ok := e.byID[id]
	if !ok {
		return Record{}, false
	}
	return e.records[idx], true
}

func randomSuffix() string {
	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failure leaves the process in no state to continue.
		panic(err)
	}
	return hex.EncodeToString(b[:])
}
