// Package store persists aggregation results in a small key-value store.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"syscall"
	"time"

	"github.com/KaramelBytes/enrolstat/internal/aggregate"
)

// CurrentDatasetKey is the well-known key of the most recent ingest.
const CurrentDatasetKey = "current_dataset"

var (
	// ErrNotFound means no value is stored under the key.
	ErrNotFound = errors.New("dataset not found")
	// ErrStorageExhausted means the store is out of quota or disk space.
	ErrStorageExhausted = errors.New("storage exhausted")
	// ErrInvalidKey means the key is empty or has characters outside [A-Za-z0-9_.-].
	ErrInvalidKey = errors.New("invalid dataset key")
)

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,128}$`)

// QuotaError reports a write that would exceed the configured quota.
type QuotaError struct {
	Key   string
	Need  int64
	Quota int64
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s: writing %s needs %d bytes, quota is %d", ErrStorageExhausted.Error(), e.Key, e.Need, e.Quota)
}

func (e *QuotaError) Unwrap() error { return ErrStorageExhausted }

// Entry describes a stored value.
type Entry struct {
	Key       string
	Size      int64
	UpdatedAt time.Time
}

// Store is the persistence contract: opaque values under string keys.
type Store interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]Entry, error)
	Close() error
}

// Options tune a backend.
type Options struct {
	// QuotaBytes caps the total stored bytes; 0 disables the check.
	QuotaBytes int64
}

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
)

// Open returns the named backend rooted at path.
func Open(ctx context.Context, backend, path string, opt Options) (Store, error) {
	switch backend {
	case "", BackendSQLite:
		return OpenSQLite(ctx, path, opt)
	case BackendFile:
		return OpenFile(path, opt)
	default:
		return nil, fmt.Errorf("unknown store backend %q (use %s or %s)", backend, BackendSQLite, BackendFile)
	}
}

// Metadata describes how a dataset was produced.
type Metadata struct {
	CategoryColumns  []string  `json:"ageCols"`
	GroupKeyColumn   string    `json:"stateCol"`
	JobID            string    `json:"jobId,omitempty"`
	Sources          []string  `json:"sources,omitempty"`
	RecordsProcessed int64     `json:"recordsProcessed"`
	RecordsSkipped   int64     `json:"recordsSkipped"`
	Timestamp        time.Time `json:"timestamp"`
}

// Dataset is the persisted form of an aggregation result.
type Dataset struct {
	Metadata Metadata                   `json:"metadata"`
	Data     []aggregate.GroupAggregate `json:"data"`
}

// FromResult converts a result into its persisted form.
func FromResult(r *aggregate.Result) *Dataset {
	return &Dataset{
		Metadata: Metadata{
			CategoryColumns:  r.CategoryColumns,
			GroupKeyColumn:   r.GroupKeyColumn,
			JobID:            r.JobID,
			Sources:          r.Sources,
			RecordsProcessed: r.RecordsProcessed,
			RecordsSkipped:   r.RecordsSkipped,
			Timestamp:        r.CreatedAt,
		},
		Data: r.Groups,
	}
}

// Result converts the dataset back into an aggregation result.
func (d *Dataset) Result() *aggregate.Result {
	return &aggregate.Result{
		JobID:            d.Metadata.JobID,
		GroupKeyColumn:   d.Metadata.GroupKeyColumn,
		CategoryColumns:  d.Metadata.CategoryColumns,
		Groups:           d.Data,
		Sources:          d.Metadata.Sources,
		RecordsProcessed: d.Metadata.RecordsProcessed,
		RecordsSkipped:   d.Metadata.RecordsSkipped,
		CreatedAt:        d.Metadata.Timestamp,
	}
}

// SaveDataset stores d under key as JSON.
func SaveDataset(ctx context.Context, s Store, key string, d *Dataset) error {
	b, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal dataset: %w", err)
	}
	return s.Put(ctx, key, b)
}

// LoadDataset reads the dataset stored under key.
func LoadDataset(ctx context.Context, s Store, key string) (*Dataset, error) {
	b, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var d Dataset
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("decode dataset %s: %w", key, err)
	}
	return &d, nil
}

func checkKey(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

func checkQuota(key string, quota, used, incoming int64) error {
	if quota <= 0 {
		return nil
	}
	if need := used + incoming; need > quota {
		return &QuotaError{Key: key, Need: need, Quota: quota}
	}
	return nil
}

// diskFull maps out-of-space errors from the OS to ErrStorageExhausted.
func diskFull(err error) error {
	if err != nil && errors.Is(err, syscall.ENOSPC) {
		return fmt.Errorf("%w: %v", ErrStorageExhausted, err)
	}
	return err
}
