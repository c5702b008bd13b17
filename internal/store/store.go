package store

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/segmentio/encoding/json"

	"github.com/rickgao/robot-telemetry/internal/model"
)

// Errors
var (
	ErrStoreNotFound   = errors.New("store not found")
	ErrStoreMalformed  = errors.New("store malformed")
	ErrRecordMalformed = errors.New("record malformed")
	ErrLoadFailed      = errors.New("load failed")

	// ErrNoData is the policy error both delivery surfaces report when a
	// load succeeds with zero records. Load itself never returns it.
	ErrNoData = errors.New("no robot data available")
)

// Error kinds reported to clients and logs.
const (
	KindStoreNotFound   = "store_not_found"
	KindStoreMalformed  = "store_malformed"
	KindRecordMalformed = "record_malformed"
	KindLoadFailed      = "load_failed"
	KindNoData          = "no_data"
)

// Kind classifies err into one of the Kind* constants. Unknown errors are
// reported as KindLoadFailed.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrStoreNotFound):
		return KindStoreNotFound
	case errors.Is(err, ErrStoreMalformed):
		return KindStoreMalformed
	case errors.Is(err, ErrRecordMalformed):
		return KindRecordMalformed
	case errors.Is(err, ErrNoData):
		return KindNoData
	default:
		return KindLoadFailed
	}
}

// Loader returns the current set of normalized records.
type Loader interface {
	Load() ([]model.Record, error)
}

// FileStore loads records from a JSON file on disk.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore reading from path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads and normalizes every entry in file order.
// A valid empty array yields an empty, non-nil slice.
func (s *FileStore) Load() ([]model.Record, error) {
	data, err := s.read()
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(data)
	if !json.Valid(trimmed) {
		return nil, fmt.Errorf("%w: %s: invalid JSON", ErrStoreMalformed, s.path)
	}
	if trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: %s: top-level value is not an array", ErrStoreMalformed, s.path)
	}

	var raws []map[string]any
	if err := json.Unmarshal(trimmed, &raws); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrStoreMalformed, s.path, err)
	}

	records := make([]model.Record, 0, len(raws))
	for i, raw := range raws {
		rec, err := model.Normalize(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: entry %d: %w", ErrRecordMalformed, s.path, i, err)
		}
		records = append(records, rec)
	}

	return records, nil
}

// read returns the whole file. The handle never outlives the call.
func (s *FileStore) read() ([]byte, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("%w: %v", ErrStoreNotFound, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrLoadFailed, s.path, err)
	}
	return data, nil
}
