// Package corpus manages the on-disk article dataset: one numbered raw text
// file plus one metadata record per fetched article.
package corpus

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"corpuscrawler/internal/extract"
)

// Dataset file suffixes. Article N is stored as N_raw.txt and N_meta.json,
// with N_cleaned.txt and N_tagged.txt added by the processing pipeline.
const (
	rawSuffix     = "_raw.txt"
	metaSuffix    = "_meta.json"
	cleanedSuffix = "_cleaned.txt"
	taggedSuffix  = "_tagged.txt"
)

// ErrInvalidDataset reports a dataset that fails the consistency checks.
var ErrInvalidDataset = errors.New("invalid dataset")

// Manager numbers and stores articles under a single directory. Numeration
// starts at 1 and continues from the highest existing article on reopen.
type Manager struct {
	dir    string
	logger *zap.Logger

	mu   sync.Mutex
	next int
}

// NewManager opens (creating if needed) the dataset directory.
func NewManager(dir string, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create dataset directory: %w", err)
	}
	ids, err := scanIDs(dir)
	if err != nil {
		return nil, err
	}
	next := 1
	if len(ids) > 0 {
		next = ids[len(ids)-1] + 1
	}
	return &Manager{dir: dir, logger: logger, next: next}, nil
}

// Dir returns the dataset directory.
func (m *Manager) Dir() string {
	return m.dir
}

// Save stores an article's raw text and metadata under the next free number
// and returns the assigned ID.
func (m *Manager) Save(text string, meta extract.ArticleMeta) (int, error) {
	m.mu.Lock()
	id := m.next
	m.next++
	m.mu.Unlock()

	meta.ID = id
	if err := os.WriteFile(m.RawPath(id), []byte(text), 0o644); err != nil {
		return 0, fmt.Errorf("write raw article %d: %w", id, err)
	}
	if err := m.SaveMeta(meta); err != nil {
		return 0, err
	}
	m.logger.Debug("article saved",
		zap.Int("id", id),
		zap.String("url", meta.URL),
	)
	return id, nil
}

// SaveMeta writes (or rewrites) an article's metadata record.
func (m *Manager) SaveMeta(meta extract.ArticleMeta) error {
	if meta.ID < 1 {
		return fmt.Errorf("save meta: article id %d out of range", meta.ID)
	}
	payload, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode meta for article %d: %w", meta.ID, err)
	}
	if err := os.WriteFile(m.MetaPath(meta.ID), payload, 0o644); err != nil {
		return fmt.Errorf("write meta for article %d: %w", meta.ID, err)
	}
	return nil
}

// SaveCleaned stores the cleaned token rendition of an article.
func (m *Manager) SaveCleaned(id int, text string) error {
	if err := os.WriteFile(m.path(id, cleanedSuffix), []byte(text), 0o644); err != nil {
		return fmt.Errorf("write cleaned article %d: %w", id, err)
	}
	return nil
}

// SaveTagged stores the tagged token rendition of an article.
func (m *Manager) SaveTagged(id int, text string) error {
	if err := os.WriteFile(m.path(id, taggedSuffix), []byte(text), 0o644); err != nil {
		return fmt.Errorf("write tagged article %d: %w", id, err)
	}
	return nil
}

// LoadRaw reads an article's raw text.
func (m *Manager) LoadRaw(id int) (string, error) {
	data, err := os.ReadFile(m.RawPath(id))
	if err != nil {
		return "", fmt.Errorf("read raw article %d: %w", id, err)
	}
	return string(data), nil
}

// LoadMeta reads an article's metadata record.
func (m *Manager) LoadMeta(id int) (extract.ArticleMeta, error) {
	data, err := os.ReadFile(m.MetaPath(id))
	if err != nil {
		return extract.ArticleMeta{}, fmt.Errorf("read meta for article %d: %w", id, err)
	}
	var meta extract.ArticleMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return extract.ArticleMeta{}, fmt.Errorf("decode meta for article %d: %w", id, err)
	}
	return meta, nil
}

// IDs lists the stored article numbers in ascending order.
func (m *Manager) IDs() ([]int, error) {
	return scanIDs(m.dir)
}

// RawPath returns the raw text path for an article.
func (m *Manager) RawPath(id int) string {
	return m.path(id, rawSuffix)
}

// MetaPath returns the metadata path for an article.
func (m *Manager) MetaPath(id int) string {
	return m.path(id, metaSuffix)
}

func (m *Manager) path(id int, suffix string) string {
	return filepath.Join(m.dir, strconv.Itoa(id)+suffix)
}

// Validate checks dataset consistency: numeration must be continuous from 1,
// every article needs both its raw text and metadata, and neither may be
// empty.
func (m *Manager) Validate() error {
	return ValidateDataset(m.dir)
}

// ValidateDataset runs the consistency checks against a dataset directory.
func ValidateDataset(dir string) error {
	ids, err := scanIDs(dir)
	if err != nil {
		return err
	}
	for i, id := range ids {
		if id != i+1 {
			return fmt.Errorf("%w: numeration gap, expected article %d, found %d",
				ErrInvalidDataset, i+1, id)
		}
		raw := filepath.Join(dir, strconv.Itoa(id)+rawSuffix)
		meta := filepath.Join(dir, strconv.Itoa(id)+metaSuffix)
		if err := checkNonEmpty(raw); err != nil {
			return err
		}
		if err := checkNonEmpty(meta); err != nil {
			return err
		}
	}
	return nil
}

func checkNonEmpty(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: missing %s", ErrInvalidDataset, filepath.Base(path))
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: empty %s", ErrInvalidDataset, filepath.Base(path))
	}
	return nil
}

func scanIDs(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan dataset directory: %w", err)
	}
	var ids []int
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, rawSuffix) {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSuffix(name, rawSuffix))
		if err != nil || id < 1 {
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}
