package store

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"

	"repoindex/internal/errors"
)

const (
	// EngineDir is the subdirectory holding engine-owned index files.
	EngineDir = "engine"

	// engineMetaFile marks a valid engine index inside EngineDir.
	engineMetaFile = "index_meta.json"

	// PackerPropertiesFile and UpdaterPropertiesFile carry unrelated
	// subsystem state and survive a non-full wipe.
	PackerPropertiesFile  = "packer.properties"
	UpdaterPropertiesFile = "updater.properties"
)

// reservedFile reports whether a root entry survives a non-full wipe.
func reservedFile(name string) bool {
	return name == PackerPropertiesFile || name == UpdaterPropertiesFile
}

// Store binds the engine and its root directory: engine files live under
// <root>/engine, the timestamp marker, lock file, and reserved metadata
// files at the root itself.
type Store struct {
	root     string
	readOnly bool

	lockFactory *TrackingLockFactory
	logger      *slog.Logger

	mu     sync.Mutex
	index  bleve.Index
	writer *Writer
	pool   *SearcherPool
	closed bool
}

// NewStore creates a store bound to an index root directory. The engine
// is not opened until Open is called.
func NewStore(root string) (*Store, error) {
	if root == "" {
		return nil, errors.ConfigError("index directory is required", nil)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.IOError("create index directory "+root, err)
	}
	return &Store{
		root:        root,
		lockFactory: NewTrackingLockFactory(NewFSLockFactory(root)),
		logger:      slog.Default().With(slog.String("component", "store"), slog.String("dir", root)),
	}, nil
}

// OpenReadOnly opens an existing index root for reading, typically a
// merge source snapshot. The write path is unavailable.
func OpenReadOnly(root string) (*Store, error) {
	s, err := NewStore(root)
	if err != nil {
		return nil, err
	}
	s.readOnly = true

	enginePath := s.EnginePath()
	idx, err := bleve.OpenUsing(enginePath, map[string]interface{}{"read_only": true})
	if err != nil {
		return nil, wrapEngineError("open source index "+enginePath, err)
	}
	s.index = idx
	s.pool = newSearcherPool(idx)
	return s, nil
}

// Root returns the index root directory.
func (s *Store) Root() string {
	return s.root
}

// EnginePath returns the engine subdirectory path.
func (s *Store) EnginePath() string {
	return filepath.Join(s.root, EngineDir)
}

// IndexExists reports whether a persisted engine index is present.
func (s *Store) IndexExists() bool {
	info, err := os.Stat(filepath.Join(s.EnginePath(), engineMetaFile))
	return err == nil && info.Size() > 0
}

// Open (re)opens the write path and searcher pool: any prior writer and
// pool are closed, then fresh ones are constructed over the engine,
// creating it when missing.
func (s *Store) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readOnly {
		return errors.InternalError("store is read-only", nil)
	}
	if err := s.closeReadersLocked(); err != nil {
		return err
	}

	enginePath := s.EnginePath()
	idx, err := bleve.Open(enginePath)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(enginePath, engineMapping())
	}
	if err != nil {
		return wrapEngineError("open index "+enginePath, err)
	}

	s.index = idx
	s.pool = newSearcherPool(idx)
	s.writer = newWriter(idx, s.pool)
	s.closed = false

	s.logger.Debug("store_opened")
	return nil
}

// CloseReaders closes the writer, pool, and engine handle, committing
// pending writes first. The store can be reopened with Open.
func (s *Store) CloseReaders() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeReadersLocked()
}

func (s *Store) closeReadersLocked() error {
	var firstErr error

	if s.pool != nil {
		if n := s.pool.Outstanding(); n > 0 {
			s.logger.Warn("closing_with_outstanding_searchers", slog.Int64("count", n))
		}
		_ = s.pool.Close()
		s.pool = nil
	}
	if s.writer != nil {
		if err := s.writer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.writer = nil
	}
	if s.index != nil {
		if err := s.index.Close(); err != nil && firstErr == nil {
			firstErr = errors.IOError("close engine", err)
		}
		s.index = nil
	}
	return firstErr
}

// Close shuts the store down for good.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	err := s.closeReadersLocked()
	s.closed = true
	return err
}

// Writer returns the open write path, or nil when closed.
func (s *Store) Writer() *Writer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writer
}

// Acquire returns a read snapshot from the searcher pool.
func (s *Store) Acquire() (*Searcher, error) {
	s.mu.Lock()
	pool := s.pool
	s.mu.Unlock()

	if pool == nil {
		return nil, errors.ClosedError("acquire searcher")
	}
	return pool.Acquire()
}

// Release returns a snapshot obtained from Acquire.
func (s *Store) Release(sr *Searcher) error {
	if sr == nil {
		return nil
	}
	return sr.pool.Release(sr)
}

// ListFiles lists the entries at the index root.
func (s *Store) ListFiles() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, errors.IOError("list index files", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

// DeleteFile removes one entry at the index root.
func (s *Store) DeleteFile(name string) error {
	if err := os.RemoveAll(filepath.Join(s.root, filepath.Base(name))); err != nil {
		return errors.IOError("delete "+name, err)
	}
	return nil
}

// DeleteIndexFiles wipes the index root. A non-full wipe keeps the two
// reserved metadata files; a full wipe removes those too. The timestamp
// marker is removed in both modes.
func (s *Store) DeleteIndexFiles(full bool) error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.IOError("list index files", err)
	}

	for _, e := range entries {
		if !full && reservedFile(e.Name()) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.root, e.Name())); err != nil {
			return errors.IOError("delete "+e.Name(), err)
		}
	}

	s.logger.Debug("index_files_deleted", slog.Bool("full", full))
	return nil
}

// ObtainWriteLock probes the cross-process write lock.
func (s *Store) ObtainWriteLock() (*LockHandle, error) {
	return s.lockFactory.Obtain(WriteLockName)
}

// LockFactory exposes the tracking lock factory.
func (s *Store) LockFactory() *TrackingLockFactory {
	return s.lockFactory
}

// ForceUnlock releases a write lock left behind by a crashed holder.
// It closes every handle this process has tracked for the lock name,
// then probes the lock file natively: if another live process still
// holds it, a LockHeld error surfaces; otherwise the stale lock file
// is removed. Best-effort by design of the repair path.
func (s *Store) ForceUnlock() error {
	if err := s.lockFactory.ForceRelease(WriteLockName); err != nil {
		return err
	}

	path := filepath.Join(s.root, WriteLockName)
	real, err := filepath.EvalSymlinks(path)
	if err != nil {
		// No lock file present, nothing to recover.
		return nil
	}

	fl := flockProbe(real)
	held, err := fl.probe()
	if err != nil {
		return errors.IOError("probe lock file "+real, err)
	}
	if held {
		return errors.LockHeldError("lock held by another process: "+real, nil)
	}

	if err := os.Remove(real); err != nil && !os.IsNotExist(err) {
		return errors.IOError("remove stale lock file "+real, err)
	}
	s.logger.Info("stale_lock_removed", slog.String("path", real))
	return nil
}

// CopyFrom physically copies every file from another index root into this
// one, preserving relative paths. The reserved metadata files and the
// lock file are never copied; they belong to the target.
func (s *Store) CopyFrom(srcRoot string) error {
	return filepath.Walk(srcRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return errors.IOError("walk source index", err)
		}
		rel, err := filepath.Rel(srcRoot, path)
		if err != nil {
			return errors.IOError("resolve source path", err)
		}
		if rel == "." {
			return nil
		}

		top := strings.SplitN(rel, string(filepath.Separator), 2)[0]
		if reservedFile(top) || top == WriteLockName {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		dst := filepath.Join(s.root, rel)
		if info.IsDir() {
			if err := os.MkdirAll(dst, 0o755); err != nil {
				return errors.IOError("create "+rel, err)
			}
			return nil
		}
		return copyFile(path, dst)
	})
}

// ReadTimestamp reads this store's persisted timestamp marker.
func (s *Store) ReadTimestamp() (*time.Time, error) {
	return ReadTimestamp(s.root)
}

// WriteTimestamp persists (or, when ts is nil, resets) the marker.
func (s *Store) WriteTimestamp(ts *time.Time) error {
	return WriteTimestamp(s.root, ts)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.IOError("open "+src, err)
	}
	defer func() { _ = in.Close() }()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.IOError("create "+filepath.Dir(dst), err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return errors.IOError("create "+dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return errors.IOError("copy "+dst, err)
	}
	return out.Close()
}

// engineMapping builds the engine index mapping: every field is an
// exact-match keyword term with stored values.
func engineMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = keyword.Name
	return im
}

// wrapEngineError classifies an engine open failure.
func wrapEngineError(msg string, err error) error {
	if isCorruptionError(err) {
		return errors.New(errors.ErrCodeCorruptIndex, msg+": "+err.Error(), err)
	}
	return errors.IOError(msg, err)
}

// isCorruptionError checks if an error indicates engine index corruption.
func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	if err == bleve.ErrorIndexMetaCorrupt {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "unexpected end of JSON") ||
		strings.Contains(errStr, "error parsing mapping JSON") ||
		strings.Contains(errStr, "failed to load segment") ||
		strings.Contains(errStr, "error opening bolt")
}

// ValidateEngineMeta checks the engine metadata file before opening.
// Returns nil when the index is absent or structurally sound.
func ValidateEngineMeta(root string) error {
	metaPath := filepath.Join(root, EngineDir, engineMetaFile)
	data, err := os.ReadFile(metaPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.IOError("read engine metadata", err)
	}
	if len(data) == 0 {
		return errors.New(errors.ErrCodeCorruptIndex, "engine metadata is empty", nil)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return errors.New(errors.ErrCodeCorruptIndex, "engine metadata is corrupt", err)
	}
	return nil
}
