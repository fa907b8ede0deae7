// Package index implements the repository index context: a persistent,
// lockable search index representing the contents of one component
// repository. The context owns identity, lifecycle state, the descriptor,
// and the timestamp marker, and coordinates the engine adapter, searcher
// pool, and group sets through open, merge, replace, purge, and close.
package index

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"repoindex/internal/errors"
	"repoindex/internal/schema"
	"repoindex/internal/store"
)

// IndexDirectory is the conventional location for published index
// snapshots under a repository URL.
const IndexDirectory = ".index"

// State is the context lifecycle state. Closed is terminal.
type State int32

const (
	StateUninitialized State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "uninitialized"
	}
}

// Config carries everything needed to open or create an index context.
type Config struct {
	// ID identifies the context. Generated when empty.
	ID string

	// RepositoryID is the id of the repository this index represents.
	// Optional when opening an existing index (adopted from the stored
	// descriptor); required when a new index must be created.
	RepositoryID string

	// RepositoryRoot is the local root path of the repository, if any.
	RepositoryRoot string

	// RepositoryURL is the public URL of the repository, if any.
	RepositoryURL string

	// IndexUpdateURL overrides where index snapshots are published.
	IndexUpdateURL string

	// Dir is the index root directory.
	Dir string

	// Providers is the ordered schema provider list. Defaults to the
	// minimal provider.
	Providers []schema.Provider

	// Reclaim forces this context to take ownership of an existing
	// index's descriptor, and recovers I/O failures during open by
	// wiping and recreating the index.
	Reclaim bool

	// DecodeCacheSize bounds the coordinate-decode cache used by group
	// rebuilds (default 4096).
	DecodeCacheSize int
}

// Context is an open index context. All structural mutators are mutually
// exclusive; the read path (Acquire/Release) is not blocked by them.
type Context struct {
	id             string
	repositoryID   string
	repositoryRoot string
	repositoryURL  string
	indexUpdateURL string
	reclaim        bool

	store       *store.Store
	providers   *schema.Registry
	decodeCache *lru.Cache[string, *schema.Coordinate]

	mu    sync.Mutex // serializes structural mutators
	state atomic.Int32

	searchable atomic.Bool
	timestamp  atomic.Pointer[time.Time]
	groups     atomic.Pointer[groupPair]

	logger *slog.Logger
}

// Open opens an existing index at cfg.Dir, recovering stale locks and
// validating descriptor identity, or creates a fresh one when no index
// is present. On failure no context exists.
func Open(cfg Config) (*Context, error) {
	if cfg.Dir == "" {
		return nil, errors.ConfigError("index directory is required", nil)
	}

	id := cfg.ID
	if id == "" {
		id = uuid.NewString()
	}

	registry := schema.DefaultRegistry()
	if len(cfg.Providers) > 0 {
		registry = schema.NewRegistry(cfg.Providers...)
	}

	cacheSize := cfg.DecodeCacheSize
	if cacheSize <= 0 {
		cacheSize = 4096
	}
	cache, err := lru.New[string, *schema.Coordinate](cacheSize)
	if err != nil {
		return nil, errors.InternalError("create decode cache", err)
	}

	st, err := store.NewStore(cfg.Dir)
	if err != nil {
		return nil, err
	}

	c := &Context{
		id:             id,
		repositoryID:   cfg.RepositoryID,
		repositoryRoot: cfg.RepositoryRoot,
		repositoryURL:  cfg.RepositoryURL,
		indexUpdateURL: cfg.IndexUpdateURL,
		reclaim:        cfg.Reclaim,
		store:          st,
		providers:      registry,
		decodeCache:    cache,
		logger: slog.Default().With(
			slog.String("component", "index"),
			slog.String("id", id),
			slog.String("dir", cfg.Dir),
		),
	}
	c.searchable.Store(true)
	c.groups.Store(emptyGroupPair())

	if err := c.prepareIndex(cfg.Reclaim); err != nil {
		_ = st.Close()
		return nil, err
	}

	ts, err := st.ReadTimestamp()
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	c.timestamp.Store(ts)

	c.state.Store(int32(StateOpen))
	c.logger.Info("context_opened",
		slog.String("repository", c.repositoryID),
		slog.Bool("reclaim", cfg.Reclaim))
	return c, nil
}

// prepareIndex runs the open/recover/create lifecycle procedure.
func (c *Context) prepareIndex(reclaim bool) error {
	if !c.store.IndexExists() {
		return c.prepareCleanIndex(false)
	}

	err := func() error {
		// Probe the write lock; on contention run forced-unlock recovery.
		if h, lerr := c.store.ObtainWriteLock(); lerr == nil {
			_ = h.Close()
		} else if errors.IsCode(lerr, errors.ErrCodeLockHeld) {
			if ferr := c.store.ForceUnlock(); ferr != nil {
				return ferr
			}
		} else {
			return lerr
		}

		if oerr := c.store.Open(); oerr != nil {
			return oerr
		}
		return c.validateDescriptor(reclaim)
	}()
	if err != nil {
		// Lock contention that survived recovery is fatal no matter what.
		// Identity conflicts are fatal unless reclaim was requested, and
		// reclaim never produces them. Everything else is an I/O failure
		// that reclaim recovers by wiping and recreating.
		if reclaim && !errors.IsCode(err, errors.ErrCodeLockHeld) {
			c.logger.Warn("recovering_index_with_wipe", slog.String("error", err.Error()))
			return c.prepareCleanIndex(true)
		}
		return err
	}
	return nil
}

// prepareCleanIndex creates a fresh index, optionally wiping an existing
// one first.
func (c *Context) prepareCleanIndex(deleteExisting bool) error {
	if deleteExisting {
		if err := c.store.CloseReaders(); err != nil {
			return err
		}
		if h, err := c.store.ObtainWriteLock(); err == nil {
			_ = h.Close()
		} else if errors.IsCode(err, errors.ErrCodeLockHeld) {
			if ferr := c.store.ForceUnlock(); ferr != nil {
				return ferr
			}
		} else {
			return err
		}
		if err := c.store.DeleteIndexFiles(true); err != nil {
			return err
		}
	}

	if err := c.store.Open(); err != nil {
		return err
	}

	if strings.TrimSpace(c.repositoryID) == "" {
		return errors.New(errors.ErrCodeRepositoryIDMissing,
			"the repositoryId cannot be empty when creating a new index", nil)
	}

	return c.storeDescriptor()
}

// validateDescriptor checks that the persisted descriptor matches this
// context's identity, adopting the stored repository id when the context
// has none. With reclaim the descriptor is overwritten unconditionally.
func (c *Context) validateDescriptor(reclaim bool) error {
	if reclaim {
		// Forcefully take ownership of the index as ours.
		return c.storeDescriptor()
	}

	s, err := c.store.Acquire()
	if err != nil {
		return err
	}
	defer func() { _ = c.store.Release(s) }()

	// A virgin index has nothing to validate.
	if s.LiveDocCount() == 0 {
		return nil
	}

	hits, err := s.TermSearch(store.FieldDescriptor, store.DescriptorContents, 2)
	if err != nil {
		return err
	}

	switch {
	case len(hits) == 0:
		return errors.IdentityMismatchError("the existing index has no descriptor")
	case len(hits) > 1:
		// Buggy index, iron it out.
		return c.storeDescriptor()
	}

	desc := &store.Document{ID: hits[0].ID, Fields: hits[0].Fields}
	repoID, ok := desc.DescriptorRepositoryID()
	if !ok {
		if c.repositoryID != "" {
			// Unreadable payload with a known identity: self-heal.
			return c.storeDescriptor()
		}
		return errors.IdentityMismatchError("the existing index descriptor is unreadable")
	}

	if c.repositoryID == "" {
		c.repositoryID = repoID
		return nil
	}
	if c.repositoryID != repoID {
		return errors.IdentityMismatchError(fmt.Sprintf(
			"the existing index is for repository [%s] and not for repository [%s]",
			repoID, c.repositoryID))
	}
	return nil
}

// storeDescriptor rewrites the single descriptor document, removing any
// stray copies, and commits.
func (c *Context) storeDescriptor() error {
	w := c.store.Writer()
	if w == nil {
		return errors.ClosedError("store descriptor")
	}

	s, err := c.store.Acquire()
	if err != nil {
		return err
	}
	if n := int(s.LiveDocCount()); n > 0 {
		hits, herr := s.TermSearch(store.FieldDescriptor, store.DescriptorContents, n)
		if herr != nil {
			_ = c.store.Release(s)
			return herr
		}
		for _, h := range hits {
			if h.ID != store.DescriptorID {
				if derr := w.Delete(h.ID); derr != nil {
					_ = c.store.Release(s)
					return derr
				}
			}
		}
	}
	if err := c.store.Release(s); err != nil {
		return err
	}

	if err := w.Update(store.DescriptorID, store.NewDescriptor(c.repositoryID)); err != nil {
		return err
	}
	return w.Commit()
}

// ensureOpen rejects operations on a context that is not open.
func (c *Context) ensureOpen(op string) error {
	if State(c.state.Load()) != StateOpen {
		return errors.ClosedError(op)
	}
	return nil
}

// ID returns the context id.
func (c *Context) ID() string {
	return c.id
}

// RepositoryID returns the owning repository id. It is fixed once the
// context is open.
func (c *Context) RepositoryID() string {
	return c.repositoryID
}

// RepositoryRoot returns the local repository root path, if any.
func (c *Context) RepositoryRoot() string {
	return c.repositoryRoot
}

// RepositoryURL returns the public repository URL, if any.
func (c *Context) RepositoryURL() string {
	return c.repositoryURL
}

// IndexUpdateURL returns where index snapshots are published, deriving
// <repositoryUrl>/.index when no explicit value was configured.
func (c *Context) IndexUpdateURL() string {
	if c.repositoryURL != "" && strings.TrimSpace(c.indexUpdateURL) == "" {
		if strings.HasSuffix(c.repositoryURL, "/") {
			return c.repositoryURL + IndexDirectory
		}
		return c.repositoryURL + "/" + IndexDirectory
	}
	return c.indexUpdateURL
}

// Searchable reports whether this context takes part in searches.
func (c *Context) Searchable() bool {
	return c.searchable.Load()
}

// SetSearchable toggles search participation.
func (c *Context) SetSearchable(searchable bool) {
	c.searchable.Store(searchable)
}

// Timestamp returns the last successful sync marker, or nil when the
// index has never been synced.
func (c *Context) Timestamp() *time.Time {
	return c.timestamp.Load()
}

// State returns the lifecycle state.
func (c *Context) State() State {
	return State(c.state.Load())
}

// Dir returns the index root directory.
func (c *Context) Dir() string {
	return c.store.Root()
}

// Providers returns the ordered schema provider list.
func (c *Context) Providers() []schema.Provider {
	return c.providers.Providers()
}

// Writer exposes the engine write path for indexing callers. Staged work
// becomes visible on Commit.
func (c *Context) Writer() *store.Writer {
	return c.store.Writer()
}

// Acquire returns a refreshed, reference-counted read snapshot.
func (c *Context) Acquire() (*store.Searcher, error) {
	if err := c.ensureOpen("acquire"); err != nil {
		return nil, err
	}
	return c.store.Acquire()
}

// Release returns a snapshot obtained from Acquire. Call exactly once
// per acquire, on every exit path.
func (c *Context) Release(s *store.Searcher) error {
	return c.store.Release(s)
}

// Size returns the committed document count, descriptor included.
func (c *Context) Size() (uint64, error) {
	s, err := c.Acquire()
	if err != nil {
		return 0, err
	}
	defer func() { _ = c.Release(s) }()
	return s.LiveDocCount(), nil
}

// Add stages live artifact documents built from coordinates through the
// schema providers. Call Commit to publish.
func (c *Context) Add(coords ...*schema.Coordinate) error {
	if err := c.ensureOpen("add"); err != nil {
		return err
	}
	w := c.store.Writer()
	for _, coord := range coords {
		doc := &store.Document{}
		c.providers.Encode(coord, doc)
		if err := w.Add(doc); err != nil {
			return err
		}
	}
	return nil
}

// Remove stages deletion of a live document and records a tombstone so
// downstream incremental consumers learn about the deletion.
func (c *Context) Remove(uinfo string) error {
	if err := c.ensureOpen("remove"); err != nil {
		return err
	}
	w := c.store.Writer()
	if err := w.Delete(uinfo); err != nil {
		return err
	}
	return w.Add(store.NewTombstone(uinfo))
}

// Commit publishes staged writes to new searcher snapshots.
func (c *Context) Commit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureOpen("commit"); err != nil {
		return err
	}
	return c.store.Writer().Commit()
}

// Rollback discards staged writes.
func (c *Context) Rollback() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureOpen("rollback"); err != nil {
		return err
	}
	return c.store.Writer().Rollback()
}

// Optimize checkpoints the writer: a clean commit making current state
// visible to new searcher snapshots.
func (c *Context) Optimize() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureOpen("optimize"); err != nil {
		return err
	}
	return c.optimizeLocked()
}

func (c *Context) optimizeLocked() error {
	return c.store.Writer().Commit()
}

// UpdateTimestamp sets the sync marker to now, optionally persisting it.
func (c *Context) UpdateTimestamp(save bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureOpen("update timestamp"); err != nil {
		return err
	}
	now := time.Now()
	return c.setTimestamp(&now, save)
}

// setTimestamp swaps the in-memory marker and optionally persists it.
// A nil timestamp resets the index to "never synced".
func (c *Context) setTimestamp(ts *time.Time, save bool) error {
	c.timestamp.Store(ts)
	if save {
		return c.store.WriteTimestamp(ts)
	}
	return nil
}

// String renders the context as "id : timestamp".
func (c *Context) String() string {
	ts := c.Timestamp()
	if ts == nil {
		return c.id + " : <never synced>"
	}
	return c.id + " : " + ts.UTC().Format(time.RFC3339)
}
