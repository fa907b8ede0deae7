package index

import (
	"log/slog"
	"time"

	"repoindex/internal/errors"
	"repoindex/internal/store"
)

// Merge folds another index root into this context. Live documents are
// added only when the target has no document for the same coordinate key
// ("already present wins"); deletion records are replayed against the
// target and retained as tombstones. The optional filter screens every
// source document, deletion records included. Partial progress is
// committed even when the source scan fails midway.
func (c *Context) Merge(srcRoot string, filter store.Filter) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureOpen("merge"); err != nil {
		return err
	}

	src, err := store.OpenReadOnly(srcRoot)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	srcSearcher, err := src.Acquire()
	if err != nil {
		return err
	}
	defer func() { _ = src.Release(srcSearcher) }()

	target, err := c.store.Acquire()
	if err != nil {
		return err
	}
	defer func() { _ = c.store.Release(target) }()

	w := c.store.Writer()
	added, removed := 0, 0

	scanErr := srcSearcher.ForEachLive(func(doc *store.Document) error {
		if doc.IsDescriptor() {
			// The target keeps its own identity.
			return nil
		}
		if filter != nil && !filter(doc) {
			return nil
		}

		if uinfo := doc.UInfo(); uinfo != "" {
			hits, herr := target.TermSearch(store.FieldUInfo, uinfo, 1)
			if herr != nil {
				return herr
			}
			if len(hits) > 0 {
				return nil
			}
			if aerr := w.Add(doc); aerr != nil {
				return aerr
			}
			added++
			return nil
		}

		if deleted := doc.DeletedKey(); deleted != "" {
			if derr := w.Delete(deleted); derr != nil {
				return derr
			}
			if aerr := w.Add(store.NewTombstone(deleted)); aerr != nil {
				return aerr
			}
			removed++
		}
		return nil
	})

	// Whatever was staged before a failure still lands, matching the
	// at-least-committed-prefix contract.
	if cerr := w.Commit(); cerr != nil && scanErr == nil {
		scanErr = cerr
	}
	if scanErr != nil {
		return scanErr
	}

	if err := c.rebuildGroupsLocked(); err != nil {
		return err
	}

	ts := c.timestamp.Load()
	srcTS, err := src.ReadTimestamp()
	if err != nil {
		return err
	}
	merged := laterTimestamp(ts, srcTS)
	if err := c.setTimestamp(merged, true); err != nil {
		return err
	}

	c.logger.Info("merge_completed",
		slog.String("source", srcRoot),
		slog.Int("added", added),
		slog.Int("removed", removed))
	return c.optimizeLocked()
}

func laterTimestamp(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.After(*a):
		return b
	default:
		return a
	}
}

// Replace swaps this context's entire contents for another index root's,
// by physically copying its files. The descriptor is rewritten to this
// context's identity and the timestamp is taken from the source. Group
// sets are adopted from the arguments when given, otherwise rebuilt from
// the new contents.
func (c *Context) Replace(srcRoot string, allGroups, rootGroups []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureOpen("replace"); err != nil {
		return err
	}

	srcTS, err := store.ReadTimestamp(srcRoot)
	if err != nil {
		return err
	}

	if err := c.store.CloseReaders(); err != nil {
		return err
	}
	if err := c.store.DeleteIndexFiles(false); err != nil {
		return err
	}
	if err := c.store.CopyFrom(srcRoot); err != nil {
		return err
	}
	if err := c.store.Open(); err != nil {
		return err
	}
	if err := c.storeDescriptor(); err != nil {
		return err
	}

	if allGroups == nil && rootGroups == nil {
		if err := c.rebuildGroupsLocked(); err != nil {
			return err
		}
	} else {
		if allGroups != nil {
			c.SetAllGroups(allGroups)
		}
		if rootGroups != nil {
			c.SetRootGroups(rootGroups)
		}
	}

	if err := c.setTimestamp(srcTS, true); err != nil {
		return err
	}

	c.logger.Info("replace_completed", slog.String("source", srcRoot))
	return c.optimizeLocked()
}

// Purge wipes the index completely and recreates it empty: fresh
// descriptor, empty group sets, timestamp reset to never synced. The
// context stays open and usable.
func (c *Context) Purge() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureOpen("purge"); err != nil {
		return err
	}

	if err := c.store.CloseReaders(); err != nil {
		return err
	}
	if err := c.store.DeleteIndexFiles(true); err != nil {
		return err
	}
	if err := c.prepareIndex(true); err != nil {
		// Identity conflicts cannot arise against the index we just
		// recreated ourselves.
		if !errors.IsCode(err, errors.ErrCodeIdentityMismatch) {
			return err
		}
	}
	if err := c.rebuildGroupsLocked(); err != nil {
		return err
	}
	if err := c.setTimestamp(nil, true); err != nil {
		return err
	}

	c.logger.Info("purge_completed")
	return nil
}

// Close persists the timestamp, releases every engine resource, and
// optionally deletes the index files. Closing twice is a no-op. A closed
// context rejects all further operations.
func (c *Context) Close(deleteFiles bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if State(c.state.Load()) == StateClosed {
		return nil
	}

	var firstErr error
	if err := c.store.WriteTimestamp(c.timestamp.Load()); err != nil {
		firstErr = err
	}
	if err := c.store.CloseReaders(); err != nil && firstErr == nil {
		firstErr = err
	}
	if deleteFiles {
		if err := c.store.DeleteIndexFiles(true); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := c.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	c.state.Store(int32(StateClosed))
	c.logger.Info("context_closed", slog.Bool("delete_files", deleteFiles))
	return firstErr
}
