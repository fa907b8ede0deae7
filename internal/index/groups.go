package index

import (
	"sort"

	"repoindex/internal/store"
)

// groupPair holds both group sets so readers always observe a matching
// allGroups/rootGroups pair. Publication is a single pointer swap.
type groupPair struct {
	all  map[string]struct{}
	root map[string]struct{}
}

func emptyGroupPair() *groupPair {
	return &groupPair{
		all:  map[string]struct{}{},
		root: map[string]struct{}{},
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func toSet(in []string) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for _, v := range in {
		out[v] = struct{}{}
	}
	return out
}

// AllGroups returns the sorted set of every group id present in the index.
func (c *Context) AllGroups() []string {
	return sortedKeys(c.groups.Load().all)
}

// RootGroups returns the sorted set of top-level namespace segments.
func (c *Context) RootGroups() []string {
	return sortedKeys(c.groups.Load().root)
}

// SetAllGroups replaces the all-groups set, keeping the current root set.
func (c *Context) SetAllGroups(groups []string) {
	for {
		old := c.groups.Load()
		next := &groupPair{all: toSet(groups), root: old.root}
		if c.groups.CompareAndSwap(old, next) {
			return
		}
	}
}

// SetRootGroups replaces the root-groups set, keeping the current all set.
func (c *Context) SetRootGroups(groups []string) {
	for {
		old := c.groups.Load()
		next := &groupPair{all: old.all, root: toSet(groups)}
		if c.groups.CompareAndSwap(old, next) {
			return
		}
	}
}

// RebuildGroups recomputes both group sets from the committed documents
// and publishes them atomically as one pair.
func (c *Context) RebuildGroups() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureOpen("rebuild groups"); err != nil {
		return err
	}
	if err := c.rebuildGroupsLocked(); err != nil {
		return err
	}
	return c.optimizeLocked()
}

func (c *Context) rebuildGroupsLocked() error {
	s, err := c.store.Acquire()
	if err != nil {
		return err
	}
	defer func() { _ = c.store.Release(s) }()

	pair := emptyGroupPair()
	err = s.ForEachLive(func(doc *store.Document) error {
		uinfo := doc.UInfo()
		if uinfo == "" {
			// Tombstones and the descriptor carry no group information.
			return nil
		}

		coord, ok := c.decodeCache.Get(uinfo)
		if !ok {
			decoded, dok := c.providers.Decode(doc)
			if !dok {
				return nil
			}
			coord = decoded
			c.decodeCache.Add(uinfo, coord)
		}

		pair.all[coord.GroupID] = struct{}{}
		pair.root[coord.RootGroup()] = struct{}{}
		return nil
	})
	if err != nil {
		return err
	}

	c.groups.Store(pair)
	return nil
}
