package store

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/blevesearch/bleve/v2"
	index "github.com/blevesearch/bleve_index_api"
	"golang.org/x/sync/singleflight"

	"repoindex/internal/errors"
)

// Hit is one ranked search result.
type Hit struct {
	ID     string
	Score  float64
	Fields map[string]string
}

// Searcher is a reference-counted read snapshot over committed state.
// Release it exactly once, on every exit path.
type Searcher struct {
	pool     *SearcherPool
	idx      bleve.Index
	gen      uint64
	liveDocs uint64
	released atomic.Bool
}

// LiveDocCount returns the committed document count observed at acquire.
func (s *Searcher) LiveDocCount() uint64 {
	return s.liveDocs
}

// TermSearch runs an exact term lookup on a field and returns up to limit
// ranked hits with their stored fields.
func (s *Searcher) TermSearch(field, value string, limit int) ([]*Hit, error) {
	q := bleve.NewTermQuery(value)
	q.SetField(field)

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.Fields = []string{"*"}

	res, err := s.idx.Search(req)
	if err != nil {
		return nil, errors.IOError("term search "+field, err)
	}

	hits := make([]*Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, &Hit{
			ID:     h.ID,
			Score:  h.Score,
			Fields: stringFields(h.Fields),
		})
	}
	return hits, nil
}

// FetchByID loads a document by id with all stored fields, or nil when
// no such document exists.
func (s *Searcher) FetchByID(id string) (*Document, error) {
	doc, err := s.idx.Document(id)
	if err != nil {
		return nil, errors.IOError("fetch document "+id, err)
	}
	if doc == nil {
		return nil, nil
	}

	fields := make(map[string]string)
	doc.VisitFields(func(f index.Field) {
		fields[f.Name()] = string(f.Value())
	})
	return &Document{ID: id, Fields: fields}, nil
}

// ForEachLive scans every committed document in the snapshot's store.
// The callback sees artifacts, tombstones, and the descriptor; callers
// discriminate by field.
func (s *Searcher) ForEachLive(fn func(*Document) error) error {
	count, err := s.idx.DocCount()
	if err != nil {
		return errors.IOError("doc count", err)
	}
	if count == 0 {
		return nil
	}

	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = int(count)

	res, err := s.idx.Search(req)
	if err != nil {
		return errors.IOError("scan documents", err)
	}

	for _, h := range res.Hits {
		doc, err := s.FetchByID(h.ID)
		if err != nil {
			return err
		}
		if doc == nil {
			continue
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	return nil
}

func stringFields(in map[string]interface{}) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

// SearcherPool hands out refreshable reference-counted snapshots over
// committed state. Refresh is amortized: snapshot stats are recomputed
// only when the writer generation has advanced, and concurrent acquirers
// share one recomputation.
type SearcherPool struct {
	idx bleve.Index
	gen atomic.Uint64

	mu        sync.Mutex
	snapGen   uint64
	snapCount uint64
	primed    bool

	refs   atomic.Int64
	closed atomic.Bool
	group  singleflight.Group
}

func newSearcherPool(idx bleve.Index) *SearcherPool {
	return &SearcherPool{idx: idx}
}

// bump invalidates cached snapshot stats after a commit.
func (p *SearcherPool) bump() {
	p.gen.Add(1)
}

// Acquire returns a snapshot over the latest committed state.
func (p *SearcherPool) Acquire() (*Searcher, error) {
	if p.closed.Load() {
		return nil, errors.ClosedError("searcher acquire")
	}

	// The flight is keyed on the observed generation so an acquirer can
	// never be coalesced into a refresh computed for an older one.
	gen := p.gen.Load()
	v, err, _ := p.group.Do(strconv.FormatUint(gen, 10), func() (interface{}, error) {
		p.mu.Lock()
		defer p.mu.Unlock()

		if !p.primed || p.snapGen != gen {
			count, err := p.idx.DocCount()
			if err != nil {
				return nil, errors.IOError("refresh searcher", err)
			}
			p.snapCount = count
			p.snapGen = gen
			p.primed = true
		}
		return p.snapCount, nil
	})
	if err != nil {
		return nil, err
	}

	p.refs.Add(1)
	return &Searcher{
		pool:     p,
		idx:      p.idx,
		gen:      gen,
		liveDocs: v.(uint64),
	}, nil
}

// Release returns a snapshot to the pool. Releasing twice is a caller bug.
func (p *SearcherPool) Release(s *Searcher) error {
	if s == nil {
		return nil
	}
	if s.released.Swap(true) {
		return errors.InternalError("searcher released twice", nil)
	}
	p.refs.Add(-1)
	return nil
}

// Outstanding returns the number of unreleased snapshots.
func (p *SearcherPool) Outstanding() int64 {
	return p.refs.Load()
}

// Close stops further acquisition. Snapshots already handed out remain
// valid until the engine handle itself is closed.
func (p *SearcherPool) Close() error {
	p.closed.Store(true)
	return nil
}
