package store

import (
	"sync"

	"github.com/blevesearch/bleve/v2"

	"repoindex/internal/errors"
)

// Writer is the engine write path. Mutations accumulate in a batch that
// becomes visible to new searcher snapshots only on Commit; Rollback
// discards everything since the last commit.
type Writer struct {
	mu     sync.Mutex
	index  bleve.Index
	batch  *bleve.Batch
	pool   *SearcherPool
	closed bool
}

func newWriter(index bleve.Index, pool *SearcherPool) *Writer {
	return &Writer{
		index: index,
		batch: index.NewBatch(),
		pool:  pool,
	}
}

// Add stages a document. Documents are keyed by id: staging two documents
// with the same id keeps the latter.
func (w *Writer) Add(doc *Document) error {
	if doc == nil || doc.ID == "" {
		return errors.New(errors.ErrCodeInvalidInput, "document has no id", nil)
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.ClosedError("writer add")
	}
	if err := w.batch.Index(doc.ID, doc.indexFields()); err != nil {
		return errors.IOError("stage document "+doc.ID, err)
	}
	return nil
}

// Update stages a document under an explicit id, replacing any committed
// document with that id.
func (w *Writer) Update(id string, doc *Document) error {
	if id == "" {
		return errors.New(errors.ErrCodeInvalidInput, "update requires an id", nil)
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.ClosedError("writer update")
	}
	if err := w.batch.Index(id, doc.indexFields()); err != nil {
		return errors.IOError("stage document "+id, err)
	}
	return nil
}

// Delete stages removal of the document with the given id. Live artifact
// documents are keyed by their uinfo, so deleting a coordinate key removes
// the live entry.
func (w *Writer) Delete(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.ClosedError("writer delete")
	}
	w.batch.Delete(id)
	return nil
}

// Pending returns the number of staged operations.
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.batch.Size()
}

// Commit executes the staged batch and advances the searcher generation.
func (w *Writer) Commit() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.commitLocked()
}

func (w *Writer) commitLocked() error {
	if w.closed {
		return errors.ClosedError("writer commit")
	}
	if w.batch.Size() > 0 {
		if err := w.index.Batch(w.batch); err != nil {
			return errors.IOError("commit batch", err)
		}
		w.batch.Reset()
	}
	if w.pool != nil {
		w.pool.bump()
	}
	return nil
}

// Rollback discards all staged operations.
func (w *Writer) Rollback() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.ClosedError("writer rollback")
	}
	w.batch.Reset()
	return nil
}

// Close commits pending work and invalidates the writer. The engine
// handle itself is owned and closed by the Store.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	err := w.commitLocked()
	w.closed = true
	return err
}
