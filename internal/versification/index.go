package versification

import (
	"sort"
	"sync"

	"github.com/tanakhcc/critic-engine/core/errors"
)

// anchorRef is one occurrence of an anchor id.
type anchorRef struct {
	DocumentID string
	Location   string
}

// DocAnchors collects the anchor ids of one document. It is filled while
// that document is validated and merged into the corpus Index afterwards,
// so no locking is needed here.
type DocAnchors struct {
	DocumentID string
	ids        map[string][]string // id -> locations within this document
}

// NewDocAnchors creates an empty per-document anchor set.
func NewDocAnchors(documentID string) *DocAnchors {
	return &DocAnchors{DocumentID: documentID, ids: make(map[string][]string)}
}

// Add records one anchor occurrence.
func (d *DocAnchors) Add(id, location string) {
	d.ids[id] = append(d.ids[id], location)
}

// Each calls fn for every recorded occurrence.
func (d *DocAnchors) Each(fn func(id, location string)) {
	for id, locs := range d.ids {
		for _, loc := range locs {
			fn(id, loc)
		}
	}
}

// Index is the corpus-wide anchor-id index. Documents are validated
// concurrently; their anchor sets are merged here as a reduction step,
// the only point of shared state in a run.
type Index struct {
	mu  sync.Mutex
	ids map[string][]anchorRef
}

// NewIndex creates an empty corpus index.
func NewIndex() *Index {
	return &Index{ids: make(map[string][]anchorRef)}
}

// Merge folds one document's anchors into the index and returns a
// ReferenceError per id that now has more than one occurrence. Anchor ids
// are collation keys, so a collision is fatal for the colliding documents.
func (ix *Index) Merge(d *DocAnchors) []error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	var errs []error
	for id, locs := range d.ids {
		for _, loc := range locs {
			ix.ids[id] = append(ix.ids[id], anchorRef{DocumentID: d.DocumentID, Location: loc})
		}
		if refs := ix.ids[id]; len(refs) > 1 {
			all := make([]string, len(refs))
			for i, ref := range refs {
				all[i] = ref.DocumentID + ":" + ref.Location
			}
			errs = append(errs, errors.NewReference(RuleAnchorConflict, id,
				"anchor id occurs more than once in the corpus", all...))
		}
	}
	sort.Slice(errs, func(i, j int) bool {
		return errs[i].Error() < errs[j].Error()
	})
	return errs
}

// Len returns the number of distinct anchor ids seen so far.
func (ix *Index) Len() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return len(ix.ids)
}

// Lookup returns the documents an anchor id occurs in.
func (ix *Index) Lookup(id string) []string {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	docs := make([]string, 0, len(ix.ids[id]))
	for _, ref := range ix.ids[id] {
		docs = append(docs, ref.DocumentID)
	}
	return docs
}
