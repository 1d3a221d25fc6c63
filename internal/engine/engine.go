// Package engine ties the validators and resolvers together. Validate is a
// pure function over one parsed document; Batch runs many documents
// concurrently and merges their anchor sets as a final reduction step.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tanakhcc/critic-engine/core/document"
	"github.com/tanakhcc/critic-engine/internal/abbrev"
	"github.com/tanakhcc/critic-engine/internal/corrections"
	"github.com/tanakhcc/critic-engine/internal/diag"
	"github.com/tanakhcc/critic-engine/internal/lang"
	"github.com/tanakhcc/critic-engine/internal/logging"
	"github.com/tanakhcc/critic-engine/internal/structure"
	"github.com/tanakhcc/critic-engine/internal/versification"
)

// Options configures a validation run.
type Options struct {
	// Layout is the file layout mode the documents claim to follow.
	Layout structure.LayoutMode

	// Registry is the versification scheme registry. Nil means the
	// standard registry.
	Registry *versification.Registry

	// Concurrency bounds parallel document processing in Batch. Zero or
	// negative means one worker per document.
	Concurrency int
}

func (o Options) registry() *versification.Registry {
	if o.Registry != nil {
		return o.Registry
	}
	return versification.NewRegistry()
}

// Result is everything the engine derives from one document. The
// diagnostic list is complete even when the document is rejected, and
// resolved tables hold whatever could still be derived.
type Result struct {
	DocumentID  string            `json:"document"`
	Rejected    bool              `json:"rejected"`
	Diagnostics []diag.Diagnostic `json:"diagnostics"`

	// Versions maps each corrected passage to its ordered version states.
	Versions []*corrections.Resolved `json:"versions,omitempty"`

	// Abbreviations maps run ids to their reconstructed forms.
	Abbreviations map[string]abbrev.Forms `json:"abbreviations,omitempty"`

	// Languages is the effective language of every leaf text node.
	Languages []lang.LeafLang `json:"languages,omitempty"`

	// Anchors is this document's anchor set, merged into the corpus index
	// by Batch. Not serialized; collisions surface as diagnostics.
	Anchors *versification.DocAnchors `json:"-"`
}

// Errors and Warnings count diagnostics by severity.
func (res *Result) Errors() int   { return res.count(diag.SeverityError) }
func (res *Result) Warnings() int { return res.count(diag.SeverityWarning) }

func (res *Result) count(sev diag.Severity) int {
	n := 0
	for _, d := range res.Diagnostics {
		if d.Severity == sev {
			n++
		}
	}
	return n
}

// Validate checks one document and resolves its correction, abbreviation,
// and language tables. It touches no shared state: anchor uniqueness
// beyond this document is left to the batch reduction.
func Validate(doc *document.Document, opts Options) *Result {
	r := diag.New()
	res := &Result{
		DocumentID:    doc.ID,
		Abbreviations: make(map[string]abbrev.Forms),
		Anchors:       versification.NewDocAnchors(doc.ID),
	}

	structure.New(opts.Layout).Validate(doc, r)
	res.Languages = lang.New().Resolve(doc, r)

	anchors := versification.NewValidator(opts.registry())
	for _, ln := range doc.Lines() {
		for _, b := range ln.Blocks {
			switch blk := b.(type) {
			case *document.Anchor:
				anchors.Validate(blk, res.Anchors, r)

			case *document.Abbreviation:
				forms, err := abbrev.Reconstruct(blk.Runs)
				if err != nil {
					r.Report(err)
					continue
				}
				res.Abbreviations[blk.RunID] = forms

			case *document.Correction:
				in, err := corrections.FromCorrection(blk)
				if err != nil {
					r.Report(err)
					continue
				}
				resolved, err := corrections.Resolve(in)
				if err != nil {
					r.Report(err)
					continue
				}
				res.Versions = append(res.Versions, resolved)
			}
		}
	}

	res.Diagnostics = r.Diagnostics()
	res.Rejected = r.Fatal()
	return res
}

// Batch validates documents concurrently. Each document fails
// independently; a rejected document never aborts the run. The only shared
// state is the corpus anchor index, folded in document order after all
// workers finish so collision diagnostics land deterministically on the
// later document.
type Batch struct {
	Opts Options
}

// Run processes the documents and returns one result per input, in input
// order, plus the populated corpus anchor index. Cancellation aborts the
// run: in-flight documents are awaited, then ctx's error is returned with
// no results.
func (b *Batch) Run(ctx context.Context, docs []*document.Document) ([]*Result, *versification.Index, error) {
	runID := uuid.NewString()
	start := time.Now()

	workers := b.Opts.Concurrency
	if workers <= 0 || workers > len(docs) {
		workers = len(docs)
	}
	if workers == 0 {
		workers = 1
	}

	results := make([]*Result, len(docs))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return nil, nil, err
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(i int, doc *document.Document) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = Validate(doc, b.Opts)
		}(i, doc)
	}
	wg.Wait()

	// Reduction step: fold per-document anchor sets into the corpus index.
	index := versification.NewIndex()
	rejected := 0
	for _, res := range results {
		for _, err := range index.Merge(res.Anchors) {
			r := diag.New()
			r.Report(err)
			res.Diagnostics = append(res.Diagnostics, r.Diagnostics()...)
			res.Rejected = true
		}
		if res.Rejected {
			rejected++
		}
		logging.DocumentValidated(runID, res.DocumentID, res.Rejected,
			res.Errors(), res.Warnings())
	}

	logging.BatchCompleted(runID, len(docs), rejected, time.Since(start))
	return results, index, nil
}
