package query

import (
	"fmt"

	"github.com/menmos/menmos/pkg/bitvec"
	"github.com/menmos/menmos/pkg/docid"
	"github.com/menmos/menmos/pkg/metadata"
	"github.com/menmos/menmos/pkg/metrics"
	"github.com/menmos/menmos/pkg/types"
)

// Engine ties an Evaluator to the stores needed for result projection
// (doc-idx to blob-id reversal, BlobInfo loading) and faceting.
type Engine struct {
	eval   *Evaluator
	meta   *metadata.Store
	docids *docid.Store
}

// NewEngine returns an Engine serving queries against meta and docids.
func NewEngine(meta *metadata.Store, docids *docid.Store) *Engine {
	return &Engine{eval: NewEvaluator(meta), meta: meta, docids: docids}
}

// Run evaluates expr for user, projects the window
// [from, from+size), and optionally computes facets over the
// full (unwindowed) result set.
func (e *Engine) Run(expr Expr, user string, from, size int, facets bool) (*types.QueryResponse, error) {
	timer := metrics.NewTimer()

	result, err := e.eval.EvaluateForUser(expr, user)
	if err != nil {
		return nil, fmt.Errorf("query: evaluate: %w", err)
	}

	resp, err := e.project(result, from, size)
	if err != nil {
		return nil, err
	}

	if facets {
		f, err := e.facets(result)
		if err != nil {
			return nil, err
		}
		resp.Facets = f
	}

	metrics.QueriesTotal.Inc()
	timer.ObserveDuration(metrics.QueryDuration)
	metrics.QueryResultHits.Observe(float64(len(resp.Hits)))
	return resp, nil
}

// project implements spec.md §4.G's result projection: popcount yields
// total, the first `from` set bits are skipped, and up to `size` of
// the remaining bits are walked and reverse-mapped. A bit whose
// reverse lookup fails is skipped with a warning: it still counts in
// total and takes its slot in the window, but yields no hit and the
// window is not refilled.
func (e *Engine) project(result *bitvec.Bitvector, from, size int) (*types.QueryResponse, error) {
	arr := result.ToArray()
	total := uint64(len(arr))

	if from < 0 {
		from = 0
	}
	if from > len(arr) {
		from = len(arr)
	}
	end := from + size
	if size < 0 || end > len(arr) {
		end = len(arr)
	}
	window := arr[from:end]

	hits := make([]types.Hit, 0, len(window))
	for _, idx := range window {
		blobID, ok, err := e.docids.Resolve(idx)
		if err != nil {
			return nil, fmt.Errorf("query: resolve doc index %d: %w", idx, err)
		}
		if !ok {
			queryLog.Warn().Uint32("doc_idx", idx).Msg("query result bit has no reverse mapping, skipping")
			continue
		}

		info, err := e.meta.Get(idx)
		if err != nil {
			return nil, fmt.Errorf("query: load blob info for %q: %w", blobID, err)
		}
		if info == nil {
			queryLog.Warn().Str("blob_id", blobID).Msg("query result bit has no metadata, skipping")
			continue
		}

		hits = append(hits, types.Hit{ID: blobID, Meta: info})
	}

	return &types.QueryResponse{
		Count: len(hits),
		Total: total,
		Hits:  hits,
	}, nil
}

// facets computes the tag/field breakdown over the full result set,
// not the windowed page: spec.md pins faceting to the complete
// bitvector regardless of from/size.
func (e *Engine) facets(result *bitvec.Bitvector) (*types.Facets, error) {
	tags, err := e.meta.ListTags(result)
	if err != nil {
		return nil, fmt.Errorf("query: list tags: %w", err)
	}
	fields, err := e.meta.ListFields("", result)
	if err != nil {
		return nil, fmt.Errorf("query: list fields: %w", err)
	}
	return &types.Facets{Tags: tags, Fields: fields}, nil
}
