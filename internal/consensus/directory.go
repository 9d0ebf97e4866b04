// Package consensus implements C5, the heart of the system: fan-out to the
// provider adapters in internal/llmprovider, weighted-pairwise-cosine
// agreement scoring, and the optional chain-of-thought refinement loop.
// Grounded in shape on the standalone kube-zen-zen-claw consensus engine's
// Worker/WorkerResult/callWorkersParallel pattern (goroutine + WaitGroup +
// indexed results slice), adapted to this engine's per-call retry/backoff,
// shared deadline, and weighted scoring rules.
package consensus

import (
	"dev.consensus.engine/internal/llmprovider"
	"dev.consensus.engine/internal/models"
)

// Entry pairs a built, circuit-breaker-wrapped provider with the immutable
// descriptor it was constructed from, so C5 can read max_tokens/temperature
// defaults without a second lookup.
type Entry struct {
	Descriptor *models.ModelDescriptor
	Provider   llmprovider.LLMProvider
}

// Directory is the read-mostly model_id -> Entry table C5 dispatches
// against. Per spec.md §5's shared-resource policy it is mutated only by an
// atomic copy-on-write replace; Engine never holds a lock across a fan-out.
type Directory struct {
	entries map[string]Entry
}

// NewDirectory builds a Directory from already-constructed entries.
func NewDirectory(entries map[string]Entry) *Directory {
	return &Directory{entries: entries}
}

// Lookup returns the Entry for a model id.
func (d *Directory) Lookup(modelID string) (Entry, bool) {
	e, ok := d.entries[modelID]
	return e, ok
}

// Descriptors returns every descriptor in the directory, in no particular
// order; callers needing a stable order (e.g. GET /models) sort by ID.
func (d *Directory) Descriptors() []*models.ModelDescriptor {
	out := make([]*models.ModelDescriptor, 0, len(d.entries))
	for _, e := range d.entries {
		out = append(out, e.Descriptor)
	}
	return out
}
