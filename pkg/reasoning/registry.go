package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	sharederrors "github.com/plasticbrokerage/l9/pkg/shared/errors"
)

// tracer is the package-level OpenTelemetry tracer every invoke() span is
// created from, named after the registry per spec.md §4.6 "emits tracing
// events".
var tracer = otel.Tracer("plasticbrokerage.l9.reasoning")

// entry is a registered block plus its registration metadata.
type entry struct {
	block Block
	tags  []string
	safe  bool
}

// Registry is the Reasoning Block Registry: a name -> Block map with tag
// indexing and a domain-safe exposure gate. The zero value is usable.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: map[string]entry{}}
}

// Register adds a block under name with the given tags. safe marks the
// block as exposable to PlasticOS via InvokeSafe/ListSafe; strategic
// blocks (world model updates, BCP creation) must be registered with
// safe=false so InvokeSafe rejects them even if a caller tries.
func (r *Registry) Register(name string, block Block, safe bool, tags ...string) error {
	if name == "" {
		return sharederrors.ValidationError("name", "reasoning block name must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; exists {
		return sharederrors.ValidationError("name", fmt.Sprintf("reasoning block %q is already registered", name))
	}
	r.entries[name] = entry{block: block, tags: tags, safe: safe}
	return nil
}

// Invoke runs the named block, wrapping the call in an OpenTelemetry span
// carrying input/output byte sizes and the block's tag list as attributes.
func (r *Registry) Invoke(ctx context.Context, name string, input json.RawMessage) (json.RawMessage, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, sharederrors.ReasoningBlockError(name, fmt.Errorf("no block registered under this name"))
	}

	ctx, span := tracer.Start(ctx, "reasoning."+name, trace.WithAttributes(
		attribute.Int("reasoning.input_bytes", len(input)),
		attribute.StringSlice("reasoning.tags", e.tags),
	))
	defer span.End()

	output, err := e.block.Invoke(ctx, input)
	if err != nil {
		span.RecordError(err)
		return nil, sharederrors.ReasoningBlockError(name, err)
	}
	span.SetAttributes(attribute.Int("reasoning.output_bytes", len(output)))
	return output, nil
}

// InvokeSafe is Invoke with the domain-safe gate enforced: it refuses to
// run a block that was not registered with safe=true, so PlasticOS-facing
// callers that go through it can never reach a strategic block regardless
// of what name they pass.
func (r *Registry) InvokeSafe(ctx context.Context, name string, input json.RawMessage) (json.RawMessage, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, sharederrors.ReasoningBlockError(name, fmt.Errorf("no block registered under this name"))
	}
	if !e.safe {
		return nil, sharederrors.AuthorizationError("invoke", "reasoning block "+name)
	}
	return r.Invoke(ctx, name, input)
}

// List returns every block name registered under tag, in no particular
// order.
func (r *Registry) List(tag string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for name, e := range r.entries {
		if hasTag(e.tags, tag) {
			names = append(names, name)
		}
	}
	return names
}

// ListSafe is List restricted to blocks registered with safe=true.
func (r *Registry) ListSafe(tag string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for name, e := range r.entries {
		if e.safe && hasTag(e.tags, tag) {
			names = append(names, name)
		}
	}
	return names
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
