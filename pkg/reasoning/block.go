// Package reasoning implements the Reasoning Block Registry: named,
// composable reasoning steps invoked by the Research DAG and Matching
// Engine at specific hooks, so the strategic reasoning chain owned by the
// Research Factory is operationalized without hard-coding it into every
// pipeline stage.
package reasoning

import (
	"context"
	"encoding/json"
)

// Block is the single interface every reasoning step implements: typed
// JSON in, typed JSON out, a single error return. Deterministic, LLM, and
// composite blocks are all Blocks; callers never need to know which.
type Block interface {
	Invoke(ctx context.Context, input json.RawMessage) (json.RawMessage, error)
}

// DeterministicFunc is a pure-function reasoning step: completeness
// scoring, range-overlap checks, synonym normalization. It never blocks on
// I/O and never fails except on malformed input.
type DeterministicFunc func(ctx context.Context, input json.RawMessage) (json.RawMessage, error)

// DeterministicBlock adapts a DeterministicFunc to Block.
type DeterministicBlock struct {
	Fn DeterministicFunc
}

// Invoke implements Block.
func (b DeterministicBlock) Invoke(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	return b.Fn(ctx, input)
}

// LLMClient is the minimal interface an LLM-backed block needs: a single
// structured completion call. pkg/research's ResearchClient implementations
// satisfy a richer interface; LLMBlock only needs this much.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// LLMBlock sends a rendered prompt to an LLMClient and decodes the
// response into the block's typed output. PromptTemplate receives the raw
// input JSON and must render a schema-constrained prompt; Decode parses
// the raw completion text back into the typed output JSON.
type LLMBlock struct {
	Client         LLMClient
	PromptTemplate func(input json.RawMessage) (string, error)
	Decode         func(completion string) (json.RawMessage, error)
}

// Invoke implements Block. A single retry with the same prompt covers
// transient completion failures; persistent LLM failures are the calling
// stage's responsibility to catch and fall back from (spec.md §4.6
// "persistent failures are logged and the stage continues without the
// block's contribution").
func (b LLMBlock) Invoke(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	prompt, err := b.PromptTemplate(input)
	if err != nil {
		return nil, err
	}

	var completion string
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		completion, lastErr = b.Client.Complete(ctx, prompt)
		if lastErr == nil {
			break
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}

	return b.Decode(completion)
}

// CompositeBlock runs an ordered sequence of named blocks, feeding each
// block's output as the next block's input, used to express multi-step
// reasoning chains (e.g. strategic_decomposition).
type CompositeBlock struct {
	Registry *Registry
	Steps    []string
}

// Invoke implements Block: runs Steps in order via the registry, chaining
// output to input, and fails closed on the first step's error.
func (b CompositeBlock) Invoke(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	current := input
	for _, step := range b.Steps {
		out, err := b.Registry.Invoke(ctx, step, current)
		if err != nil {
			return nil, err
		}
		current = out
	}
	return current, nil
}
