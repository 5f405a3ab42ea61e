// Package policy compiles and evaluates the rule_gates Rego bundle the
// Matching Engine's rule_gate_check reasoning block runs every candidate
// through. Compiling once at startup (and hot-reloading on a change to
// the bundle file) means swapping gate behavior never requires a redeploy.
package policy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/rego"
	"github.com/sirupsen/logrus"
)

// Config points the Evaluator at a Rego bundle on disk.
type Config struct {
	PolicyPath string
	// Query is the fully-qualified rule to evaluate. Defaults to
	// "data.rule_gates.decision".
	Query string
	// ReloadInterval polls PolicyPath for a modification-time change and
	// recompiles when one is found. Zero disables hot-reload.
	ReloadInterval time.Duration
}

// GateInput is the typed shape handed to the rule_gates bundle: the
// offering under evaluation and the buyer candidate it is being gated
// against.
type GateInput struct {
	Offering  map[string]interface{} `json:"offering"`
	Candidate map[string]interface{} `json:"candidate"`
}

// GateResult is the rule_gates bundle's decision.
type GateResult struct {
	Pass     bool     `json:"pass"`
	Reasons  []string `json:"reasons"`
	Degraded bool     `json:"-"`
}

// Evaluator compiles a Rego bundle once and serves concurrent Evaluate
// calls against the compiled query, swapping it atomically on reload.
type Evaluator struct {
	cfg    Config
	logger *logrus.Logger

	mu    sync.RWMutex
	query *rego.PreparedEvalQuery
	hash  string

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewEvaluator builds an Evaluator. Call StartHotReload to compile the
// bundle for the first time; Evaluate fails closed until that succeeds.
func NewEvaluator(cfg Config, logger *logrus.Logger) *Evaluator {
	if cfg.Query == "" {
		cfg.Query = "data.rule_gates.decision"
	}
	return &Evaluator{cfg: cfg, logger: logger, stopCh: make(chan struct{})}
}

// StartHotReload compiles and validates the bundle, returning an error if
// the file is missing or fails to parse/compile — a fail-fast startup
// check, matching the rest of this module's "configuration errors abort
// startup" convention. If cfg.ReloadInterval is positive, it also starts a
// background poll loop that recompiles the bundle whenever its
// modification time advances; a bad edit during hot-reload is logged and
// the previously-compiled bundle keeps serving (graceful degradation,
// never a fail-closed outage from a bad hot-reload).
func (e *Evaluator) StartHotReload(ctx context.Context) error {
	if err := e.reload(ctx); err != nil {
		return fmt.Errorf("policy validation failed: %w", err)
	}
	if e.cfg.ReloadInterval > 0 {
		go e.pollLoop(ctx)
	}
	return nil
}

// Stop ends the background poll loop, if one was started.
func (e *Evaluator) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
}

// GetPolicyHash returns the sha256 hex digest of the currently-compiled
// bundle's source, empty until the first successful load.
func (e *Evaluator) GetPolicyHash() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.hash
}

func (e *Evaluator) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.ReloadInterval)
	defer ticker.Stop()

	var lastMod time.Time
	if info, err := os.Stat(e.cfg.PolicyPath); err == nil {
		lastMod = info.ModTime()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-ticker.C:
			info, err := os.Stat(e.cfg.PolicyPath)
			if err != nil || !info.ModTime().After(lastMod) {
				continue
			}
			if err := e.reload(ctx); err != nil {
				e.logger.WithError(err).Warn("rule gate policy hot-reload failed, keeping previous bundle")
				continue
			}
			lastMod = info.ModTime()
		}
	}
}

func (e *Evaluator) reload(ctx context.Context) error {
	data, err := os.ReadFile(e.cfg.PolicyPath)
	if err != nil {
		return err
	}

	prepared, err := rego.New(
		rego.Query(e.cfg.Query),
		rego.Module(e.cfg.PolicyPath, string(data)),
	).PrepareForEval(ctx)
	if err != nil {
		return err
	}

	sum := sha256.Sum256(data)

	e.mu.Lock()
	e.query = &prepared
	e.hash = hex.EncodeToString(sum[:])
	e.mu.Unlock()
	return nil
}

// Evaluate runs the compiled bundle against input. If the bundle has
// never successfully compiled, Evaluate fails closed (Pass: false,
// Degraded: true) rather than erroring, so a candidate is dropped with a
// diagnostic reason instead of aborting the whole ranking pass.
func (e *Evaluator) Evaluate(ctx context.Context, input GateInput) (GateResult, error) {
	e.mu.RLock()
	query := e.query
	e.mu.RUnlock()

	if query == nil {
		return GateResult{Pass: false, Reasons: []string{"rule gate policy not loaded"}, Degraded: true}, nil
	}

	regoInput, err := toRegoInput(input)
	if err != nil {
		return GateResult{}, err
	}

	results, err := query.Eval(ctx, rego.EvalInput(regoInput))
	if err != nil {
		return GateResult{}, fmt.Errorf("rule gate evaluation failed: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return GateResult{Pass: false, Reasons: []string{"rule gate policy produced no decision"}, Degraded: true}, nil
	}

	var out GateResult
	raw, err := json.Marshal(results[0].Expressions[0].Value)
	if err != nil {
		return GateResult{}, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return GateResult{}, fmt.Errorf("decode rule gate decision: %w", err)
	}
	return out, nil
}

func toRegoInput(input GateInput) (map[string]interface{}, error) {
	raw, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
