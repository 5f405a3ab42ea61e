package reasoning

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func echoBlock(_ context.Context, input json.RawMessage) (json.RawMessage, error) {
	return input, nil
}

func failingBlock(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
	return nil, errors.New("boom")
}

func TestRegister_RejectsDuplicateName(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("a", DeterministicBlock{Fn: echoBlock}, true); err != nil {
		t.Fatalf("first Register() error = %v, want nil", err)
	}
	if err := r.Register("a", DeterministicBlock{Fn: echoBlock}, true); err == nil {
		t.Fatal("second Register() with the same name error = nil, want error")
	}
}

func TestRegister_RejectsEmptyName(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("", DeterministicBlock{Fn: echoBlock}, true); err == nil {
		t.Fatal("Register(\"\") error = nil, want error")
	}
}

func TestInvoke_RunsRegisteredBlock(t *testing.T) {
	r := NewRegistry()
	_ = r.Register("echo", DeterministicBlock{Fn: echoBlock}, true)

	out, err := r.Invoke(context.Background(), "echo", json.RawMessage(`{"x":1}`))
	if err != nil {
		t.Fatalf("Invoke() error = %v, want nil", err)
	}
	if string(out) != `{"x":1}` {
		t.Errorf("Invoke() = %s, want {\"x\":1}", out)
	}
}

func TestInvoke_UnknownNameErrors(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Invoke(context.Background(), "missing", nil); err == nil {
		t.Fatal("Invoke() for an unregistered name error = nil, want error")
	}
}

func TestInvoke_WrapsBlockError(t *testing.T) {
	r := NewRegistry()
	_ = r.Register("fails", DeterministicBlock{Fn: failingBlock}, true)

	if _, err := r.Invoke(context.Background(), "fails", nil); err == nil {
		t.Fatal("Invoke() for a failing block error = nil, want error")
	}
}

func TestInvokeSafe_RejectsUnsafeBlock(t *testing.T) {
	r := NewRegistry()
	_ = r.Register("strategic", DeterministicBlock{Fn: echoBlock}, false, "strategic")

	if _, err := r.InvokeSafe(context.Background(), "strategic", json.RawMessage(`{}`)); err == nil {
		t.Fatal("InvokeSafe() on an unsafe block error = nil, want error")
	}
}

func TestInvokeSafe_AllowsSafeBlock(t *testing.T) {
	r := NewRegistry()
	_ = r.Register("safe", DeterministicBlock{Fn: echoBlock}, true, "domain-safe")

	if _, err := r.InvokeSafe(context.Background(), "safe", json.RawMessage(`{}`)); err != nil {
		t.Errorf("InvokeSafe() on a safe block error = %v, want nil", err)
	}
}

func TestList_FiltersByTag(t *testing.T) {
	r := NewRegistry()
	_ = r.Register("a", DeterministicBlock{Fn: echoBlock}, true, "intake")
	_ = r.Register("b", DeterministicBlock{Fn: echoBlock}, true, "matching")

	got := r.List("intake")
	if len(got) != 1 || got[0] != "a" {
		t.Errorf("List(intake) = %v, want [a]", got)
	}
}

func TestListSafe_ExcludesUnsafeBlocksEvenWithMatchingTag(t *testing.T) {
	r := NewRegistry()
	_ = r.Register("strategic", DeterministicBlock{Fn: echoBlock}, false, "strategic")
	_ = r.Register("domain", DeterministicBlock{Fn: echoBlock}, true, "strategic")

	got := r.ListSafe("strategic")
	if len(got) != 1 || got[0] != "domain" {
		t.Errorf("ListSafe(strategic) = %v, want [domain] (unsafe block must be excluded)", got)
	}
}

func TestCompositeBlock_ChainsStepsInOrder(t *testing.T) {
	r := NewRegistry()
	_ = r.Register("upper", DeterministicBlock{Fn: func(_ context.Context, input json.RawMessage) (json.RawMessage, error) {
		var s string
		_ = json.Unmarshal(input, &s)
		return json.Marshal(s + "-upper")
	}}, true)
	_ = r.Register("lower", DeterministicBlock{Fn: func(_ context.Context, input json.RawMessage) (json.RawMessage, error) {
		var s string
		_ = json.Unmarshal(input, &s)
		return json.Marshal(s + "-lower")
	}}, true)

	composite := CompositeBlock{Registry: r, Steps: []string{"upper", "lower"}}
	out, err := composite.Invoke(context.Background(), json.RawMessage(`"start"`))
	if err != nil {
		t.Fatalf("CompositeBlock.Invoke() error = %v, want nil", err)
	}

	var got string
	_ = json.Unmarshal(out, &got)
	if got != "start-upper-lower" {
		t.Errorf("CompositeBlock.Invoke() = %q, want start-upper-lower", got)
	}
}

func TestCompositeBlock_StopsOnFirstError(t *testing.T) {
	r := NewRegistry()
	_ = r.Register("fails", DeterministicBlock{Fn: failingBlock}, true)

	composite := CompositeBlock{Registry: r, Steps: []string{"fails"}}
	if _, err := composite.Invoke(context.Background(), json.RawMessage(`{}`)); err == nil {
		t.Fatal("CompositeBlock.Invoke() with a failing step error = nil, want error")
	}
}

type stubLLMClient struct {
	response string
	err      error
}

func (c stubLLMClient) Complete(_ context.Context, _ string) (string, error) {
	return c.response, c.err
}

func TestLLMBlock_DecodesCompletion(t *testing.T) {
	block := LLMBlock{
		Client:         stubLLMClient{response: `{"answer":"42"}`},
		PromptTemplate: func(input json.RawMessage) (string, error) { return "prompt", nil },
		Decode:         func(completion string) (json.RawMessage, error) { return json.RawMessage(completion), nil },
	}

	out, err := block.Invoke(context.Background(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("LLMBlock.Invoke() error = %v, want nil", err)
	}
	if string(out) != `{"answer":"42"}` {
		t.Errorf("LLMBlock.Invoke() = %s, want {\"answer\":\"42\"}", out)
	}
}

func TestLLMBlock_RetriesOnceOnFailure(t *testing.T) {
	calls := 0
	client := stubLLMClientFunc(func(_ context.Context, _ string) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})
	block := LLMBlock{
		Client:         client,
		PromptTemplate: func(input json.RawMessage) (string, error) { return "prompt", nil },
		Decode:         func(completion string) (json.RawMessage, error) { return json.RawMessage(`"` + completion + `"`), nil },
	}

	out, err := block.Invoke(context.Background(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("LLMBlock.Invoke() error = %v, want nil", err)
	}
	if calls != 2 {
		t.Errorf("LLMBlock.Invoke() called Complete %d times, want 2 (one retry)", calls)
	}
	if string(out) != `"ok"` {
		t.Errorf("LLMBlock.Invoke() = %s, want \"ok\"", out)
	}
}

type stubLLMClientFunc func(ctx context.Context, prompt string) (string, error)

func (f stubLLMClientFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
