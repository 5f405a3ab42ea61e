package research

import (
	"context"
	"testing"
)

func TestNewClient_Stub(t *testing.T) {
	client, err := NewClient("stub", "")
	if err != nil {
		t.Fatalf("NewClient(stub) error = %v, want nil", err)
	}
	if client.ClientType() != "stub" {
		t.Errorf("ClientType() = %q, want stub", client.ClientType())
	}

	raw, err := client.Execute(context.Background(), "find HDPE buyers")
	if err != nil {
		t.Fatalf("Execute() error = %v, want nil", err)
	}
	if len(raw) == 0 {
		t.Error("Execute() returned empty payload, want a synthetic record")
	}
}

func TestNewClient_UnknownTypeReturnsError(t *testing.T) {
	_, err := NewClient("carrier-pigeon", "")
	if err == nil {
		t.Fatal("NewClient(carrier-pigeon) error = nil, want an error for an unknown client type")
	}
}

func TestNewClient_PerplexityConstructsWithoutNetworkCall(t *testing.T) {
	client, err := NewClient("perplexity", "test-key")
	if err != nil {
		t.Fatalf("NewClient(perplexity) error = %v, want nil", err)
	}
	if client.ClientType() != "perplexity" {
		t.Errorf("ClientType() = %q, want perplexity", client.ClientType())
	}
}

func TestNewClient_AnthropicConstructsWithoutNetworkCall(t *testing.T) {
	client, err := NewClient("anthropic", "test-key")
	if err != nil {
		t.Fatalf("NewClient(anthropic) error = %v, want nil", err)
	}
	if client.ClientType() != "anthropic" {
		t.Errorf("ClientType() = %q, want anthropic", client.ClientType())
	}
}
