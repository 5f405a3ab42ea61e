package schema

import "testing"

func TestFromYAML_BCP_RoundTrip(t *testing.T) {
	text := []byte(`
company_name: Padnos
buyer_location: "Wyoming,MI"
material:
  polymer: HDPE
  forms:
    - pellet
`)
	payload, err := FromYAML(text, "bcp")
	if err != nil {
		t.Fatalf("FromYAML() error = %v", err)
	}
	bcp, ok := payload.(*BCP)
	if !ok {
		t.Fatalf("FromYAML() returned %T, want *BCP", payload)
	}
	if bcp.CompanyName != "Padnos" {
		t.Errorf("CompanyName = %q, want Padnos", bcp.CompanyName)
	}

	rendered, err := ToYAML(bcp)
	if err != nil {
		t.Fatalf("ToYAML() error = %v", err)
	}

	reparsed, err := FromYAML([]byte(rendered), "bcp")
	if err != nil {
		t.Fatalf("FromYAML(ToYAML(x)) error = %v", err)
	}
	if reparsed.IdentityKey() != bcp.IdentityKey() {
		t.Errorf("round trip changed identity: %q vs %q", reparsed.IdentityKey(), bcp.IdentityKey())
	}
}

func TestFromYAML_UnknownEdgeType(t *testing.T) {
	_, err := FromYAML([]byte("company_name: X"), "carrier_pigeon")
	if err == nil {
		t.Fatal("FromYAML() error = nil, want error for unknown edge_type")
	}
}
