package reasoning

import (
	"os"
	"testing"

	"github.com/plasticbrokerage/l9/pkg/schema"
)

// TestMain loads the material synonym table before any test runs, since
// NormalizeSynonyms reads from a package-level table populated once at
// startup rather than per-call.
func TestMain(m *testing.M) {
	_ = schema.LoadSynonyms("../../config/synonyms.yaml")
	os.Exit(m.Run())
}
