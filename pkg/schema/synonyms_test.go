package schema

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSynonymsAndNormalize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "synonyms.yaml")
	content := "blown film: film\nhdpe natural: hdpe\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write synonyms file: %v", err)
	}

	if err := LoadSynonyms(path); err != nil {
		t.Fatalf("LoadSynonyms() error = %v", err)
	}

	if got := NormalizeSynonyms("Blown Film"); got != "film" {
		t.Errorf("NormalizeSynonyms(Blown Film) = %q, want film", got)
	}
	if got := NormalizeSynonyms("unmapped term"); got != "unmapped term" {
		t.Errorf("NormalizeSynonyms(unmapped term) = %q, want unchanged passthrough", got)
	}
}

func TestLoadSynonymsMissingFile(t *testing.T) {
	if err := LoadSynonyms("/nonexistent/synonyms.yaml"); err == nil {
		t.Fatal("LoadSynonyms() error = nil, want error for missing file")
	}
}
