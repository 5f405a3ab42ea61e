package schema

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	synonymsMu    sync.RWMutex
	synonymsTable map[string]string
)

// LoadSynonyms reads a YAML mapping of material synonyms (e.g. "blown
// film": "film") and holds it immutably in memory. It is intended to be
// called once at startup; later calls replace the table atomically.
func LoadSynonyms(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read synonyms file: %w", err)
	}

	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse synonyms file: %w", err)
	}

	normalized := make(map[string]string, len(raw))
	for k, v := range raw {
		normalized[strings.ToLower(strings.TrimSpace(k))] = v
	}

	synonymsMu.Lock()
	synonymsTable = normalized
	synonymsMu.Unlock()
	return nil
}

// NormalizeSynonyms maps material to its canonical term via the loaded
// synonym table, e.g. "blown film" -> "film". Terms with no entry pass
// through unchanged, never silently dropped.
func NormalizeSynonyms(material string) string {
	synonymsMu.RLock()
	defer synonymsMu.RUnlock()

	key := strings.ToLower(strings.TrimSpace(material))
	if canonical, ok := synonymsTable[key]; ok {
		return canonical
	}
	return material
}
