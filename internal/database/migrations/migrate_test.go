package migrations

import (
	"strings"
	"testing"
)

func TestEmbeddedMigrationsHaveGooseMarkers(t *testing.T) {
	entries, err := migrationFiles.ReadDir("sql")
	if err != nil {
		t.Fatalf("read embedded sql dir: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected at least one embedded migration file")
	}

	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		data, err := migrationFiles.ReadFile("sql/" + entry.Name())
		if err != nil {
			t.Fatalf("read %s: %v", entry.Name(), err)
		}
		content := string(data)
		if !strings.Contains(content, "-- +goose Up") {
			t.Errorf("%s missing '-- +goose Up' marker", entry.Name())
		}
		if !strings.Contains(content, "-- +goose Down") {
			t.Errorf("%s missing '-- +goose Down' marker", entry.Name())
		}
	}
}

func TestExpectedTablesArePresent(t *testing.T) {
	wantTables := []string{
		"hyperedges",
		"embeddings",
		"hyperedge_log",
		"graph_nodes",
		"graph_edges",
		"world_model_aggregates",
		"research_jobs",
	}

	entries, err := migrationFiles.ReadDir("sql")
	if err != nil {
		t.Fatalf("read embedded sql dir: %v", err)
	}

	var all strings.Builder
	for _, entry := range entries {
		data, err := migrationFiles.ReadFile("sql/" + entry.Name())
		if err != nil {
			t.Fatalf("read %s: %v", entry.Name(), err)
		}
		all.Write(data)
	}
	combined := all.String()

	for _, table := range wantTables {
		if !strings.Contains(combined, "CREATE TABLE IF NOT EXISTS "+table) {
			t.Errorf("expected a CREATE TABLE for %q across embedded migrations", table)
		}
	}
}
