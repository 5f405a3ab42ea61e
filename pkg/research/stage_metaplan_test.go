package research

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
)

func testPipeline() *Pipeline {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return NewPipeline(PipelineConfig{Logger: logger})
}

func TestMetaPlan_OneQueryPerRegion(t *testing.T) {
	p := testPipeline()

	queries, err := p.metaPlan(context.Background(), JobSpec{
		Polymer: "HDPE", Regions: []string{"midwest", "southeast"}, MaxResults: 10,
	})
	if err != nil {
		t.Fatalf("metaPlan() error = %v, want nil", err)
	}
	if len(queries) != 2 {
		t.Fatalf("metaPlan() returned %d queries, want 2", len(queries))
	}
	if queries[0].Region != "midwest" || queries[1].Region != "southeast" {
		t.Errorf("metaPlan() regions = [%s, %s], want [midwest, southeast]", queries[0].Region, queries[1].Region)
	}
}

func TestMetaPlan_DefaultScopeWhenNoRegions(t *testing.T) {
	p := testPipeline()

	queries, err := p.metaPlan(context.Background(), JobSpec{Polymer: "PP"})
	if err != nil {
		t.Fatalf("metaPlan() error = %v, want nil", err)
	}
	if len(queries) != 1 || queries[0].Scope != "default" {
		t.Fatalf("metaPlan() with no regions = %+v, want one query scoped default", queries)
	}
	if queries[0].MaxResults != 20 {
		t.Errorf("metaPlan() MaxResults = %d, want default 20", queries[0].MaxResults)
	}
}

func TestMetaPlan_RejectsMissingPolymer(t *testing.T) {
	p := testPipeline()

	if _, err := p.metaPlan(context.Background(), JobSpec{}); err == nil {
		t.Fatal("metaPlan() with no polymer error = nil, want error")
	}
}
