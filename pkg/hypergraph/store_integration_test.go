//go:build integration

package hypergraph_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/plasticbrokerage/l9/internal/database/migrations"
	"github.com/plasticbrokerage/l9/pkg/hypergraph"
)

func TestHypergraphIntegration(t *testing.T) {
	if os.Getenv("POSTGRES_HOST") == "" {
		t.Skip("POSTGRES_HOST not set; skipping hypergraph integration suite")
	}
	RegisterFailHandler(Fail)
	RunSpecs(t, "Hypergraph Store Integration Suite")
}

var _ = Describe("Hyperedge store against a live Postgres+pgvector instance", Ordered, func() {
	var (
		pool   *pgxpool.Pool
		store  *hypergraph.Store
		logger *logrus.Logger
	)

	BeforeAll(func() {
		host := os.Getenv("POSTGRES_HOST")
		port := os.Getenv("POSTGRES_PORT")
		if port == "" {
			port = "5432"
		}
		dsn := fmt.Sprintf("postgres://l9:l9@%s:%s/plastics_test?sslmode=disable", host, port)

		sqlDB, err := sql.Open("pgx", dsn)
		Expect(err).ToNot(HaveOccurred())
		Expect(migrations.Up(sqlDB)).To(Succeed())
		Expect(sqlDB.Close()).To(Succeed())

		pool, err = pgxpool.New(context.Background(), dsn)
		Expect(err).ToNot(HaveOccurred())

		logger = logrus.New()
		logger.SetLevel(logrus.FatalLevel)
		store = hypergraph.New(pool, &hypergraph.StubEmbeddingProvider{Dim: 8}, nil, logger)
	})

	AfterAll(func() {
		pool.Close()
	})

	It("bumps version and returns the written payload on read-after-write", func() {
		payload, err := json.Marshal(map[string]interface{}{
			"company_name":   "Padnos",
			"buyer_location": "Wyoming,MI",
			"material":       map[string]interface{}{"polymer": "HDPE"},
		})
		Expect(err).ToNot(HaveOccurred())

		receipt, err := store.WriteHyperedge(context.Background(), "bcp", "Padnos|Wyoming,MI|HDPE", payload, "Padnos HDPE buyer", "stub-model")
		Expect(err).ToNot(HaveOccurred())
		Expect(receipt.Version).To(Equal(1))
		Expect(receipt.EmbeddingStored).To(BeTrue())

		edge, err := store.ReadHyperedge(context.Background(), "bcp", "Padnos|Wyoming,MI|HDPE")
		Expect(err).ToNot(HaveOccurred())
		Expect(edge).ToNot(BeNil())
		Expect(edge.Version).To(Equal(1))

		_, err = store.WriteHyperedge(context.Background(), "bcp", "Padnos|Wyoming,MI|HDPE", payload, "Padnos HDPE buyer", "stub-model")
		Expect(err).ToNot(HaveOccurred())

		edge, err = store.ReadHyperedge(context.Background(), "bcp", "Padnos|Wyoming,MI|HDPE")
		Expect(err).ToNot(HaveOccurred())
		Expect(edge.Version).To(Equal(2), "re-writing the same (edge_type, key) should bump version")
	})

	It("returns nearest neighbors ordered by cosine similarity", func() {
		payload, err := json.Marshal(map[string]interface{}{
			"company_name": "TestCo", "buyer_location": "X", "material": map[string]interface{}{"polymer": "PP"},
		})
		Expect(err).ToNot(HaveOccurred())
		_, err = store.WriteHyperedge(context.Background(), "bcp", "TestCo|X|PP", payload, "TestCo PP buyer", "stub-model")
		Expect(err).ToNot(HaveOccurred())

		results, err := store.TopKByVector(context.Background(), "bcp",
			[]float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8}, "stub-model", 5, hypergraph.Filters{})
		Expect(err).ToNot(HaveOccurred())
		Expect(results).ToNot(BeEmpty())
	})

	It("asynchronously projects a BCP hyperedge into the property graph", func() {
		projection := hypergraph.NewProjectionWorker(store, 16, logger)
		projectedStore := hypergraph.New(pool, &hypergraph.StubEmbeddingProvider{Dim: 8}, projection, logger)

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		go projection.Run(ctx)

		payload, err := json.Marshal(map[string]interface{}{
			"company_name": "ReconcileCo", "buyer_location": "Y", "material": map[string]interface{}{"polymer": "PET"},
		})
		Expect(err).ToNot(HaveOccurred())
		_, err = projectedStore.WriteHyperedge(context.Background(), "bcp", "ReconcileCo|Y|PET", payload, "ReconcileCo PET buyer", "stub-model")
		Expect(err).ToNot(HaveOccurred())

		Eventually(func() []hypergraph.Match {
			matches, err := store.QueryGraphPattern(context.Background(), hypergraph.GraphPattern{
				StartLabel:    "Buyer",
				Relationships: []string{"HAS_BCP"},
				MaxDepth:      2,
			})
			Expect(err).ToNot(HaveOccurred())
			return matches
		}, "2s", "100ms").ShouldNot(BeEmpty(), "projection worker should have merged a Buyer->Hyperedge_BCP edge")
	})

	It("reconciliation re-enqueues a hyperedge whose projection is missing", func() {
		projection := hypergraph.NewProjectionWorker(store, 16, logger)
		job := hypergraph.NewReconciliationJob(store, projection, 50*time.Millisecond, logger)

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		go projection.Run(ctx)
		go job.Run(ctx)

		payload, err := json.Marshal(map[string]interface{}{
			"company_name": "ReconcileOnly", "buyer_location": "Z", "material": map[string]interface{}{"polymer": "LDPE"},
		})
		Expect(err).ToNot(HaveOccurred())
		_, err = store.WriteHyperedge(context.Background(), "bcp", "ReconcileOnly|Z|LDPE", payload, "ReconcileOnly LDPE buyer", "stub-model")
		Expect(err).ToNot(HaveOccurred())

		Eventually(func() []hypergraph.Match {
			matches, err := store.QueryGraphPattern(context.Background(), hypergraph.GraphPattern{
				StartLabel:    "Buyer",
				StartFilters:  map[string]string{"company_name": "ReconcileOnly"},
				Relationships: []string{"HAS_BCP"},
				MaxDepth:      2,
			})
			Expect(err).ToNot(HaveOccurred())
			return matches
		}, "2s", "100ms").ShouldNot(BeEmpty())
	})

	It("finds transaction hyperedges linking a supplier and buyer key pair", func() {
		payload, err := json.Marshal(map[string]interface{}{
			"transaction_id": "tx-1", "supplier_key": "SupplierX", "buyer_key": "Padnos|Wyoming,MI|HDPE",
			"material": map[string]interface{}{"polymer": "HDPE"},
		})
		Expect(err).ToNot(HaveOccurred())
		_, err = store.WriteHyperedge(context.Background(), "transaction", "tx-1", payload, "", "stub-model")
		Expect(err).ToNot(HaveOccurred())

		results, err := store.TransactionsBetween(context.Background(), "SupplierX", "Padnos|Wyoming,MI|HDPE")
		Expect(err).ToNot(HaveOccurred())
		Expect(results).To(HaveLen(1))
		Expect(results[0].Key).To(Equal("tx-1"))

		none, err := store.TransactionsBetween(context.Background(), "SupplierX", "NoSuchBuyer")
		Expect(err).ToNot(HaveOccurred())
		Expect(none).To(BeEmpty())
	})
})
