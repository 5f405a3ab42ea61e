package research

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
)

func TestResearchJobRepository(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Research Job Repository Suite")
}

var _ = Describe("JobRepository", func() {
	var (
		ctx    context.Context
		repo   *JobRepository
		db     *sqlx.DB
		mock   sqlmock.Sqlmock
		logger *logrus.Logger
	)

	BeforeEach(func() {
		ctx = context.Background()
		logger = logrus.New()
		logger.SetLevel(logrus.FatalLevel)

		mockDB, mockSQL, err := sqlmock.New()
		Expect(err).ToNot(HaveOccurred())

		db = sqlx.NewDb(mockDB, "sqlmock")
		mock = mockSQL
		repo = NewJobRepository(db, logger)
	})

	AfterEach(func() {
		Expect(mock.ExpectationsWereMet()).To(Succeed())
	})

	Describe("Create", func() {
		It("inserts a pending row keyed by job id", func() {
			mock.ExpectExec("INSERT INTO research_jobs").
				WithArgs("job-1", "HDPE", sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(0, 1))

			err := repo.Create(ctx, "job-1", JobSpec{Polymer: "HDPE"})
			Expect(err).ToNot(HaveOccurred())
		})
	})

	Describe("Checkpoint", func() {
		It("advances current_pass and status to running", func() {
			mock.ExpectExec("UPDATE research_jobs SET status = 'running'").
				WithArgs("meta_plan", sqlmock.AnyArg(), "job-1").
				WillReturnResult(sqlmock.NewResult(0, 1))

			err := repo.Checkpoint(ctx, "job-1", "meta_plan", JobContext{Spec: JobSpec{JobID: "job-1"}})
			Expect(err).ToNot(HaveOccurred())
		})
	})

	Describe("Complete", func() {
		It("marks a clean job completed with no error", func() {
			mock.ExpectExec("UPDATE research_jobs SET status = \\$1").
				WithArgs("completed", sqlmock.AnyArg(), nil, "job-1").
				WillReturnResult(sqlmock.NewResult(0, 1))

			err := repo.Complete(ctx, "job-1", JobSummary{JobID: "job-1"}, JobContext{})
			Expect(err).ToNot(HaveOccurred())
		})

		It("marks a job that aborted mid-stage as failed with a reason", func() {
			mock.ExpectExec("UPDATE research_jobs SET status = \\$1").
				WithArgs("failed", sqlmock.AnyArg(), "aborted at stage extract", "job-1").
				WillReturnResult(sqlmock.NewResult(0, 1))

			err := repo.Complete(ctx, "job-1", JobSummary{JobID: "job-1", FailedAt: "extract"}, JobContext{FailedAt: "extract"})
			Expect(err).ToNot(HaveOccurred())
		})

		It("marks a timed-out job even when a failure stage was also recorded", func() {
			mock.ExpectExec("UPDATE research_jobs SET status = \\$1").
				WithArgs("timed_out", sqlmock.AnyArg(), nil, "job-1").
				WillReturnResult(sqlmock.NewResult(0, 1))

			err := repo.Complete(ctx, "job-1", JobSummary{JobID: "job-1", TimedOut: true, FailedAt: "retrieve"}, JobContext{TimedOut: true, FailedAt: "retrieve"})
			Expect(err).ToNot(HaveOccurred())
		})
	})

	Describe("Get", func() {
		It("returns nil, nil when no job exists with this id", func() {
			mock.ExpectQuery("SELECT job_id, status, target_key, current_pass, result, error, created_at, updated_at").
				WithArgs("missing").
				WillReturnRows(sqlmock.NewRows([]string{"job_id", "status", "target_key", "current_pass", "result", "error", "created_at", "updated_at"}))

			rec, err := repo.Get(ctx, "missing")
			Expect(err).ToNot(HaveOccurred())
			Expect(rec).To(BeNil())
		})
	})
})
