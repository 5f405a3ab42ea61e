package policy_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/plasticbrokerage/l9/pkg/policy"
)

func productionPolicyPath() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "config", "policies", "rule_gates.rego")
}

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

var _ = Describe("Evaluator", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Context("StartHotReload", func() {
		It("loads the production rule_gates bundle successfully", func() {
			evaluator := policy.NewEvaluator(policy.Config{PolicyPath: productionPolicyPath()}, discardLogger())
			Expect(evaluator.StartHotReload(ctx)).To(Succeed())
			Expect(evaluator.GetPolicyHash()).NotTo(BeEmpty())
		})

		It("fails fast on a syntactically invalid bundle", func() {
			tmp, err := os.CreateTemp("", "invalid-rule-gates-*.rego")
			Expect(err).NotTo(HaveOccurred())
			defer os.Remove(tmp.Name())
			_, err = tmp.WriteString("package rule_gates\n\ndecision := {\n")
			Expect(err).NotTo(HaveOccurred())
			Expect(tmp.Close()).To(Succeed())

			evaluator := policy.NewEvaluator(policy.Config{PolicyPath: tmp.Name()}, discardLogger())
			err = evaluator.StartHotReload(ctx)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("policy validation failed"))
		})

		It("fails fast when the bundle file is missing", func() {
			evaluator := policy.NewEvaluator(policy.Config{PolicyPath: "/nonexistent/rule_gates.rego"}, discardLogger())
			Expect(evaluator.StartHotReload(ctx)).To(HaveOccurred())
		})
	})

	Context("Evaluate", func() {
		var evaluator *policy.Evaluator

		BeforeEach(func() {
			evaluator = policy.NewEvaluator(policy.Config{PolicyPath: productionPolicyPath()}, discardLogger())
			Expect(evaluator.StartHotReload(ctx)).To(Succeed())
		})

		It("fails closed before the bundle has loaded", func() {
			unloaded := policy.NewEvaluator(policy.Config{PolicyPath: productionPolicyPath()}, discardLogger())
			result, err := unloaded.Evaluate(ctx, policy.GateInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Pass).To(BeFalse())
			Expect(result.Degraded).To(BeTrue())
		})

		It("passes a candidate whose gates are all unconstrained", func() {
			result, err := evaluator.Evaluate(ctx, policy.GateInput{
				Offering:  map[string]interface{}{"region": "US-Midwest"},
				Candidate: map[string]interface{}{},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Pass).To(BeTrue())
			Expect(result.Reasons).To(BeEmpty())
		})

		It("rejects an offering whose MFI falls outside the candidate's range", func() {
			result, err := evaluator.Evaluate(ctx, policy.GateInput{
				Offering: map[string]interface{}{
					"specification_observation": map[string]interface{}{"mfi_min": 50.0},
					"region":                     "US-Midwest",
				},
				Candidate: map[string]interface{}{
					"specification": map[string]interface{}{"mfi_min": 1.0, "mfi_max": 10.0},
				},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Pass).To(BeFalse())
			Expect(result.Reasons).To(ContainElement("mfi out of range"))
		})

		It("rejects a banned contaminant match even under the ppm ceiling", func() {
			result, err := evaluator.Evaluate(ctx, policy.GateInput{
				Offering: map[string]interface{}{
					"contamination_estimate": map[string]interface{}{
						"max_ppm": 5.0,
						"banned":  []interface{}{"pvc"},
					},
					"region": "US-Midwest",
				},
				Candidate: map[string]interface{}{
					"contamination": map[string]interface{}{
						"max_ppm": 10.0,
						"banned":  []interface{}{"pvc"},
					},
				},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Pass).To(BeFalse())
			Expect(result.Reasons).To(ContainElement(ContainSubstring("contamination")))
		})

		It("rejects an offering missing a required certification", func() {
			result, err := evaluator.Evaluate(ctx, policy.GateInput{
				Offering: map[string]interface{}{
					"certifications": []interface{}{"ISO9001"},
					"region":         "US-Midwest",
				},
				Candidate: map[string]interface{}{
					"certifications": []interface{}{"ISO9001", "FDA"},
				},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Pass).To(BeFalse())
			Expect(result.Reasons).To(ContainElement("missing required certification"))
		})

		It("rejects an offering outside the candidate's accepted geography", func() {
			result, err := evaluator.Evaluate(ctx, policy.GateInput{
				Offering: map[string]interface{}{"region": "EU-West"},
				Candidate: map[string]interface{}{
					"geography": map[string]interface{}{"regions": []interface{}{"US-Midwest", "US-South"}},
				},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Pass).To(BeFalse())
			Expect(result.Reasons).To(ContainElement("outside accepted geography"))
		})
	})
})
