package research

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
	"github.com/sirupsen/logrus"

	"github.com/plasticbrokerage/l9/pkg/shared/logging"
)

// OpsNotifier posts job-completion and persistent-failure notices to a
// Slack channel. A zero-value WebhookURL disables it: NotifyJobSummary
// becomes a no-op so local/dev runs never need Slack configured.
type OpsNotifier struct {
	webhookURL string
	channel    string
	logger     *logrus.Logger
}

// NewOpsNotifier builds an OpsNotifier. webhookURL empty disables posting.
func NewOpsNotifier(webhookURL, channel string, logger *logrus.Logger) *OpsNotifier {
	return &OpsNotifier{webhookURL: webhookURL, channel: channel, logger: logger}
}

// NotifyJobSummary posts a best-effort notice summarizing a completed
// research job; failures to post are logged, never propagated, since a
// notification must never fail a job that already completed.
func (n *OpsNotifier) NotifyJobSummary(ctx context.Context, summary JobSummary) {
	if n.webhookURL == "" {
		return
	}

	text := fmt.Sprintf("research job %s: %d/%d bcps written, %d failed, timed_out=%t",
		summary.JobID, summary.BCPsWritten, summary.BCPsWritten+summary.FailedWrites, summary.FailedWrites, summary.TimedOut)
	if summary.FailedAt != "" {
		text = fmt.Sprintf("%s, aborted at stage %s", text, summary.FailedAt)
	}

	msg := &slack.WebhookMessage{Channel: n.channel, Text: text}
	if err := slack.PostWebhookContext(ctx, n.webhookURL, msg); err != nil {
		n.logger.WithFields(logging.NewFields().Component("research").Operation("notify_job_summary").
			Custom("job_id", summary.JobID).ToLogrus()).WithError(err).Warn("failed to post research job summary to slack")
	}
}
