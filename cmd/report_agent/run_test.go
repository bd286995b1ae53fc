package main

import (
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/prospect-reports/internal/pipeline"
	"github.com/jonathan/prospect-reports/internal/types"
)

func TestProgressLine(t *testing.T) {
	job := &types.Job{ID: "doc-9", Record: types.InputRecord{CompanyName: "Acme"}}
	summary := types.Summary{Total: 4, Completed: 1, Failed: 1}

	withStatus := func(s types.JobStatus, reason string) *types.Job {
		c := *job
		c.Status = s
		c.FailureReason = reason
		return &c
	}

	tests := []struct {
		name string
		ev   pipeline.ProgressEvent
		want string
	}{
		{"queued", pipeline.ProgressEvent{Kind: pipeline.EventQueued, Job: withStatus(types.JobQueued, ""), Summary: summary}, ""},
		{"processing", pipeline.ProgressEvent{Kind: pipeline.EventStatus, Job: withStatus(types.JobProcessing, ""), Summary: summary},
			"[2/4] Acme: generating report"},
		{"completed", pipeline.ProgressEvent{Kind: pipeline.EventStatus, Job: withStatus(types.JobCompleted, ""), Summary: summary},
			"[2/4] Acme: report ready"},
		{"failed", pipeline.ProgressEvent{Kind: pipeline.EventStatus, Job: withStatus(types.JobFailed, "quota exceeded"), Summary: summary},
			"[2/4] Acme: failed: quota exceeded"},
		{"cancelled", pipeline.ProgressEvent{Kind: pipeline.EventStatus, Job: withStatus(types.JobFailed, "cancelled: context canceled"), Summary: summary},
			"[2/4] Acme: cancelled: context canceled"},
		{"persisted", pipeline.ProgressEvent{Kind: pipeline.EventPersisted, Job: withStatus(types.JobCompleted, ""), Summary: summary},
			"[2/4] Acme: saved as doc-9"},
		{"persist failed", pipeline.ProgressEvent{Kind: pipeline.EventPersistFailed, Job: withStatus(types.JobCompleted, ""),
			Message: "failed to save report: timeout", Summary: summary},
			"[2/4] Acme: failed to save report: timeout"},
		{"done", pipeline.ProgressEvent{Kind: pipeline.EventDone, Summary: summary}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, progressLine(tt.ev))
		})
	}
}

func TestRunCommand_MissingInput(t *testing.T) {
	binaryPath := getBinaryPath(t)

	output, err := exec.Command(binaryPath, "run").CombinedOutput()

	assert.Error(t, err)
	assert.Contains(t, string(output), `required flag(s) "input" not set`)
}

func TestRunCommand_MissingOwner(t *testing.T) {
	binaryPath := getBinaryPath(t)
	input := writeCSV(t, "Company_Name,Website_URL,Offer\nAcme,https://acme.example,SEO\n")

	cmd := exec.Command(binaryPath, "run", "--input", input)
	cmd.Env = []string{"PATH=/usr/bin:/bin"}
	output, err := cmd.CombinedOutput()

	assert.Error(t, err)
	assert.Contains(t, string(output), "REPORTS_OWNER_ID")
}

func TestRunCommand_MissingAPIKey(t *testing.T) {
	binaryPath := getBinaryPath(t)
	input := writeCSV(t, "Company_Name,Website_URL,Offer\nAcme,https://acme.example,SEO\n")

	cmd := exec.Command(binaryPath, "run", "--input", input, "--owner", "user-1")
	cmd.Env = []string{"PATH=/usr/bin:/bin"}
	output, err := cmd.CombinedOutput()

	assert.Error(t, err)
	assert.Contains(t, string(output), "GEMINI_API_KEY environment variable or --api-key flag is required")
}
