package write

import (
	"context"
	"fmt"

	"github.com/cuemby/cdf-extractor-utils/pkg/cdf"
	"github.com/cuemby/cdf-extractor-utils/pkg/metrics"
)

// ValidateLogin checks that the configured credentials are accepted by the
// cloud and belong to the expected project (spec §6's login/status check,
// typically run once at extractor startup). It doubles as the façade's
// "cloud" health check: a reachable cloud registers healthy here regardless
// of the login outcome, while a transport failure registers unhealthy.
func (f *Facade) ValidateLogin(ctx context.Context, expectedProject string) (*cdf.LoginStatus, error) {
	status, err := f.Resources.Login(ctx)
	if err != nil {
		metrics.UpdateComponent("cloud", false, err.Error())
		return nil, err
	}
	metrics.UpdateComponent("cloud", true, "")
	if !status.LoggedIn {
		return status, fmt.Errorf("write: credentials rejected for project %q", expectedProject)
	}
	if expectedProject != "" && status.Project != expectedProject {
		return status, fmt.Errorf("write: credentials valid but scoped to project %q, not %q", status.Project, expectedProject)
	}
	return status, nil
}

// CreateExtractionPipelineRun records one run of an extraction pipeline
// (spec §6's supplemented extraction-pipeline heartbeat surface).
func (f *Facade) CreateExtractionPipelineRun(ctx context.Context, run cdf.ExtractionPipelineRun) error {
	return f.Resources.ExtractionPipelines().CreateRun(ctx, run)
}

// RetrieveExtractionPipeline fetches a pipeline's current metadata,
// including its LastSeen heartbeat timestamp.
func (f *Facade) RetrieveExtractionPipeline(ctx context.Context, pipelineID string) (*cdf.ExtractionPipeline, error) {
	return f.Resources.ExtractionPipelines().Retrieve(ctx, pipelineID)
}

// PipelineRunReporter adapts CreateExtractionPipelineRun to
// queue.PipelineReporter, letting an upload queue post a failure/seen run
// after a flush failure streak without pkg/queue depending on pkg/write or
// pkg/cdf.
type PipelineRunReporter struct {
	Facade     *Facade
	PipelineID string
}

// ReportRun implements queue.PipelineReporter.
func (r PipelineRunReporter) ReportRun(ctx context.Context, status, message string) error {
	return r.Facade.CreateExtractionPipelineRun(ctx, cdf.ExtractionPipelineRun{
		PipelineID: r.PipelineID,
		Status:     cdf.RunStatus(status),
		Message:    message,
	})
}
