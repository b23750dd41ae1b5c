package pipeline

import "context"

// Stage names reported to the progress Sink, matching the pipeline stage
// order in the job state machine.
const (
	StageExtracting = "extracting"
	StageLabeling   = "labeling"
	StageClustering = "clustering"
	StageMerging    = "merging"
	StageRanking    = "ranking"
	StageEnhancing  = "enhancing"
)

// Update is one processing_progress event (§6).
type Update struct {
	JobID   string
	Stage   string
	Current int
	Total   int
	Message string
}

// Sink receives progress updates as the orchestrator advances a job. The
// Upload Assembler's websocket session is the concrete implementation that
// forwards these as processing_progress frames; tests use a recording fake.
type Sink interface {
	Publish(ctx context.Context, u Update)
}

// NoopSink discards every update, used where no live session is attached
// (e.g. boot-time recovery of a job whose client has long disconnected).
type NoopSink struct{}

func (NoopSink) Publish(context.Context, Update) {}
