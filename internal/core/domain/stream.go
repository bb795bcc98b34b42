package domain

// Kinds of events emitted over the run event sink.
const (
	EventRunStarted      = "run.started"
	EventWorkflowSkipped = "workflow.skipped"
	EventJobStarted      = "job.started"
	EventJobFinished     = "job.finished"
	EventStepStarted     = "step.started"
	EventStepFinished    = "step.finished"
	EventRunFinished     = "run.finished"
)
