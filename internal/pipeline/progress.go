package pipeline

// Stage identifies which step of the per-chunk state machine a progress
// callback or log line refers to.
type Stage string

const (
	StageExtract   Stage = "extract"
	StageTransform Stage = "transform"
	StageValidate  Stage = "validate"
	StageStore     Stage = "store"
)

// ProgressFunc is invoked at chunk boundaries and stage transitions.
// total may grow monotonically across calls until the adapter signals
// end-of-stream, per §4.1's chunking policy.
type ProgressFunc func(description string, completed, total int, stage Stage, extra map[string]any)
