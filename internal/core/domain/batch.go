package domain

type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskUploading TaskStatus = "uploading"
	TaskCompleted TaskStatus = "completed"
	TaskErrored   TaskStatus = "errored"
)

// UploadTask tracks one file of a batch. Index is the task's stable identity;
// only the task's own pipeline writes to it.
type UploadTask struct {
	Index           int               `json:"index"`
	Filename        string            `json:"filename"`
	SizeBytes       int64             `json:"size_bytes"`
	Status          TaskStatus        `json:"status"`
	ProgressPercent int               `json:"progress_percent"`
	Outcome         CommitCode        `json:"outcome,omitempty"`
	Result          *ExtractionResult `json:"result,omitempty"`
	Error           string            `json:"error,omitempty"`
}

func (t UploadTask) Settled() bool {
	return t.Status == TaskCompleted || t.Status == TaskErrored
}

type BatchSummary struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
}

// SummarizeTasks derives the aggregate from a settled task collection. The
// summary is never updated incrementally by concurrent writers.
func SummarizeTasks(tasks []UploadTask) BatchSummary {
	summary := BatchSummary{Total: len(tasks)}
	for _, task := range tasks {
		switch task.Status {
		case TaskCompleted:
			summary.Succeeded++
		case TaskErrored:
			summary.Failed++
		}
	}
	return summary
}

// TaskEvent is one task state transition on the pipeline event stream.
type TaskEvent struct {
	BatchID         string     `json:"batch_id"`
	Index           int        `json:"index"`
	Filename        string     `json:"filename"`
	Status          TaskStatus `json:"status"`
	ProgressPercent int        `json:"progress_percent"`
	Error           string     `json:"error,omitempty"`
}
