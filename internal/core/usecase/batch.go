package usecase

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/fleet-compliance/internal/core/domain"
	"github.com/kirillkom/fleet-compliance/internal/core/ports"
)

// taskBoard holds the per-file tasks of one batch. Each pipeline writes only
// its own index; updates replace the element under the lock so concurrent
// writers to different indices never corrupt each other.
type taskBoard struct {
	mu    sync.RWMutex
	tasks []domain.UploadTask
}

func newTaskBoard(files []ports.UploadRequest) *taskBoard {
	tasks := make([]domain.UploadTask, len(files))
	for i, file := range files {
		tasks[i] = domain.UploadTask{
			Index:     i,
			Filename:  file.Filename,
			SizeBytes: file.SizeBytes,
			Status:    domain.TaskPending,
		}
	}
	return &taskBoard{tasks: tasks}
}

func (b *taskBoard) update(index int, mutate func(task *domain.UploadTask)) domain.UploadTask {
	b.mu.Lock()
	defer b.mu.Unlock()
	task := b.tasks[index]
	mutate(&task)
	// Progress never moves backwards while uploading.
	if task.ProgressPercent < b.tasks[index].ProgressPercent {
		task.ProgressPercent = b.tasks[index].ProgressPercent
	}
	b.tasks[index] = task
	return task
}

func (b *taskBoard) snapshot() []domain.UploadTask {
	b.mu.RLock()
	defer b.mu.RUnlock()
	tasks := make([]domain.UploadTask, len(b.tasks))
	copy(tasks, b.tasks)
	return tasks
}

// BatchUploadUseCase fans a multi-file submission out to independent
// per-file pipelines with staggered starts. Batch mode never pauses for a
// decision: every warning resolves by fixed policy into an errored task.
type BatchUploadUseCase struct {
	analyzer  ports.DocumentAnalyzer
	storage   ports.ObjectStorage
	engine    *ValidationEngine
	committer *CommitCertificateUseCase
	events    ports.PipelineEvents
	stagger   time.Duration
}

func NewBatchUploadUseCase(
	analyzer ports.DocumentAnalyzer,
	storage ports.ObjectStorage,
	engine *ValidationEngine,
	committer *CommitCertificateUseCase,
	events ports.PipelineEvents,
	stagger time.Duration,
) *BatchUploadUseCase {
	return &BatchUploadUseCase{
		analyzer:  analyzer,
		storage:   storage,
		engine:    engine,
		committer: committer,
		events:    events,
		stagger:   stagger,
	}
}

// RunBatch blocks until every task has settled, then derives the summary
// from the final board. The first pipeline to complete donates its fields
// for the surrounding form; completion order is unconstrained.
func (uc *BatchUploadUseCase) RunBatch(
	ctx context.Context,
	files []ports.UploadRequest,
	uctx ports.UploadContext,
) (*ports.BatchResult, error) {
	if len(files) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "run batch", fmt.Errorf("no files submitted"))
	}

	batchID := uuid.NewString()
	board := newTaskBoard(files)
	vctx := uc.batchValidationContext(uctx)

	var autoFill struct {
		mu     sync.Mutex
		result *domain.ExtractionResult
	}

	var wg sync.WaitGroup
	for i := range files {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()

			// Staggered start smooths the burst against the recognition
			// service; started pipelines still run fully in parallel.
			if !uc.waitForStart(ctx, index) {
				uc.transition(ctx, batchID, board, index, func(task *domain.UploadTask) {
					task.Status = domain.TaskErrored
					task.Error = "batch interrupted before start"
				})
				return
			}

			result := uc.runPipeline(ctx, batchID, board, index, files[index], uctx, vctx)
			if result == nil {
				return
			}

			autoFill.mu.Lock()
			if autoFill.result == nil {
				autoFill.result = result
			}
			autoFill.mu.Unlock()
		}(i)
	}
	wg.Wait()

	tasks := board.snapshot()
	for _, task := range tasks {
		if !task.Settled() {
			// Defensive settle; a pipeline must never leave its task open.
			uc.transition(ctx, batchID, board, task.Index, func(t *domain.UploadTask) {
				t.Status = domain.TaskErrored
				t.Error = "pipeline exited without settling"
			})
		}
	}
	tasks = board.snapshot()

	return &ports.BatchResult{
		BatchID:  batchID,
		Tasks:    tasks,
		Summary:  domain.SummarizeTasks(tasks),
		AutoFill: autoFill.result,
	}, nil
}

func (uc *BatchUploadUseCase) waitForStart(ctx context.Context, index int) bool {
	delay := time.Duration(index) * uc.stagger
	if delay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// runPipeline executes extract, validate and commit for one file. It returns
// the extraction on success and nil otherwise; any failure settles only this
// task and never touches siblings.
func (uc *BatchUploadUseCase) runPipeline(
	ctx context.Context,
	batchID string,
	board *taskBoard,
	index int,
	file ports.UploadRequest,
	uctx ports.UploadContext,
	vctx ValidationContext,
) *domain.ExtractionResult {
	uc.transition(ctx, batchID, board, index, func(task *domain.UploadTask) {
		task.Status = domain.TaskUploading
		task.ProgressPercent = 10
	})

	fileRef := fmt.Sprintf("%s_%d_%s", batchID, index, sanitizeFilename(file.Filename))
	if err := uc.storage.Save(ctx, fileRef, bytes.NewReader(file.Content)); err != nil {
		uc.fail(ctx, batchID, board, index, "", fmt.Sprintf("stage upload: %v", err))
		return nil
	}
	uc.transition(ctx, batchID, board, index, func(task *domain.UploadTask) {
		task.ProgressPercent = 25
	})

	extraction, err := uc.analyzer.Analyze(ctx, file.Content, file.Filename, file.MimeType, ports.AnalysisContext{
		ShipIdentifier: uctx.ShipID,
		CategoryScope:  uctx.CategoryScope,
	})
	if err != nil {
		uc.dropStaged(ctx, fileRef)
		uc.fail(ctx, batchID, board, index, "", err.Error())
		return nil
	}
	uc.transition(ctx, batchID, board, index, func(task *domain.UploadTask) {
		task.ProgressPercent = 60
	})

	warnings, err := uc.engine.Validate(ctx, extraction, vctx)
	if err != nil {
		uc.dropStaged(ctx, fileRef)
		if domain.IsKind(err, domain.ErrMissingFields) {
			uc.fail(ctx, batchID, board, index, domain.CommitManualInput, "extraction is missing required fields")
			return nil
		}
		uc.fail(ctx, batchID, board, index, "", err.Error())
		return nil
	}
	if len(warnings) > 0 {
		uc.dropStaged(ctx, fileRef)
		code, reason := batchWarningPolicy(warnings[0])
		uc.fail(ctx, batchID, board, index, code, reason)
		return nil
	}
	uc.transition(ctx, batchID, board, index, func(task *domain.UploadTask) {
		task.ProgressPercent = 80
	})

	outcome, err := uc.committer.Commit(ctx, commitInput{
		ShipID:  uctx.ShipID,
		Fields:  *extraction,
		FileRef: fileRef,
	})
	if err != nil {
		uc.dropStaged(ctx, fileRef)
		uc.fail(ctx, batchID, board, index, "", err.Error())
		return nil
	}
	if !outcome.Succeeded() {
		uc.dropStaged(ctx, fileRef)
		uc.fail(ctx, batchID, board, index, outcome.Code, outcome.Reason)
		return nil
	}

	uc.transition(ctx, batchID, board, index, func(task *domain.UploadTask) {
		task.Status = domain.TaskCompleted
		task.ProgressPercent = 100
		task.Outcome = domain.CommitCreated
		task.Result = extraction
	})
	return extraction
}

// batchWarningPolicy maps the first unresolved warning to a terminal task
// outcome. Identity mismatches hard-fail here; only the interactive path may
// override them.
func batchWarningPolicy(warning domain.ValidationWarning) (domain.CommitCode, string) {
	switch warning.Kind {
	case domain.WarningDuplicateCandidate:
		return domain.CommitDuplicatePending, "certificate number already registered for this ship"
	case domain.WarningCategoryMismatch:
		return domain.CommitRejected, fmt.Sprintf("certificate %q does not belong to scope %s", warning.CertificateName, warning.CategoryScope)
	default:
		return domain.CommitRejected, fmt.Sprintf(
			"ship identifier mismatch: extracted %s, expected %s",
			warning.DeclaredIdentifier, warning.ExpectedIdentifier,
		)
	}
}

func (uc *BatchUploadUseCase) fail(
	ctx context.Context,
	batchID string,
	board *taskBoard,
	index int,
	code domain.CommitCode,
	reason string,
) {
	uc.transition(ctx, batchID, board, index, func(task *domain.UploadTask) {
		task.Status = domain.TaskErrored
		task.Outcome = code
		task.Error = reason
	})
}

func (uc *BatchUploadUseCase) transition(
	ctx context.Context,
	batchID string,
	board *taskBoard,
	index int,
	mutate func(task *domain.UploadTask),
) {
	task := board.update(index, mutate)
	if uc.events == nil {
		return
	}
	event := domain.TaskEvent{
		BatchID:         batchID,
		Index:           task.Index,
		Filename:        task.Filename,
		Status:          task.Status,
		ProgressPercent: task.ProgressPercent,
		Error:           task.Error,
	}
	if err := uc.events.PublishTaskTransition(ctx, event); err != nil {
		// Presentation events are best-effort; the pipeline result stands.
		slog.Warn("publish task transition", "batch_id", batchID, "index", index, "error", err)
	}
}

func (uc *BatchUploadUseCase) dropStaged(ctx context.Context, fileRef string) {
	if err := uc.storage.Remove(ctx, fileRef); err != nil {
		slog.Warn("drop staged file", "file_ref", fileRef, "error", err)
	}
}

func (uc *BatchUploadUseCase) batchValidationContext(uctx ports.UploadContext) ValidationContext {
	vctx := ValidationContext{ShipID: uctx.ShipID, UploadedBy: uctx.UploadedBy}
	if scope, ok := domain.ScopeByName(uctx.CategoryScope); ok {
		vctx.Scope = &scope
	}
	return vctx
}
