package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/kirillkom/fleet-compliance/internal/core/domain"
	"github.com/kirillkom/fleet-compliance/internal/core/ports"
)

type repoFake struct {
	mu        sync.Mutex
	created   []*domain.Certificate
	duplicate *domain.CertificateSummary
	dupErr    error
	createErr error
	dupCalls  int
	// createGate, when set, blocks Create until the channel closes;
	// createEntered closes once the first Create call is in flight.
	createGate    chan struct{}
	createEntered chan struct{}
	enterOnce     sync.Once
}

func (f *repoFake) Create(_ context.Context, cert *domain.Certificate) error {
	if f.createEntered != nil {
		f.enterOnce.Do(func() { close(f.createEntered) })
	}
	if f.createGate != nil {
		<-f.createGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	copyCert := *cert
	f.created = append(f.created, &copyCert)
	return nil
}

func (f *repoFake) GetByID(context.Context, string) (*domain.Certificate, error) {
	return nil, errors.New("not implemented")
}

func (f *repoFake) FindDuplicate(context.Context, string, string) (*domain.CertificateSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dupCalls++
	return f.duplicate, f.dupErr
}

func (f *repoFake) duplicateCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dupCalls
}

func (f *repoFake) createdCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

type storageFake struct {
	mu      sync.Mutex
	saved   map[string][]byte
	removed []string
	saveErr error
}

func newStorageFake() *storageFake {
	return &storageFake{saved: map[string][]byte{}}
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[key] = raw
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.saved[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (f *storageFake) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.saved, key)
	f.removed = append(f.removed, key)
	return nil
}

func (f *storageFake) removedKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.removed))
	copy(out, f.removed)
	return out
}

func (f *storageFake) stagedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

type analyzerCall struct {
	filename string
	at       time.Time
}

// analyzerFake answers per filename and records call times for stagger
// assertions. An optional handler overrides the canned answers.
type analyzerFake struct {
	mu      sync.Mutex
	results map[string]*domain.ExtractionResult
	errs    map[string]error
	handler func(ctx context.Context, filename string) (*domain.ExtractionResult, error)
	calls   []analyzerCall
}

func newAnalyzerFake() *analyzerFake {
	return &analyzerFake{
		results: map[string]*domain.ExtractionResult{},
		errs:    map[string]error{},
	}
}

func (f *analyzerFake) Analyze(
	ctx context.Context,
	_ []byte,
	filename, _ string,
	_ ports.AnalysisContext,
) (*domain.ExtractionResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, analyzerCall{filename: filename, at: time.Now()})
	handler := f.handler
	result, err := f.results[filename], f.errs[filename]
	f.mu.Unlock()

	if handler != nil {
		return handler(ctx, filename)
	}
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, domain.WrapError(domain.ErrAnalysisFailed, "analyze document", errors.New("no canned result"))
	}
	copyResult := *result
	return &copyResult, nil
}

func (f *analyzerFake) callTime(filename string) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, call := range f.calls {
		if call.filename == filename {
			return call.at, true
		}
	}
	return time.Time{}, false
}

type eventsFake struct {
	mu     sync.Mutex
	events []domain.TaskEvent
}

func (f *eventsFake) PublishTaskTransition(_ context.Context, event domain.TaskEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *eventsFake) SubscribeTaskTransitions(context.Context, func(context.Context, domain.TaskEvent) error) error {
	return errors.New("not implemented")
}

func (f *eventsFake) published() []domain.TaskEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.TaskEvent, len(f.events))
	copy(out, f.events)
	return out
}
