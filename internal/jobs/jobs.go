package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusError
}

// Error discriminators stored on failed jobs.
const (
	ErrorKindTimeout   = "timeout"
	ErrorKindException = "exception"
)

// ErrNoResult is recorded when work finishes without error and without a result.
var ErrNoResult = errors.New("no result returned from code review")

// Job is a snapshot of one asynchronous analysis task.
type Job struct {
	ID          string     `json:"job_id"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Result      any        `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	ErrorKind   string     `json:"error_kind,omitempty"`
}

// Work is the body of a job.
type Work func(ctx context.Context) (any, error)

// Mapper is implemented by results that have a plain map form.
type Mapper interface {
	ToMap() map[string]any
}

// Field sets an optional attribute during SetStatus.
type Field func(*Job)

func WithResult(v any) Field {
	return func(j *Job) { j.Result = v }
}

func WithError(kind, msg string) Field {
	return func(j *Job) {
		j.ErrorKind = kind
		j.Error = msg
	}
}

func WithCompletedAt(t time.Time) Field {
	return func(j *Job) { j.CompletedAt = &t }
}

// Manager tracks job records. All access goes through one mutex; work runs
// outside of it.
type Manager struct {
	logger   *slog.Logger
	now      func() time.Time
	classify func(error) string
	onFinish func(Job)

	mu   sync.Mutex
	jobs map[string]*Job
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClassifier sets how Run turns a work error into an error discriminator.
func WithClassifier(fn func(error) string) Option {
	return func(m *Manager) { m.classify = fn }
}

// WithFinishHook is called with the final snapshot of every job Run completes.
func WithFinishHook(fn func(Job)) Option {
	return func(m *Manager) { m.onFinish = fn }
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		logger:   slog.Default(),
		now:      time.Now,
		classify: defaultClassify,
		jobs:     make(map[string]*Job),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func defaultClassify(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorKindTimeout
	}
	return ErrorKindException
}

// Create registers a new queued job and returns its ID.
func (m *Manager) Create() string {
	id := uuid.NewString()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[id] = &Job{ID: id, Status: StatusQueued, CreatedAt: m.now()}
	return id
}

// SetStatus merges status and fields into the job. Unknown IDs are ignored,
// as are transitions out of a terminal status.
func (m *Manager) SetStatus(id string, status Status, fields ...Field) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok || j.Status.Terminal() {
		return
	}
	j.Status = status
	for _, f := range fields {
		f(j)
	}
}

// Get returns a copy of the job.
func (m *Manager) Get(id string) (Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

// ActiveCount counts queued and running jobs.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, j := range m.jobs {
		if !j.Status.Terminal() {
			n++
		}
	}
	return n
}

// Len returns the number of tracked jobs in any status.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

// Cleanup removes every job created more than ttl ago, whatever its status.
// A running job removed here finishes without a record; its late SetStatus
// calls are ignored.
func (m *Manager) Cleanup(ttl time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for id, j := range m.jobs {
		if now.Sub(j.CreatedAt) > ttl {
			delete(m.jobs, id)
			removed++
		}
	}
	return removed
}

// Run executes work for job id and records the outcome. Errors and panics
// from work end up in the job record and are never returned.
func (m *Manager) Run(ctx context.Context, id string, work Work) {
	m.SetStatus(id, StatusRunning)

	result, err := m.call(ctx, work)
	if err == nil && result == nil {
		err = ErrNoResult
	}

	completed := m.now()
	if err != nil {
		kind := m.classify(err)
		m.logger.Warn("job failed", "job_id", id, "kind", kind, "err", err)
		m.SetStatus(id, StatusError, WithError(kind, err.Error()), WithCompletedAt(completed))
	} else {
		if mp, ok := result.(Mapper); ok {
			result = mp.ToMap()
		}
		m.logger.Debug("job done", "job_id", id)
		m.SetStatus(id, StatusDone, WithResult(result), WithCompletedAt(completed))
	}

	if m.onFinish != nil {
		if j, ok := m.Get(id); ok {
			m.onFinish(j)
		}
	}
}

func (m *Manager) call(ctx context.Context, work Work) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return work(ctx)
}

// PanicError wraps a value recovered from a panicking job.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return "job panicked: " + panicString(e.Value)
}

func panicString(v any) string {
	switch x := v.(type) {
	case error:
		return x.Error()
	case string:
		return x
	default:
		return "unknown panic"
	}
}
