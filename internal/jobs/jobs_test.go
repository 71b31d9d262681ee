package jobs_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/garnizeh/devcompanion/internal/jobs"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

type review struct{ summary string }

func (r review) ToMap() map[string]any { return map[string]any{"summary": r.summary} }

func TestCreateAndGet(t *testing.T) {
	clk := newClock()
	m := jobs.NewManager(jobs.WithClock(clk.Now))

	id := m.Create()
	require.NotEmpty(t, id)

	j, ok := m.Get(id)
	require.True(t, ok)
	assert.Equal(t, jobs.StatusQueued, j.Status)
	assert.Equal(t, clk.Now(), j.CreatedAt)
	assert.Nil(t, j.CompletedAt)

	_, ok = m.Get("missing")
	assert.False(t, ok)

	assert.NotEqual(t, id, m.Create(), "ids are never reused")
}

func TestSetStatusUnknownIsNoop(t *testing.T) {
	m := jobs.NewManager()
	m.SetStatus("nope", jobs.StatusDone, jobs.WithResult("x"))
	assert.Equal(t, 0, m.Len())
}

func TestSetStatusTerminalIsFinal(t *testing.T) {
	m := jobs.NewManager()
	id := m.Create()
	m.SetStatus(id, jobs.StatusError, jobs.WithError(jobs.ErrorKindException, "boom"))
	m.SetStatus(id, jobs.StatusRunning)

	j, _ := m.Get(id)
	assert.Equal(t, jobs.StatusError, j.Status)
	assert.Equal(t, "boom", j.Error)
}

func TestActiveCount(t *testing.T) {
	m := jobs.NewManager()
	a, b, c := m.Create(), m.Create(), m.Create()
	assert.Equal(t, 3, m.ActiveCount())

	m.SetStatus(a, jobs.StatusRunning)
	assert.Equal(t, 3, m.ActiveCount())

	m.SetStatus(a, jobs.StatusDone, jobs.WithResult(1))
	assert.Equal(t, 2, m.ActiveCount())

	m.SetStatus(b, jobs.StatusError, jobs.WithError(jobs.ErrorKindTimeout, "slow"))
	assert.Equal(t, 1, m.ActiveCount())

	m.SetStatus(c, jobs.StatusRunning)
	assert.Equal(t, 1, m.ActiveCount())
}

func TestCleanupRemovesOnlyOldJobsRegardlessOfStatus(t *testing.T) {
	clk := newClock()
	m := jobs.NewManager(jobs.WithClock(clk.Now))

	oldRunning := m.Create()
	m.SetStatus(oldRunning, jobs.StatusRunning)
	oldDone := m.Create()
	m.SetStatus(oldDone, jobs.StatusDone, jobs.WithResult("ok"))

	clk.Advance(30 * time.Minute)
	fresh := m.Create()

	clk.Advance(31 * time.Minute)
	removed := m.Cleanup(time.Hour)

	assert.Equal(t, 2, removed)
	_, ok := m.Get(oldRunning)
	assert.False(t, ok)
	_, ok = m.Get(oldDone)
	assert.False(t, ok)
	_, ok = m.Get(fresh)
	assert.True(t, ok)
}

func TestCleanupBoundaryIsStrict(t *testing.T) {
	clk := newClock()
	m := jobs.NewManager(jobs.WithClock(clk.Now))
	id := m.Create()

	clk.Advance(time.Hour)
	assert.Equal(t, 0, m.Cleanup(time.Hour))

	clk.Advance(time.Second)
	assert.Equal(t, 1, m.Cleanup(time.Hour))
	_, ok := m.Get(id)
	assert.False(t, ok)
}

func TestRunSuccessConvertsMapper(t *testing.T) {
	clk := newClock()
	m := jobs.NewManager(jobs.WithClock(clk.Now))
	id := m.Create()

	m.Run(context.Background(), id, func(context.Context) (any, error) {
		return review{summary: "fine"}, nil
	})

	j, _ := m.Get(id)
	assert.Equal(t, jobs.StatusDone, j.Status)
	assert.Equal(t, map[string]any{"summary": "fine"}, j.Result)
	require.NotNil(t, j.CompletedAt)
	assert.Empty(t, j.Error)
}

func TestRunStoresPlainResultAsIs(t *testing.T) {
	m := jobs.NewManager()
	id := m.Create()
	m.Run(context.Background(), id, func(context.Context) (any, error) { return 42, nil })

	j, _ := m.Get(id)
	assert.Equal(t, 42, j.Result)
}

func TestRunErrorIsRecorded(t *testing.T) {
	m := jobs.NewManager()
	id := m.Create()

	m.Run(context.Background(), id, func(context.Context) (any, error) {
		return nil, errors.New("provider unreachable")
	})

	j, _ := m.Get(id)
	assert.Equal(t, jobs.StatusError, j.Status)
	assert.Equal(t, "provider unreachable", j.Error)
	assert.Equal(t, jobs.ErrorKindException, j.ErrorKind)
	require.NotNil(t, j.CompletedAt)
}

func TestRunTimeoutIsClassified(t *testing.T) {
	m := jobs.NewManager()
	id := m.Create()

	m.Run(context.Background(), id, func(ctx context.Context) (any, error) {
		ctx, cancel := context.WithTimeout(ctx, time.Millisecond)
		defer cancel()
		<-ctx.Done()
		return nil, fmt.Errorf("analyze: %w", ctx.Err())
	})

	j, _ := m.Get(id)
	assert.Equal(t, jobs.ErrorKindTimeout, j.ErrorKind)
}

func TestRunCustomClassifier(t *testing.T) {
	m := jobs.NewManager(jobs.WithClassifier(func(error) string { return "parse_error" }))
	id := m.Create()
	m.Run(context.Background(), id, func(context.Context) (any, error) { return nil, errors.New("x") })

	j, _ := m.Get(id)
	assert.Equal(t, "parse_error", j.ErrorKind)
}

func TestRunNilResultIsError(t *testing.T) {
	m := jobs.NewManager()
	id := m.Create()
	m.Run(context.Background(), id, func(context.Context) (any, error) { return nil, nil })

	j, _ := m.Get(id)
	assert.Equal(t, jobs.StatusError, j.Status)
	assert.Equal(t, jobs.ErrNoResult.Error(), j.Error)
}

func TestRunRecoversPanic(t *testing.T) {
	m := jobs.NewManager()
	id := m.Create()

	require.NotPanics(t, func() {
		m.Run(context.Background(), id, func(context.Context) (any, error) { panic("kaboom") })
	})

	j, _ := m.Get(id)
	assert.Equal(t, jobs.StatusError, j.Status)
	assert.Contains(t, j.Error, "kaboom")
}

func TestRunAfterCleanupDoesNotResurrect(t *testing.T) {
	clk := newClock()
	m := jobs.NewManager(jobs.WithClock(clk.Now))
	id := m.Create()
	clk.Advance(2 * time.Hour)

	m.Run(context.Background(), id, func(context.Context) (any, error) {
		m.Cleanup(time.Hour)
		return "late", nil
	})

	_, ok := m.Get(id)
	assert.False(t, ok)
}

func TestFinishHook(t *testing.T) {
	var got []jobs.Status
	m := jobs.NewManager(jobs.WithFinishHook(func(j jobs.Job) { got = append(got, j.Status) }))

	m.Run(context.Background(), m.Create(), func(context.Context) (any, error) { return "ok", nil })
	m.Run(context.Background(), m.Create(), func(context.Context) (any, error) { return nil, errors.New("x") })

	assert.Equal(t, []jobs.Status{jobs.StatusDone, jobs.StatusError}, got)
}

func TestConcurrentBookkeeping(t *testing.T) {
	m := jobs.NewManager()

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := m.Create()
			m.Run(context.Background(), id, func(context.Context) (any, error) {
				if i%2 == 0 {
					return nil, errors.New("odd luck")
				}
				return i, nil
			})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 64, m.Len())
	assert.Equal(t, 0, m.ActiveCount())
}
