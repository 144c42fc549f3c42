package render

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRenderer echoes string payloads back and records execution order.
type fakeRenderer struct {
	mu        sync.Mutex
	active    int
	maxActive int
	order     []string

	gate    chan struct{}
	started chan string
}

func (r *fakeRenderer) Render(job Job) ([]byte, error) {
	name, _ := job.Payload.(string)

	r.mu.Lock()
	r.active++
	if r.active > r.maxActive {
		r.maxActive = r.active
	}
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.active--
		r.order = append(r.order, name)
		r.mu.Unlock()
	}()

	if r.started != nil {
		r.started <- name
	}
	if r.gate != nil {
		<-r.gate
	}

	switch name {
	case "panic":
		panic("boom")
	case "fail":
		return nil, assert.AnError
	}
	return []byte(name), nil
}

func (r *fakeRenderer) rendered() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

func newTestDispatcher(t *testing.T, r Renderer) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(DispatcherConfig{Renderer: r, Logger: zerolog.Nop()})
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return d
}

func TestDispatcher_Submit(t *testing.T) {
	d := newTestDispatcher(t, &fakeRenderer{})

	out, err := d.Submit(context.Background(), Job{Kind: KindRoutesMap, Payload: "a"})
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), out)
	assert.Equal(t, 0, d.QueueDepth())
}

func TestDispatcher_SingleWorker(t *testing.T) {
	r := &fakeRenderer{}
	d := newTestDispatcher(t, r)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := d.Submit(context.Background(), Job{Kind: KindRoutesMap, Payload: fmt.Sprint(i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Len(t, r.rendered(), 16)
	assert.Equal(t, 1, r.maxActive)
}

func TestDispatcher_FIFO(t *testing.T) {
	r := &fakeRenderer{gate: make(chan struct{}), started: make(chan string, 8)}
	d := newTestDispatcher(t, r)

	var wg sync.WaitGroup
	submit := func(name string) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = d.Submit(context.Background(), Job{Kind: KindRoutesMap, Payload: name})
		}()
	}

	submit("first")
	assert.Equal(t, "first", <-r.started)

	for i, name := range []string{"b", "c", "d"} {
		submit(name)
		want := i + 1
		require.Eventually(t, func() bool { return d.QueueDepth() == want }, time.Second, time.Millisecond)
	}

	close(r.gate)
	wg.Wait()

	assert.Equal(t, []string{"first", "b", "c", "d"}, r.rendered())
}

func TestDispatcher_PanicIsContained(t *testing.T) {
	d := newTestDispatcher(t, &fakeRenderer{})

	_, err := d.Submit(context.Background(), Job{Kind: KindHubComparison, Payload: "panic"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRender)

	var renderErr *RenderError
	require.True(t, errors.As(err, &renderErr))
	assert.Equal(t, KindHubComparison, renderErr.Kind)

	out, err := d.Submit(context.Background(), Job{Kind: KindRoutesMap, Payload: "after"})
	require.NoError(t, err, "worker survives a panicking job")
	assert.Equal(t, []byte("after"), out)
}

func TestDispatcher_RendererError(t *testing.T) {
	d := newTestDispatcher(t, &fakeRenderer{})

	_, err := d.Submit(context.Background(), Job{Kind: KindRoutesMap, Payload: "fail"})
	assert.ErrorIs(t, err, ErrRender)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestDispatcher_CancelledCallerStillRenders(t *testing.T) {
	r := &fakeRenderer{gate: make(chan struct{}), started: make(chan string, 1)}
	d := newTestDispatcher(t, r)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := d.Submit(ctx, Job{Kind: KindRoutesMap, Payload: "slow"})
		errCh <- err
	}()

	<-r.started
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	close(r.gate)
	require.Eventually(t, func() bool { return len(r.rendered()) == 1 }, time.Second, time.Millisecond)
}

func TestDispatcher_Close(t *testing.T) {
	r := &fakeRenderer{gate: make(chan struct{}), started: make(chan string, 4)}
	d, err := NewDispatcher(DispatcherConfig{Renderer: r, Logger: zerolog.Nop()})
	require.NoError(t, err)

	results := make(chan error, 2)
	go func() {
		_, err := d.Submit(context.Background(), Job{Kind: KindRoutesMap, Payload: "running"})
		results <- err
	}()
	<-r.started
	go func() {
		_, err := d.Submit(context.Background(), Job{Kind: KindRoutesMap, Payload: "queued"})
		results <- err
	}()
	require.Eventually(t, func() bool { return d.QueueDepth() == 1 }, time.Second, time.Millisecond)

	closed := make(chan struct{})
	go func() {
		d.Close()
		close(closed)
	}()
	close(r.gate)
	<-closed

	assert.NoError(t, <-results)
	assert.NoError(t, <-results)
	assert.Equal(t, []string{"running", "queued"}, r.rendered())

	_, err = d.Submit(context.Background(), Job{Kind: KindRoutesMap, Payload: "late"})
	assert.ErrorIs(t, err, ErrClosed)
}
