// Package playback serializes audio output on the robot's speaker.
//
// A Coordinator owns one worker goroutine and a single "playing" slot. Cue
// clips can be fired without waiting (PlayAsync skips when the speaker is
// busy), while speech and result clips wait their turn (PlaySync, Run).
// The slot is released on every exit path of a task, so waiters never hang.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("playback: coordinator closed")

// Player renders one clip and returns when it has finished playing.
type Player interface {
	Play(ctx context.Context, clip *Clip) error
}

// PlayerFunc adapts a function to Player.
type PlayerFunc func(ctx context.Context, clip *Clip) error

// Play calls f.
func (f PlayerFunc) Play(ctx context.Context, clip *Clip) error { return f(ctx, clip) }

// Task is one unit of audio output.
type Task struct {
	Name     string
	Blocking bool

	ctx  context.Context
	run  func(ctx context.Context) error
	done chan error
}

// Stats counts coordinator activity.
type Stats struct {
	Played  int64
	Skipped int64
	Failed  int64
	Busy    bool
	Current string
}

// Coordinator runs audio tasks one at a time.
type Coordinator struct {
	player Player
	logger *slog.Logger

	slot  chan struct{} // holds one token while a task is pending or playing
	tasks chan *Task

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	current string
	idle    chan struct{} // closed and replaced each time the slot is released

	played  atomic.Int64
	skipped atomic.Int64
	failed  atomic.Int64
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// New starts a coordinator that plays clips through player.
func New(player Player, opts ...Option) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		player: player,
		logger: slog.Default(),
		slot:   make(chan struct{}, 1),
		tasks:  make(chan *Task, 1),
		idle:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "playback.coordinator")

	c.wg.Add(1)
	go c.worker()
	return c
}

// PlayAsync starts clip in the background and returns immediately.
// If something is already playing the clip is skipped and false is returned.
func (c *Coordinator) PlayAsync(clip *Clip) bool {
	if clip == nil {
		return false
	}

	select {
	case c.slot <- struct{}{}:
	default:
		c.skipped.Add(1)
		c.logger.Debug("busy, skipping clip", "clip", clip.Name)
		return false
	}

	t := c.clipTask(c.ctx, clip, false)
	if err := c.enqueue(t); err != nil {
		c.release()
		return false
	}
	return true
}

// PlaySync waits for the speaker to be free, plays clip, and waits for it
// to finish.
func (c *Coordinator) PlaySync(ctx context.Context, clip *Clip) error {
	if clip == nil {
		return errors.New("playback: nil clip")
	}
	return c.submit(ctx, c.clipTask(ctx, clip, true))
}

// Run executes fn while holding the speaker, after any current task ends.
// It is used for synthesized speech, which is produced while it plays.
func (c *Coordinator) Run(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	return c.submit(ctx, &Task{
		Name:     name,
		Blocking: true,
		ctx:      ctx,
		run:      fn,
		done:     make(chan error, 1),
	})
}

// IsBusy reports whether a task is pending or playing.
func (c *Coordinator) IsBusy() bool {
	return len(c.slot) > 0
}

// WaitForIdle blocks until nothing is pending or playing. It only watches
// the slot, so a PlayAsync racing with it is never skipped on its account.
func (c *Coordinator) WaitForIdle(ctx context.Context) error {
	for {
		c.mu.Lock()
		if len(c.slot) == 0 {
			c.mu.Unlock()
			return nil
		}
		idle := c.idle
		c.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		case <-c.ctx.Done():
			return ErrClosed
		}
	}
}

// Stats returns playback counters.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	current := c.current
	c.mu.Unlock()

	return Stats{
		Played:  c.played.Load(),
		Skipped: c.skipped.Load(),
		Failed:  c.failed.Load(),
		Busy:    c.IsBusy(),
		Current: current,
	}
}

// Close cancels any playback in progress and stops the worker.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	return nil
}

func (c *Coordinator) clipTask(ctx context.Context, clip *Clip, blocking bool) *Task {
	return &Task{
		Name:     clip.Name,
		Blocking: blocking,
		ctx:      ctx,
		run: func(ctx context.Context) error {
			return c.player.Play(ctx, clip)
		},
		done: make(chan error, 1),
	}
}

func (c *Coordinator) submit(ctx context.Context, t *Task) error {
	select {
	case c.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return ErrClosed
	}

	if err := c.enqueue(t); err != nil {
		c.release()
		return err
	}

	// done is always completed by the worker, including on Close.
	return <-t.done
}

// release frees the slot and wakes WaitForIdle callers.
func (c *Coordinator) release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	<-c.slot
	close(c.idle)
	c.idle = make(chan struct{})
}

func (c *Coordinator) enqueue(t *Task) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	// Never blocks: the slot admits one task at a time and tasks has room for one.
	c.tasks <- t
	return nil
}

func (c *Coordinator) worker() {
	defer c.wg.Done()

	for {
		select {
		case t := <-c.tasks:
			c.execute(t)
		case <-c.ctx.Done():
			// Complete anything enqueued before Close won the race.
			for {
				select {
				case t := <-c.tasks:
					c.finish(t, ErrClosed)
				default:
					return
				}
			}
		}
	}
}

func (c *Coordinator) execute(t *Task) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("playback: task %q panicked: %v", t.Name, r)
		}
		c.finish(t, err)
	}()

	ctx, cancel := context.WithCancel(t.ctx)
	defer cancel()
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()

	c.mu.Lock()
	c.current = t.Name
	c.mu.Unlock()

	c.logger.Debug("playing", "task", t.Name, "blocking", t.Blocking)
	err = t.run(ctx)
}

func (c *Coordinator) finish(t *Task, err error) {
	c.mu.Lock()
	c.current = ""
	c.mu.Unlock()

	if err != nil {
		c.failed.Add(1)
		if !t.Blocking {
			c.logger.Warn("playback failed", "task", t.Name, "error", err)
		}
	} else {
		c.played.Add(1)
	}

	c.release()
	t.done <- err
}
