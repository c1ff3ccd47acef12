// Package exec owns the worker goroutine that drives an emulated core,
// its execution state machine, and the audio/video synchronization
// channels that implement backpressure between the worker and the host.
package exec

import (
	"log/slog"
	"runtime"
	"sync"
)

// Runner is the emulated core driven by the worker. RunLoop advances
// the core by one scheduling quantum (typically one video frame) and
// must be safe to call repeatedly; all pause/interrupt handling happens
// between calls, never inside one.
type Runner interface {
	RunLoop()
	Reset()
	SetSync(*Sync)
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithFPSTarget sets the advisory pacing rate carried on the sync layer.
func WithFPSTarget(fps float64) Option {
	return func(c *Controller) { c.sync.fpsTarget = fps }
}

// WithAudioSync enables producer-side audio waiting from the start.
func WithAudioSync(wait bool) Option {
	return func(c *Controller) { c.sync.audio.wait = wait }
}

// WithVideoSync enables video frame synchronization from the start.
func WithVideoSync(wait bool) Option {
	return func(c *Controller) {
		c.sync.video.wait = wait
		c.sync.video.on = wait
	}
}

// WithStartCallback runs fn on the worker after reset, before Running.
func WithStartCallback(fn func(*Controller)) Option {
	return func(c *Controller) { c.startCallback = fn }
}

// WithCleanCallback runs fn on the worker after the run loop ends.
func WithCleanCallback(fn func(*Controller)) Option {
	return func(c *Controller) { c.cleanCallback = fn }
}

// Controller runs a core on a dedicated worker goroutine and exposes
// synchronized pause/resume/interrupt/run-on-demand/reset semantics to
// any number of caller goroutines.
type Controller struct {
	runner Runner
	sync   *Sync
	logger *slog.Logger

	mu             sync.Mutex
	cond           *sync.Cond
	state          State
	savedState     State
	interruptDepth int
	runFunc        func(*Controller)
	frameWasOn     bool
	done           chan struct{}

	startCallback func(*Controller)
	cleanCallback func(*Controller)
}

// New creates a controller for the given core. The worker does not run
// until Start is called.
func New(runner Runner, opts ...Option) *Controller {
	c := &Controller{
		runner: runner,
		sync:   NewSync(false, false),
		logger: slog.Default(),
		state:  Initialized,
	}
	c.cond = sync.NewCond(&c.mu)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sync returns the synchronization layer shared with the host.
func (c *Controller) Sync() *Sync {
	return c.sync
}

// Start spawns the worker and blocks until it is running.
func (c *Controller) Start() {
	c.mu.Lock()
	c.state = Initialized
	c.interruptDepth = 0
	c.done = make(chan struct{})
	go c.run()
	for c.state < Running {
		c.cond.Wait()
	}
	c.mu.Unlock()
}

func (c *Controller) run() {
	defer close(c.done)
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("worker crashed", "panic", r)
			c.mu.Lock()
			c.state = Crashed
			c.cond.Broadcast()
			c.mu.Unlock()
		}
	}()

	c.runner.SetSync(c.sync)
	c.runner.Reset()

	if c.startCallback != nil {
		c.startCallback(c)
	}
	c.logger.Debug("worker started")

	c.mu.Lock()
	c.state = Running
	c.cond.Broadcast()
	c.mu.Unlock()

	for !c.currentState().terminal() {
		for c.currentState() == Running {
			c.runner.RunLoop()
		}

		resetScheduled := false
		c.mu.Lock()
		for c.state.deferred() {
			switch c.state {
			case Pausing:
				c.state = Paused
				c.cond.Broadcast()
			case Interrupting:
				c.state = Interrupted
				c.cond.Broadcast()
			case RunOn:
				if c.runFunc != nil {
					c.runFunc(c)
				}
				c.state = c.savedState
				c.cond.Broadcast()
			case Reseting:
				c.state = Running
				resetScheduled = true
			}
			for c.state == Paused || c.state == Interrupted {
				c.cond.Wait()
			}
		}
		c.mu.Unlock()

		if resetScheduled {
			c.runner.Reset()
		}
	}

	c.mu.Lock()
	if c.state < Shutdown {
		c.state = Shutdown
	}
	c.cond.Broadcast()
	c.mu.Unlock()

	if c.cleanCallback != nil {
		c.cleanCallback(c)
	}
	c.logger.Debug("worker stopped")
}

func (c *Controller) currentState() State {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()
	return state
}

// waitOnInterrupt parks the caller while an interrupt is in effect.
// Must be called with the state lock held.
func (c *Controller) waitOnInterrupt() {
	for c.state == Interrupted {
		c.cond.Wait()
	}
}

// waitUntilNotState blocks the caller while the state still equals old.
// It keeps poking the audio/video required conditions so a worker
// parked on backpressure can observe the pending request instead of
// deadlocking. Must be called with the state lock held.
func (c *Controller) waitUntilNotState(old State) {
	videoWait := c.sync.suppressVideoWait()

	for c.state == old {
		c.mu.Unlock()

		c.sync.video.poke()
		c.sync.audio.poke()
		runtime.Gosched()

		c.mu.Lock()
		c.cond.Broadcast()
	}

	c.sync.restoreVideoWait(videoWait)
}

func (c *Controller) pauseThread(onThread bool) {
	c.state = Pausing
	if !onThread {
		c.waitUntilNotState(Pausing)
	}
}

// Pause requests a pause and blocks until the worker has parked.
func (c *Controller) Pause() {
	frameOn := c.sync.videoFrameOn()
	c.mu.Lock()
	c.waitOnInterrupt()
	if c.state == Running {
		c.pauseThread(false)
		c.frameWasOn = frameOn
		frameOn = false
	}
	c.mu.Unlock()

	c.sync.SetVideoSync(frameOn)
}

// PauseFromWorker requests a pause from the worker's own context. It
// does not block: the worker parks itself when it returns to the
// dispatch loop. Must only be called on the worker.
func (c *Controller) PauseFromWorker() {
	frameOn := true
	c.mu.Lock()
	c.waitOnInterrupt()
	if c.state == Running {
		c.pauseThread(true)
		frameOn = false
	}
	c.mu.Unlock()

	c.sync.SetVideoSync(frameOn)
}

// Unpause resumes a paused worker and restores the video sync mode that
// was suppressed at pause time.
func (c *Controller) Unpause() {
	frameOn := c.sync.videoFrameOn()
	c.mu.Lock()
	c.waitOnInterrupt()
	if c.state == Paused || c.state == Pausing {
		c.state = Running
		c.cond.Broadcast()
		frameOn = c.frameWasOn
	}
	c.mu.Unlock()

	c.sync.SetVideoSync(frameOn)
}

// TogglePause pauses a running worker or resumes a paused one.
func (c *Controller) TogglePause() {
	frameOn := c.sync.videoFrameOn()
	c.mu.Lock()
	c.waitOnInterrupt()
	if c.state == Paused || c.state == Pausing {
		c.state = Running
		c.cond.Broadcast()
		frameOn = c.frameWasOn
	} else if c.state == Running {
		c.pauseThread(false)
		c.frameWasOn = frameOn
		frameOn = false
	}
	c.mu.Unlock()

	c.sync.SetVideoSync(frameOn)
}

// Interrupt suspends the worker at the top of its dispatch loop and
// blocks until it has acknowledged. Interrupts nest: only the outermost
// call transitions the state, and execution resumes only once every
// Interrupt has been matched by a Continue.
func (c *Controller) Interrupt() {
	c.mu.Lock()
	c.interruptDepth++
	if c.interruptDepth > 1 || !c.state.active() {
		c.mu.Unlock()
		return
	}
	c.savedState = c.state
	c.waitOnInterrupt()
	c.state = Interrupting
	c.cond.Broadcast()
	c.waitUntilNotState(Interrupting)
	c.mu.Unlock()
}

// Continue undoes one Interrupt, resuming the worker once the nesting
// counter returns to zero.
func (c *Controller) Continue() {
	c.mu.Lock()
	c.interruptDepth--
	if c.interruptDepth < 1 && c.state.active() {
		c.state = c.savedState
		c.cond.Broadcast()
	}
	c.mu.Unlock()
}

// RunOn schedules fn to run synchronously inside the worker's own
// context and blocks until it has completed. The worker restores
// whatever state it was in before the request.
func (c *Controller) RunOn(fn func(*Controller)) {
	c.mu.Lock()
	c.runFunc = fn
	c.waitOnInterrupt()
	c.savedState = c.state
	c.state = RunOn
	c.cond.Broadcast()
	c.waitUntilNotState(RunOn)
	c.mu.Unlock()
}

// Reset requests a reset. The worker itself performs it inside its loop
// and returns to Running; resets never run on the calling goroutine.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.waitOnInterrupt()
	c.state = Reseting
	c.cond.Broadcast()
	c.mu.Unlock()
}

// End requests shutdown and unblocks any outstanding synchronization
// waits so the worker cannot remain parked on backpressure.
func (c *Controller) End() {
	c.mu.Lock()
	c.waitOnInterrupt()
	c.state = Exiting
	c.cond.Broadcast()
	c.mu.Unlock()

	c.sync.audio.release()
	c.sync.video.release()
}

// Join waits for the worker to terminate and releases the
// synchronization primitives. Calling Join without a prior End is a
// contract violation with unspecified behavior.
func (c *Controller) Join() {
	<-c.done

	c.sync.audio.release()
	c.sync.video.release()
}

// HasStarted reports whether Start has brought the worker up.
func (c *Controller) HasStarted() bool {
	c.mu.Lock()
	started := c.state > Initialized
	c.mu.Unlock()
	return started
}

// HasExited reports whether the run loop has terminated.
func (c *Controller) HasExited() bool {
	c.mu.Lock()
	exited := c.state > Exiting
	c.mu.Unlock()
	return exited
}

// HasCrashed reports whether the run loop itself failed. The controller
// never restarts a crashed worker; that is a caller decision.
func (c *Controller) HasCrashed() bool {
	c.mu.Lock()
	crashed := c.state == Crashed
	c.mu.Unlock()
	return crashed
}

// IsPaused reports whether the worker is parked as Paused.
func (c *Controller) IsPaused() bool {
	c.mu.Lock()
	c.waitOnInterrupt()
	paused := c.state == Paused
	c.mu.Unlock()
	return paused
}

// IsActive reports whether the worker is running and not shutting down.
func (c *Controller) IsActive() bool {
	c.mu.Lock()
	active := c.state.active()
	c.mu.Unlock()
	return active
}
