package exec

import "sync"

// SyncChannel implements bounded backpressure for one producer resource.
// The worker blocks on "produce" while the wait flag is set and the host
// has not drained; the consumer signals the required condition after
// draining. The available condition wakes consumers blocked on output.
type SyncChannel struct {
	mu        sync.Mutex
	wait      bool
	on        bool
	pending   int
	required  *sync.Cond
	available *sync.Cond
}

func newSyncChannel() *SyncChannel {
	ch := &SyncChannel{}
	ch.required = sync.NewCond(&ch.mu)
	ch.available = sync.NewCond(&ch.mu)
	return ch
}

// poke wakes a producer that may be parked waiting for the consumer.
// Used by caller-side state waits so a pending pause/interrupt/reset
// cannot deadlock against backpressure.
func (ch *SyncChannel) poke() {
	if ch.mu.TryLock() {
		ch.required.Broadcast()
		ch.mu.Unlock()
	}
}

// release clears the wait flags and wakes everything parked on the
// channel. Called during End and Join.
func (ch *SyncChannel) release() {
	ch.mu.Lock()
	ch.wait = false
	ch.on = false
	ch.required.Broadcast()
	ch.available.Broadcast()
	ch.mu.Unlock()
}

// Sync owns the audio and video synchronization channels shared between
// the worker and the host, plus the advisory pacing target.
type Sync struct {
	audio *SyncChannel
	video *SyncChannel

	fpsTarget float64
}

// NewSync creates the synchronization channels with the given sync modes.
func NewSync(audioWait, videoWait bool) *Sync {
	s := &Sync{
		audio:     newSyncChannel(),
		video:     newSyncChannel(),
		fpsTarget: 60,
	}
	s.audio.wait = audioWait
	s.video.wait = videoWait
	s.video.on = videoWait
	return s
}

// FPSTarget returns the advisory pacing rate. The core never enforces
// it; hosts use it to pace their own consumption.
func (s *Sync) FPSTarget() float64 {
	return s.fpsTarget
}

// LockAudio acquires the audio buffer lock. Producers and consumers
// bracket buffer access with LockAudio and ProduceAudio/ConsumeAudio.
func (s *Sync) LockAudio() {
	s.audio.mu.Lock()
}

// UnlockAudio releases the audio buffer lock without signaling.
func (s *Sync) UnlockAudio() {
	s.audio.mu.Unlock()
}

// ProduceAudio releases the audio lock after producing. When wait is set
// and audio sync is on, the producer parks until the consumer drains.
func (s *Sync) ProduceAudio(wait bool) {
	s.audio.available.Broadcast()
	if s.audio.wait && wait {
		s.audio.required.Wait()
	}
	s.audio.mu.Unlock()
}

// ConsumeAudio releases the audio lock after draining and unparks the
// producer.
func (s *Sync) ConsumeAudio() {
	s.audio.required.Broadcast()
	s.audio.mu.Unlock()
}

// SetAudioSync enables or disables producer-side audio waiting.
// Disabling it unparks a waiting producer (fast-forward).
func (s *Sync) SetAudioSync(wait bool) {
	s.audio.mu.Lock()
	s.audio.wait = wait
	if !wait {
		s.audio.required.Broadcast()
	}
	s.audio.mu.Unlock()
}

// PostFrame publishes a finished video frame. While video sync is on,
// the producer parks until the consumer has taken the frame.
func (s *Sync) PostFrame() {
	v := s.video
	v.mu.Lock()
	v.pending++
	for {
		v.available.Broadcast()
		if v.wait {
			v.required.Wait()
		}
		if !v.wait || v.pending == 0 {
			break
		}
	}
	v.mu.Unlock()
}

// WaitFrameStart blocks until a frame is available, returning false if
// no frame is pending and the producer is not in video-sync mode. The
// video lock is held on a true return; callers must follow up with
// WaitFrameEnd.
func (s *Sync) WaitFrameStart() bool {
	v := s.video
	v.mu.Lock()
	v.required.Broadcast()
	if !v.on && v.pending == 0 {
		v.mu.Unlock()
		return false
	}
	if v.on && v.pending == 0 {
		v.available.Wait()
	}
	v.pending = 0
	v.required.Broadcast()
	return true
}

// WaitFrameEnd releases the video lock taken by WaitFrameStart.
func (s *Sync) WaitFrameEnd() {
	s.video.mu.Unlock()
}

// SetVideoSync attaches or detaches the frame consumer. Detaching wakes
// a consumer blocked waiting for a frame from a paused core.
func (s *Sync) SetVideoSync(on bool) {
	v := s.video
	v.mu.Lock()
	if on != v.on {
		v.on = on
		v.available.Broadcast()
	}
	v.mu.Unlock()
}

// videoFrameOn reads the consumer-attached flag.
func (s *Sync) videoFrameOn() bool {
	s.video.mu.Lock()
	on := s.video.on
	s.video.mu.Unlock()
	return on
}

// suppressVideoWait clears the producer-side video wait flag, returning
// the previous value so it can be restored.
func (s *Sync) suppressVideoWait() bool {
	v := s.video
	v.mu.Lock()
	wait := v.wait
	v.wait = false
	v.mu.Unlock()
	return wait
}

// restoreVideoWait puts back a flag saved by suppressVideoWait.
func (s *Sync) restoreVideoWait(wait bool) {
	v := s.video
	v.mu.Lock()
	v.wait = wait
	v.mu.Unlock()
}
