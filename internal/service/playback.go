package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/aliskhannn/quran-companion/internal/domain/entities"
)

// PlaybackController owns the single audio-playback session and decides what
// plays after a verse finishes.
//
// Every session gets a token; events and completions carrying an older token
// are dropped. Handlers are always invoked with the controller unlocked.
type PlaybackController struct {
	backend AudioBackend
	address AudioAddress
	logger  *zap.Logger

	mu     sync.Mutex
	state  entities.PlaybackState
	token  uint64
	stream AudioStream
	done   chan struct{} // closed when the current session is torn down
	queue  []entities.Verse
	speed  float64
	repeat entities.RepeatMode
	// pauseOnOpen is set when the loading verse was toggled before its
	// stream opened.
	pauseOnOpen bool

	onState   func(entities.PlaybackState)
	onAdvance func(entities.Verse)
	onError   func(error)
}

// NewPlaybackController creates a new PlaybackController in the Idle state.
func NewPlaybackController(backend AudioBackend, address AudioAddress, logger *zap.Logger) *PlaybackController {
	return &PlaybackController{
		backend: backend,
		address: address,
		logger:  logger,
		speed:   entities.DefaultSpeed,
		state:   entities.PlaybackState{Status: entities.StatusIdle, Speed: entities.DefaultSpeed},
	}
}

// SetStateHandler registers a function called after every state change.
func (c *PlaybackController) SetStateHandler(fn func(entities.PlaybackState)) {
	c.mu.Lock()
	c.onState = fn
	c.mu.Unlock()
}

// SetAdvanceHandler registers a function called when playback moved on to
// another verse by itself, so the view can bring it into focus.
func (c *PlaybackController) SetAdvanceHandler(fn func(entities.Verse)) {
	c.mu.Lock()
	c.onAdvance = fn
	c.mu.Unlock()
}

// SetErrorHandler registers a function called when a live stream fails.
func (c *PlaybackController) SetErrorHandler(fn func(error)) {
	c.mu.Lock()
	c.onError = fn
	c.mu.Unlock()
}

// SetQueue sets the verses of the loaded chapter that the completion policy consults.
func (c *PlaybackController) SetQueue(verses []entities.Verse) {
	c.mu.Lock()
	c.queue = verses
	c.mu.Unlock()
}

// State returns a snapshot of the playback state.
func (c *PlaybackController) State() entities.PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Token returns the token of the current session.
func (c *PlaybackController) Token() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Play starts the recitation of verse n. Playing the active verse again
// toggles between Playing and Paused instead of restarting it, including
// while its stream is still opening.
func (c *PlaybackController) Play(ctx context.Context, n int) error {
	src, err := c.address.Source(n)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.state.ActiveVerse == n && c.state.Status == entities.StatusLoading {
		c.pauseOnOpen = !c.pauseOnOpen
		c.mu.Unlock()
		return nil
	}
	if c.state.ActiveVerse == n && c.stream != nil {
		var err error
		switch c.state.Status {
		case entities.StatusPlaying:
			err = c.pauseLocked(ctx)
		case entities.StatusPaused:
			err = c.resumeLocked(ctx)
		}
		c.mu.Unlock()
		c.notify()
		return err
	}
	c.mu.Unlock()

	return c.start(ctx, src, 0)
}

// start tears down the current session and opens src. When expect is not
// zero the start is abandoned if another session began in the meantime.
func (c *PlaybackController) start(ctx context.Context, src AudioSource, expect uint64) error {
	c.mu.Lock()
	if expect != 0 && c.token != expect {
		c.mu.Unlock()
		return ErrSuperseded
	}
	c.teardownLocked()
	c.token++
	c.pauseOnOpen = false
	token := c.token
	speed := c.speed
	c.state = entities.PlaybackState{
		ActiveVerse: src.VerseNumber,
		Status:      entities.StatusLoading,
		Speed:       speed,
		Repeat:      c.repeat,
	}
	c.mu.Unlock()
	c.notify()

	stream, err := c.backend.Open(ctx, src, speed)

	c.mu.Lock()
	if c.token != token {
		c.mu.Unlock()
		if stream != nil {
			_ = stream.Close()
		}
		return ErrSuperseded
	}
	if err != nil {
		c.resetLocked()
		c.mu.Unlock()
		c.notify()

		c.logger.Error("failed to start playback",
			zap.Int("verse", src.VerseNumber),
			zap.String("url", src.URL),
			zap.Error(err))
		return fmt.Errorf("open verse %d: %w: %w", src.VerseNumber, entities.ErrPlaybackFailure, err)
	}

	done := make(chan struct{})
	c.stream = stream
	c.done = done
	c.state.Status = entities.StatusPlaying
	c.state.IsPlaying = true
	var pauseErr error
	if c.pauseOnOpen {
		c.pauseOnOpen = false
		pauseErr = c.pauseLocked(ctx)
	}
	c.mu.Unlock()

	go c.pump(token, stream.Events(), done)

	c.logger.Debug("playback started", zap.Int("verse", src.VerseNumber), zap.Uint64("token", token))
	c.notify()
	return pauseErr
}

// pump forwards the events of one session until it is torn down.
func (c *PlaybackController) pump(token uint64, events <-chan entities.AudioEvent, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Kind {
			case entities.AudioTimeUpdate, entities.AudioLoadedMetadata:
				c.OnPositionUpdate(token, ev.Position, ev.Duration)
			case entities.AudioEnded:
				if err := c.OnCompleted(context.Background(), token); err != nil && !errors.Is(err, ErrSuperseded) {
					c.logger.Warn("failed to continue playback", zap.Error(err))
				}
			case entities.AudioError:
				c.onStreamError(token, ev.Err)
			}
		}
	}
}

// Pause pauses a playing session. It is a no-op in any other state.
func (c *PlaybackController) Pause(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Status != entities.StatusPlaying || c.stream == nil {
		c.mu.Unlock()
		return nil
	}
	err := c.pauseLocked(ctx)
	c.mu.Unlock()

	c.notify()
	return err
}

// Resume resumes a paused session. It is a no-op in any other state.
func (c *PlaybackController) Resume(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Status != entities.StatusPaused || c.stream == nil {
		c.mu.Unlock()
		return nil
	}
	err := c.resumeLocked(ctx)
	c.mu.Unlock()

	c.notify()
	return err
}

func (c *PlaybackController) pauseLocked(ctx context.Context) error {
	if err := c.stream.Pause(ctx); err != nil {
		return fmt.Errorf("pause verse %d: %w: %w", c.state.ActiveVerse, entities.ErrPlaybackFailure, err)
	}
	c.state.Status = entities.StatusPaused
	c.state.IsPlaying = false
	return nil
}

func (c *PlaybackController) resumeLocked(ctx context.Context) error {
	if err := c.stream.Resume(ctx); err != nil {
		return fmt.Errorf("resume verse %d: %w: %w", c.state.ActiveVerse, entities.ErrPlaybackFailure, err)
	}
	c.state.Status = entities.StatusPlaying
	c.state.IsPlaying = true
	return nil
}

// SeekBy moves the position by delta seconds, clamped to [0, duration].
// The upper bound applies once the duration is known.
func (c *PlaybackController) SeekBy(ctx context.Context, delta float64) error {
	c.mu.Lock()
	if c.stream == nil {
		c.mu.Unlock()
		return nil
	}

	pos := max(0, c.state.Position+delta)
	if c.state.Duration > 0 {
		pos = min(pos, c.state.Duration)
	}

	if err := c.stream.Seek(ctx, pos); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("seek verse %d: %w: %w", c.state.ActiveVerse, entities.ErrPlaybackFailure, err)
	}
	c.state.Position = pos
	c.mu.Unlock()

	c.notify()
	return nil
}

// SetSpeed changes the speed of the live stream and of every later session.
func (c *PlaybackController) SetSpeed(ctx context.Context, x float64) (float64, error) {
	x = entities.ClampSpeed(x)

	c.mu.Lock()
	c.speed = x
	c.state.Speed = x
	var err error
	if c.stream != nil {
		err = c.stream.SetSpeed(ctx, x)
	}
	c.mu.Unlock()

	c.notify()
	if err != nil {
		return x, fmt.Errorf("set speed %.2f: %w: %w", x, entities.ErrPlaybackFailure, err)
	}
	return x, nil
}

// SetRepeatMode sets the repeat mode.
func (c *PlaybackController) SetRepeatMode(mode entities.RepeatMode) {
	c.mu.Lock()
	c.repeat = mode
	c.state.Repeat = mode
	c.mu.Unlock()

	c.notify()
}

// CycleRepeatMode moves to the next repeat mode and returns it.
func (c *PlaybackController) CycleRepeatMode() entities.RepeatMode {
	c.mu.Lock()
	c.repeat = c.repeat.Next()
	c.state.Repeat = c.repeat
	mode := c.repeat
	c.mu.Unlock()

	c.notify()
	return mode
}

// OnPositionUpdate records the position reported by the backend. It never
// changes whether the session is playing.
func (c *PlaybackController) OnPositionUpdate(token uint64, position, duration float64) {
	c.mu.Lock()
	if token != c.token || c.stream == nil {
		c.mu.Unlock()
		return
	}
	c.state.Position = max(0, position)
	if duration > 0 {
		c.state.Duration = duration
	}
	c.mu.Unlock()

	c.notify()
}

// OnCompleted applies the completion policy to the session identified by
// token, in this order: repeat the verse, play its successor in the loaded
// chapter, restart the chapter, or stop.
func (c *PlaybackController) OnCompleted(ctx context.Context, token uint64) error {
	c.mu.Lock()
	if token != c.token || c.stream == nil {
		c.mu.Unlock()
		return nil
	}

	active := c.state.ActiveVerse
	repeat := c.repeat
	queue := c.queue
	c.state.Status = entities.StatusCompleted
	c.state.IsPlaying = false
	c.state.Position = c.state.Duration
	c.mu.Unlock()
	c.notify()

	if repeat == entities.RepeatVerse {
		src, _ := c.address.Source(active)
		return c.start(ctx, src, token)
	}

	next, ok := successor(queue, active)
	if !ok && repeat == entities.RepeatChapter {
		next, ok = firstOfChapter(queue, active)
	}
	if !ok {
		c.mu.Lock()
		if c.token == token {
			c.teardownLocked()
			c.resetLocked()
		}
		c.mu.Unlock()
		c.notify()
		return nil
	}

	src, err := c.address.Source(next.Number)
	if err != nil {
		return err
	}
	if err := c.start(ctx, src, token); err != nil {
		return err
	}

	c.mu.Lock()
	fn := c.onAdvance
	c.mu.Unlock()
	if fn != nil {
		fn(next)
	}
	return nil
}

func (c *PlaybackController) onStreamError(token uint64, err error) {
	c.mu.Lock()
	if token != c.token {
		c.mu.Unlock()
		return
	}
	verse := c.state.ActiveVerse
	c.teardownLocked()
	c.resetLocked()
	fn := c.onError
	c.mu.Unlock()

	c.logger.Error("playback failed", zap.Int("verse", verse), zap.Error(err))
	c.notify()
	if fn != nil {
		fn(fmt.Errorf("play verse %d: %w: %w", verse, entities.ErrPlaybackFailure, err))
	}
}

// Stop tears the session down and returns to Idle.
func (c *PlaybackController) Stop(_ context.Context) error {
	c.mu.Lock()
	c.token++
	c.teardownLocked()
	c.resetLocked()
	c.mu.Unlock()

	c.notify()
	return nil
}

// Close releases the current stream. The controller stays usable.
func (c *PlaybackController) Close() error {
	return c.Stop(context.Background())
}

func (c *PlaybackController) teardownLocked() {
	if c.done != nil {
		close(c.done)
		c.done = nil
	}
	if c.stream != nil {
		if err := c.stream.Close(); err != nil {
			c.logger.Warn("failed to close audio stream", zap.Error(err))
		}
		c.stream = nil
	}
}

func (c *PlaybackController) resetLocked() {
	c.state = entities.PlaybackState{
		Status: entities.StatusIdle,
		Speed:  c.speed,
		Repeat: c.repeat,
	}
}

func (c *PlaybackController) notify() {
	c.mu.Lock()
	fn := c.onState
	state := c.state
	c.mu.Unlock()

	if fn != nil {
		fn(state)
	}
}

// successor returns the verse following active in its chapter.
func successor(queue []entities.Verse, active int) (entities.Verse, bool) {
	cur, ok := findVerse(queue, active)
	if !ok {
		return entities.Verse{}, false
	}
	for _, v := range queue {
		if v.ChapterNumber == cur.ChapterNumber && v.NumberInChapter == cur.NumberInChapter+1 {
			return v, true
		}
	}
	return entities.Verse{}, false
}

// firstOfChapter returns the first verse of the chapter active belongs to.
func firstOfChapter(queue []entities.Verse, active int) (entities.Verse, bool) {
	cur, ok := findVerse(queue, active)
	if !ok {
		return entities.Verse{}, false
	}
	for _, v := range queue {
		if v.ChapterNumber == cur.ChapterNumber && v.NumberInChapter == 1 {
			return v, true
		}
	}
	return entities.Verse{}, false
}

func findVerse(queue []entities.Verse, number int) (entities.Verse, bool) {
	for _, v := range queue {
		if v.Number == number {
			return v, true
		}
	}
	return entities.Verse{}, false
}
