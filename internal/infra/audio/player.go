// Package audio plays recitations locally by running ffplay, one process per
// stream. Pausing, seeking and speed changes restart the process at the
// current position.
package audio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aliskhannn/quran-companion/internal/config"
	"github.com/aliskhannn/quran-companion/internal/domain/entities"
	"github.com/aliskhannn/quran-companion/internal/service"
)

const tickInterval = 250 * time.Millisecond

// Player is an AudioBackend backed by ffplay and ffprobe.
type Player struct {
	command string
	probe   string
	tick    time.Duration
	logger  *zap.Logger
}

// NewPlayer creates a Player from the player configuration.
func NewPlayer(cfg config.Player, logger *zap.Logger) *Player {
	command := cfg.Command
	if command == "" {
		command = "ffplay"
	}
	return &Player{
		command: command,
		probe:   cfg.ProbeCommand,
		tick:    tickInterval,
		logger:  logger,
	}
}

// Open starts playing src at the given speed.
func (p *Player) Open(ctx context.Context, src service.AudioSource, speed float64) (service.AudioStream, error) {
	duration := p.duration(ctx, src.URL)

	s := &stream{
		player:   p,
		src:      src,
		duration: duration,
		speed:    entities.ClampSpeed(speed),
		events:   make(chan entities.AudioEvent, 16),
		done:     make(chan struct{}),
	}

	s.mu.Lock()
	err := s.spawnLocked(0)
	if err == nil && duration > 0 {
		s.emitLocked(entities.AudioEvent{Kind: entities.AudioLoadedMetadata, Duration: duration})
	}
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	go s.ticker()
	return s, nil
}

// duration asks ffprobe for the length of url. Zero means unknown.
func (p *Player) duration(ctx context.Context, url string) float64 {
	if p.probe == "" {
		return 0
	}

	cmd := exec.CommandContext(ctx, p.probe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		url)
	out, err := cmd.Output()
	if err != nil {
		p.logger.Warn("failed to probe duration", zap.String("url", url), zap.Error(err))
		return 0
	}

	d, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

func playArgs(url string, position, speed float64) []string {
	args := []string{"-nodisp", "-autoexit", "-loglevel", "error"}
	if position > 0 {
		args = append(args, "-ss", strconv.FormatFloat(position, 'f', 3, 64))
	}
	if speed != entities.DefaultSpeed {
		args = append(args, "-af", "atempo="+strconv.FormatFloat(speed, 'f', 2, 64))
	}
	return append(args, url)
}

type stream struct {
	player   *Player
	src      service.AudioSource
	duration float64

	mu      sync.Mutex
	cmd     *exec.Cmd // nil while paused, finished or closed
	offset  float64   // position the current process started at
	started time.Time
	speed   float64
	paused  bool
	closed  bool
	events  chan entities.AudioEvent
	done    chan struct{}
	sending sync.WaitGroup // deliveries in flight, events stays open until they return
}

func (s *stream) Events() <-chan entities.AudioEvent { return s.events }

func (s *stream) Pause(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.paused {
		return nil
	}
	s.offset = s.positionLocked()
	s.killLocked()
	s.paused = true
	return nil
}

func (s *stream) Resume(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.paused {
		return nil
	}
	if err := s.spawnLocked(s.offset); err != nil {
		return err
	}
	s.paused = false
	return nil
}

func (s *stream) Seek(_ context.Context, position float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.offset = position
	if s.paused {
		return nil
	}
	s.killLocked()
	return s.spawnLocked(position)
}

func (s *stream) SetSpeed(_ context.Context, speed float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	pos := s.positionLocked()
	s.speed = entities.ClampSpeed(speed)
	s.offset = pos
	if s.paused || s.cmd == nil {
		return nil
	}
	s.killLocked()
	return s.spawnLocked(pos)
}

func (s *stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.killLocked()
	close(s.done)
	s.mu.Unlock()

	s.sending.Wait()
	close(s.events)
	return nil
}

func (s *stream) spawnLocked(position float64) error {
	cmd := exec.Command(s.player.command, playArgs(s.src.URL, position, s.speed)...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", s.player.command, err)
	}

	s.cmd = cmd
	s.offset = position
	s.started = time.Now()

	go func() {
		err := cmd.Wait()
		s.exited(cmd, err, stderr)
	}()
	return nil
}

// killLocked stops the running process; its exit is then ignored.
func (s *stream) killLocked() {
	if s.cmd == nil {
		return
	}
	cmd := s.cmd
	s.cmd = nil
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

func (s *stream) exited(cmd *exec.Cmd, err error, stderr *bytes.Buffer) {
	s.mu.Lock()
	if s.cmd != cmd || s.closed {
		s.mu.Unlock()
		return
	}
	s.cmd = nil

	ev := entities.AudioEvent{Kind: entities.AudioEnded, Position: s.duration, Duration: s.duration}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		s.player.logger.Error("player exited",
			zap.Int("verse", s.src.VerseNumber),
			zap.String("stderr", msg),
			zap.Error(err))
		ev = entities.AudioEvent{
			Kind: entities.AudioError,
			Err:  fmt.Errorf("%s: %w: %s", s.player.command, err, msg),
		}
	} else {
		s.offset = s.duration
	}
	s.sending.Add(1)
	s.mu.Unlock()

	s.deliver(ev)
}

// deliver blocks until the consumer takes ev or the stream is closed.
func (s *stream) deliver(ev entities.AudioEvent) {
	defer s.sending.Done()
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func (s *stream) ticker() {
	t := time.NewTicker(s.player.tick)
	defer t.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-t.C:
			s.mu.Lock()
			if s.cmd != nil {
				s.emitLocked(entities.AudioEvent{
					Kind:     entities.AudioTimeUpdate,
					Position: s.positionLocked(),
					Duration: s.duration,
				})
			}
			s.mu.Unlock()
		}
	}
}

func (s *stream) positionLocked() float64 {
	pos := s.offset
	if s.cmd != nil {
		pos += time.Since(s.started).Seconds() * s.speed
	}
	if s.duration > 0 {
		pos = min(pos, s.duration)
	}
	return pos
}

// emitLocked delivers ev without blocking. It is only used for position and
// metadata updates, which are dropped when the consumer lags behind.
func (s *stream) emitLocked(ev entities.AudioEvent) {
	if s.closed {
		return
	}
	select {
	case s.events <- ev:
	default:
		if ev.Kind != entities.AudioTimeUpdate {
			s.player.logger.Warn("audio event dropped", zap.Int("kind", int(ev.Kind)))
		}
	}
}
