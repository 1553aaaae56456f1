package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/aliskhannn/quran-companion/internal/domain/entities"
	"github.com/aliskhannn/quran-companion/internal/storage"
)

var testAddress = AudioAddress{BaseURL: "https://audio.test", Bitrate: 64, Reciter: "ar.test"}

type fakeStream struct {
	mu       sync.Mutex
	events   chan entities.AudioEvent
	pauses   int
	resumes  int
	seeks    []float64
	speeds   []float64
	closed   bool
	pauseErr error
}

func newFakeStream() *fakeStream {
	return &fakeStream{events: make(chan entities.AudioEvent, 16)}
}

func (s *fakeStream) Events() <-chan entities.AudioEvent { return s.events }

func (s *fakeStream) Pause(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pauseErr != nil {
		return s.pauseErr
	}
	s.pauses++
	return nil
}

func (s *fakeStream) Resume(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resumes++
	return nil
}

func (s *fakeStream) Seek(_ context.Context, pos float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seeks = append(s.seeks, pos)
	return nil
}

func (s *fakeStream) SetSpeed(_ context.Context, speed float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speeds = append(s.speeds, speed)
	return nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}

func (s *fakeStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeBackend struct {
	mu      sync.Mutex
	opened  []AudioSource
	speeds  []float64
	streams []*fakeStream
	err     error
	gate    chan struct{} // when set, Open blocks until it is closed
	opening chan struct{} // receives once per Open that blocks on gate
}

func (b *fakeBackend) Open(ctx context.Context, src AudioSource, speed float64) (AudioStream, error) {
	b.mu.Lock()
	gate := b.gate
	b.mu.Unlock()
	if gate != nil {
		b.opening <- struct{}{}
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.opened = append(b.opened, src)
	b.speeds = append(b.speeds, speed)
	if b.err != nil {
		return nil, b.err
	}
	s := newFakeStream()
	b.streams = append(b.streams, s)
	return s, nil
}

func (b *fakeBackend) openCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.opened)
}

func (b *fakeBackend) lastOpened() AudioSource {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opened[len(b.opened)-1]
}

func (b *fakeBackend) lastStream() *fakeStream {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.streams[len(b.streams)-1]
}

// failingKV fails every write while fail is set.
type failingKV struct {
	mu     sync.Mutex
	values map[string][]byte
	fail   bool
	writes int
}

var errDiskFull = errors.New("disk full")

func newFailingKV() *failingKV {
	return &failingKV{values: make(map[string][]byte)}
}

func (s *failingKV) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return v, nil
}

func (s *failingKV) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errDiskFull
	}
	s.writes++
	s.values[key] = append([]byte(nil), value...)
	return nil
}

func (s *failingKV) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errDiskFull
	}
	s.writes++
	for _, k := range keys {
		delete(s.values, k)
	}
	return nil
}

func (s *failingKV) setFail(fail bool) {
	s.mu.Lock()
	s.fail = fail
	s.mu.Unlock()
}

func (s *failingKV) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func newTestController(backend AudioBackend) *PlaybackController {
	return NewPlaybackController(backend, testAddress, zap.NewNop())
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
