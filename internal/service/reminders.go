package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/aliskhannn/quran-companion/internal/domain/entities"
	"github.com/aliskhannn/quran-companion/internal/storage"
)

const (
	remindersKey    = "reminders.chats"
	DefaultSchedule = "0 20 * * *"
)

// ProgressReader returns the reading progress of a chat.
type ProgressReader interface {
	ReadingSummary(ctx context.Context, chatID int64) (entities.ReadingSummary, error)
}

// ReminderService sends a daily reading reminder to every subscribed chat.
type ReminderService struct {
	kv       Persistence
	progress ProgressReader
	notifier ReminderNotifier
	schedule string
	logger   *zap.Logger

	mu    sync.Mutex
	chats map[int64]struct{}
}

// NewReminderService creates a new reminder service. An empty schedule
// means DefaultSchedule.
func NewReminderService(kv Persistence, progress ProgressReader, schedule string, logger *zap.Logger) *ReminderService {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &ReminderService{
		kv:       kv,
		progress: progress,
		schedule: schedule,
		logger:   logger,
		chats:    make(map[int64]struct{}),
	}
}

// SetNotifier sets the notifier (called after handler is created).
func (s *ReminderService) SetNotifier(notifier ReminderNotifier) {
	s.mu.Lock()
	s.notifier = notifier
	s.mu.Unlock()
}

// Load reads the subscribed chats from persistence.
func (s *ReminderService) Load(ctx context.Context) error {
	data, err := s.kv.Get(ctx, remindersKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load reminders: %w", err)
	}

	var ids []int64
	if err := json.Unmarshal(data, &ids); err != nil {
		return fmt.Errorf("decode reminders: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats = make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		s.chats[id] = struct{}{}
	}
	return nil
}

// Subscribe enables reminders for chatID.
func (s *ReminderService) Subscribe(ctx context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chats[chatID]; ok {
		return nil
	}
	s.chats[chatID] = struct{}{}
	if err := s.persistLocked(ctx); err != nil {
		delete(s.chats, chatID)
		return err
	}
	return nil
}

// Unsubscribe disables reminders for chatID.
func (s *ReminderService) Unsubscribe(ctx context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chats[chatID]; !ok {
		return nil
	}
	delete(s.chats, chatID)
	if err := s.persistLocked(ctx); err != nil {
		s.chats[chatID] = struct{}{}
		return err
	}
	return nil
}

// IsSubscribed reports whether chatID receives reminders.
func (s *ReminderService) IsSubscribed(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.chats[chatID]
	return ok
}

// Start runs the reminder schedule until ctx is cancelled.
func (s *ReminderService) Start(ctx context.Context) error {
	c := cron.New(cron.WithLocation(time.UTC))

	_, err := c.AddFunc(s.schedule, func() {
		s.logger.Info("cron triggered: sending reading reminders")
		if _, err := s.SendReminders(ctx); err != nil {
			s.logger.Error("failed to send reminders", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("add cron job %q: %w", s.schedule, err)
	}

	c.Start()
	s.logger.Info("reminder service started", zap.String("schedule", s.schedule))

	<-ctx.Done()

	<-c.Stop().Done()
	s.logger.Info("reminder service stopped")
	return nil
}

// SendReminders sends the reminder to every subscribed chat that still has
// verses left to read and returns how many were sent.
func (s *ReminderService) SendReminders(ctx context.Context) (int, error) {
	s.mu.Lock()
	notifier := s.notifier
	chats := slices.Sorted(maps.Keys(s.chats))
	s.mu.Unlock()

	if notifier == nil {
		return 0, errors.New("notifier not initialized")
	}

	const maxConcurrent = 10
	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup
	var mu sync.Mutex
	sent := 0

	for _, chatID := range chats {
		wg.Add(1)
		sem <- struct{}{} // Acquire

		go func() {
			defer wg.Done()
			defer func() { <-sem }() // Release

			ok, err := s.remind(ctx, notifier, chatID)
			if err != nil {
				s.logger.Error("failed to send reminder",
					zap.Int64("chat_id", chatID),
					zap.Error(err))
				return
			}
			if ok {
				mu.Lock()
				sent++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	s.logger.Info("reminders processed", zap.Int("total_sent", sent), zap.Int("subscribed", len(chats)))
	return sent, nil
}

func (s *ReminderService) remind(ctx context.Context, notifier ReminderNotifier, chatID int64) (bool, error) {
	summary, err := s.progress.ReadingSummary(ctx, chatID)
	if err != nil {
		return false, fmt.Errorf("get reading summary: %w", err)
	}
	if summary.Remaining() == 0 {
		s.logger.Debug("nothing left to read", zap.Int64("chat_id", chatID))
		return false, nil
	}

	if err := notifier.SendReminder(ctx, chatID, summary); err != nil {
		return false, fmt.Errorf("send notification: %w", err)
	}
	return true, nil
}

func (s *ReminderService) persistLocked(ctx context.Context) error {
	data, err := json.Marshal(slices.Sorted(maps.Keys(s.chats)))
	if err != nil {
		return fmt.Errorf("encode reminders: %w", err)
	}
	if err := s.kv.Set(ctx, remindersKey, data); err != nil {
		return fmt.Errorf("save reminders: %w", err)
	}
	return nil
}
