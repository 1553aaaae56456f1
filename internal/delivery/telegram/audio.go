package telegram

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/aliskhannn/quran-companion/internal/domain/entities"
	"github.com/aliskhannn/quran-companion/internal/service"
)

// AudioBackend delivers recitations to one chat as audio messages. The
// Telegram client plays them, so the stream never reports timing or completion.
type AudioBackend struct {
	bot    Sender
	chatID int64
}

// NewAudioBackend creates an AudioBackend sending to chatID.
func NewAudioBackend(bot Sender, chatID int64) *AudioBackend {
	return &AudioBackend{bot: bot, chatID: chatID}
}

// Open sends the recitation of src as an audio message.
func (b *AudioBackend) Open(_ context.Context, src service.AudioSource, _ float64) (service.AudioStream, error) {
	a := tgbotapi.NewAudio(b.chatID, tgbotapi.FileURL(src.URL))
	a.Title = fmt.Sprintf("Verset %d", src.VerseNumber)

	msg, err := b.bot.Send(a)
	if err != nil {
		return nil, fmt.Errorf("send audio: %w", err)
	}

	s := &sentAudio{events: make(chan entities.AudioEvent, 1)}
	if msg.Audio != nil && msg.Audio.Duration > 0 {
		s.events <- entities.AudioEvent{Kind: entities.AudioLoadedMetadata, Duration: float64(msg.Audio.Duration)}
	}
	return s, nil
}

// sentAudio is an audio message already delivered to the chat.
type sentAudio struct {
	once   sync.Once
	events chan entities.AudioEvent
}

func (s *sentAudio) Events() <-chan entities.AudioEvent { return s.events }

func (s *sentAudio) Pause(context.Context) error             { return nil }
func (s *sentAudio) Resume(context.Context) error            { return nil }
func (s *sentAudio) Seek(context.Context, float64) error     { return nil }
func (s *sentAudio) SetSpeed(context.Context, float64) error { return nil }

func (s *sentAudio) Close() error {
	s.once.Do(func() { close(s.events) })
	return nil
}
