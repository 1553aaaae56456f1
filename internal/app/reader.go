package app

import (
	"context"

	"go.uber.org/zap"

	"github.com/aliskhannn/quran-companion/internal/config"
	"github.com/aliskhannn/quran-companion/internal/infra/alquran"
	"github.com/aliskhannn/quran-companion/internal/repository"
	"github.com/aliskhannn/quran-companion/internal/service"
)

// Reading holds the collaborators shared by every reader session.
type Reading struct {
	Client   *alquran.Client
	Chapters *repository.ChapterRepository
	Address  service.AudioAddress
	Config   service.ReaderConfig
	Logger   *zap.Logger
}

// NewReading builds the verse provider and chapter catalog from cfg.
func NewReading(cfg *config.Config, logger *zap.Logger) *Reading {
	client := alquran.NewClient(cfg.Quran.APIBaseURL, nil)

	return &Reading{
		Client:   client,
		Chapters: repository.NewChapterRepository(client),
		Address: service.AudioAddress{
			BaseURL: cfg.Quran.AudioBaseURL,
			Bitrate: cfg.Quran.AudioBitrate,
			Reciter: cfg.Quran.Reciter,
		},
		Config: service.ReaderConfig{
			Editions: service.Editions{
				Text:        cfg.Quran.TextEdition,
				Translation: cfg.Quran.TranslationEdition,
				Search:      cfg.Quran.SearchEdition,
			},
			FetchTimeout: cfg.Quran.FetchTimeout,
		},
		Logger: logger,
	}
}

// NewSession starts a reader session playing through backend and persisting
// into kv.
func (r *Reading) NewSession(ctx context.Context, backend service.AudioBackend, kv service.Persistence) (*service.ReaderSession, error) {
	player := service.NewPlaybackController(backend, r.Address, r.Logger)
	rs := service.NewReaderSession(
		r.Client,
		r.Chapters,
		player,
		service.NewProgressStore(kv),
		service.NewNoteStore(kv),
		r.Config,
		r.Logger,
	)
	if err := rs.Start(ctx); err != nil {
		return nil, err
	}
	return rs, nil
}
