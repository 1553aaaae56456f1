package logger

import (
	"go.uber.org/zap"

	"github.com/aliskhannn/quran-companion/internal/config"
)

func New(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Env == "production" {
		return zap.NewProduction()
	}

	return zap.NewDevelopment()
}

// NewFile builds a logger that writes to path instead of the terminal,
// for views that own the screen.
func NewFile(cfg *config.Config, path string) (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	if cfg.Env == "production" {
		zc = zap.NewProductionConfig()
	}
	zc.OutputPaths = []string{path}
	zc.ErrorOutputPaths = []string{path}

	return zc.Build()
}
