package telegram

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/aliskhannn/quran-companion/internal/domain/entities"
	"github.com/aliskhannn/quran-companion/internal/service"
)

type HandlerFunc func(ctx context.Context, chatID int64) error

func (h *Handler) withErrorHandling(fn HandlerFunc) HandlerFunc {
	return func(ctx context.Context, chatID int64) error {
		err := fn(ctx, chatID)
		if err == nil || errors.Is(err, service.ErrSuperseded) {
			return nil
		}

		text := userMessage(err)
		if text == msgInternalError {
			h.logger.Error("handle error",
				zap.Int64("chat_id", chatID),
				zap.Error(err),
			)
		} else {
			h.logger.Warn("request failed",
				zap.Int64("chat_id", chatID),
				zap.Error(err),
			)
		}
		h.sendError(chatID, text)
		return nil
	}
}

// userMessage maps an error to the message shown in the chat.
func userMessage(err error) string {
	switch {
	case errors.Is(err, errNoVerse):
		return msgNoVerse
	case errors.Is(err, entities.ErrInvalidReference):
		return msgInvalidReference
	case errors.Is(err, entities.ErrNetworkFailure):
		return msgNetwork
	case errors.Is(err, entities.ErrDataInconsistency):
		return msgDataInconsistent
	case errors.Is(err, entities.ErrPlaybackFailure):
		return msgPlayback
	default:
		return msgInternalError
	}
}
