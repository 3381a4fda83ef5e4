// internal/app/features/journeys/handler.go
package journeys

import (
	"context"

	uierrors "github.com/dalemusser/tellevo/internal/app/features/errors"
	journeystore "github.com/dalemusser/tellevo/internal/app/store/journeys"
	"github.com/dalemusser/tellevo/internal/app/system/auditlog"
	"github.com/dalemusser/tellevo/internal/app/system/events"
	"github.com/dalemusser/tellevo/internal/app/system/wsstream"
	"go.uber.org/zap"
)

// Handler serves the journey API. Every route expects a signed-in caller.
type Handler struct {
	Journeys *journeystore.Store
	Streamer *wsstream.Streamer
	Events   events.Publisher
	Audit    *auditlog.Logger
	ErrLog   *uierrors.ErrorLogger
	Log      *zap.Logger
}

func NewHandler(store *journeystore.Store, streamer *wsstream.Streamer, pub events.Publisher, audit *auditlog.Logger, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	if pub == nil {
		pub = events.Noop{}
	}
	return &Handler{
		Journeys: store,
		Streamer: streamer,
		Events:   pub,
		Audit:    audit,
		ErrLog:   errLog,
		Log:      logger,
	}
}

// publish sends e without tying it to the request lifetime. Broker
// failures are logged; the write they describe has already happened.
func (h *Handler) publish(ctx context.Context, e events.Event) {
	if err := h.Events.Publish(context.WithoutCancel(ctx), e); err != nil {
		h.Log.Warn("journey event not published",
			zap.String("type", e.Type),
			zap.String("journey", e.JourneyID),
			zap.Error(err))
	}
}
