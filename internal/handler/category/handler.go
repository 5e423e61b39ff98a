package category

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go-firestore-admin/internal/eventpublisher"
	"go-firestore-admin/internal/eventpublisher/event"
	"go-firestore-admin/internal/logger"
	"go-firestore-admin/internal/projection"

	"github.com/labstack/echo/v4"
)

// Source is the live distribution the handler reads from.
type Source interface {
	eventpublisher.Publisher
	Latest() (projection.Snapshot, time.Time, bool)
}

type Handler struct {
	source Source
}

func New(source Source) *Handler {
	return &Handler{source: source}
}

type distribution struct {
	Entries   []projection.Entry `json:"entries"`
	Total     int                `json:"total"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

func newDistribution(s projection.Snapshot, at time.Time) distribution {
	return distribution{Entries: s.Entries(), Total: s.Total(), UpdatedAt: at}
}

func (h *Handler) Register(g *echo.Group) {
	g.GET("/distribution", h.Distribution)
	g.GET("/distribution/stream", h.Stream)
}

func (h *Handler) Distribution(c echo.Context) error {
	s, at, ok := h.source.Latest()
	if !ok {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "distribution not computed yet"})
	}
	return c.JSON(http.StatusOK, newDistribution(s, at))
}

// Stream sends the current distribution and then every new one as server-sent events until
// the client goes away or the publisher stops.
func (h *Handler) Stream(c echo.Context) error {
	ctx := c.Request().Context()
	l := logger.FromContext(ctx)

	events := make(chan event.Event, 1)
	h.source.Subscribe(events)
	defer h.source.Unsubscribe(events)

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if s, at, ok := h.source.Latest(); ok {
		if err := writeEvent(w, "distribution", newDistribution(s, at)); err != nil {
			return nil
		}
	}
	w.Flush()

	for {
		select {
		case <-ctx.Done():
			l.Debug().Msg("distribution stream closed by client")
			return nil
		case e, ok := <-events:
			if !ok {
				return nil
			}
			if e.Err != nil {
				_ = writeEvent(w, "error", echo.Map{"error": "distribution unavailable"})
				w.Flush()
				return nil
			}
			if err := writeEvent(w, "distribution", newDistribution(e.Distribution, e.At)); err != nil {
				l.Debug().Err(err).Msg("distribution stream write failed")
				return nil
			}
			w.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, name string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, payload)
	return err
}
