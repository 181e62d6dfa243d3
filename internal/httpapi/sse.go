package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/BetselotB/idea-plate/internal/logging"
)

func (s *Server) streamLikes(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if _, err := s.svc.Ideas.Get(ctx, id); err != nil {
		return err
	}
	snaps, err := s.svc.Engagement.WatchLikes(ctx, id)
	if err != nil {
		return err
	}
	return streamSnapshots(c, "likes", snaps, s.heartbeat)
}

func (s *Server) streamComments(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if _, err := s.svc.Ideas.Get(ctx, id); err != nil {
		return err
	}
	snaps, err := s.svc.Engagement.WatchComments(ctx, id)
	if err != nil {
		return err
	}
	return streamSnapshots(c, "comments", snaps, s.heartbeat)
}

// streamSnapshots writes each snapshot as an SSE event until the channel
// closes or the client disconnects. Comment lines keep proxies from timing
// the connection out.
func streamSnapshots[T any](c echo.Context, event string, snaps <-chan T, heartbeat time.Duration) error {
	ctx := c.Request().Context()
	logger := logging.FromContext(ctx, nil)

	w := c.Response()
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case snap, ok := <-snaps:
			if !ok {
				return nil
			}
			data, err := json.Marshal(snap)
			if err != nil {
				logger.Warn("encode snapshot", zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "event: %s\n", event)
			fmt.Fprintf(w, "data: %s\n\n", data)
			w.Flush()

		case <-ticker.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			w.Flush()

		case <-ctx.Done():
			return nil
		}
	}
}
