package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/anonto42/apollo/backend/internal/models"
	"github.com/anonto42/apollo/backend/internal/notifications"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// NotificationHandler serves the live notification list
type NotificationHandler struct {
	manager *notifications.Manager
	settle  time.Duration
	log     *zap.SugaredLogger
}

// NewNotificationHandler creates a new NotificationHandler. settle bounds how
// long a one-shot read waits for every subscription to answer.
func NewNotificationHandler(manager *notifications.Manager, settle time.Duration, log *zap.SugaredLogger) *NotificationHandler {
	return &NotificationHandler{manager: manager, settle: settle, log: log}
}

// RegisterNotificationRoutes registers notification routes
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	g.GET("/notifications", h.GetNotifications)
	g.GET("/notifications/live", h.LiveNotifications)
}

// GetNotifications activates an aggregator, waits until it has heard from
// every subscription (or the settle time passes) and returns the list
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	claims, err := sessionUser(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	agg, err := h.manager.Open(ctx, notifications.Session{UserID: claims.FirebaseUID})
	defer h.manager.Release(agg)
	if err != nil {
		if errors.Is(err, notifications.ErrPostsUnavailable) {
			return success(c, http.StatusOK, echo.Map{
				"notifications": []models.NotificationEvent{},
				"retry":         true,
			})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	complete := true
	timer := time.NewTimer(h.settle)
	defer timer.Stop()
	select {
	case <-agg.Ready():
	case <-timer.C:
		complete = false
	case <-ctx.Done():
		return ctx.Err()
	}

	return success(c, http.StatusOK, echo.Map{
		"notifications": agg.Events(),
		"retry":         false,
		"complete":      complete,
	})
}

// LiveNotifications streams the list over a websocket. The aggregator is
// active while the socket is open; a {"type":"retry"} frame re-runs a failed
// activation and signing out closes the stream.
func (h *NotificationHandler) LiveNotifications(c echo.Context) error {
	claims, err := sessionUser(c)
	if err != nil {
		return err
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already answered the request
		return nil
	}
	live := newLiveConn(conn)
	ctx := c.Request().Context()

	agg, err := h.manager.Open(ctx, notifications.Session{UserID: claims.FirebaseUID})
	defer h.manager.Release(agg)
	log := h.log.With("aggregator_id", agg.ID(), "user_id", claims.FirebaseUID)
	log.Infow("live notifications connected")

	if err := h.sendState(live, agg, err); err != nil {
		live.close("write failed")
		return nil
	}

	done := make(chan struct{})
	defer close(done)
	frames := live.readFrames(done)
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case events := <-agg.Updates():
			if err := live.send(liveFrame{Type: frameNotifications, Data: events}); err != nil {
				live.close("write failed")
				return nil
			}
		case f, ok := <-frames:
			if !ok {
				log.Infow("live notifications disconnected")
				live.close("")
				return nil
			}
			if f.Type == frameRetry {
				if err := h.sendState(live, agg, agg.Activate(ctx)); err != nil {
					live.close("write failed")
					return nil
				}
			}
		case <-agg.Closed():
			live.send(liveFrame{Type: frameSignedOut})
			live.close("signed out")
			return nil
		case <-ticker.C:
			if err := live.ping(); err != nil {
				live.close("")
				return nil
			}
		}
	}
}

// sendState reports an activation failure or the current list
func (h *NotificationHandler) sendState(live *liveConn, agg *notifications.Aggregator, activateErr error) error {
	if activateErr != nil {
		return live.send(liveFrame{
			Type:  frameError,
			Error: "notifications are unavailable right now",
			Retry: errors.Is(activateErr, notifications.ErrPostsUnavailable),
		})
	}
	return live.send(liveFrame{Type: frameNotifications, Data: agg.Events()})
}
