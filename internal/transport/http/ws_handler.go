package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"quizzly-service/internal/domain"
)

const (
	defaultPollInterval = 2 * time.Second
	writeWait           = 10 * time.Second
)

// LeaderboardSource is the read side the watch polls.
type LeaderboardSource interface {
	Leaderboard(ctx context.Context, quizID string) ([]domain.LeaderboardEntry, error)
}

// WSHandler streams a quiz leaderboard over a websocket. It polls the store
// and pushes only when the ranking changed.
type WSHandler struct {
	source   LeaderboardSource
	interval time.Duration
	log      logrus.FieldLogger
	upgrader websocket.Upgrader
}

func NewWSHandler(source LeaderboardSource, interval time.Duration, log logrus.FieldLogger) *WSHandler {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &WSHandler{
		source:   source,
		interval: interval,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// ServeWS validates the quiz before upgrading, so an unknown id is a plain
// HTTP error rather than a websocket close.
func (h *WSHandler) ServeWS(c *gin.Context) {
	quizID := c.Param("id")
	board, err := h.source.Leaderboard(c.Request.Context(), quizID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	log := h.log.WithField("quiz_id", quizID)
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// The client never sends anything meaningful; reading only detects close.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	last := fingerprint(board)
	if err := writeJSON(conn, outboundMessage[[]domain.LeaderboardEntry]{Type: "leaderboard", Payload: board}); err != nil {
		log.WithError(err).Debug("ws write failed")
		return
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		board, err := h.source.Leaderboard(ctx, quizID)
		if err != nil {
			if ctx.Err() == nil {
				_ = writeJSON(conn, outboundMessage[errorBody]{Type: "error", Payload: publicError(log, err)})
			}
			return
		}
		current := fingerprint(board)
		if bytes.Equal(current, last) {
			continue
		}
		last = current
		if err := writeJSON(conn, outboundMessage[[]domain.LeaderboardEntry]{Type: "leaderboard", Payload: board}); err != nil {
			log.WithError(err).Debug("ws write failed")
			return
		}
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// fingerprint ignores attemptedAt, which tracks the clock while a quiz runs.
func fingerprint(board []domain.LeaderboardEntry) []byte {
	stable := make([]domain.LeaderboardEntry, len(board))
	for i, e := range board {
		e.AttemptedAt = time.Time{}
		stable[i] = e
	}
	raw, _ := json.Marshal(stable)
	return raw
}
