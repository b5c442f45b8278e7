package sse

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/heropets/server/game/pet"
	mw "github.com/heropets/server/middleware"
	"github.com/heropets/server/model"
	"go.uber.org/zap"
)

const keepaliveInterval = 30 * time.Second

// Handler streams pet game events as server-sent events.
type Handler struct {
	pets   *pet.Service
	logger *zap.Logger
}

// NewHandler creates a new SSE Handler.
func NewHandler(pets *pet.Service, logger *zap.Logger) *Handler {
	return &Handler{pets: pets, logger: logger}
}

// PetEvents handles GET /api/mascotas/:id/eventos.
// Routes should be protected by StreamAuth so EventSource clients can pass
// the token as ?token=.
func (h *Handler) PetEvents(c *gin.Context) {
	petID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || petID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	userID := mw.GetUserID(c)

	msgCh, unsub, err := h.pets.Subscribe(c.Request.Context(), userID, petID)
	if errors.Is(err, model.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found or not authorized"})
		return
	}
	if err != nil {
		h.logger.Error("sse subscribe failed", zap.Int64("pet_id", petID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	defer unsub()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	fmt.Fprintf(c.Writer, "event: connected\ndata: {\"petId\":%d}\n\n", petID)
	c.Writer.Flush()

	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			fmt.Fprintf(c.Writer, "event: pet\ndata: %s\n\n", msg.Payload)
			c.Writer.Flush()

		case <-ticker.C:
			// Keepalive comment to prevent proxy timeouts.
			fmt.Fprintf(c.Writer, ": keepalive\n\n")
			c.Writer.Flush()

		case <-c.Request.Context().Done():
			return
		}
	}
}
