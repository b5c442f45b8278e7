package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/heropets/server/sequence"
)

// AdminHandler handles admin-only REST endpoints.
// Routes should be protected by AdminAuth middleware.
type AdminHandler struct {
	seq *sequence.Allocator
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(seq *sequence.Allocator) *AdminHandler {
	return &AdminHandler{seq: seq}
}

// Counters returns the last ID issued for every entity.
// GET /api/admin/counters
func (h *AdminHandler) Counters(c *gin.Context) {
	snap, err := h.seq.Snapshot(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"counters": snap})
}
