package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/heropets/server/adoption"
	"github.com/heropets/server/audit"
	mw "github.com/heropets/server/middleware"
)

// AdoptionHandler handles the caller's adoptions. Every route requires Auth.
type AdoptionHandler struct {
	svc   *adoption.Service
	audit *audit.Service
}

// NewAdoptionHandler creates a new AdoptionHandler.
func NewAdoptionHandler(svc *adoption.Service, auditSvc *audit.Service) *AdoptionHandler {
	return &AdoptionHandler{svc: svc, audit: auditSvc}
}

// List handles GET /api/adoptions.
func (h *AdoptionHandler) List(c *gin.Context) {
	views, err := h.svc.List(c.Request.Context(), mw.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// Create handles POST /api/adoptions. A pet that already has a sponsor
// answers 409 and no adoption is recorded.
func (h *AdoptionHandler) Create(c *gin.Context) {
	var in adoption.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	a, err := h.svc.Create(c.Request.Context(), mw.GetUserID(c), in)
	var target string
	if a != nil {
		target = "adoption:" + strconv.FormatInt(a.ID, 10)
	}
	recordAudit(h.audit, c, "adoption.create", target, in, err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// Update handles PUT /api/adoptions/:id.
func (h *AdoptionHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in adoption.UpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	a, err := h.svc.Update(c.Request.Context(), mw.GetUserID(c), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// Delete handles DELETE /api/adoptions/:id.
func (h *AdoptionHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	err := h.svc.Delete(c.Request.Context(), mw.GetUserID(c), id)
	recordAudit(h.audit, c, "adoption.delete", "adoption:"+strconv.FormatInt(id, 10), nil, err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "adoption deleted"})
}
