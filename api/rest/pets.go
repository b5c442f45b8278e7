package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/heropets/server/audit"
	"github.com/heropets/server/game/pet"
	mw "github.com/heropets/server/middleware"
)

// PetHandler handles the caller's pets. Every route requires Auth.
type PetHandler struct {
	svc   *pet.Service
	audit *audit.Service
}

// NewPetHandler creates a new PetHandler.
func NewPetHandler(svc *pet.Service, auditSvc *audit.Service) *PetHandler {
	return &PetHandler{svc: svc, audit: auditSvc}
}

// List handles GET /api/pets.
func (h *PetHandler) List(c *gin.Context) {
	pets, err := h.svc.ListOwned(c.Request.Context(), mw.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pets)
}

// Create handles POST /api/pets.
func (h *PetHandler) Create(c *gin.Context) {
	var in pet.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	p, err := h.svc.Create(c.Request.Context(), mw.GetUserID(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// Update handles PUT /api/pets/:id.
func (h *PetHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in pet.UpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	p, err := h.svc.Update(c.Request.Context(), mw.GetUserID(c), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Delete handles DELETE /api/pets/:id.
func (h *PetHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	err := h.svc.Delete(c.Request.Context(), mw.GetUserID(c), id)
	recordAudit(h.audit, c, "pet.delete", "pet:"+strconv.FormatInt(id, 10), nil, err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "pet deleted"})
}
