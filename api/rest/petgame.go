package rest

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/heropets/server/game/pet"
	mw "github.com/heropets/server/middleware"
)

// PetGameHandler exposes the pet game actions.
type PetGameHandler struct {
	svc *pet.Service
}

// NewPetGameHandler creates a new PetGameHandler.
func NewPetGameHandler(svc *pet.Service) *PetGameHandler {
	return &PetGameHandler{svc: svc}
}

// actionRequest carries the argument of the actions that take one. Unused
// fields are ignored.
type actionRequest struct {
	Item    string `json:"item"`
	Illness string `json:"enfermedad"`
}

func (r actionRequest) arg(action pet.Action) string {
	switch action {
	case pet.ActionDress:
		return r.Item
	case pet.ActionSicken:
		return r.Illness
	}
	return ""
}

// Status handles GET /api/mascotas/:id/estado.
func (h *PetGameHandler) Status(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	st, err := h.svc.Status(c.Request.Context(), mw.GetUserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// Act handles PUT /api/mascotas/:id/:action, where action is one of
// alimentar, pasear, jugar, curar, vestir or enfermar.
func (h *PetGameHandler) Act(c *gin.Context) {
	action, ok := pet.RouteAction(c.Param("action"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown action"})
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req actionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			badRequest(c, err)
			return
		}
	}

	out, err := h.svc.Apply(c.Request.Context(), mw.GetUserID(c), id, action, req.arg(action))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": out.Success,
		"message": out.Message,
		"status":  pet.StatusOf(out.Pet),
	})
}

// History handles GET /api/mascotas/:id/historial.
func (h *PetGameHandler) History(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	hist, err := h.svc.History(c.Request.Context(), mw.GetUserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, hist)
}

// HeroPets handles GET /api/superheroes/:id/mascotas.
func (h *PetGameHandler) HeroPets(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	pets, err := h.svc.ListByHero(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pets)
}
