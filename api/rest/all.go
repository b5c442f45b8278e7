package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/heropets/server/game/pet"
	"github.com/heropets/server/model"
	"gorm.io/gorm"
)

// AllHandler serves the public combined listing.
type AllHandler struct {
	db   *gorm.DB
	pets *pet.Service
}

// NewAllHandler creates a new AllHandler.
func NewAllHandler(db *gorm.DB, pets *pet.Service) *AllHandler {
	return &AllHandler{db: db, pets: pets}
}

// List handles GET /api/all.
func (h *AllHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	heroes := []model.Hero{}
	if err := h.db.WithContext(ctx).Order("id").Find(&heroes).Error; err != nil {
		respondError(c, err)
		return
	}
	pets, err := h.pets.ListAll(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	if pets == nil {
		pets = []model.Pet{}
	}
	c.JSON(http.StatusOK, gin.H{"heroes": heroes, "pets": pets})
}
