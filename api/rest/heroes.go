package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	mw "github.com/heropets/server/middleware"
	"github.com/heropets/server/model"
	"github.com/heropets/server/sequence"
	"gorm.io/gorm"
)

// HeroHandler handles the public hero catalogue.
type HeroHandler struct {
	db  *gorm.DB
	seq *sequence.Allocator
}

// NewHeroHandler creates a new HeroHandler.
func NewHeroHandler(db *gorm.DB, seq *sequence.Allocator) *HeroHandler {
	return &HeroHandler{db: db, seq: seq}
}

type heroRequest struct {
	Name  string `json:"name" binding:"required,max=64"`
	Power string `json:"power" binding:"required,max=128"`
}

type heroUpdateRequest struct {
	Name  *string `json:"name" binding:"omitempty,min=1,max=64"`
	Power *string `json:"power" binding:"omitempty,min=1,max=128"`
}

// List handles GET /api/heroes.
func (h *HeroHandler) List(c *gin.Context) {
	heroes := []model.Hero{}
	if err := h.db.WithContext(c.Request.Context()).Order("id").Find(&heroes).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, heroes)
}

// Create handles POST /api/heroes. The caller is recorded as creator when
// the request carries a valid token.
func (h *HeroHandler) Create(c *gin.Context) {
	var req heroRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	hero := &model.Hero{Name: req.Name, Power: req.Power}
	if uid := mw.GetUserID(c); uid != 0 {
		hero.OwnerUserID = &uid
	}

	ctx := c.Request.Context()
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, err := h.seq.WithTx(tx).Next(ctx, sequence.Heroes)
		if err != nil {
			return err
		}
		hero.ID = id
		return tx.Create(hero).Error
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, hero)
}

func (h *HeroHandler) find(tx *gorm.DB, id int64) (*model.Hero, error) {
	var hero model.Hero
	err := tx.Where("id = ?", id).Take(&hero).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrNotFound
	}
	return &hero, err
}

// Update handles PUT /api/heroes/:id.
func (h *HeroHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req heroUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	var hero *model.Hero
	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var err error
		if hero, err = h.find(tx, id); err != nil {
			return err
		}
		if req.Name != nil {
			hero.Name = *req.Name
		}
		if req.Power != nil {
			hero.Power = *req.Power
		}
		return tx.Model(hero).Select("name", "power").Updates(hero).Error
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, hero)
}

// Delete handles DELETE /api/heroes/:id. Pets the hero sponsored lose their
// sponsor; adoption records are kept.
func (h *HeroHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&model.Hero{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return model.ErrNotFound
		}
		return tx.Model(&model.Pet{}).Where("hero_id = ?", id).
			Updates(map[string]any{"hero_id": nil, "version": gorm.Expr("version + 1")}).Error
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "hero deleted"})
}
