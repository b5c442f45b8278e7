package rest

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/heropets/server/adoption"
	"github.com/heropets/server/game/pet"
	"github.com/heropets/server/model"
	"gorm.io/gorm"
)

// ErrEmailTaken is returned when registering an address that already has an account.
var ErrEmailTaken = errors.New("email already registered")

const notFoundMessage = "not found or not authorized"

// respondError writes err as a JSON {error} body with the matching status.
// Unexpected errors are attached to the context for the request logger and
// answered with a generic 500.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFoundMessage})
	case errors.Is(err, model.ErrConflict), errors.Is(err, adoption.ErrAlreadyAdopted):
		c.JSON(http.StatusConflict, gin.H{"error": rootMessage(err)})
	case errors.Is(err, pet.ErrInvalidIllness),
		errors.Is(err, pet.ErrEmptyItem),
		errors.Is(err, pet.ErrPetDead),
		errors.Is(err, pet.ErrUnknownAction),
		errors.Is(err, ErrEmailTaken):
		c.JSON(http.StatusBadRequest, gin.H{"error": rootMessage(err)})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// rootMessage drops the "operation pet 3: " prefixes added while wrapping,
// leaving the sentinel text and any detail appended after it.
func rootMessage(err error) string {
	for _, sentinel := range []error{
		model.ErrConflict, adoption.ErrAlreadyAdopted, pet.ErrInvalidIllness,
		pet.ErrEmptyItem, pet.ErrPetDead, pet.ErrUnknownAction, ErrEmailTaken,
	} {
		if errors.Is(err, sentinel) {
			msg := err.Error()
			if i := strings.Index(msg, sentinel.Error()); i >= 0 {
				return msg[i:]
			}
			return sentinel.Error()
		}
	}
	return err.Error()
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// paramID parses a positive integer path parameter, answering 400 otherwise.
func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// isUniqueViolation detects duplicate-key errors from the supported drivers.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
