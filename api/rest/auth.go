package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/heropets/server/audit"
	"github.com/heropets/server/cache"
	"github.com/heropets/server/config"
	mw "github.com/heropets/server/middleware"
	"github.com/heropets/server/model"
	"github.com/heropets/server/sequence"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthHandler handles account registration and sessions.
type AuthHandler struct {
	db     *gorm.DB
	seq    *sequence.Allocator
	cache  cache.Cache
	sec    config.SecurityConfig
	audit  *audit.Service
	logger *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(db *gorm.DB, seq *sequence.Allocator, c cache.Cache, sec config.SecurityConfig, auditSvc *audit.Service, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{db: db, seq: seq, cache: c, sec: sec, audit: auditSvc, logger: logger}
}

type registerRequest struct {
	Name     string `json:"name" binding:"required,max=64"`
	Email    string `json:"email" binding:"required,email,max=128"`
	Password string `json:"password" binding:"required,max=72"`
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	cost := h.sec.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), cost)
	if err != nil {
		respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	user := &model.User{Name: req.Name, Email: req.Email, PasswordHash: string(hash)}
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&model.User{}).Where("email = ?", req.Email).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrEmailTaken
		}
		id, err := h.seq.WithTx(tx).Next(ctx, sequence.Users)
		if err != nil {
			return err
		}
		user.ID = id
		if err := tx.Create(user).Error; err != nil {
			// Another request registered the same address between the check and the insert.
			if isUniqueViolation(err) {
				return ErrEmailTaken
			}
			return err
		}
		return nil
	})
	recordAudit(h.audit, c, "user.register", "user:"+strconv.FormatInt(user.ID, 10),
		gin.H{"email": req.Email}, err)
	if err != nil {
		respondError(c, err)
		return
	}

	h.logger.Info("user registered", zap.Int64("user_id", user.ID))
	c.JSON(http.StatusCreated, gin.H{"message": "user registered", "id": user.ID})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /api/auth/login. Unknown addresses and wrong passwords
// get the same answer.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	var user model.User
	err := h.db.WithContext(c.Request.Context()).Where("email = ?", req.Email).Take(&user).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(c, err)
		return
	}
	if err != nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		recordAudit(h.audit, c, "user.login", "email:"+req.Email, nil, errors.New("invalid credentials"))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := mw.GenerateToken(user.ID, h.sec.JWTSecret, h.sec.JWTTTL)
	if err != nil {
		respondError(c, err)
		return
	}

	// The session lives exactly as long as the token; zero TTL keeps both forever.
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.cache.Set(ctx, mw.SessionKey(token), strconv.FormatInt(user.ID, 10), h.sec.JWTTTL); err != nil {
		respondError(c, err)
		return
	}

	c.Set(mw.UserIDKey, user.ID)
	recordAudit(h.audit, c, "user.login", "user:"+strconv.FormatInt(user.ID, 10), nil, nil)
	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"name":  user.Name,
		"email": user.Email,
	})
}

// Logout handles POST /api/auth/logout. The token stops working immediately
// even if it has not expired.
func (h *AuthHandler) Logout(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	err := h.cache.Del(ctx, mw.SessionKey(mw.GetToken(c)))
	recordAudit(h.audit, c, "user.logout", "user:"+strconv.FormatInt(mw.GetUserID(c), 10), nil, err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}
