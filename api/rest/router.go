package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/heropets/server/adoption"
	"github.com/heropets/server/api/sse"
	"github.com/heropets/server/audit"
	"github.com/heropets/server/cache"
	"github.com/heropets/server/config"
	"github.com/heropets/server/game/pet"
	mw "github.com/heropets/server/middleware"
	"github.com/heropets/server/sequence"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// Deps is everything the HTTP layer needs. Audit may be nil.
type Deps struct {
	DB     *gorm.DB
	Cache  cache.Cache
	PubSub cache.PubSub
	Audit  *audit.Service
	Config *config.Config
	Logger *zap.Logger
}

// NewRouter builds the gin engine with every API route registered.
func NewRouter(d Deps) *gin.Engine {
	cfg := d.Config
	seq := sequence.New(d.DB)
	pets := pet.NewService(d.DB, seq, d.PubSub, cfg.Pets, d.Logger)
	adoptions := adoption.NewService(d.DB, seq, d.Logger)

	authH := NewAuthHandler(d.DB, seq, d.Cache, cfg.Security, d.Audit, d.Logger)
	heroH := NewHeroHandler(d.DB, seq)
	petH := NewPetHandler(pets, d.Audit)
	adoptH := NewAdoptionHandler(adoptions, d.Audit)
	allH := NewAllHandler(d.DB, pets)
	gameH := NewPetGameHandler(pets)
	adminH := NewAdminHandler(seq)
	sseH := sse.NewHandler(pets, d.Logger)

	auth := mw.Auth(cfg.Security, d.Cache)

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(d.Logger), mw.Recovery(d.Logger), mw.Metrics())
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/metrics", mw.IPWhitelist(cfg.Server.AdminIPs), gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		authG := api.Group("/auth")
		authG.POST("/register", authH.Register)
		authG.POST("/login", authH.Login)
		authG.POST("/logout", auth, authH.Logout)

		// Heroes and the combined listings are public.
		heroG := api.Group("/heroes", mw.OptionalAuth(cfg.Security, d.Cache))
		heroG.GET("", heroH.List)
		heroG.POST("", heroH.Create)
		heroG.PUT("/:id", heroH.Update)
		heroG.DELETE("/:id", heroH.Delete)
		api.GET("/all", allH.List)
		api.GET("/superheroes/:id/mascotas", gameH.HeroPets)

		petG := api.Group("/pets", auth)
		petG.GET("", petH.List)
		petG.POST("", petH.Create)
		petG.PUT("/:id", petH.Update)
		petG.DELETE("/:id", petH.Delete)

		adoptG := api.Group("/adoptions", auth)
		adoptG.GET("", adoptH.List)
		adoptG.POST("", adoptH.Create)
		adoptG.PUT("/:id", adoptH.Update)
		adoptG.DELETE("/:id", adoptH.Delete)

		gameG := api.Group("/mascotas")
		gameG.GET("/:id/estado", auth, gameH.Status)
		gameG.GET("/:id/historial", auth, gameH.History)
		gameG.PUT("/:id/:action", auth, gameH.Act)
		gameG.GET("/:id/eventos", mw.StreamAuth(cfg.Security, d.Cache), sseH.PetEvents)

		adminG := api.Group("/admin")
		adminG.Use(mw.IPWhitelist(cfg.Server.AdminIPs), mw.AdminAuth(cfg.Server.AdminKey))
		adminG.GET("/counters", adminH.Counters)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return r
}
