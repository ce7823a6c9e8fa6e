package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/avosk/litepress/config"
	"github.com/avosk/litepress/controllers"
	"github.com/avosk/litepress/middleware"
	"github.com/avosk/litepress/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Access log goes to its own rolling file so request noise stays out of
	// the application log.
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	// Every request resolves its acting identity once; handlers receive it
	// explicitly through the context instead of reading ambient state.
	r.Use(middleware.Identity())

	r.Static("/media", cfg.MediaDir)

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	postController := controllers.NewPostController(db)
	groupController := controllers.NewGroupController(db)
	authController := controllers.NewAuthController(db)

	// Public listing and detail pages.
	r.GET("/", postController.Index)
	r.GET("/group/:slug/", postController.GroupPosts)
	r.GET("/profile/:username/", postController.Profile)
	r.GET("/posts/:id/", postController.Detail)

	// Mutating page flows: anonymous requests bounce to login with a return
	// path, authenticated ones pass the rate limiter.
	authed := r.Group("", middleware.LoginRequired(), middleware.RateLimitMiddleware())
	authed.GET("/create/", postController.CreateForm)
	authed.POST("/create/", postController.Create)
	authed.GET("/posts/:id/edit/", postController.EditForm)
	authed.POST("/posts/:id/edit/", postController.Edit)
	authed.POST("/posts/:id/comment/", postController.AddComment)

	groups := r.Group("/groups")
	groups.GET("/", groupController.ListGroups)
	groups.POST("/", middleware.AuthRequired(), groupController.CreateGroup)
	groups.DELETE("/:slug/", middleware.AuthRequired(), groupController.DeleteGroup)

	auth := r.Group("/auth")
	auth.Use(middleware.RateLimitMiddleware())
	auth.POST("/register", authController.Register)
	auth.GET("/login", authController.LoginForm)
	auth.POST("/login", authController.Login)
	auth.POST("/logout", middleware.AuthRequired(), authController.Logout)
	auth.GET("/me", middleware.AuthRequired(), authController.Me)
	auth.GET("/oauth/:provider/login", authController.OAuthRedirect)
	auth.GET("/oauth/:provider/callback", authController.OAuthCallback)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}
