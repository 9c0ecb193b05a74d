package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/khoahotran/openforge/pkg/auth"
	"github.com/khoahotran/openforge/pkg/logger"
)

type RouterConfig struct {
	JWT               *auth.JWTService
	Logger            logger.Logger
	RequestsPerMinute int
	Burst             int
	MaxImageBytes     int64

	Auth     *AuthHandler
	Profile  *ProfileHandler
	Project  *ProjectHandler
	RSS      *RSSHandler
	Document *DocumentHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.MaxMultipartMemory = maxFormMemory
	router.Use(gin.Recovery(), MetricsMiddleware(), ErrorMiddleware(cfg.Logger))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.Use(RateLimitMiddleware(cfg.RequestsPerMinute, cfg.Burst))
	{
		api.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "UP"}) })

		api.GET("/profiles/:address", cfg.Profile.GetProfile)
		api.GET("/profiles/:address/links", cfg.Profile.GetProfileLinks)
		api.POST("/profiles/batch", cfg.Profile.BatchProfiles)

		api.GET("/projects", cfg.Project.ListProjects)
		api.GET("/projects/feed.rss", cfg.RSS.GenerateRSS)
		api.GET("/projects/:id", cfg.Project.GetProject)

		api.GET("/documents/:cid", cfg.Document.GetDocument)

		admin := api.Group("/admin")
		{
			admin.POST("/auth/login", cfg.Auth.Login)

			adminPrivate := admin.Group("/")
			adminPrivate.Use(AuthMiddleware(cfg.JWT, cfg.Logger), UploadLimitMiddleware(cfg.MaxImageBytes))
			{
				adminPrivate.GET("/session", cfg.Profile.GetSession)

				adminPrivate.POST("/profile", cfg.Profile.CreateProfile)
				adminPrivate.PUT("/profile", cfg.Profile.UpdateProfile)
				adminPrivate.GET("/profile/cooldown", cfg.Profile.GetCooldown)

				adminPrivate.POST("/projects", cfg.Project.CreateProject)
				adminPrivate.PUT("/projects/:id", cfg.Project.UpdateProject)
				adminPrivate.POST("/projects/:id/status", cfg.Project.SetStatus)
			}
		}
	}

	return router
}
