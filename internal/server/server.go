package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/meilisearch/meilisearch-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/improvdb/improvdb-api/internal/config"
	"github.com/improvdb/improvdb-api/internal/middleware"
	"github.com/improvdb/improvdb-api/pkg/ratelimiter"

	categoryHttp "github.com/improvdb/improvdb-api/internal/modules/category/delivery/http"
	categoryRepo "github.com/improvdb/improvdb-api/internal/modules/category/repository"
	categoryService "github.com/improvdb/improvdb-api/internal/modules/category/service"

	favouriteHttp "github.com/improvdb/improvdb-api/internal/modules/favourite/delivery/http"
	favouriteRepo "github.com/improvdb/improvdb-api/internal/modules/favourite/repository"
	favouriteService "github.com/improvdb/improvdb-api/internal/modules/favourite/service"

	lessonplanHttp "github.com/improvdb/improvdb-api/internal/modules/lessonplan/delivery/http"
	lessonplanRepo "github.com/improvdb/improvdb-api/internal/modules/lessonplan/repository"
	lessonplanService "github.com/improvdb/improvdb-api/internal/modules/lessonplan/service"

	notifService "github.com/improvdb/improvdb-api/internal/modules/notification/service"

	resourceHttp "github.com/improvdb/improvdb-api/internal/modules/resource/delivery/http"
	resourceRepo "github.com/improvdb/improvdb-api/internal/modules/resource/repository"
	resourceService "github.com/improvdb/improvdb-api/internal/modules/resource/service"

	searchService "github.com/improvdb/improvdb-api/internal/modules/search/service"

	statHttp "github.com/improvdb/improvdb-api/internal/modules/stat/delivery/http"
	statRepo "github.com/improvdb/improvdb-api/internal/modules/stat/repository"
	statService "github.com/improvdb/improvdb-api/internal/modules/stat/service"

	userHttp "github.com/improvdb/improvdb-api/internal/modules/user/delivery/http"
	userRepo "github.com/improvdb/improvdb-api/internal/modules/user/repository"
	userService "github.com/improvdb/improvdb-api/internal/modules/user/service"
)

type Server struct {
	engine      *gin.Engine
	db          *gorm.DB
	redisClient *redis.Client
}

func NewServer(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *Server {
	users := userRepo.NewUserRepository(db)
	categories := categoryRepo.NewCategoryRepository(db)
	resources := resourceRepo.NewRepository(db)
	lessonPlans := lessonplanRepo.NewLessonPlanRepository(db)
	favourites := favouriteRepo.NewFavouriteRepository(db)
	stats := statRepo.NewStatRepository(db)

	var limiter ratelimiter.Limiter
	if redisClient != nil {
		limiter = ratelimiter.NewRedisLimiter(redisClient, cfg.RateLimitCount, cfg.RateLimitWindow)
	} else {
		limiter = ratelimiter.NewMemoryLimiter(cfg.RateLimitCount, cfg.RateLimitWindow)
	}

	meiliClient := meilisearch.New(cfg.MeiliSearchHost, meilisearch.WithAPIKey(cfg.MeiliMasterKey))
	searchSvc := searchService.NewMeiliSearchService(meiliClient)

	notifier := notifService.NewEmailService(users, cfg)

	authSvc := userService.NewService(users, cfg.JWTSecret, cfg.JWTExpiry)
	authHandler := userHttp.NewAuthHandler(authSvc)

	categorySvc := categoryService.NewService(categories)
	categoryHandler := categoryHttp.NewCategoryHandler(categorySvc)

	resourceSvc := resourceService.NewService(resources, categories, limiter, searchSvc, notifier)
	resourceHandler := resourceHttp.NewResourceHandler(resourceSvc)

	lessonPlanSvc := lessonplanService.NewLessonPlanService(lessonPlans, resources, limiter)
	lessonPlanHandler := lessonplanHttp.NewLessonPlanHandler(lessonPlanSvc)

	favouriteSvc := favouriteService.NewFavouriteService(favourites, resources)
	favouriteHandler := favouriteHttp.NewFavouriteHandler(favouriteSvc)

	statSvc := statService.NewStatService(stats)
	statHandler := statHttp.NewStatHandler(statSvc)

	router := gin.New()

	setupCORS(router, cfg.AllowedOrigins)

	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/api/healthz"},
	}))

	authMiddleware := middleware.NewAuthMiddleware(users, cfg.JWTSecret)

	api := router.Group("/api")

	api.GET("/healthz", healthz(db))

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
	}

	// Public reads. A token is honored when present so owners and admins
	// see their own hidden records.
	public := api.Group("")
	public.Use(authMiddleware.OptionalAuth())
	{
		public.GET("/resources", resourceHandler.GetAllResources)
		public.GET("/resources/latest", resourceHandler.GetLatestResources)
		public.GET("/resources/:id", resourceHandler.GetResourceByID)

		public.GET("/lesson-plans", lessonPlanHandler.GetPublicLessonPlans)
		public.GET("/lesson-plans/:id", lessonPlanHandler.GetLessonPlanByID)

		public.GET("/categories", categoryHandler.GetAllCategories)
		public.GET("/stats/top-contributors", statHandler.GetTopContributors)
		public.GET("/sitemap", statHandler.GetSitemap)
	}

	protected := api.Group("")
	protected.Use(authMiddleware.RequireAuth())
	{
		protected.POST("/resources", resourceHandler.CreateResource)
		protected.GET("/resources/me", resourceHandler.GetMyResources)
		protected.GET("/resources/me/proposals", resourceHandler.GetMyProposedResources)
		protected.GET("/resources/me/favourites", favouriteHandler.GetMyFavourites)
		protected.PUT("/resources/:id", resourceHandler.UpdateResource)
		protected.DELETE("/resources/:id", resourceHandler.DeleteResource)
		protected.POST("/resources/:id/proposals", resourceHandler.ProposeUpdate)
		protected.PUT("/resources/:id/favourite", favouriteHandler.SetFavourite)
		protected.GET("/resources/:id/favourite", favouriteHandler.GetFavouriteState)

		protected.POST("/lesson-plans", lessonPlanHandler.CreateLessonPlan)
		protected.GET("/lesson-plans/me", lessonPlanHandler.GetMyLessonPlans)
		protected.PUT("/lesson-plans/:id", lessonPlanHandler.UpdateLessonPlan)
		protected.DELETE("/lesson-plans/:id", lessonPlanHandler.DeleteLessonPlan)
		protected.PUT("/lesson-plans/:id/visibility", lessonPlanHandler.SetVisibility)

		profile := protected.Group("/profile")
		{
			profile.GET("/me", authHandler.GetCurrentProfile)
			profile.PUT("", authHandler.UpdateProfile)
		}

		admin := protected.Group("/admin")
		admin.Use(authMiddleware.RequireAdmin())
		{
			admin.GET("/resources/pending", resourceHandler.GetPendingPublication)
			admin.PUT("/resources/:id/published", resourceHandler.SetPublished)
			admin.POST("/proposals/:id/accept", resourceHandler.AcceptProposedUpdate)
			admin.POST("/categories", categoryHandler.CreateCategory)
			admin.DELETE("/categories/:id", categoryHandler.DeleteCategory)
		}
	}

	return &Server{
		engine:      router,
		db:          db,
		redisClient: redisClient,
	}
}

func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

// Engine exposes the router for handler tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func healthz(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func setupCORS(router *gin.Engine, allowedOrigins string) {
	var origins []string
	if allowedOrigins != "" {
		origins = strings.Split(allowedOrigins, ",")
	} else {
		origins = []string{"http://localhost:3000"}
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
