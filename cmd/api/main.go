package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/saed-edu/saed-api/api/swagger"
	"github.com/saed-edu/saed-api/internal/handler"
	"github.com/saed-edu/saed-api/internal/middleware"
	"github.com/saed-edu/saed-api/internal/models"
	"github.com/saed-edu/saed-api/internal/repository"
	"github.com/saed-edu/saed-api/internal/service"
	"github.com/saed-edu/saed-api/pkg/cache"
	"github.com/saed-edu/saed-api/pkg/config"
	"github.com/saed-edu/saed-api/pkg/database"
	"github.com/saed-edu/saed-api/pkg/logger"
	corsmiddleware "github.com/saed-edu/saed-api/pkg/middleware/cors"
	reqidmiddleware "github.com/saed-edu/saed-api/pkg/middleware/requestid"
)

// @title SAED API
// @version 1.0.0
// @description Administration API for school and sports programs
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		if cfg.Cache.Enabled {
			logr.Fatal("failed to connect to redis", zap.Error(err))
		}
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		redisClient = nil
	}

	validate := validator.New()
	metricsService := service.NewMetricsService()

	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheService := service.NewCacheService(cacheRepo, metricsService, cfg.Cache.TTL, logr, cfg.Cache.Enabled)

	personRepo := repository.NewPersonRepository(db)
	classRepo := repository.NewClassRepository(db)
	unitRepo := repository.NewUnitRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	courseRepo := repository.NewLinkRepository(db, repository.CourseDomain)
	modalityRepo := repository.NewLinkRepository(db, repository.ModalityDomain)
	userRepo := repository.NewUserRepository(db)

	authService := service.NewAuthService(userRepo, validate, logr, metricsService, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		MaxFailedLogins:    cfg.Auth.MaxFailedLogins,
		LockoutWindow:      cfg.Auth.LockoutWindow,
	})
	userService := service.NewUserService(userRepo, validate, logr)
	personService := service.NewPersonService(personRepo, validate, logr)
	classService := service.NewClassService(classRepo, unitRepo, validate, logr, cacheService)
	unitService := service.NewUnitService(unitRepo, classRepo, validate, logr)
	enrollmentService := service.NewEnrollmentService(enrollmentRepo, classRepo, personRepo, validate, logr)
	courseService := service.NewLinkService(courseRepo, classRepo, repository.CourseDomain, "course", validate, logr, cacheService)
	modalityService := service.NewLinkService(modalityRepo, classRepo, repository.ModalityDomain, "modality", validate, logr, cacheService)

	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	personHandler := handler.NewPersonHandler(personService)
	classHandler := handler.NewClassHandler(classService, enrollmentService)
	unitHandler := handler.NewUnitHandler(unitService)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentService)
	courseHandler := handler.NewLinkOwnerHandler(courseService)
	modalityHandler := handler.NewLinkOwnerHandler(modalityService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/register", authHandler.Register)
		auth.POST("/refresh", authHandler.Refresh)

		authed := auth.Group("", middleware.JWT(authService))
		authed.POST("/logout", authHandler.Logout)
		authed.GET("/me", authHandler.Me)
		authed.PUT("/me", authHandler.UpdateProfile)
		authed.PUT("/password", authHandler.ChangePassword)
	}

	protected := api.Group("", middleware.JWT(authService), middleware.LastAccess(userService))

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleStaff)
	admin := middleware.RequireRoles(models.RoleAdmin)

	people := protected.Group("/people", staff)
	{
		people.GET("", personHandler.List)
		people.GET("/:id", personHandler.Get)
		people.POST("", personHandler.Create)
		people.PUT("/:id", personHandler.Update)
		people.DELETE("/:id", admin, personHandler.Delete)
	}

	classes := protected.Group("/classes", staff)
	{
		classes.GET("", classHandler.List)
		classes.GET("/:id", classHandler.Get)
		classes.GET("/:id/roster", classHandler.ExportRoster)
		classes.POST("", classHandler.Create)
		classes.PUT("/:id", classHandler.Update)
		classes.DELETE("/:id", admin, classHandler.Delete)
	}

	courses := protected.Group("/courses", staff)
	{
		courses.GET("", courseHandler.List)
		courses.GET("/available-classes", courseHandler.AvailableClasses)
		courses.GET("/:id", courseHandler.Get)
		courses.POST("", courseHandler.Create)
		courses.PUT("/:id", courseHandler.Update)
		courses.DELETE("/:id", admin, courseHandler.Delete)
	}

	modalities := protected.Group("/modalities", staff)
	{
		modalities.GET("", modalityHandler.List)
		modalities.GET("/available-classes", modalityHandler.AvailableClasses)
		modalities.GET("/:id", modalityHandler.Get)
		modalities.POST("", modalityHandler.Create)
		modalities.PUT("/:id", modalityHandler.Update)
		modalities.DELETE("/:id", admin, modalityHandler.Delete)
	}

	units := protected.Group("/units", staff)
	{
		units.GET("", unitHandler.List)
		units.GET("/:id", unitHandler.Get)
		units.POST("", unitHandler.Create)
		units.PUT("/:id", unitHandler.Update)
		units.DELETE("/:id", admin, unitHandler.Delete)
	}

	enrollments := protected.Group("/enrollments", staff)
	{
		enrollments.GET("", enrollmentHandler.List)
		enrollments.GET("/:id", enrollmentHandler.Get)
		enrollments.POST("", enrollmentHandler.Create)
		enrollments.DELETE("/:id", enrollmentHandler.Delete)
	}

	users := protected.Group("/users", admin)
	{
		users.GET("", userHandler.List)
		users.GET("/:id", userHandler.Get)
		users.POST("", userHandler.Create)
		users.PUT("/:id", userHandler.Update)
		users.DELETE("/:id", userHandler.Delete)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
}
