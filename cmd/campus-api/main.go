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

	_ "github.com/campus-connect/campus-api/api/swagger"
	"github.com/campus-connect/campus-api/internal/handler"
	"github.com/campus-connect/campus-api/internal/middleware"
	"github.com/campus-connect/campus-api/internal/models"
	"github.com/campus-connect/campus-api/internal/repository"
	"github.com/campus-connect/campus-api/internal/service"
	"github.com/campus-connect/campus-api/pkg/cache"
	"github.com/campus-connect/campus-api/pkg/config"
	"github.com/campus-connect/campus-api/pkg/database"
	"github.com/campus-connect/campus-api/pkg/jobs"
	"github.com/campus-connect/campus-api/pkg/logger"
	corsmiddleware "github.com/campus-connect/campus-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campus-connect/campus-api/pkg/middleware/requestid"
	"github.com/campus-connect/campus-api/pkg/storage"
)

// @title Campus Connect API
// @version 1.0.0
// @description Multi-tenant campus management backend: colleges, classes, rooms, library, events and attendance.
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	collegeRepo := repository.NewCollegeRepository(db)
	classRepo := repository.NewClassRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	bookingRepo := repository.NewRoomBookingRepository(db)
	bookRepo := repository.NewBookRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)
	eventRepo := repository.NewEventRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	exportRepo := repository.NewExportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, cfg.Dashboard.Enabled)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "campus-api",
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	collegeSvc := service.NewCollegeService(collegeRepo, userRepo, validate, logr)
	classSvc := service.NewClassService(classRepo, userRepo, validate, logr)
	roomSvc := service.NewRoomService(roomRepo, validate, logr)
	bookingSvc := service.NewRoomBookingService(bookingRepo, roomRepo, userRepo, service.BookingLimits{
		DayStart: cfg.Bookings.DayStart,
		DayEnd:   cfg.Bookings.DayEnd,
	}, validate, logr)
	librarySvc := service.NewLibraryService(bookRepo, service.LibraryPolicy{
		LoanPeriod:     cfg.Library.LoanPeriod,
		MaxActiveLoans: cfg.Library.MaxActiveLoans,
	}, validate, logr)
	announcementSvc := service.NewAnnouncementService(announcementRepo, validate, logr)
	eventSvc := service.NewEventService(eventRepo, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, classRepo, validate, logr)
	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Users:    userRepo,
		Classes:  classRepo,
		Rooms:    roomRepo,
		Bookings: bookingRepo,
		Loans:    bookRepo,
		Events:   eventRepo,
		Cache:    cacheSvc,
		CacheTTL: cfg.Dashboard.CacheTTL,
		Logger:   logr,
	})

	exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare export storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(exportRepo, bookRepo, attendanceRepo, bookingRepo, exportStore, signer, service.ExportOptions{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, logr)

	var exportQueue *jobs.Queue
	if cfg.Exports.Enabled {
		exportQueue = jobs.NewQueue("exports", exportSvc.Handle, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			Logger:     logr,
		})
		exportSvc.AttachQueue(exportQueue)
		exportQueue.Start(ctx)
		defer exportQueue.Stop()

		go cleanupExports(ctx, exportStore, cfg.Exports, logr)
	}

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	collegeHandler := handler.NewCollegeHandler(collegeSvc)
	classHandler := handler.NewClassHandler(classSvc)
	roomHandler := handler.NewRoomHandler(roomSvc)
	bookingHandler := handler.NewRoomBookingHandler(bookingSvc)
	libraryHandler := handler.NewLibraryHandler(librarySvc)
	announcementHandler := handler.NewAnnouncementHandler(announcementSvc, classSvc)
	eventHandler := handler.NewEventHandler(eventSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

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
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", authHandler.Logout)
		auth.POST("/change-password", middleware.JWT(authSvc), authHandler.ChangePassword)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	// Signed token download stays outside the JWT group so export links
	// work from browsers and spreadsheet imports.
	api.GET("/exports/download/:token", exportHandler.Fetch)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc), middleware.UUIDParams())

	users := protected.Group("/users")
	{
		users.GET("", middleware.RequireRoles(models.RoleAdmin, models.RoleHOD), userHandler.List)
		users.GET("/:id", middleware.RBAC("ADMIN", "HOD", "SELF"), userHandler.Get)
		users.POST("", middleware.RequireRoles(models.RoleAdmin), middleware.Audit(userRepo, "CREATE", "user"), userHandler.Create)
		users.PUT("/:id", middleware.RBAC("ADMIN", "SELF"), middleware.Audit(userRepo, "UPDATE", "user"), userHandler.Update)
		users.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), middleware.Audit(userRepo, "DELETE", "user"), userHandler.Delete)
	}

	colleges := protected.Group("/colleges")
	{
		colleges.GET("", collegeHandler.List)
		colleges.GET("/:id", collegeHandler.Get)
		colleges.POST("", middleware.RequireRoles(models.RoleAdmin), middleware.Audit(userRepo, "CREATE", "college"), collegeHandler.Create)
		colleges.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), middleware.Audit(userRepo, "UPDATE", "college"), collegeHandler.Update)
		colleges.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), middleware.Audit(userRepo, "DELETE", "college"), collegeHandler.Delete)
		colleges.POST("/link", collegeHandler.RequestLink)
		colleges.GET("/:id/links", middleware.RequireRoles(models.RoleAdmin, models.RoleHOD), collegeHandler.ListLinks)
		colleges.POST("/:id/links/:user_id", middleware.RequireRoles(models.RoleAdmin, models.RoleHOD), middleware.Audit(userRepo, "RESOLVE", "college_link"), collegeHandler.ResolveLink)
	}

	classes := protected.Group("/classes")
	{
		classes.GET("", classHandler.List)
		classes.GET("/:id", classHandler.Get)
		classes.POST("", middleware.RequireRoles(models.RoleFaculty, models.RoleHOD, models.RoleAdmin), classHandler.Create)
		classes.PUT("/:id", middleware.RequireRoles(models.RoleFaculty, models.RoleHOD, models.RoleAdmin), classHandler.Update)
		classes.DELETE("/:id", middleware.RequireRoles(models.RoleHOD, models.RoleAdmin), classHandler.Delete)
		classes.POST("/join", middleware.RequireRoles(models.RoleStudent), classHandler.Join)
		classes.GET("/:id/requests", middleware.RequireRoles(models.RoleFaculty, models.RoleHOD, models.RoleAdmin), classHandler.ListJoinRequests)
		classes.POST("/:id/requests/resolve", middleware.RequireRoles(models.RoleFaculty, models.RoleHOD, models.RoleAdmin), classHandler.ResolveJoinRequest)
		classes.GET("/:id/members", classHandler.ListMembers)
		classes.GET("/:id/faculty", classHandler.ListAssignments)
		classes.POST("/:id/faculty", middleware.RequireRoles(models.RoleFaculty, models.RoleHOD, models.RoleAdmin), classHandler.AssignFaculty)
		classes.DELETE("/:id/faculty/:assignment_id", middleware.RequireRoles(models.RoleFaculty, models.RoleHOD, models.RoleAdmin), classHandler.RemoveAssignment)

		classes.POST("/:id/attendance", middleware.RequireRoles(models.RoleFaculty, models.RoleHOD, models.RoleAdmin), attendanceHandler.Mark)
		classes.GET("/:id/attendance", attendanceHandler.List)
		classes.GET("/:id/attendance/:student_id/summary", attendanceHandler.Summary)
	}

	rooms := protected.Group("/rooms")
	{
		rooms.GET("", roomHandler.List)
		rooms.GET("/:id", roomHandler.Get)
		rooms.POST("", middleware.RequireRoles(models.RoleHOD, models.RoleAdmin), roomHandler.Create)
		rooms.PUT("/:id", middleware.RequireRoles(models.RoleHOD, models.RoleAdmin), roomHandler.Update)
		rooms.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), roomHandler.Delete)
		rooms.GET("/:id/availability", bookingHandler.CheckAvailability)
	}

	bookings := protected.Group("/bookings")
	{
		bookings.GET("", bookingHandler.List)
		bookings.GET("/:id", bookingHandler.Get)
		bookings.POST("", bookingHandler.Create)
		bookings.POST("/:id/decide", middleware.RequireRoles(models.RoleHOD, models.RoleAdmin), bookingHandler.Decide)
		bookings.POST("/:id/cancel", bookingHandler.Cancel)
	}

	library := protected.Group("/library")
	{
		library.GET("/books", libraryHandler.ListBooks)
		library.GET("/books/:id", libraryHandler.GetBook)
		library.POST("/books", middleware.RequireRoles(models.RoleLibrarian, models.RoleAdmin), libraryHandler.CreateBook)
		library.PUT("/books/:id", middleware.RequireRoles(models.RoleLibrarian, models.RoleAdmin), libraryHandler.UpdateBook)
		library.DELETE("/books/:id", middleware.RequireRoles(models.RoleLibrarian, models.RoleAdmin), libraryHandler.DeleteBook)
		library.POST("/loans", libraryHandler.Borrow)
		library.POST("/loans/:id/return", libraryHandler.Return)
		library.GET("/loans", libraryHandler.ListLoans)
		library.POST("/loans/overdue", middleware.RequireRoles(models.RoleLibrarian, models.RoleAdmin), libraryHandler.FlagOverdue)
	}

	announcements := protected.Group("/announcements")
	{
		announcements.GET("", announcementHandler.List)
		announcements.GET("/:id", announcementHandler.Get)
		announcements.POST("", middleware.RequireRoles(models.RoleFaculty, models.RoleHOD, models.RoleAdmin), announcementHandler.Create)
		announcements.PUT("/:id", middleware.RequireRoles(models.RoleFaculty, models.RoleHOD, models.RoleAdmin), announcementHandler.Update)
		announcements.DELETE("/:id", middleware.RequireRoles(models.RoleFaculty, models.RoleHOD, models.RoleAdmin), announcementHandler.Delete)
	}

	events := protected.Group("/events")
	{
		events.GET("", eventHandler.List)
		events.GET("/:id", eventHandler.Get)
		events.POST("", middleware.RequireRoles(models.RoleFaculty, models.RoleHOD, models.RoleAdmin), eventHandler.Create)
		events.PUT("/:id", middleware.RequireRoles(models.RoleFaculty, models.RoleHOD, models.RoleAdmin), eventHandler.Update)
		events.DELETE("/:id", middleware.RequireRoles(models.RoleHOD, models.RoleAdmin), eventHandler.Delete)
	}

	if cfg.Dashboard.Enabled {
		protected.GET("/dashboard", dashboardHandler.Summary)
	}

	if cfg.Exports.Enabled {
		exports := protected.Group("/exports")
		{
			exports.POST("", exportHandler.Request)
			exports.GET("", exportHandler.ListMine)
			exports.GET("/:id", exportHandler.Get)
			exports.GET("/:id/download", exportHandler.Download)
		}
	}

	protected.GET("/metrics/snapshot", middleware.RequireRoles(models.RoleAdmin), metricsHandler.Snapshot)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}

// cleanupExports periodically removes generated export files whose signed
// URLs have long expired.
func cleanupExports(ctx context.Context, store *storage.LocalStorage, cfg config.ExportConfig, logr *zap.Logger) {
	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := store.CleanupOlderThan(2 * cfg.SignedURLTTL)
			if err != nil {
				logr.Warn("export cleanup failed", zap.Error(err))
				continue
			}
			if len(removed) > 0 {
				logr.Info("removed stale export files", zap.Int("count", len(removed)))
			}
		}
	}
}
