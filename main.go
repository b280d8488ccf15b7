package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/kendall-kelly/motorhub-api/config"
	"github.com/kendall-kelly/motorhub-api/controllers"
	"github.com/kendall-kelly/motorhub-api/logger"
	"github.com/kendall-kelly/motorhub-api/middleware"
	"github.com/kendall-kelly/motorhub-api/models"
	"github.com/kendall-kelly/motorhub-api/services"
	"github.com/kendall-kelly/motorhub-api/telemetry"
	"github.com/kendall-kelly/motorhub-api/utils"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := logger.Init(true, "info"); err != nil {
		panic(err)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.L().Fatal("Failed to load configuration", zap.Error(err))
	}
	config.SetConfig(cfg)

	if err := logger.Init(!cfg.IsProduction(), cfg.LogLevel); err != nil {
		logger.L().Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync()
	log := logger.L()

	log.Info("Starting MotorHub API server...", zap.String("env", cfg.GoEnv))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.OTLPEndpoint != "" {
		shutdownTelemetry, err := telemetry.Init(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
		if err != nil {
			log.Fatal("Failed to initialize telemetry", zap.Error(err))
		}
		defer func() {
			if err := shutdownTelemetry(context.Background()); err != nil {
				log.Warn("Failed to flush telemetry", zap.Error(err))
			}
		}()
	}

	if err := config.ConnectDatabase(cfg.DatabaseURL); err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := models.AutoMigrate(config.GetDB()); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}
	log.Info("Database migration completed successfully")

	setupCollaborators(ctx, cfg, log)
	controllers.InitServices(config.GetDB())

	router := setupRouter(cfg, middleware.EnsureValidToken(cfg))

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Server is running", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := services.WaitForNotifications(shutdownCtx); err != nil {
		log.Warn("Notifications still in flight at shutdown", zap.Error(err))
	}
	if closer, ok := services.GetNotifier().(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			log.Warn("Failed to close notifier", zap.Error(err))
		}
	}
}

// setupCollaborators installs attachment storage, the notification sender and the part cache
func setupCollaborators(ctx context.Context, cfg *config.Config, log *zap.Logger) {
	utils.UploadDir = cfg.UploadDir

	if cfg.UsesS3() {
		s3Service, err := services.NewS3Service(ctx, cfg)
		if err != nil {
			log.Fatal("Failed to initialize S3 service", zap.Error(err))
		}
		services.InitAttachmentService(s3Service)
		log.Info("Attachments stored in S3", zap.String("bucket", cfg.AWSS3Bucket))
	} else {
		services.SetAttachmentService(services.NewLocalAttachmentService(cfg.UploadDir))
		log.Info("Attachments stored on local disk", zap.String("dir", cfg.UploadDir))
	}

	services.SetNotifier(services.NewNotifier(cfg))
	log.Info("Notifier configured", zap.String("notifier", cfg.Notifier))

	if cfg.RedisAddr != "" {
		client := services.NewRedisClient(cfg)
		if err := client.Ping(ctx).Err(); err != nil {
			log.Warn("Redis unavailable, part cache disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
			return
		}
		services.SetPartCache(services.NewRedisPartCache(client))
		log.Info("Part cache backed by Redis", zap.String("addr", cfg.RedisAddr))
	}
}

// setupRouter wires middleware and every API route. auth guards all routes
// except the health and database status probes.
func setupRouter(cfg *config.Config, auth gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestLogger(logger.L()), gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: !allowsAnyOrigin(cfg.CORSOrigins),
	}))
	router.Use(otelgin.Middleware(cfg.ServiceName))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.GET("/database/status", databaseStatus)

		api := v1.Group("", auth)

		api.POST("/users", controllers.CreateUser)
		api.GET("/users/me", controllers.GetMyProfile)
		api.PUT("/users/me", controllers.UpdateMyProfile)

		api.POST("/parts", controllers.CreatePart)
		api.GET("/parts", controllers.ListParts)
		api.GET("/parts/:id", controllers.GetPart)
		api.PUT("/parts/:id", controllers.UpdatePart)
		api.POST("/parts/:id/restock", controllers.RestockPart)
		api.DELETE("/parts/:id", controllers.DeletePart)

		api.POST("/orders", controllers.CreateOrder)
		api.GET("/orders", controllers.ListOrders)
		api.GET("/orders/:id", controllers.GetOrder)
		api.PATCH("/orders/:id/status", controllers.UpdateOrderStatus)

		api.POST("/transactions", controllers.CreateTransaction)
		api.GET("/transactions", controllers.ListTransactions)
		api.GET("/transactions/:id", controllers.GetTransaction)
		api.GET("/transactions/:id/receipt", controllers.GetTransactionReceipt)
		api.PATCH("/transactions/:id/status", controllers.UpdateTransactionStatus)

		api.POST("/service-requests", controllers.CreateServiceRequest)
		api.GET("/service-requests", controllers.ListServiceRequests)
		api.GET("/service-requests/:id", controllers.GetServiceRequest)
		api.PATCH("/service-requests/:id/status", controllers.UpdateServiceRequestStatus)
		api.PATCH("/service-requests/:id/assign", controllers.AssignMechanic)
		api.PATCH("/service-requests/:id/cost", controllers.SetServiceCost)

		api.POST("/rentals", controllers.CreateRental)
		api.GET("/rentals", controllers.ListRentals)
		api.GET("/rentals/:id", controllers.GetRental)
		api.PATCH("/rentals/:id/status", controllers.UpdateRentalStatus)

		api.POST("/vehicles", controllers.CreateVehicle)
		api.GET("/vehicles", controllers.ListVehicles)
		api.GET("/vehicles/:id", controllers.GetVehicle)
		api.PUT("/vehicles/:id", controllers.UpdateVehicle)
		api.DELETE("/vehicles/:id", controllers.DeleteVehicle)

		api.POST("/insurance/policies", controllers.CreatePolicy)
		api.GET("/insurance/policies", controllers.ListPolicies)
		api.GET("/insurance/policies/:id", controllers.GetPolicy)
		api.PATCH("/insurance/policies/:id/cancel", controllers.CancelPolicy)
		api.POST("/insurance/claims", controllers.CreateClaim)
		api.GET("/insurance/claims", controllers.ListClaims)
		api.GET("/insurance/claims/:id", controllers.GetClaim)
		api.PATCH("/insurance/claims/:id/status", controllers.UpdateClaimStatus)

		api.GET("/uploads/:filename", controllers.GetUploadedFile)
	}

	return router
}

func allowsAnyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "MotorHub API is running",
	})
}

// databaseStatus checks database connectivity and returns table information
func databaseStatus(c *gin.Context) {
	db := config.GetDB()
	if db == nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Database is not configured",
			},
		})
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to get database instance",
			},
		})
		return
	}

	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		logger.L().Error("database ping failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_CONNECTION_ERROR",
				"message": "Database connection failed",
			},
		})
		return
	}

	tables, err := db.WithContext(c.Request.Context()).Migrator().GetTables()
	if err != nil {
		logger.L().Error("failed to list tables", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_QUERY_ERROR",
				"message": "Failed to query tables",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Database connected",
		"tables":  tables,
	})
}
