package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/certhours/cert-hours-api/api/swagger"
	"github.com/certhours/cert-hours-api/internal/handler"
	"github.com/certhours/cert-hours-api/internal/pipeline"
	"github.com/certhours/cert-hours-api/internal/provider"
	"github.com/certhours/cert-hours-api/internal/repository"
	"github.com/certhours/cert-hours-api/internal/rules"
	"github.com/certhours/cert-hours-api/internal/service"
	"github.com/certhours/cert-hours-api/pkg/cache"
	"github.com/certhours/cert-hours-api/pkg/config"
	"github.com/certhours/cert-hours-api/pkg/database"
	"github.com/certhours/cert-hours-api/pkg/events"
	"github.com/certhours/cert-hours-api/pkg/logger"
	corsmiddleware "github.com/certhours/cert-hours-api/pkg/middleware/cors"
	reqidmiddleware "github.com/certhours/cert-hours-api/pkg/middleware/requestid"
	"github.com/certhours/cert-hours-api/pkg/storage"
)

// @title Cert Hours API
// @version 1.0.0
// @description Asynchronous certificate processing and activity-hours credit
// @BasePath /api/v1
// @schemes http

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect postgres", "error", err)
	}
	defer db.Close()

	rdb, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect redis", "error", err)
	}
	defer rdb.Close()

	blobs, err := storage.NewLocalStorage(cfg.Storage.BaseDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL)

	students := repository.NewStudentRepository(db)
	submissions := repository.NewSubmissionRepository(db)
	ocrResults := repository.NewOcrResultRepository(db)
	metadata := repository.NewMetadataRepository(db)
	activities := repository.NewActivityRepository(db)
	categories := repository.NewCategoryRepository(db)

	table, err := loadRules(ctx, categories, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to load category rules", "error", err)
	}
	logr.Sugar().Infow("category rules loaded", "version", table.Version(), "categories", table.Len())

	bus := events.NewBus(rdb)
	metrics := service.NewMetricsService()

	ocrClient := provider.NewOCRClient(cfg.OCR)
	llmClient := provider.NewLLMClient(cfg.LLM)

	ocrStage := pipeline.NewOCRStage(submissions, ocrResults, blobs, ocrClient, bus, metrics, logr)
	metadataStage := pipeline.NewMetadataStage(submissions, ocrResults, metadata, llmClient, bus, metrics, logr)
	categorizationStage := pipeline.NewCategorizationStage(submissions, ocrResults, metadata, activities, llmClient, table, bus, metrics, logr)
	orchestrator := pipeline.NewOrchestrator(rdb, cfg.Pipeline, ocrStage, metadataStage, categorizationStage, logr)

	validate := validator.New()
	submissionSvc := service.NewSubmissionService(submissions, students, activities, blobs, bus, signer, cfg.Storage, validate, logr)
	studentSvc := service.NewStudentService(students, validate, logr)
	reviewSvc := service.NewReviewService(activities, submissions, students, ocrResults, metadata, table, validate, logr)
	statementSvc := service.NewStatementService(students, activities, table, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	router := handler.NewRouter(
		handler.NewStudentHandler(studentSvc, submissionSvc, statementSvc),
		handler.NewCertificateHandler(submissionSvc, signer, blobs),
		handler.NewCoordinatorHandler(reviewSvc, metrics),
		handler.NewMetricsHandler(metrics, db, rdb),
		metrics,
	)
	router.Register(r, cfg.APIPrefix)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	if err := orchestrator.Start(ctx); err != nil {
		logr.Sugar().Fatalw("failed to start pipeline", "error", err)
	}
	go watchStreamDepth(ctx, rdb, metrics)

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: r}
	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
	orchestrator.Stop()
}

// loadRules seeds the default rule set into an empty database and builds the
// immutable snapshot the pipeline and review services share.
func loadRules(ctx context.Context, categories *repository.CategoryRepository, logr *zap.Logger) (*rules.Table, error) {
	count, err := categories.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		logr.Sugar().Infow("seeding default activity categories")
		if err := categories.Seed(ctx, rules.DefaultCategories()); err != nil {
			return nil, err
		}
	}
	list, err := categories.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return rules.NewTable(fmt.Sprintf("v1-%d", len(list)), list), nil
}

// watchStreamDepth samples the pipeline stream lengths for the pending gauge.
func watchStreamDepth(ctx context.Context, rdb *redis.Client, metrics *service.MetricsService) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	topics := []string{pipeline.TopicIngest, pipeline.TopicOCR, pipeline.TopicMetadata}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, topic := range topics {
				depth, err := rdb.XLen(ctx, topic).Result()
				if err != nil {
					continue
				}
				metrics.SetStreamPending(topic, depth)
			}
		}
	}
}
