package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"bim-index-api/config"
	"bim-index-api/internal/aps"
	"bim-index-api/internal/bimmodel"
	"bim-index-api/internal/catalog"
	"bim-index-api/internal/categorize"
	"bim-index-api/internal/derivative"
	"bim-index-api/internal/ingest"
	"bim-index-api/internal/logger"
	"bim-index-api/internal/logs"
	"bim-index-api/internal/materialize"
	"bim-index-api/internal/metrics"
	"bim-index-api/internal/middlewares"
	"bim-index-api/internal/progress"
	"bim-index-api/internal/query"
	"bim-index-api/internal/region"
	"bim-index-api/internal/report"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()
	cfg := config.LoadConfig()

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := db.AutoMigrate(
		&bimmodel.BimModel{},
		&bimmodel.BimModelVersion{},
		&catalog.Condition{},
		&catalog.ZoneCode{},
		&catalog.RoleCode{},
		&catalog.LevelCode{},
		&catalog.FileTypeCode{},
		&categorize.Category{},
		&region.Region{},
		&materialize.ObjectRecord{},
		&logs.SystemLog{},
		&ingest.IngestJob{},
	); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	store, err := derivative.NewStore(ctx, cfg.Storage, log)
	if err != nil {
		log.Fatal("artifact storage unavailable", zap.Error(err))
	}

	r := gin.New()
	r.Use(gin.Recovery(), middlewares.RequestLogger(log), m.Middleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Disposition"},
		AllowCredentials: true,
	}))

	auth := middlewares.AuthMiddleware(cfg.JWTSecret)

	logService := &logs.LogService{DB: db}
	modelService := &bimmodel.ModelService{DB: db}
	catalogService := &catalog.CatalogService{DB: db}
	categoryService := &categorize.CategoryService{DB: db}
	regionService := &region.RegionService{DB: db}

	broker := progress.NewBroker(64)
	fanout := progress.NewFanout(broker, logService, log)

	pipeline := &ingest.Pipeline{
		Models:     modelService,
		Catalog:    catalogService,
		Categories: categoryService,
		Regions:    regionService,
		Objects:    &materialize.Materializer{DB: db, BatchSize: cfg.MaterializeBatchSize},
		Store:      store,
		Publisher:  fanout,
		Metrics:    m,
		Log:        log,
	}
	ingestService := &ingest.IngestService{
		Pipeline:  pipeline,
		Models:    modelService,
		Store:     store,
		Publisher: fanout,
		Log:       log,
	}
	if cfg.APS.ClientID != "" && cfg.APS.ClientSecret != "" {
		ingestService.Source = aps.NewFetcher(ctx, cfg.APS)
	} else {
		log.Warn("APS credentials not set, ingest accepts uploaded databases only")
	}
	jobs := ingest.NewJobRunner(db, log, m)

	engine := &query.Engine{
		DB:              db,
		Regions:         regionService,
		Models:          modelService,
		Cache:           query.NewLRUCache(cfg.QueryCacheSize, cfg.QueryCacheTTL),
		Metrics:         m,
		Log:             log,
		ExportChunkSize: cfg.ExportChunkSize,
	}
	reportService := &report.ReportService{
		DB:      db,
		Catalog: catalogService,
		Models:  modelService,
		Regions: regionService,
		Log:     log,
	}

	metrics.RegisterRoutes(r, reg)
	logs.RegisterRoutes(r, logService, auth)
	bimmodel.RegisterRoutes(r, modelService, auth)
	catalog.RegisterRoutes(r, catalogService, auth)
	categorize.RegisterRoutes(r, categoryService, auth)
	region.RegisterRoutes(r, regionService, auth)
	progress.RegisterRoutes(r, broker, auth)
	ingest.RegisterRoutes(r, ingestService, jobs, cfg.Storage.StagingDir, auth)
	query.RegisterRoutes(r, engine, log, auth)
	report.RegisterRoutes(r, reportService, auth)

	go func() {
		<-ctx.Done()
		log.Info("shutting down, waiting for running jobs")
		jobs.Wait()
		fanout.Wait()
		os.Exit(0)
	}()

	// Cloud Run expects plain HTTP on $PORT, bound to 0.0.0.0
	log.Info("Starting server", zap.String("addr", "0.0.0.0:"+cfg.Port))
	if err := r.Run("0.0.0.0:" + cfg.Port); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
