package main

import (
	"context"
	"log"
	"os"

	"github.com/sitepipe/sitepipe/internal"
	"github.com/sitepipe/sitepipe/internal/cdn"
	"github.com/sitepipe/sitepipe/internal/handler"
	"github.com/sitepipe/sitepipe/internal/security"
	"github.com/sitepipe/sitepipe/internal/service"
	"github.com/sitepipe/sitepipe/internal/settings"
	"github.com/sitepipe/sitepipe/internal/storage"
	"github.com/sitepipe/sitepipe/internal/store"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	_ "modernc.org/sqlite"
)

func main() {
	internal.InitializeConfiguration()
	settings.ReadDotenv(internal.DotEnvPath)
	settings.Settings = settings.NewSettings()
	rdb := store.InitDatabase(true)
	defer rdb.Close()
	rwdb := store.InitDatabase(false)
	defer rwdb.Close()
	store.RunMigrations(rwdb, internal.MigrationsDir)

	scheduler := service.NewScheduler()
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			log.Println("err shutting down scheduler:", err)
		}
	}()

	ctx := context.Background()
	storageClient := storage.MustNewClient(ctx, settings.Settings)
	cdnClient, err := cdn.NewClient(ctx, settings.Settings.AWSRegion)
	if err != nil {
		log.Fatal("err creating cdn client: ", err)
	}

	stackStore := store.NewStackSQLiteStore(rdb, rwdb)
	runStore := store.NewRunSQLiteStore(rdb, rwdb)
	builderStore := store.NewBuilderSQLiteStore(rdb, rwdb)
	apiKeyStore := store.NewAPIKeySQLiteStore(rdb, rwdb)
	aesEncrypter := security.NewAESEncrypter(security.EncryptionKey())

	drainSvc := service.NewDrainService(
		storageClient,
		storageClient,
		log.New(os.Stdout, "drain: ", log.LstdFlags),
		internal.Config.DrainPageSize,
	)
	builderSvc := service.NewBuilderService(builderStore, aesEncrypter)
	apiKeySvc := service.NewAPIKeyService(apiKeyStore, service.NewUUIDGen())
	provisionSvc := service.NewProvisionService(
		stackStore,
		storageClient,
		cdnClient,
		drainSvc,
		aesEncrypter,
		log.New(os.Stdout, "provision: ", log.LstdFlags),
	)
	pipelineSvc := service.NewPipelineService(
		stackStore,
		runStore,
		apiKeyStore,
		builderSvc,
		storageClient,
		cdnClient,
		service.NewUUIDGen(),
		scheduler,
		aesEncrypter,
	)
	if err := pipelineSvc.InitializeRunQueues(ctx); err != nil {
		log.Fatal(err)
	}
	if err := pipelineSvc.ScheduleRetentionCleanup(); err != nil {
		log.Fatal(err)
	}
	scheduler.Start()
	defer pipelineSvc.ShutdownAll()

	e := setupEcho()

	handler.SetupWebhookRoutes(e.Group(""), pipelineSvc)

	g := e.Group("", handler.APIKeyMiddleware(apiKeySvc))
	handler.SetupRunRoutes(g, pipelineSvc)
	handler.SetupDrainRoutes(g, drainSvc)
	handler.SetupStackRoutes(g, provisionSvc, pipelineSvc)
	handler.SetupBuilderRoutes(g, builderSvc)
	handler.SetupAPIKeyRoutes(g, apiKeySvc)
	handler.SetupConfigRoutes(g)

	internal.GracefulShutdown(e, settings.Settings.Port)
}

func setupEcho() *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = handler.ErrorHandler
	e.Use(
		middleware.CORSWithConfig(internal.GetCORSConfig()),
		middleware.RateLimiterWithConfig(internal.GetRateLimiterConfig()),
	)
	return e
}
