package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ecoskun/depstash/internal/adapters/archive"
	"github.com/ecoskun/depstash/internal/adapters/docker"
	"github.com/ecoskun/depstash/internal/adapters/gitsource"
	httpadapter "github.com/ecoskun/depstash/internal/adapters/http"
	"github.com/ecoskun/depstash/internal/adapters/npm"
	"github.com/ecoskun/depstash/internal/adapters/registry"
	"github.com/ecoskun/depstash/internal/adapters/toolexec"
	"github.com/ecoskun/depstash/internal/adapters/workspace"
	"github.com/ecoskun/depstash/internal/config"
	"github.com/ecoskun/depstash/internal/core/ports"
	"github.com/ecoskun/depstash/internal/core/services"
	"github.com/ecoskun/depstash/internal/logging"
)

func main() {
	cfg, err := config.Load(os.Getenv("DEPSTASH_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Infrastructure adapters.
	provisioner := workspace.NewProvisioner(cfg.DataDir)
	runner := toolexec.NewRunner()

	var installer ports.Installer
	switch cfg.Installer {
	case config.InstallerDocker:
		installer, err = docker.NewInstaller(cfg.NodeImage, cfg.InstallTimeout.Std(), logger)
		if err != nil {
			logger.Fatal("failed to initialize docker installer", zap.Error(err))
		}
	default:
		installer = npm.NewInstaller(runner, cfg.InstallTimeout.Std(), logger)
	}

	var archiver ports.Archiver
	switch cfg.Archiver {
	case config.ArchiverBuiltin:
		archiver = archive.NewBuiltin(logger)
	default:
		archiver = archive.NewTarCommand(runner, cfg.ArchiveTimeout.Std(), logger)
	}

	reg := registry.New(logger)
	reg.StartSweeper(cfg.SweepInterval.Std())
	defer reg.Stop()

	// Core service and interface adapters.
	pipeline := services.NewPipeline(
		provisioner, installer, archiver, reg,
		cfg.TTL.Std(), cfg.MaxManifestBytes, logger,
	)
	handler := httpadapter.NewBuildHandler(
		pipeline,
		gitsource.NewSource(logger),
		reg,
		cfg.EffectiveBaseURL(),
		cfg.MaxManifestBytes,
		logger,
	)

	app := fiber.New(fiber.Config{
		// Leave headroom over the manifest ceiling for multipart framing.
		BodyLimit: int(cfg.MaxManifestBytes) + 64*1024,
	})

	api := app.Group("/api")
	v1 := api.Group("/v1")
	v1.Post("/builds", handler.SubmitBuild)
	app.Get("/download/:id", handler.Download)

	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	sig := <-quit
	logger.Info("shutting down", zap.String("signal", sig.String()))
	if err := app.Shutdown(); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
}
