// Command api serves the locations left in the database by the last
// importer run.
//
//	@title			Localidades API
//	@version		1.0
//	@description	Read access to the locations loaded by the importer.
//	@BasePath		/
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"localidades-etl/internal/config"
	"localidades-etl/internal/database"
	"localidades-etl/internal/handler"
	"localidades-etl/internal/repository"
	"localidades-etl/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()

	config, err := config.LoadConfig("./configs")
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}
	config.SetupLogging(os.Stderr)
	if config.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database connection
	conn, err := database.ConnectPool(ctx, config.Database())
	if err != nil {
		log.Fatal().Err(err).Msg("cannot connect to db")
	}
	defer conn.Close()

	// Initialize layers
	repo, err := repository.ForHandle(conn, config.BatchSize)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot create repository")
	}
	locationService := service.NewLocationService(repo)
	locationHandler := handler.NewLocationHandler(locationService)

	srv := &http.Server{
		Addr:              config.ServerAddress,
		Handler:           handler.NewRouter(locationHandler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}
