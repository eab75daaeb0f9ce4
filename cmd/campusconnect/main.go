package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/campusconnect/campusconnect/db"
	"github.com/campusconnect/campusconnect/internal/auth"
	"github.com/campusconnect/campusconnect/internal/blob"
	"github.com/campusconnect/campusconnect/internal/config"
	"github.com/campusconnect/campusconnect/internal/handlers"
	"github.com/campusconnect/campusconnect/internal/router"
	"github.com/campusconnect/campusconnect/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func setupLogging(level, format string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if format != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
		gin.DefaultWriter = zerolog.ConsoleWriter{Out: os.Stdout}
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatal().Err(err).Msg("error loading .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	setupLogging(cfg.LogLevel, cfg.LogFormat)

	gdb, err := db.ConnectDatabase(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DatabaseDriver).Msg("failed to connect to database")
	}

	if err := db.MigrateDatabase(gdb); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	blobs, err := blob.NewLocalStorage(cfg.UploadDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.UploadDir).Msg("failed to prepare upload directory")
	}

	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure tokens")
	}

	opts := store.DefaultOptions()
	opts.MaxUploadSize = cfg.MaxUploadSize

	s := store.New(gdb, blobs, opts)
	h := handlers.New(cfg, s, tokens, handlers.NewHub(cfg.AllowedOrigins))
	r := router.NewRouter(cfg, h)

	log.Info().Str("port", cfg.Port).Str("driver", cfg.DatabaseDriver).Msg("starting server")

	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("app failed to start")
	}
}
