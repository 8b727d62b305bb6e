package main

import (
	"net/http"
	"os"

	"github.com/rs/zerolog"

	"github.com/davidps79/backend-grupo-13/internal/api"
	"github.com/davidps79/backend-grupo-13/internal/cart"
	"github.com/davidps79/backend-grupo-13/internal/catalog"
	"github.com/davidps79/backend-grupo-13/internal/config"
	"github.com/davidps79/backend-grupo-13/internal/database"
	"github.com/davidps79/backend-grupo-13/internal/identity"
	"github.com/davidps79/backend-grupo-13/internal/order"
	"github.com/davidps79/backend-grupo-13/internal/ownership"
	"github.com/davidps79/backend-grupo-13/internal/payment"
	"github.com/davidps79/backend-grupo-13/internal/wishlist"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		log = log.Level(level)
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to database")
	}
	defer db.Close()

	log.Info().Msg("connected to database")

	lookup := identity.NewClient(cfg.Identity.BaseURL, cfg.Identity.Timeout)
	gateway := payment.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.CallbackURL, cfg.Gateway.Timeout)

	catalogSvc := catalog.NewService(db, lookup)
	registry := ownership.NewRegistry(db, lookup)
	wishlistSvc := wishlist.NewService(db, lookup)
	cartSvc := cart.NewService(db, lookup)
	engine := order.NewEngine(db, lookup, gateway, cartSvc, log)

	server := api.NewServer(catalogSvc, registry, wishlistSvc, cartSvc, engine, lookup, log)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	log.Info().Str("port", cfg.Server.Port).Msg("server starting")
	if err := httpServer.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}
