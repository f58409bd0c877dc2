package main

import (
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/placepulse/backend-go/internal/api"
	"github.com/placepulse/backend-go/internal/config"
	"github.com/placepulse/backend-go/internal/database"
	"github.com/placepulse/backend-go/internal/handler"
	"github.com/placepulse/backend-go/internal/ledger"
	"github.com/placepulse/backend-go/internal/repository"
	"github.com/placepulse/backend-go/internal/reward"
	"github.com/placepulse/backend-go/internal/service"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration: ", err)
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		log.Fatal("Failed to initialize database: ", err)
	}
	defer db.Close()

	fixRepo := repository.NewFixRepository(db)
	visitRepo := repository.NewVisitRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	supplyRepo := repository.NewSupplyRepository(db)

	// Redis-backed dedup when configured; otherwise the database
	// fallback, which is still durable and shared across instances.
	var dedup reward.DedupStore
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		dedup = reward.NewRedisDedup(client)
		log.Printf("[Server] Using Redis dedup store at %s", cfg.RedisAddr)
	} else {
		dedup = repository.NewDedupRepository(db)
		log.Printf("[Server] Using database dedup store")
	}

	supply := ledger.New(cfg.Supply, supplyRepo)

	trackingSvc := service.NewTrackingService(cfg, fixRepo, visitRepo)
	contributionSvc := service.NewContributionService(cfg.Reward, dedup, supply, tokenRepo, fixRepo, trackingSvc)
	voteSvc := service.NewVoteService(cfg, fixRepo, visitRepo)

	router := api.SetupRouter(api.Handlers{
		Tracking:     handler.NewTrackingHandler(trackingSvc),
		Contribution: handler.NewContributionHandler(contributionSvc),
		Vote:         handler.NewVoteHandler(voteSvc),
		Token:        handler.NewTokenHandler(contributionSvc),
	})

	log.Printf("Server starting on %s", cfg.Port)
	if err := router.Run(cfg.Port); err != nil {
		log.Fatal("Failed to start server: ", err)
	}
}
