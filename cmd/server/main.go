package main

import (
	"log"

	"courseboard-backend/internal/config"
	"courseboard-backend/internal/database"
	"courseboard-backend/internal/presence"
	"courseboard-backend/internal/server"
)

func main() {
	cfg := config.Load()

	db, err := database.ConnectDB()
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer database.Close()

	if err := database.Ping(); err != nil {
		log.Fatalf("Database ping failed: %v", err)
	}
	log.Printf("Database connected successfully")

	// Redis is optional: without it presence falls back to per-process
	// connection counts.
	var pres *presence.Manager
	if cfg.Redis.Addr != "" {
		pres, err = presence.NewManager(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Whiteboard.PresenceTTL)
		if err != nil {
			log.Printf("Redis connection failed: %v (presence tracking disabled)", err)
			pres = nil
		} else {
			log.Printf("Redis connected (presence tracking enabled)")
			defer pres.Close()
		}
	} else {
		log.Println("Redis not configured (presence tracking disabled)")
	}

	srv := server.New(cfg, db, pres)
	srv.SetupMiddleware()
	srv.SetupRoutes()

	if err := srv.Start(); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
