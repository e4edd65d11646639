package main

import (
	"flag"
	"fmt"
	"log"

	"courseboard-backend/internal/auth"
	"courseboard-backend/internal/config"
	"courseboard-backend/internal/database"
	"courseboard-backend/internal/model"
)

// Dev/ops tool: mint tokens signed with this service's JWT secret. The
// identity provider issues tokens in production; this covers local
// development and smoke-testing the WS endpoint without it.
//
//	go run ./cmd/mint_token -user 42
//	go run ./cmd/mint_token -refresh <token>
func main() {
	userID := flag.Int64("user", 0, "user id to mint tokens for")
	refreshTok := flag.String("refresh", "", "exchange a refresh token for a new access token")
	flag.Parse()

	if *userID == 0 && *refreshTok == "" {
		log.Fatal("either -user or -refresh is required")
	}

	cfg := config.Load()
	manager := auth.NewJWTManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
	)

	id := *userID
	if *refreshTok != "" {
		var err error
		id, err = manager.ValidateRefreshToken(*refreshTok)
		if err != nil {
			log.Fatalf("Invalid refresh token: %v", err)
		}
	}

	db, err := database.ConnectDB()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	var user model.User
	if err := db.First(&user, id).Error; err != nil {
		log.Fatalf("Failed to load user %d: %v", id, err)
	}

	access, err := manager.GenerateAccessToken(user.ID, user.Email, user.Nickname)
	if err != nil {
		log.Fatalf("Failed to generate access token: %v", err)
	}
	fmt.Printf("access_token=%s\n", access)

	// A refresh exchange only re-issues the access token.
	if *refreshTok == "" {
		refresh, err := manager.GenerateRefreshToken(user.ID)
		if err != nil {
			log.Fatalf("Failed to generate refresh token: %v", err)
		}
		fmt.Printf("refresh_token=%s\n", refresh)
	}
}
