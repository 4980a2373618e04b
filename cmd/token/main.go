package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/prepdesk/examsim-backend/internal/config"
	"github.com/prepdesk/examsim-backend/internal/service"
)

// token mints a signed JWT for a user ID. Intended for development and for
// deployments without an upstream identity provider.
func main() {
	var userID string
	flag.StringVar(&userID, "user", "", "User ID to embed in the token")
	flag.Parse()

	if userID == "" {
		log.Fatal("usage: token -user <user-id>")
	}

	cfg := config.Load()
	tokens := service.NewTokenService(cfg)

	signed, err := tokens.Issue(userID)
	if err != nil {
		log.Fatalf("Issue failed: %v", err)
	}

	fmt.Println(signed)
}
