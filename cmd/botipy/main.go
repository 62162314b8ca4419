package main

import (
	"log"

	"botipy/internal/bot"
	"botipy/internal/config"
)

func main() {
	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Create and start bot
	musicBot, err := bot.New(cfg)
	if err != nil {
		log.Fatal("Failed to create bot:", err)
	}

	if err := musicBot.Start(); err != nil {
		log.Fatal("Failed to start bot:", err)
	}
}
