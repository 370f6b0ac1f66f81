package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atlwiki/wikilink/internal/api"
	"github.com/atlwiki/wikilink/internal/bot"
	"github.com/atlwiki/wikilink/internal/config"
	"github.com/atlwiki/wikilink/internal/database"
	"github.com/atlwiki/wikilink/internal/jobs"
	"github.com/atlwiki/wikilink/internal/mediawiki"
	"github.com/atlwiki/wikilink/internal/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get database connection: %v", err)
	}
	defer sqlDB.Close()

	// Run migrations
	if err := database.RunMigrations(cfg.Database); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	linkStore := store.NewLinkStore(db)
	sessionStore := store.NewSessionStore(db)

	// MediaWiki OAuth1 consumer
	wiki := mediawiki.NewClient(cfg.MediaWiki, cfg.CallbackURL)

	// Discord bot (command surface + DM notifier + membership view)
	discordBot, err := bot.New(cfg, linkStore)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}
	if err := discordBot.Open(); err != nil {
		log.Fatalf("Failed to connect to Discord: %v", err)
	}
	defer discordBot.Close()

	// Background reconciliation jobs
	sweep := jobs.NewRoleSweep(linkStore, discordBot, wiki, cfg.Discord.WikiAuthorRoleID)
	scheduler := jobs.NewScheduler(linkStore, sessionStore, sweep,
		cfg.PurgeIntervalMinutes, cfg.GrantIntervalMinutes, cfg.TokenExpiryHours)
	scheduler.Start()
	defer scheduler.Stop()

	// OAuth entry/callback endpoints
	router := api.NewRouter(cfg, linkStore, sessionStore, wiki)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on port %d", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
