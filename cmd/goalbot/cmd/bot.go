package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kamir/goalbot/internal/config"
	"github.com/kamir/goalbot/internal/dialogue"
	"github.com/kamir/goalbot/internal/events"
	"github.com/kamir/goalbot/internal/identity"
	"github.com/kamir/goalbot/internal/logging"
	"github.com/kamir/goalbot/internal/poller"
	"github.com/kamir/goalbot/internal/session"
	"github.com/kamir/goalbot/internal/store"
	"github.com/kamir/goalbot/internal/telegram"
	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Telegram long-poll loop",
	Run:   runBot,
}

var botQRFile string

func init() {
	botCmd.Flags().StringVar(&botQRFile, "qr", "", "Write a PNG QR code of the bot's t.me link to this path")
	rootCmd.AddCommand(botCmd)
}

func runBot(cmd *cobra.Command, args []string) {
	printHeader("🎯 GoalBot")

	// 1. Load config
	cfg, err := config.Load(configPath)
	if err != nil {
		printError("Config error: %v", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		if errors.Is(err, config.ErrMissingToken) {
			printError("No Telegram token configured. Set TELEGRAM_TOKEN or telegram.token in %s", configPathOrDefault())
		} else {
			printError("Config error: %v", err)
		}
		os.Exit(1)
	}

	// 2. Logging
	logger, closer, err := logging.New(cfg.Logging)
	if err != nil {
		printError("Logging error: %v", err)
		os.Exit(1)
	}
	defer closer.Close()
	slog.SetDefault(logger)

	// 3. Store
	st, err := store.NewStore(cfg.Store.Path)
	if err != nil {
		printError("Failed to open store: %v", err)
		os.Exit(1)
	}
	defer st.Close()
	logger.Info("store_opened", "component", logging.CompStore, "path", cfg.Store.Path)

	// 4. Telegram client
	client := telegram.NewClient(telegram.Options{
		Token:    cfg.Telegram.Token,
		BaseURL:  cfg.Telegram.BaseURL,
		SendRate: cfg.Telegram.SendRate,
		Logger:   logger.With("component", logging.CompTelegram),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	meCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	me, err := client.Me(meCtx)
	cancel()
	if err != nil {
		printError("Telegram getMe failed: %v", err)
		os.Exit(1)
	}
	fmt.Printf("Bot: @%s (id %d)\n", me.Username, me.ID)
	if botQRFile != "" {
		if err := writeBotQR(me.Username, botQRFile); err != nil {
			printError("QR code error: %v", err)
		} else {
			fmt.Printf("QR code for t.me/%s written to %s\n", me.Username, botQRFile)
		}
	}

	// 5. Events
	var pub events.Publisher = events.Nop{}
	if cfg.Events.Enabled {
		kp, err := events.NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.Topic)
		if err != nil {
			printError("Events error: %v", err)
			os.Exit(1)
		}
		pub = kp
		logger.Info("events_enabled", "component", logging.CompEvents, "brokers", cfg.Events.Brokers, "topic", cfg.Events.Topic)
		fmt.Printf("Events: kafka %s -> %s\n", cfg.Events.Brokers, cfg.Events.Topic)
	}
	defer pub.Close()

	// 6. Dialogue engine and poller
	engine := dialogue.NewEngine(dialogue.Options{
		Identities: identity.NewResolver(st, logger.With("component", logging.CompIdentity)),
		Backend:    st,
		Sessions:   session.NewStore(),
		Events:     pub,
		Logger:     logger.With("component", logging.CompDialogue),
	})
	loop := poller.NewLoop(poller.Options{
		Transport:          client,
		Handler:            engine,
		Timeout:            cfg.Poll.Timeout,
		Backoff:            cfg.Poll.Backoff,
		MaxConcurrentChats: cfg.Poll.MaxConcurrentChats,
		Logger:             logger.With("component", logging.CompPoller),
	})

	fmt.Println("Polling for updates. Press Ctrl+C to stop.")
	if err := loop.Run(ctx); err != nil {
		logger.Error("poller_exit", "error", err)
		os.Exit(1)
	}
	fmt.Println("Shutting down...")
}

func configPathOrDefault() string {
	if configPath != "" {
		return configPath
	}
	p, err := config.ConfigPath()
	if err != nil {
		return "config.toml"
	}
	return p
}

// writeBotQR encodes the bot's chat link so users can open it from a phone.
func writeBotQR(username, path string) error {
	if username == "" {
		return fmt.Errorf("bot has no username")
	}
	if err := config.EnsureDir(dirOf(path)); err != nil {
		return err
	}
	return qrcode.WriteFile(botLink(username), qrcode.Medium, 512, config.ExpandHome(path))
}

func botLink(username string) string {
	return "https://t.me/" + username
}
