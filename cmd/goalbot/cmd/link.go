package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kamir/goalbot/internal/config"
	"github.com/kamir/goalbot/internal/logging"
	"github.com/kamir/goalbot/internal/store"
	"github.com/kamir/goalbot/internal/telegram"
	"github.com/spf13/cobra"
)

// MsgBotVerified is sent to a chat once its code has been linked.
const MsgBotVerified = "Bot verified"

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Link a chat's verification code to a user account",
	Run:   runLink,
}

var (
	linkCode   string
	linkUserID int64
)

func init() {
	linkCmd.Flags().StringVar(&linkCode, "code", "", "Verification code shown in the chat")
	linkCmd.Flags().Int64Var(&linkUserID, "user", 0, "User id to attach")
	_ = linkCmd.MarkFlagRequired("code")
	_ = linkCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(linkCmd)
}

func runLink(cmd *cobra.Command, args []string) {
	printHeader("🔗 GoalBot Link")

	cfg, err := config.Load(configPath)
	if err != nil {
		printError("Config error: %v", err)
		os.Exit(1)
	}
	st, err := store.NewStore(cfg.Store.Path)
	if err != nil {
		printError("Failed to open store: %v", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	ok, err := st.UserExists(ctx, linkUserID)
	if err != nil {
		printError("Lookup user failed: %v", err)
		os.Exit(1)
	}
	if !ok {
		printError("User %d does not exist", linkUserID)
		os.Exit(1)
	}

	id, err := st.LinkIdentity(ctx, strings.TrimSpace(linkCode), linkUserID)
	switch {
	case errors.Is(err, store.ErrInvalidCode):
		printError("Invalid verification code")
		os.Exit(1)
	case errors.Is(err, store.ErrAlreadyVerified):
		printError("User has already verified")
		os.Exit(1)
	case err != nil:
		printError("Link failed: %v", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Chat %d linked to user %d\n", id.ChatID, id.UserID)

	if cfg.Telegram.Token == "" {
		fmt.Println("No Telegram token configured; skipping chat notification.")
		return
	}
	client := telegram.NewClient(telegram.Options{
		Token:   cfg.Telegram.Token,
		BaseURL: cfg.Telegram.BaseURL,
		Logger:  logging.Discard(),
	})
	if _, err := client.SendMessage(ctx, id.ChatID, MsgBotVerified); err != nil {
		printError("Notify chat failed: %v", err)
		return
	}
	fmt.Println("Chat notified.")
}
