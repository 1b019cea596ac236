package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/zulandar/dinbot/internal/bot"
	"github.com/zulandar/dinbot/internal/config"
	"github.com/zulandar/dinbot/internal/dashboard"
	"github.com/zulandar/dinbot/internal/db"
	"github.com/zulandar/dinbot/internal/directory"
	"github.com/zulandar/dinbot/internal/gateway"
	"github.com/zulandar/dinbot/internal/logring"
	"github.com/zulandar/dinbot/internal/mentions"
	"github.com/zulandar/dinbot/internal/pipeline"
	"github.com/zulandar/dinbot/internal/players"
	"github.com/zulandar/dinbot/internal/settings"
	"github.com/zulandar/dinbot/internal/songs"
	"github.com/zulandar/dinbot/internal/store"
)

// Model choices offered in the settings menu. The configured default is
// always listed first.
var (
	chatModelChoices  = []string{"gemini-2.5-flash", "gemini-2.5-pro", "gpt-4o-mini"}
	imageModelChoices = []string{"gemini-3-pro-image", "dall-e-3"}
)

func newStartCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the bot daemon",
		Long:  "Connects to the Discord gateway, serves the message pipeline, and optionally exposes the status dashboard.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "dinbot.yaml", "path to config file")
	return cmd
}

func runStart(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	// Secrets may live in a local .env; a missing file is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	token := os.Getenv(cfg.Discord.TokenEnv)
	if token == "" {
		return fmt.Errorf("bot token not set: export %s or run 'dinbot token'", cfg.Discord.TokenEnv)
	}

	gormDB, err := db.Connect(cfg.DB)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	conversations, err := store.NewConversationStore(store.ConversationStoreOpts{DB: gormDB})
	if err != nil {
		return err
	}
	policies, err := store.NewPolicyStore(store.PolicyStoreOpts{
		DB:                gormDB,
		DefaultChatModel:  cfg.AI.ChatModel,
		DefaultImageModel: cfg.AI.ImageModel,
	})
	if err != nil {
		return err
	}

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	dir, err := directory.NewDiscord(session)
	if err != nil {
		return err
	}

	cache, err := mentions.NewCache(mentions.CacheOpts{
		Directory:   dir,
		MemberLimit: cfg.Mentions.MemberPageLimit,
	})
	if err != nil {
		return err
	}

	gw, err := gateway.NewClient(gateway.ClientOpts{
		BaseURL: cfg.AI.BaseURL,
		APIKey:  os.Getenv(cfg.AI.APIKeyEnv),
	})
	if err != nil {
		return err
	}

	pipeOpts := pipeline.Opts{
		Conversations: conversations,
		Policies:      policies,
		Directory:     dir,
		Cache:         cache,
		Gateway:       gw,
		Out:           out,
	}
	if cfg.Players.Endpoint != "" {
		lookup, err := players.NewClient(players.ClientOpts{
			Endpoint: cfg.Players.Endpoint,
			Origin:   cfg.Players.Origin,
			Secret:   cfg.Players.Secret,
		})
		if err != nil {
			return err
		}
		pipeOpts.Players = lookup
	}
	pipe, err := pipeline.New(pipeOpts)
	if err != nil {
		return err
	}

	mgr, err := settings.NewManager(settings.ManagerOpts{
		Policies:      policies,
		Conversations: conversations,
		Cache:         cache,
		ChatModels:    withDefaultFirst(cfg.AI.ChatModel, chatModelChoices),
		ImageModels:   withDefaultFirst(cfg.AI.ImageModel, imageModelChoices),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var songsClient *songs.Client
	if cfg.Songs.ClientID != "" {
		secret := os.Getenv(cfg.Songs.ClientSecretEnv)
		if secret != "" {
			songsClient, err = songs.NewClient(ctx, songs.ClientOpts{
				ClientID:     cfg.Songs.ClientID,
				ClientSecret: secret,
			})
			if err != nil {
				return err
			}
		} else {
			fmt.Fprintf(out, "songs: %s not set, /song disabled\n", cfg.Songs.ClientSecretEnv)
		}
	}

	logs := logring.NewBuffer(0)

	daemon, err := bot.New(bot.Opts{
		Session:     session,
		Pipeline:    pipe,
		Settings:    mgr,
		Cache:       cache,
		Policies:    policies,
		Gateway:     gw,
		ImageModel:  cfg.AI.ImageModel,
		Songs:       songsClient,
		Logs:        logs,
		RefreshCron: cfg.Mentions.RefreshCron,
		Out:         out,
	})
	if err != nil {
		return err
	}

	if cfg.Dashboard.Port > 0 {
		go func() {
			err := dashboard.Start(ctx, dashboard.StartOpts{
				DB:        gormDB,
				Cache:     cache,
				Logs:      logs,
				Port:      cfg.Dashboard.Port,
				StartedAt: time.Now(),
				Out:       out,
			})
			if err != nil {
				fmt.Fprintf(out, "dashboard: %v\n", err)
			}
		}()
	}

	return daemon.Run(ctx)
}

func withDefaultFirst(def string, choices []string) []string {
	out := []string{def}
	for _, c := range choices {
		if c != def {
			out = append(out, c)
		}
	}
	return out
}
