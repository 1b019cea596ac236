package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/zulandar/dinbot/internal/config"
	"golang.org/x/term"
)

func newTokenCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Store the bot token in .env",
		Long:  "Prompts for the Discord bot token without echoing it and writes it to the local .env file under the configured variable name.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "dinbot.yaml", "path to config file")
	return cmd
}

func runToken(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fmt.Fprintf(out, "Paste the bot token (input hidden): ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return fmt.Errorf("read token: %w", err)
	}
	token := string(raw)
	if token == "" {
		return fmt.Errorf("empty token")
	}

	// Merge with any existing .env so other entries survive.
	env, err := godotenv.Read(".env")
	if err != nil {
		env = map[string]string{}
	}
	env[cfg.Discord.TokenEnv] = token
	if err := godotenv.Write(env, ".env"); err != nil {
		return fmt.Errorf("write .env: %w", err)
	}

	fmt.Fprintf(out, "Token saved to .env as %s\n", cfg.Discord.TokenEnv)
	return nil
}
