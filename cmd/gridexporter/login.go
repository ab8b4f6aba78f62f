package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jgoulah/gridexporter/internal/auth"
	"github.com/jgoulah/gridexporter/internal/bootstrap"
	"github.com/spf13/cobra"
)

var loginShowToken bool

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Check the configured credentials",
	Long: `Signs in to the Cognito user pool with the configured username and password
and prints when the access token expires. Nothing is saved.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().BoolVar(&loginShowToken, "show-token", false, "print the access token")
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	fmt.Printf("Signing in as %s (pool %s)...\n", cfg.Cognito.Username, cfg.Cognito.UserPoolID)

	tokens := auth.NewTokenCache(bootstrap.NewProvider(cfg))
	cred, err := tokens.Initialize(context.Background(), cfg.Cognito.Username, cfg.Cognito.Password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	expires := cred.ExpiresAt()
	fmt.Printf("✓ Authenticated, token expires at %s (in %s)\n",
		expires.Format("2006-01-02 15:04:05 MST"), time.Until(expires).Round(time.Second))
	if loginShowToken {
		fmt.Println(cred.Token)
	}
	return nil
}
