package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tilespace-backend/pkg/utils"
)

var (
	tokenEmail string
	tokenTTL   time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an access token for the browser extension",
	Long: `Token signs a bearer credential with JWT_SECRET for --user. Paste it into the
extension to test quick capture against a local server.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if userID == "" {
			return errors.New("--user is required")
		}
		if cfg.IsProduction() && cfg.UsesDefaultSecret() {
			return errors.New("refusing to sign with the default secret in production")
		}

		token, expiresAt, err := utils.NewJWTService(cfg.JWTSecret).GenerateAccessToken(userID, tokenEmail, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		logger.Debug().Time("expires_at", time.Unix(expiresAt, 0)).Msg("token issued")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "Email claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", utils.DefaultAccessTTL, "Token lifetime")
}
