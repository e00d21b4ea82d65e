package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/modmapper/crawler/internal/config"
	"github.com/modmapper/crawler/internal/nexusapi"
	"github.com/modmapper/crawler/internal/ratelimit"
)

var validateKeyCmd = &cobra.Command{
	Use:   "validate-key",
	Short: "Check that NEXUS_API_KEY is accepted by the upstream service",
	Long: `validate-key calls the upstream account-validation endpoint with the
configured API key and prints the account it resolves to. It exits non-zero
if the key is missing or rejected, so it can gate a crawl run in a script
without spending a listing page on the check.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		api, err := nexusapi.NewClient(nexusapi.ClientConfig{
			APIKey:     cfg.NexusAPIKey,
			HTTPClient: &http.Client{Timeout: 30 * time.Second},
			Gate:       ratelimit.New(),
		})
		if err != nil {
			return fmt.Errorf("build nexus api client: %w", err)
		}

		info, err := api.ValidateKey(ctx)
		if err != nil {
			return fmt.Errorf("validate key: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "key valid for %s (user_id=%d, premium=%t)\n", info.Name, info.UserID, info.IsPremium)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateKeyCmd)
}
