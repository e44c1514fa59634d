package cmd

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/solatis/smsfilter/internal/core/auth"
	"github.com/solatis/smsfilter/internal/core/config"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage API keys of message-source clients",
}

var keysCreateCmd = &cobra.Command{
	Use:   "create <client-name>",
	Short: "Create an API key; the key is printed once",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		secrets, err := config.HMACSecrets()
		if err != nil {
			return fmt.Errorf("failed to load HMAC secrets: %w", err)
		}
		secretID, _ := cmd.Flags().GetString("secret-id")
		if secretID == "" {
			if len(secrets) != 1 {
				return fmt.Errorf("%d HMAC secrets configured; choose one with --secret-id", len(secrets))
			}
			for id := range secrets {
				secretID = id
			}
		}
		secret, ok := secrets[secretID]
		if !ok {
			return fmt.Errorf("no HMAC secret with ID %s (set %s_HMAC_SECRET)", secretID, config.EnvPrefix)
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		key, info, err := auth.CreateKey(cmd.Context(), a.queries, args[0], secretID, secret)
		if err != nil {
			return err
		}
		logger.Info("api key created", "api_key_id", info.ID, "client", info.ClientName)
		fmt.Fprintln(cmd.OutOrStdout(), key)
		return nil
	},
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List API keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		keys, err := auth.ListKeys(cmd.Context(), a.queries)
		if err != nil {
			return err
		}
		sort.SliceStable(keys, func(i, j int) bool { return keys[i].ClientName < keys[j].ClientName })

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCLIENT\tCREATED\tLAST USED\tSTATE")
		for _, k := range keys {
			state := "active"
			if k.Revoked() {
				state = "revoked"
			}
			lastUsed := "-"
			if k.LastUsedAt.Valid {
				lastUsed = k.LastUsedAt.String
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", k.ID, k.ClientName, k.CreatedAt, lastUsed, state)
		}
		return w.Flush()
	},
}

var keysRevokeCmd = &cobra.Command{
	Use:   "revoke <api-key-id>",
	Short: "Revoke an API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := auth.RevokeKey(cmd.Context(), a.queries, args[0]); err != nil {
			return err
		}
		logger.Info("api key revoked", "api_key_id", args[0])
		return nil
	},
}

func init() {
	keysCreateCmd.Flags().String("secret-id", "", "HMAC secret ID to bind the key to (required with several secrets)")

	keysCmd.AddCommand(keysCreateCmd, keysListCmd, keysRevokeCmd)
	rootCmd.AddCommand(keysCmd)
}
