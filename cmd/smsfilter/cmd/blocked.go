package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/solatis/smsfilter/internal/types"
)

var blockedCmd = &cobra.Command{
	Use:   "blocked",
	Short: "Review archived blocked messages",
}

var blockedListCmd = &cobra.Command{
	Use:   "list",
	Short: "List blocked messages, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		unseen, _ := cmd.Flags().GetBool("unseen")

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		msgs, err := a.messages.List(cmd.Context(), unseen)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tRECEIVED\tSEEN\tSENDER\tBODY")
		for _, m := range msgs {
			fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\n", m.ID, m.ReceivedAt.Format("2006-01-02 15:04:05"), m.Seen, m.Sender, preview(m.Body, 48))
		}
		return w.Flush()
	},
}

var blockedRestoreCmd = &cobra.Command{
	Use:   "restore <message-id>",
	Short: "Remove a message from the archive and print it for re-delivery",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := types.ParseMessageID(args[0])
		if err != nil {
			return fmt.Errorf("invalid message ID: %w", err)
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		m, err := a.messages.Restore(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "From: %s\n\n%s\n", m.Sender, m.Body)
		return nil
	},
}

var blockedDeleteCmd = &cobra.Command{
	Use:   "delete <message-id>",
	Short: "Delete a message from the archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := types.ParseMessageID(args[0])
		if err != nil {
			return fmt.Errorf("invalid message ID: %w", err)
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		return a.messages.Delete(cmd.Context(), id)
	},
}

var blockedSeenCmd = &cobra.Command{
	Use:   "seen [message-id]",
	Short: "Mark one message, or with --all every message, as seen",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		if all == (len(args) == 1) {
			return fmt.Errorf("give either a message ID or --all")
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if all {
			n, err := a.messages.MarkAllSeen(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "marked %d messages seen\n", n)
			return nil
		}

		id, err := types.ParseMessageID(args[0])
		if err != nil {
			return fmt.Errorf("invalid message ID: %w", err)
		}
		return a.messages.SetSeen(cmd.Context(), id, true)
	},
}

// preview shortens s to at most n runes for table output.
func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func init() {
	blockedListCmd.Flags().Bool("unseen", false, "only unseen messages")
	blockedSeenCmd.Flags().Bool("all", false, "mark every message seen")

	blockedCmd.AddCommand(blockedListCmd, blockedRestoreCmd, blockedDeleteCmd, blockedSeenCmd)
	rootCmd.AddCommand(blockedCmd)
}
