package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/smsfilter/internal/core/api"
	"github.com/solatis/smsfilter/internal/rules"
	"github.com/solatis/smsfilter/internal/types"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List, edit and test filter rules",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List rules in evaluation order",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		set, err := a.rules.LoadAllRules(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "#\tID\tACTION\tSENDER\tBODY")
		for i, r := range set {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", i, r.ID(), r.Action(), r.Sender(), r.Body())
		}
		return w.Flush()
	},
}

var rulesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Append a rule to the end of the rule set",
	RunE: func(cmd *cobra.Command, args []string) error {
		rule, err := ruleFromFlags(cmd.Flags())
		if err != nil {
			return err
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		stored, err := a.rules.PersistRules(cmd.Context(), []*rules.FilterRule{rule})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), stored[0].ID())
		return nil
	},
}

var rulesUpdateCmd = &cobra.Command{
	Use:   "update <rule-id>",
	Short: "Replace a rule in place (the rule gets a new ID)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := types.ParseRuleID(args[0])
		if err != nil {
			return fmt.Errorf("invalid rule ID: %w", err)
		}
		rule, err := ruleFromFlags(cmd.Flags())
		if err != nil {
			return err
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		stored, err := a.rules.ReplaceRule(cmd.Context(), id, rule)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), stored.ID())
		return nil
	},
}

var rulesDeleteCmd = &cobra.Command{
	Use:   "delete <rule-id>",
	Short: "Delete a rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := types.ParseRuleID(args[0])
		if err != nil {
			return fmt.Errorf("invalid rule ID: %w", err)
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		return a.rules.DeleteRule(cmd.Context(), id)
	},
}

var rulesTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Show the decision for a message without archiving it",
	Long: `Show the decision the current rule set reaches for a message.

Local evaluation never touches the archive. With --remote the request is
sent to a running service as a dry run, so a BLOCK is reported but not
archived there either.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sender, _ := cmd.Flags().GetString("sender")
		body, _ := cmd.Flags().GetString("body")
		remote, _ := cmd.Flags().GetString("remote")

		if remote != "" {
			return testRemote(cmd, remote, sender, body)
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.engine.Evaluate(cmd.Context(), types.CandidateMessage{Sender: sender, Body: body})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "decision: %s\n", result.Decision)
		if result.Matched() {
			fmt.Fprintf(out, "rule:     #%d %s\n", result.Index, result.Rule)
		}
		fmt.Fprintf(out, "matched:  %d\n", result.MatchCount)
		return nil
	},
}

// testRemote asks a running service for the decision. The API key is read
// from SMSF_API_KEY. A remote BLOCK is archived like any other.
// dryRunRequest builds an Evaluate request the service answers without
// archiving.
func dryRunRequest(sender, body string) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		"sender":  sender,
		"body":    body,
		"dry_run": true,
	})
}

func testRemote(cmd *cobra.Command, addr, sender, body string) error {
	key := os.Getenv("SMSF_API_KEY")
	if key == "" {
		return fmt.Errorf("SMSF_API_KEY is required with --remote")
	}

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	defer conn.Close()

	req, err := dryRunRequest(sender, body)
	if err != nil {
		return err
	}

	ctx := metadata.AppendToOutgoingContext(cmd.Context(), "x-api-key", key)
	resp, err := api.NewFilterServiceClient(conn).Evaluate(ctx, req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "decision: %s\n", resp.Fields["decision"].GetStringValue())
	if id := resp.Fields["rule_id"].GetStringValue(); id != "" {
		fmt.Fprintf(out, "rule:     %s\n", id)
	}
	fmt.Fprintf(out, "matched:  %d\n", int(resp.Fields["matched_rules"].GetNumberValue()))
	return nil
}

func addRuleFlags(flags *pflag.FlagSet) {
	flags.String("action", "block", "rule action (block, allow)")
	flags.String("sender", "", "sender pattern")
	flags.String("sender-mode", "contains", "sender match mode (contains, equals, starts_with, ends_with, regex)")
	flags.Bool("sender-case-sensitive", false, "match the sender case-sensitively")
	flags.String("body", "", "body pattern")
	flags.String("body-mode", "contains", "body match mode (contains, equals, starts_with, ends_with, regex)")
	flags.Bool("body-case-sensitive", false, "match the body case-sensitively")
}

// ruleFromFlags compiles the rule described by the add/update flags. A side
// is set only when its pattern flag was given.
func ruleFromFlags(flags *pflag.FlagSet) (*rules.FilterRule, error) {
	actionName, _ := flags.GetString("action")
	action, err := types.ParseFilterAction(actionName)
	if err != nil {
		return nil, err
	}

	sender, err := patternFromFlags(flags, "sender")
	if err != nil {
		return nil, err
	}
	body, err := patternFromFlags(flags, "body")
	if err != nil {
		return nil, err
	}

	return rules.Compile(&types.Rule{Action: action, Sender: sender, Body: body})
}

func patternFromFlags(flags *pflag.FlagSet, side string) (*types.PatternSpec, error) {
	if !flags.Changed(side) {
		return nil, nil
	}
	pattern, _ := flags.GetString(side)
	modeName, _ := flags.GetString(side + "-mode")
	caseSensitive, _ := flags.GetBool(side + "-case-sensitive")

	mode, err := types.ParseMatchMode(modeName)
	if err != nil {
		return nil, fmt.Errorf("--%s-mode: %w", side, err)
	}
	return &types.PatternSpec{Mode: mode, Pattern: pattern, CaseSensitive: caseSensitive}, nil
}

func init() {
	addRuleFlags(rulesAddCmd.Flags())
	addRuleFlags(rulesUpdateCmd.Flags())

	rulesTestCmd.Flags().String("sender", "", "message sender")
	rulesTestCmd.Flags().String("body", "", "message body")
	rulesTestCmd.Flags().String("remote", "", "evaluate on a running service at host:port instead of locally")

	rulesCmd.AddCommand(rulesListCmd, rulesAddCmd, rulesUpdateCmd, rulesDeleteCmd, rulesTestCmd)
	rootCmd.AddCommand(rulesCmd)
}

