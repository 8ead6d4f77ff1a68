package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/brand-studio/internal/auth"
	"github.com/fpang/brand-studio/internal/ledger"
	"github.com/fpang/brand-studio/internal/store"
)

// Each command binds its own variables; cobra writes flag defaults into
// them at registration.
var (
	grantTeamFlag   string
	grantPoolFlag   string
	grantAmountFlag int64
	grantNoteFlag   string
	grantActorFlag  string

	tokenTeamFlag string
	tokenUserFlag string

	ledgerTeamFlag  string
	ledgerLimitFlag int
	ledgerJSONFlag  bool
)

var creditsCmd = &cobra.Command{
	Use:   "credits",
	Short: "Manage team credit balances",
}

var creditsGrantCmd = &cobra.Command{
	Use:   "grant",
	Short: "Add credits to a team's pool",
	Run:   runCreditsGrant,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage API tokens",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue an API token for a user in a team",
	Run:   runTokenIssue,
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Show a team's recent ledger entries and balances",
	Run:   runLedger,
}

func init() {
	creditsGrantCmd.Flags().StringVar(&grantTeamFlag, "team", "", "Team ID (required)")
	creditsGrantCmd.Flags().StringVar(&grantPoolFlag, "pool", string(store.PoolCredits), "Pool to credit: credits or image_credits")
	creditsGrantCmd.Flags().Int64Var(&grantAmountFlag, "amount", 0, "Amount to add (required, > 0)")
	creditsGrantCmd.Flags().StringVar(&grantNoteFlag, "note", "", "Ledger description")
	creditsGrantCmd.Flags().StringVar(&grantActorFlag, "actor", "admin", "Who is granting, recorded on the ledger")
	creditsGrantCmd.MarkFlagRequired("team")
	creditsGrantCmd.MarkFlagRequired("amount")
	creditsCmd.AddCommand(creditsGrantCmd)

	tokenIssueCmd.Flags().StringVar(&tokenTeamFlag, "team", "", "Team ID (required)")
	tokenIssueCmd.Flags().StringVar(&tokenUserFlag, "user", "", "User ID (required)")
	tokenIssueCmd.MarkFlagRequired("team")
	tokenIssueCmd.MarkFlagRequired("user")
	tokenCmd.AddCommand(tokenIssueCmd)

	ledgerCmd.Flags().StringVar(&ledgerTeamFlag, "team", "", "Team ID (required)")
	ledgerCmd.Flags().IntVar(&ledgerLimitFlag, "limit", store.DefaultLedgerLimit, "Entries to show")
	ledgerCmd.Flags().BoolVar(&ledgerJSONFlag, "json", false, "Print JSON instead of a table")
	ledgerCmd.MarkFlagRequired("team")

	rootCmd.AddCommand(creditsCmd, tokenCmd, ledgerCmd)
}

func runCreditsGrant(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	ctx := context.Background()
	rt := buildRuntime(ctx, cfg, "studio-credits", false)
	defer rt.Close()

	entry, err := ledger.New(rt.Store, nil).Grant(ctx, grantTeamFlag, store.Pool(grantPoolFlag), grantAmountFlag, grantActorFlag, grantNoteFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Grant failed")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Granted %d %s to %s (balance %d, entry %s)\n",
		grantAmountFlag, grantPoolFlag, grantTeamFlag, entry.BalanceAfter, entry.ID)
}

func runTokenIssue(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	ctx := context.Background()
	rt := buildRuntime(ctx, cfg, "studio-token", false)
	defer rt.Close()

	token, err := auth.IssueToken(ctx, rt.Store, store.Principal{UserID: tokenUserFlag, TeamID: tokenTeamFlag})
	if err != nil {
		log.Fatal().Err(err).Msg("Token issue failed")
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	fmt.Fprintln(os.Stderr, "Store this token now; it cannot be shown again.")
}

func runLedger(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	ctx := context.Background()
	rt := buildRuntime(ctx, cfg, "studio-ledger", false)
	defer rt.Close()

	l := ledger.New(rt.Store, nil)
	snap, err := l.Snapshot(ctx, ledgerTeamFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read entitlements")
	}
	entries, err := l.History(ctx, ledgerTeamFlag, ledgerLimitFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read ledger")
	}

	out := cmd.OutOrStdout()
	if ledgerJSONFlag {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(map[string]interface{}{"entitlements": snap, "entries": entries}); err != nil {
			log.Fatal().Err(err).Msg("Failed to encode output")
		}
		return
	}

	fmt.Fprintf(out, "Team %s: %d credits, %d image credits\n\n", snap.TeamID, snap.Credits, snap.ImageCredits)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tACTION\tPOOL\tDEBIT\tBEFORE\tAFTER\tFREE\tUSER\tDESCRIPTION")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%t\t%s\t%s\n",
			e.CreatedAt.Local().Format(time.DateTime), e.ActionType, e.Pool,
			e.AmountDebited, e.BalanceBefore, e.BalanceAfter, e.Free, e.UserID, e.Description)
	}
	tw.Flush()
}
