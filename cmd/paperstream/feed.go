package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/paperstream/paperstream/internal/domain"
	"github.com/paperstream/paperstream/internal/session"
)

var (
	feedTopicID string
	feedAll     bool
	feedRefresh bool
)

func init() {
	feedCmd.Flags().StringVar(&feedTopicID, "topic", "", "Select a topic before showing the feed")
	feedCmd.Flags().BoolVar(&feedAll, "all", false, "Select the cross-topic feed")
	feedCmd.Flags().BoolVar(&feedRefresh, "refresh", false, "Replace the cached entry with a fresh page")
	rootCmd.AddCommand(feedCmd)
	rootCmd.AddCommand(moreCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(retryCmd)
}

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Show the feed for the active selection",
	Long: `Show the feed for the active selection.

The first request for a selection fetches a page from arXiv; later requests
serve the cached entry. Use --refresh to discard the cached entry and fetch
a fresh page.`,
	RunE: runFeed,
}

func runFeed(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	switch {
	case feedTopicID != "":
		if err := a.session.SelectTopic(feedTopicID); err != nil {
			return err
		}
	case feedAll:
		a.session.SelectAggregate()
	}

	_, cached := a.session.Feed()
	if feedRefresh || !cached {
		if err := a.session.Refresh(cmd.Context(), feedRefresh); err != nil {
			return err
		}
	}

	return printSelection(cmd, a)
}

var moreCmd = &cobra.Command{
	Use:   "more",
	Short: "Fetch the next page for the active selection",
	RunE:  runMore,
}

func runMore(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.session.SetView(domain.ViewFeed); err != nil {
		return err
	}
	if err := a.session.LoadMore(cmd.Context()); err != nil {
		return err
	}
	return printSelection(cmd, a)
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Replace the active selection's cached entry with a fresh page",
	RunE:  runRefresh,
}

func runRefresh(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.session.Refresh(cmd.Context(), true); err != nil {
		return err
	}
	return printSelection(cmd, a)
}

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Retry the last failed fetch",
	RunE:  runRetry,
}

func runRetry(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.session.Retry(cmd.Context()); err != nil {
		return err
	}
	return printSelection(cmd, a)
}

// printSelection renders the active entry, or the error banner when set.
func printSelection(cmd *cobra.Command, a *app) error {
	out := cmd.OutOrStdout()
	if a.session.HasError() {
		fmt.Fprintln(out, session.ConnectivityMessage)
		fmt.Fprintln(out, "Run 'paperstream retry' to try again.")
		return nil
	}
	papers, _ := a.session.Feed()
	a.printPapers(out, papers)
	return nil
}
