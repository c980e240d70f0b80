package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(bookmarkCmd)
	rootCmd.AddCommand(bookmarksCmd)
}

var bookmarkCmd = &cobra.Command{
	Use:   "bookmark <paper-id>",
	Short: "Toggle a bookmark on a paper",
	Args:  cobra.ExactArgs(1),
	RunE:  runBookmark,
}

func runBookmark(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	marked, err := a.session.ToggleBookmark(args[0])
	if err != nil {
		return err
	}
	if marked {
		fmt.Fprintf(cmd.OutOrStdout(), "Bookmarked %s\n", args[0])
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Removed bookmark %s\n", args[0])
	}
	return nil
}

var bookmarksCmd = &cobra.Command{
	Use:   "bookmarks",
	Short: "List bookmarked papers",
	Long: `List bookmarked papers.

A bookmark resolves against every cache entry, so it stays visible after
its source topic is deleted as long as the paper remains cached anywhere.`,
	RunE: runBookmarks,
}

func runBookmarks(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	a.printPapers(cmd.OutOrStdout(), a.session.Bookmarked())
	return nil
}
