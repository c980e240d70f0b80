package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/paperstream/paperstream/internal/categories"
)

var (
	topicAddSubCategory string
	topicAddKeywords    []string
)

func init() {
	topicAddCmd.Flags().StringVar(&topicAddSubCategory, "sub", "", "Subcategory within the category")
	topicAddCmd.Flags().StringSliceVar(&topicAddKeywords, "keyword", nil, "Keyword filter (repeatable)")
	topicCmd.AddCommand(topicAddCmd)
	topicCmd.AddCommand(topicListCmd)
	topicCmd.AddCommand(topicRmCmd)
	rootCmd.AddCommand(topicCmd)
}

var topicCmd = &cobra.Command{
	Use:   "topic",
	Short: "Manage topic subscriptions",
}

var topicAddCmd = &cobra.Command{
	Use:   "add <category>",
	Short: "Subscribe to a topic",
	Long: `Subscribe to a topic.

Examples:
  paperstream topic add "computer science" --sub "machine learning" --keyword transformers
  paperstream topic add biology --sub genomics`,
	Args: cobra.ExactArgs(1),
	RunE: runTopicAdd,
}

func runTopicAdd(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	topic, err := a.session.AddTopic(args[0], topicAddSubCategory, topicAddKeywords)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Added %s (%s)\n", topic.DisplayName(), topic.ID)
	if code, ok := categories.CodeOf(&topic); ok {
		fmt.Fprintf(out, "Queries will target category %s\n", code)
	} else {
		fmt.Fprintln(out, "No category code mapped; queries will use full-text matching")
	}
	return nil
}

var topicListCmd = &cobra.Command{
	Use:   "list",
	Short: "List subscribed topics",
	RunE:  runTopicList,
}

func runTopicList(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	topics := a.session.Topics()
	out := cmd.OutOrStdout()
	if len(topics) == 0 {
		fmt.Fprintln(out, "No subscribed topics.")
		return nil
	}

	active := a.session.ActiveKey()
	for _, t := range topics {
		marker := " "
		if t.ID == active {
			marker = ">"
		}
		fmt.Fprintf(out, "%s %s  %s", marker, t.ID, t.DisplayName())
		if len(t.Keywords) > 0 {
			fmt.Fprintf(out, "  [%s]", strings.Join(t.Keywords, ", "))
		}
		fmt.Fprintln(out)
	}
	return nil
}

var topicRmCmd = &cobra.Command{
	Use:   "rm <topic-id>",
	Short: "Unsubscribe from a topic",
	Args:  cobra.ExactArgs(1),
	RunE:  runTopicRm,
}

func runTopicRm(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.session.RemoveTopic(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
	return nil
}
