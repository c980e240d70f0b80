package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/paperstream/paperstream/internal/domain"
)

func init() {
	rootCmd.AddCommand(themeCmd)
}

var themeCmd = &cobra.Command{
	Use:       "theme [light|dark]",
	Short:     "Show or set the color theme",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"light", "dark"},
	RunE:      runTheme,
}

func runTheme(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if len(args) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), a.session.Settings().Theme)
		return nil
	}

	theme := domain.Theme(args[0])
	if theme != domain.ThemeLight && theme != domain.ThemeDark {
		return fmt.Errorf("unknown theme %q: %w", args[0], domain.ErrInvalidInput)
	}
	if err := a.session.SetTheme(theme); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Theme set to %s\n", theme)
	return nil
}
