package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/agentic-research/blocktree/internal/config"
)

var setRecord config.Record

func init() {
	f := configSetCmd.Flags()
	f.StringVar(&setRecord.APIKey, "api-key", "", "Public API key")
	f.StringVar(&setRecord.PrivateKey, "private-key", "", "Private key used for writes")
	f.StringVar(&setRecord.BaseURL, "base-url", "", "Content API base URL")
	f.StringVar(&setRecord.WriteURL, "write-url", "", "Write API base URL")
	f.StringVar(&setRecord.Title, "title", "", "Display title")
	configCmd.AddCommand(configShowCmd, configSetCmd, configEditCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change the stored configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with keys redacted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		cfg, err := loadConfig(cmd.Context(), store)
		if err != nil {
			return err
		}
		r := cfg.Redacted()
		out := cmd.OutOrStdout()
		if outputJSON {
			return printJSON(out, r)
		}
		fmt.Fprintf(out, "config file:  %s\n", resolvedConfigPath())
		fmt.Fprintf(out, "database:     %s\n", r.DBPath)
		fmt.Fprintf(out, "title:        %s\n", r.Title)
		fmt.Fprintf(out, "base url:     %s\n", r.BaseURL)
		fmt.Fprintf(out, "write url:    %s\n", r.WriteURL)
		fmt.Fprintf(out, "api key:      %s\n", r.APIKey)
		fmt.Fprintf(out, "private key:  %s\n", r.PrivateKey)
		fmt.Fprintf(out, "page limit:   %d\n", r.PageLimit)
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(out, "\nincomplete: %v\n", err)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store configuration values; only given flags change",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if setRecord.IsZero() {
			return errors.New("nothing to set; see --help")
		}
		store, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		ctx := cmd.Context()

		rec, err := store.Config(ctx)
		if err != nil {
			return err
		}
		merged := config.Config{}
		merged.ApplyRecord(rec)
		merged.ApplyRecord(setRecord)
		if err := store.SetConfig(ctx, merged.Record()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Configuration saved.")
		return nil
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit the stored configuration interactively",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		ctx := cmd.Context()

		cfg, err := loadConfig(ctx, store)
		if err != nil {
			return err
		}
		rec := cfg.Record()
		required := func(s string) error {
			if s == "" {
				return errors.New("required")
			}
			return nil
		}
		form := huh.NewForm(huh.NewGroup(
			huh.NewInput().Title("Title").Value(&rec.Title),
			huh.NewInput().Title("Content API base URL").Value(&rec.BaseURL).Validate(required),
			huh.NewInput().Title("Public API key").Value(&rec.APIKey).Validate(required),
			huh.NewInput().Title("Write API base URL").Value(&rec.WriteURL),
			huh.NewInput().Title("Private key").Value(&rec.PrivateKey).EchoMode(huh.EchoModePassword),
		)).WithTheme(huh.ThemeDracula())
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			form = form.WithAccessible(true)
		}
		if err := form.Run(); err != nil {
			return err
		}
		if err := store.SetConfig(ctx, rec); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Configuration saved.")
		return nil
	},
}
