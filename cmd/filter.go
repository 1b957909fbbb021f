package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentic-research/blocktree/internal/filter"
)

var (
	filterClear bool
	filterFile  string
)

func init() {
	for _, c := range []*cobra.Command{filterURLsCmd, filterNodeCmd} {
		c.Flags().BoolVar(&filterClear, "clear", false, "Remove the filter")
	}
	filterURLsCmd.Flags().StringVarP(&filterFile, "file", "f", "", "Read newline-separated URLs from a file")
	filterCmd.AddCommand(filterURLsCmd, filterNodeCmd)
	rootCmd.AddCommand(filterCmd)
}

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Show or change the stored page and node filters",
}

var filterURLsCmd = &cobra.Command{
	Use:   "urls [url...]",
	Short: "Limit the page list to these URLs or paths",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		urls := args
		if filterFile != "" {
			data, err := os.ReadFile(filterFile)
			if err != nil {
				return err
			}
			urls = append(urls, filter.ParseURLList(string(data))...)
		}
		switch {
		case filterClear:
			if err := store.SetURLFilters(ctx, nil); err != nil {
				return err
			}
			fmt.Fprintln(out, "URL filter cleared.")
			return nil
		case len(urls) > 0:
			if err := store.SetURLFilters(ctx, urls); err != nil {
				return err
			}
		}

		current, err := store.URLFilters(ctx)
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(out, current)
		}
		if len(current) == 0 {
			fmt.Fprintln(out, "No URL filter; all pages are listed.")
			return nil
		}
		fmt.Fprintln(out, strings.Join(current, "\n"))
		return nil
	},
}

var filterNodeCmd = &cobra.Command{
	Use:   "node [component name]",
	Short: "Hide nodes with this component name in tree views and saves",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		ctx := cmd.Context()

		switch {
		case filterClear:
			if err := store.SetNodeFilter(ctx, ""); err != nil {
				return err
			}
		case len(args) == 1:
			if err := store.SetNodeFilter(ctx, args[0]); err != nil {
				return err
			}
		}
		term, err := store.NodeFilter(ctx)
		if err != nil {
			return err
		}
		if term == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "No node filter.")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Hiding component %q.\n", term)
		return nil
	},
}
