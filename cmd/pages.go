package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentic-research/blocktree/internal/editor"
	"github.com/agentic-research/blocktree/internal/filter"
	"github.com/agentic-research/blocktree/internal/preview"
	"github.com/agentic-research/blocktree/internal/tree"
)

var (
	pagesSearch string
	pagesAll    bool
	treeFilter  string
	treeRaw     bool
	compAny     bool
)

func init() {
	pagesListCmd.Flags().StringVarP(&pagesSearch, "search", "s", "", "Fuzzy match on title and URL")
	pagesListCmd.Flags().BoolVar(&pagesAll, "all", false, "Ignore the URL allow-list")
	pagesCmd.AddCommand(pagesListCmd)

	treeCmd.Flags().StringVar(&treeFilter, "filter", "", "Hide nodes with this component name (default: stored node filter)")
	treeCmd.Flags().BoolVar(&treeRaw, "raw", false, "Print the forest as JSON")

	componentsCmd.Flags().BoolVar(&compAny, "any", false, "With several names, list pages using any of them instead of all")

	rootCmd.AddCommand(pagesCmd, treeCmd, componentsCmd)
}

var pagesCmd = &cobra.Command{
	Use:   "pages",
	Short: "Work with the page list",
}

var pagesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pages with status and pending edits",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer e.Close()

		sessions := editor.Search(e.svc.Pages(pagesAll), pagesSearch)
		rows := make([]editor.PageSummary, len(sessions))
		for i, s := range sessions {
			rows[i] = editor.Describe(s)
		}
		out := cmd.OutOrStdout()
		if outputJSON {
			return printJSON(out, rows)
		}
		if len(rows) == 0 {
			fmt.Fprintln(out, "No pages.")
			return nil
		}
		for _, r := range rows {
			fmt.Fprintf(out, "%-24s %-9s %-6s %5d  %-32s %s\n",
				preview.Truncate(r.ID, 24, "…"), r.Status, r.State, r.Nodes,
				preview.Truncate(r.Title, 32, "…"), r.URL)
		}
		return nil
	},
}

var treeCmd = &cobra.Command{
	Use:   "tree <page>",
	Short: "Print a page's block tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer e.Close()

		sess, err := e.svc.Session(args[0])
		if err != nil {
			return err
		}
		f := sess.View()
		if cmd.Flags().Changed("filter") {
			f = filter.ExcludeComponent(sess.Forest(), treeFilter)
		}
		out := cmd.OutOrStdout()
		if treeRaw || outputJSON {
			return printJSON(out, f)
		}
		width := termWidth(os.Stdout.Fd(), 100)
		tree.Walk(f, func(n *tree.Node, depth int) bool {
			pad := strings.Repeat("  ", depth)
			id := n.ID()
			if id == "" {
				id = "-"
			}
			label := preview.Label(n, max(10, width-len(pad)-len(id)-3))
			fmt.Fprintf(out, "%s%s  %s\n", pad, label, id)
			return true
		})
		return nil
	},
}

var componentsCmd = &cobra.Command{
	Use:   "components [name...]",
	Short: "Show component usage, or the pages using the named components",
	Long: `Without arguments, print the component inventory. With one name, list
the pages using that component. With several, list the pages using all of
them, or any of them with --any.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer e.Close()

		ix := e.svc.Components()
		out := cmd.OutOrStdout()
		if len(args) > 0 {
			var pages []string
			switch {
			case len(args) == 1:
				pages, err = ix.PagesWith(args[0])
				if err != nil {
					return fmt.Errorf("%s: %w", args[0], err)
				}
			case compAny:
				pages = ix.PagesWithAny(args...)
			default:
				pages = ix.PagesWithAll(args...)
			}
			if outputJSON {
				if pages == nil {
					pages = []string{}
				}
				return printJSON(out, pages)
			}
			for _, id := range pages {
				fmt.Fprintln(out, id)
			}
			return nil
		}
		usage := ix.Components()
		if outputJSON {
			return printJSON(out, usage)
		}
		for _, u := range usage {
			fmt.Fprintf(out, "%-32s %4d pages %6d nodes\n", u.Component, u.Pages, u.Nodes)
		}
		return nil
	},
}
