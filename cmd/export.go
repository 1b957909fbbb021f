package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/agentic-research/blocktree/api"
	"github.com/agentic-research/blocktree/internal/writeback"
)

var exportFormat string

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "Output format: json or yaml")
	rootCmd.AddCommand(exportCmd, importCmd, lintCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export <dir> [page...]",
	Short: "Write pages, with unsaved edits, to files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := writeback.ParseFormat(exportFormat)
		if err != nil {
			return err
		}
		e, err := setup(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer e.Close()

		pages, err := selectPages(e, args[1:])
		if err != nil {
			return err
		}
		written, err := writeback.Export(osfs.New(args[0]), ".", pages, format)
		for _, p := range written {
			fmt.Fprintln(cmd.OutOrStdout(), filepath.Join(args[0], p))
		}
		return err
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>...",
	Short: "Load exported page files as unsaved edits",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer e.Close()

		var errs []error
		for _, path := range args {
			fs := osfs.New(filepath.Dir(path))
			page, err := writeback.Import(fs, filepath.Base(path))
			if err == nil {
				err = e.svc.Apply(cmd.Context(), page.ID, page.Data.Blocks)
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", path, err))
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %s into %s (unsaved).\n", path, page.ID)
		}
		return errors.Join(errs...)
	},
}

var lintCmd = &cobra.Command{
	Use:   "lint [page...]",
	Short: "Check page scripts for syntax errors",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer e.Close()

		pages, err := selectPages(e, args)
		if err != nil {
			return err
		}
		var all []writeback.ScriptError
		for _, p := range pages {
			errs, err := writeback.ScriptErrors(p)
			if err != nil {
				return err
			}
			all = append(all, errs...)
		}
		out := cmd.OutOrStdout()
		if outputJSON {
			if err := printJSON(out, all); err != nil {
				return err
			}
		} else {
			for i := range all {
				fmt.Fprintln(out, all[i].Error())
			}
		}
		if len(all) > 0 {
			return fmt.Errorf("%d script error(s)", len(all))
		}
		return nil
	},
}

// selectPages returns the named pages, or every listed page when ids is
// empty. Pages carry their working forests.
func selectPages(e *env, ids []string) ([]api.Page, error) {
	if len(ids) == 0 {
		sessions := e.svc.Pages(false)
		pages := make([]api.Page, len(sessions))
		for i, s := range sessions {
			pages[i] = s.Page()
		}
		return pages, nil
	}
	pages := make([]api.Page, 0, len(ids))
	for _, id := range ids {
		s, err := e.svc.Session(id)
		if err != nil {
			return nil, err
		}
		pages = append(pages, s.Page())
	}
	return pages, nil
}
