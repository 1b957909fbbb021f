package cmd

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agentic-research/blocktree/internal/editor"
	"github.com/agentic-research/blocktree/internal/writeback"
)

var saveAllPages bool

func init() {
	saveAllCmd.Flags().BoolVar(&saveAllPages, "all", false, "Ignore the URL allow-list")
	rootCmd.AddCommand(saveCmd, saveAllCmd, titleCmd, discardCmd, diffCmd)
}

var saveCmd = &cobra.Command{
	Use:   "save <page>",
	Short: "Write a page's edited forest back to the content API",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer e.Close()

		if !e.cfg.CanWrite() {
			return errors.New("no private key configured; writes are disabled")
		}
		resp, err := e.svc.Save(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("save %s: %w", args[0], err)
		}
		if outputJSON {
			return printJSON(cmd.OutOrStdout(), resp)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %s.\n", args[0])
		return nil
	},
}

var saveAllCmd = &cobra.Command{
	Use:   "save-all",
	Short: "Save every listed page, one at a time",
	Long: `Save every page in the list, one after another. A failing page does not
stop the run. Interrupting stops scheduling further pages but lets the
current save finish.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		progress := func(i int, rec writeback.Record) {
			if outputJSON || rec.Status == writeback.StatusPending {
				return
			}
			line := fmt.Sprintf("[%d] %-8s %s", i+1, rec.Status, rec.Title)
			if rec.Error != "" {
				line += ": " + rec.Error
			}
			fmt.Fprintln(out, line)
		}
		e, err := setup(ctx, true, editor.WithSaveStatus(progress))
		if err != nil {
			return err
		}
		defer e.Close()

		if !e.cfg.CanWrite() {
			return errors.New("no private key configured; writes are disabled")
		}
		records := e.svc.SaveAll(ctx, saveAllPages)
		ok, failed, pending := writeback.Summarize(records)
		if outputJSON {
			if err := printJSON(out, records); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(out, "%d saved, %d failed, %d not attempted.\n", ok, failed, pending)
		}
		if failed > 0 || pending > 0 {
			return fmt.Errorf("%d page(s) not saved", failed+pending)
		}
		return nil
	},
}

var titleCmd = &cobra.Command{
	Use:   "title <page> <new title>",
	Short: "Rename a page",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.svc.Rename(cmd.Context(), args[0], args[1]); err != nil {
			return fmt.Errorf("rename %s: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Title of %s is now %q.\n", args[0], args[1])
		return nil
	},
}

var discardCmd = &cobra.Command{
	Use:   "discard <page>",
	Short: "Drop unsaved edits to a page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.svc.Discard(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Discarded edits to %s.\n", args[0])
		return nil
	},
}

var diffCmd = &cobra.Command{
	Use:   "diff <page>",
	Short: "List nodes removed, added or changed by unsaved edits",
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
		removed, added, changed := editor.Diff(sess)
		out := cmd.OutOrStdout()
		if outputJSON {
			return printJSON(out, map[string][]string{"removed": removed, "added": added, "changed": changed})
		}
		if len(removed)+len(added)+len(changed) == 0 {
			fmt.Fprintln(out, "No changes.")
			return nil
		}
		for _, id := range removed {
			fmt.Fprintln(out, "- "+id)
		}
		for _, id := range added {
			fmt.Fprintln(out, "+ "+id)
		}
		for _, id := range changed {
			fmt.Fprintln(out, "~ "+id)
		}
		return nil
	},
}
