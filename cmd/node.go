package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/agentic-research/blocktree/internal/preview"
	"github.com/agentic-research/blocktree/internal/query"
	"github.com/agentic-research/blocktree/internal/tree"
)

var (
	nodeEditFile   string
	nodeDeletePath string
)

func init() {
	nodeEditCmd.Flags().StringVarP(&nodeEditFile, "file", "f", "", "Read the replacement node from a file ('-' for stdin)")
	nodeDeleteCmd.Flags().StringVar(&nodeDeletePath, "path", "", "Delete every node selected by a JSONPath expression")
	nodeCmd.AddCommand(nodeShowCmd, nodePathCmd, nodeEditCmd, nodeDeleteCmd)
	rootCmd.AddCommand(nodeCmd, queryCmd)
}

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Show, edit or delete a single node",
}

var nodeShowCmd = &cobra.Command{
	Use:   "show <page> <id>",
	Short: "Print a node as JSON",
	Args:  cobra.ExactArgs(2),
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
		n, ok := sess.Find(args[1])
		if !ok {
			return fmt.Errorf("node %s not found on page %s", args[1], args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), n.Pretty())
		return nil
	},
}

var nodePathCmd = &cobra.Command{
	Use:   "path <page> <id>",
	Short: "Print the ancestors of a node, root first",
	Args:  cobra.ExactArgs(2),
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
		path, ok := tree.Path(sess.Forest(), args[1])
		if !ok {
			return fmt.Errorf("node %s not found on page %s", args[1], args[0])
		}
		out := cmd.OutOrStdout()
		if outputJSON {
			ids := make([]string, len(path))
			for i, n := range path {
				ids[i] = n.ID()
			}
			return printJSON(out, ids)
		}
		width := termWidth(os.Stdout.Fd(), 100) - 12
		for depth, n := range path {
			indent := 2 * depth
			fmt.Fprintf(out, "%*s%s (%s)\n", indent, "", preview.Label(n, width-indent), n.ID())
		}
		return nil
	},
}

var nodeEditCmd = &cobra.Command{
	Use:   "edit <page> <id>",
	Short: "Replace a node with edited JSON",
	Long: `Replace a node with edited JSON. Without --file the node is opened in
$EDITOR when stdin is a terminal, otherwise read from stdin. The node keeps
its id; the edit is stored as a draft until 'blocktree save'.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer e.Close()

		pageID, nodeID := args[0], args[1]
		sess, err := e.svc.Session(pageID)
		if err != nil {
			return err
		}
		n, ok := sess.Find(nodeID)
		if !ok {
			return fmt.Errorf("node %s not found on page %s", nodeID, pageID)
		}

		raw, err := readEdit(cmd, n.Pretty())
		if err != nil {
			return err
		}
		if err := e.svc.EditNode(cmd.Context(), pageID, nodeID, raw); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated %s on %s (unsaved).\n", nodeID, pageID)
		return nil
	},
}

func readEdit(cmd *cobra.Command, current string) ([]byte, error) {
	switch {
	case nodeEditFile == "-":
		return io.ReadAll(cmd.InOrStdin())
	case nodeEditFile != "":
		return os.ReadFile(nodeEditFile)
	case term.IsTerminal(int(os.Stdin.Fd())):
		return editInEditor(current)
	default:
		return io.ReadAll(cmd.InOrStdin())
	}
}

func editInEditor(current string) ([]byte, error) {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		return nil, errors.New("EDITOR is not set; pass --file")
	}
	dir, err := os.MkdirTemp("", "blocktree-edit-")
	if err != nil {
		return nil, err
	}
	defer func() { _ = os.RemoveAll(dir) }()

	path := filepath.Join(dir, "node.json")
	if err := os.WriteFile(path, []byte(current+"\n"), 0o600); err != nil {
		return nil, err
	}
	c := exec.Command(editor, path)
	c.Stdin, c.Stdout, c.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := c.Run(); err != nil {
		return nil, fmt.Errorf("run %s: %w", editor, err)
	}
	return os.ReadFile(path)
}

var nodeDeleteCmd = &cobra.Command{
	Use:   "delete <page> [id]",
	Short: "Delete a node, or every node matched by --path",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if (len(args) == 2) == (nodeDeletePath != "") {
			return errors.New("give either a node id or --path")
		}
		e, err := setup(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer e.Close()

		out := cmd.OutOrStdout()
		if nodeDeletePath != "" {
			ids, err := e.svc.DeletePath(cmd.Context(), args[0], nodeDeletePath)
			if err != nil {
				return err
			}
			if outputJSON {
				return printJSON(out, ids)
			}
			fmt.Fprintf(out, "Deleted %d node(s) from %s (unsaved).\n", len(ids), args[0])
			return nil
		}
		if err := e.svc.DeleteNode(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted %s from %s (unsaved).\n", args[1], args[0])
		return nil
	},
}

var queryCmd = &cobra.Command{
	Use:   "query <page> <jsonpath>",
	Short: "Evaluate a JSONPath expression against a page's forest",
	Example: `  blocktree query home '$..[?(@.component.name == "Text")].id'
  blocktree query home '$[0].children[*].component.name'`,
	Args: cobra.ExactArgs(2),
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
		matches, err := query.Select(sess.Forest(), args[1])
		if err != nil {
			return err
		}
		values := make([]any, len(matches))
		for i, m := range matches {
			values[i] = m.Value
		}
		return printJSON(cmd.OutOrStdout(), values)
	},
}
