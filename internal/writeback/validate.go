package writeback

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"

	"github.com/agentic-research/blocktree/api"
)

// ScriptError locates a syntax error in a page's custom JavaScript.
type ScriptError struct {
	PageID  string
	Line    uint32 // 0-indexed
	Column  uint32 // 0-indexed
	Message string
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("page %s: jsCode:%d:%d: %s", e.PageID, e.Line+1, e.Column+1, e.Message)
}

// ValidateScript parses the page's jsCode with tree-sitter and returns a
// *ScriptError for the first syntax error. Pages without script pass.
func ValidateScript(page api.Page) error {
	errs, err := ScriptErrors(page)
	if err != nil {
		return err
	}
	if len(errs) == 0 {
		return nil
	}
	return &errs[0]
}

// ScriptErrors returns every syntax error location in the page's jsCode.
func ScriptErrors(page api.Page) ([]ScriptError, error) {
	src := page.Data.JSCode
	if strings.TrimSpace(src) == "" {
		return nil, nil
	}

	parser := sitter.NewParser()
	parser.SetLanguage(javascript.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, []byte(src))
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed for page %s: %w", page.ID, err)
	}
	root := tree.RootNode()
	if root == nil {
		return nil, fmt.Errorf("tree-sitter returned nil root for page %s", page.ID)
	}
	if !root.HasError() {
		return nil, nil
	}

	var errs []ScriptError
	collectErrors(root, page.ID, &errs)
	if len(errs) == 0 {
		errs = append(errs, ScriptError{PageID: page.ID, Message: "script contains errors"})
	}
	return errs, nil
}

// collectErrors gathers all ERROR/MISSING nodes in document order.
func collectErrors(node *sitter.Node, pageID string, errs *[]ScriptError) {
	if node.IsError() || node.IsMissing() {
		msg := "syntax error"
		if node.IsMissing() {
			msg = "missing " + node.Type()
		}
		*errs = append(*errs, ScriptError{
			PageID:  pageID,
			Line:    node.StartPoint().Row,
			Column:  node.StartPoint().Column,
			Message: msg,
		})
		return // don't recurse into error children
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.HasError() || child.IsError() || child.IsMissing() {
			collectErrors(child, pageID, errs)
		}
	}
}
