package cmd

import (
	"fmt"
	"io"

	gojson "github.com/goccy/go-json"
	"golang.org/x/term"
)

func printJSON(w io.Writer, v any) error {
	b, err := gojson.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// termWidth returns the width of fd when it is a terminal, else def.
func termWidth(fd uintptr, def int) int {
	if !term.IsTerminal(int(fd)) {
		return def
	}
	w, _, err := term.GetSize(int(fd))
	if err != nil || w <= 0 {
		return def
	}
	return w
}
