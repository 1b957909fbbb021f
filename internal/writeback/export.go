package writeback

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	"gopkg.in/yaml.v3"

	"github.com/agentic-research/blocktree/api"
)

// Format is a page export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts "json", "yaml" or "yml".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json", "":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown export format %q", s)
	}
}

func (f Format) ext() string { return "." + string(f) }

// Export writes each page to <dir>/<page id>.<format>. Every file is written
// atomically: content goes to a temp file in the same directory, which is
// then renamed over the target. Returns the written paths in page order.
func Export(fs billy.Filesystem, dir string, pages []api.Page, format Format) ([]string, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir %s: %w", dir, err)
	}
	paths := make([]string, 0, len(pages))
	for _, p := range pages {
		if p.ID == "" || strings.ContainsAny(p.ID, `/\`) {
			return paths, fmt.Errorf("page id %q is not a valid file name", p.ID)
		}
		data, err := encodePage(p, format)
		if err != nil {
			return paths, fmt.Errorf("encode page %s: %w", p.ID, err)
		}
		target := path.Join(dir, p.ID+format.ext())
		if err := writeAtomic(fs, target, data); err != nil {
			return paths, err
		}
		paths = append(paths, target)
	}
	return paths, nil
}

// Import reads a page written by Export. The format follows the file
// extension.
func Import(fs billy.Filesystem, name string) (api.Page, error) {
	var page api.Page
	f, err := fs.Open(name)
	if err != nil {
		return page, fmt.Errorf("open %s: %w", name, err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return page, fmt.Errorf("read %s: %w", name, err)
	}

	switch ext := strings.ToLower(path.Ext(name)); ext {
	case ".json":
	case ".yaml", ".yml":
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return page, fmt.Errorf("parse %s: %w", name, err)
		}
		if data, err = json.Marshal(v); err != nil {
			return page, fmt.Errorf("convert %s: %w", name, err)
		}
	default:
		return page, fmt.Errorf("unsupported file type %q", ext)
	}
	if err := json.Unmarshal(data, &page); err != nil {
		return page, fmt.Errorf("decode %s: %w", name, err)
	}
	if page.ID == "" {
		return page, fmt.Errorf("%s: page has no id", name)
	}
	return page, nil
}

func encodePage(p api.Page, format Format) ([]byte, error) {
	raw, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, err
	}
	if format == FormatJSON {
		return append(raw, '\n'), nil
	}

	// Round-trip through a generic value so numbers stay numbers in YAML.
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(plainNumbers(v)); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func plainNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[string]any:
		for k, e := range x {
			x[k] = plainNumbers(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = plainNumbers(e)
		}
		return x
	default:
		return v
	}
}

// writeAtomic writes data to a temp file next to target, then renames it.
func writeAtomic(fs billy.Filesystem, target string, data []byte) error {
	tmp, err := fs.TempFile(path.Dir(target), ".blocktree-export-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = fs.Remove(tmpName) // best-effort cleanup
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = fs.Remove(tmpName) // best-effort cleanup
		return fmt.Errorf("close temp: %w", err)
	}
	if err := fs.Rename(tmpName, target); err != nil {
		_ = fs.Remove(tmpName) // best-effort cleanup
		return fmt.Errorf("rename temp to %s: %w", target, err)
	}
	return nil
}
