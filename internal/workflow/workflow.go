// Package workflow loads workflow DAGs from YAML, Pegasus DAX, or HCL
// descriptions and computes the workflow depth used to size the slot pool.
package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/me/vmbroker/pkg/model"
)

// Format identifies a workflow description syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatDAX  Format = "dax"
	FormatHCL  Format = "hcl"
)

// ParseFormat converts a user-supplied format name to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yaml", "yml", "json":
		return FormatYAML, nil
	case "dax", "xml":
		return FormatDAX, nil
	case "hcl":
		return FormatHCL, nil
	}
	return "", fmt.Errorf("unsupported workflow format %q (want yaml, dax, or hcl)", s)
}

// FormatFromPath picks a Format from a file extension.
func FormatFromPath(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", fmt.Errorf("cannot infer workflow format of %s: no extension", path)
	}
	return ParseFormat(ext)
}

// Load reads and parses a workflow file. The format comes from the file
// extension and the default name from the file's base name.
func Load(path string) (*model.Workflow, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Parse(data, format, name)
}

// Parse decodes a workflow description, validates its dependency edges,
// and computes its depth. defaultName is used when the description does
// not name the workflow.
func Parse(data []byte, format Format, defaultName string) (*model.Workflow, error) {
	var (
		wf  *model.Workflow
		err error
	)
	switch format {
	case FormatYAML:
		wf, err = parseYAML(data)
	case FormatDAX:
		wf, err = parseDAX(data)
	case FormatHCL:
		wf, err = parseHCL(data, defaultName+".hcl")
	default:
		return nil, fmt.Errorf("unsupported workflow format %q", format)
	}
	if err != nil {
		return nil, err
	}
	if wf.Name == "" {
		wf.Name = defaultName
	}

	depth, err := Depth(wf.Nodes)
	if err != nil {
		return nil, fmt.Errorf("workflow %q: %w", wf.Name, err)
	}
	wf.Depth = depth
	return wf, nil
}
