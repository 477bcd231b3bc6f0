package listing

import (
	"encoding/json"
	"os"

	"github.com/tidwall/jsonc"

	"github.com/yarkm13/red-connector-http/internal/connerr"
)

// Parse decodes a listing document: a JSON array of nodes, optionally with
// comments and trailing commas. The result is validated.
func Parse(data []byte) ([]*Node, error) {
	var nodes []*Node
	if err := json.Unmarshal(jsonc.ToJSON(data), &nodes); err != nil {
		return nil, connerr.Listing("parsing listing: %w", err)
	}
	if nodes == nil {
		return nil, connerr.Listing("listing must be a JSON array")
	}
	if err := Validate(nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

// ReadFile reads and parses a listing file.
func ReadFile(path string) ([]*Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, connerr.Listing("reading listing %s: %w", path, err)
	}
	nodes, err := Parse(data)
	if err != nil {
		return nil, connerr.Listing("%s: %w", path, err)
	}
	return nodes, nil
}

// Validate checks every node of the tree, including children of
// directories, and that basenames are unique among siblings.
func Validate(nodes []*Node) error {
	seen := make(map[string]bool, len(nodes))
	for _, node := range nodes {
		if err := checkNode(node); err != nil {
			return err
		}
		if seen[node.Basename] {
			return connerr.Listing("duplicate basename %q in listing", node.Basename)
		}
		seen[node.Basename] = true
		if node.Class == ClassFile && node.Listing != nil {
			return connerr.Listing("file %q must not carry a listing", node.Basename)
		}
		if err := Validate(node.Listing); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of files and directories reachable through
// described listings.
func Count(nodes []*Node) (files, dirs int) {
	for _, node := range nodes {
		if !node.IsDir() {
			files++
			continue
		}
		dirs++
		if node.HasChildren() {
			childFiles, childDirs := Count(node.Listing)
			files += childFiles
			dirs += childDirs
		}
	}
	return files, dirs
}
