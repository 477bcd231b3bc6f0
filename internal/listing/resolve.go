package listing

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/yarkm13/red-connector-http/internal/connerr"
)

// Key selects which annotation Resolve writes.
type Key int

const (
	KeyURL Key = iota
	KeyPath
)

func (k Key) String() string {
	switch k {
	case KeyURL:
		return "complete_url"
	case KeyPath:
		return "complete_path"
	}
	return "unknown"
}

// JoinFunc joins a base and a single basename.
type JoinFunc func(base, name string) string

// JoinURL appends name as one escaped path segment of base. A trailing
// slash on base does not produce a doubled separator.
func JoinURL(base, name string) string {
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(name)
}

// JoinPath joins name onto a filesystem base path.
func JoinPath(base, name string) string {
	return filepath.Join(base, name)
}

// Annotation returns the value stored under key.
func (n *Node) Annotation(key Key) string {
	if key == KeyURL {
		return n.CompleteURL
	}
	return n.CompletePath
}

func (n *Node) annotate(key Key, value string) {
	if key == KeyURL {
		n.CompleteURL = value
		return
	}
	n.CompletePath = value
}

// Resolve walks nodes in document order, storing join(base, basename) under
// key on every node and recursing into directories with children, using the
// joined value as their base. Directories without a listing keep their
// descendants unresolved. Resolve performs no I/O; it fails only on a node
// with an unknown class or an invalid basename.
func Resolve(base string, nodes []*Node, join JoinFunc, key Key) error {
	for _, node := range nodes {
		if err := checkNode(node); err != nil {
			return err
		}
		joined := join(base, node.Basename)
		node.annotate(key, joined)
		if node.HasChildren() {
			if err := Resolve(joined, node.Listing, join, key); err != nil {
				return err
			}
		}
	}
	return nil
}

// ResolveURL annotates nodes with complete_url values under baseURL.
func ResolveURL(baseURL string, nodes []*Node) error {
	return Resolve(baseURL, nodes, JoinURL, KeyURL)
}

// ResolvePath annotates nodes with complete_path values under basePath.
func ResolvePath(basePath string, nodes []*Node) error {
	return Resolve(basePath, nodes, JoinPath, KeyPath)
}

func checkNode(node *Node) error {
	if node == nil {
		return connerr.Listing("listing contains a null entry")
	}
	switch node.Class {
	case ClassFile, ClassDirectory:
	default:
		return connerr.Listing("listing entry %q has unknown class %q", node.Basename, node.Class)
	}
	return checkBasename(node.Basename)
}

func checkBasename(name string) error {
	switch {
	case name == "":
		return connerr.Listing("listing entry is missing basename")
	case name == "." || name == "..":
		return connerr.Listing("listing entry has reserved basename %q", name)
	case strings.ContainsRune(name, '/'):
		return connerr.Listing("listing basename %q contains a path separator", name)
	}
	return nil
}
