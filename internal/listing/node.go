// Package listing models the tree of files and directories expected under
// a directory transfer and resolves it against a base URL or base path.
package listing

// Class is the variant tag of a listing node.
type Class string

const (
	ClassFile      Class = "File"
	ClassDirectory Class = "Directory"
)

// Node describes one entry of a listing. Listing is nil when the input
// carried no "listing" field and empty (non-nil) when it carried an empty
// array; neither case is descended into.
type Node struct {
	Class    Class   `json:"class"`
	Basename string  `json:"basename"`
	Listing  []*Node `json:"listing,omitempty"`

	// CompleteURL and CompletePath are filled in by Resolve.
	CompleteURL  string `json:"complete_url,omitempty"`
	CompletePath string `json:"complete_path,omitempty"`
}

// IsDir reports whether the node is a Directory.
func (n *Node) IsDir() bool {
	return n.Class == ClassDirectory
}

// HasChildren reports whether resolution and fetching descend into the
// node: it must be a Directory carrying a non-empty listing.
func (n *Node) HasChildren() bool {
	return n.IsDir() && len(n.Listing) > 0
}

// Described reports whether the input carried a listing field for this
// node at all, even an empty one.
func (n *Node) Described() bool {
	return n.Listing != nil
}

// Clone returns a deep copy of nodes, keeping the nil versus empty
// distinction of every Listing.
func Clone(nodes []*Node) []*Node {
	if nodes == nil {
		return nil
	}
	cloned := make([]*Node, len(nodes))
	for i, node := range nodes {
		copied := *node
		copied.Listing = Clone(node.Listing)
		cloned[i] = &copied
	}
	return cloned
}
