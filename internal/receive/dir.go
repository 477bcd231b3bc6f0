package receive

import (
	"context"
	"os"

	"github.com/yarkm13/red-connector-http/internal/access"
	"github.com/yarkm13/red-connector-http/internal/connerr"
	"github.com/yarkm13/red-connector-http/internal/listing"
	"github.com/yarkm13/red-connector-http/internal/transport"
)

const dirMode = 0o755

// ReceiveDir fetches every file of nodes from under descriptor.URL into
// the same relative location under localDir.
//
// The tree is copied, resolved against the URL and then the local path,
// and walked depth-first in document order: directories are created,
// files are streamed. The first error stops the walk. Nothing already
// created or written is removed, so a failed call leaves partial output
// for the caller to inspect or discard.
func (e *Engine) ReceiveDir(ctx context.Context, localDir string, descriptor *access.Descriptor, nodes []*listing.Node) error {
	if nodes == nil {
		return connerr.Listing("receive-dir requires listing")
	}

	tree := listing.Clone(nodes)
	if err := listing.ResolveURL(descriptor.URL, tree); err != nil {
		return err
	}
	if err := listing.ResolvePath(localDir, tree); err != nil {
		return err
	}

	options, err := e.options(descriptor, transport.MethodGet)
	if err != nil {
		return err
	}
	fetcher, err := transport.Open(descriptor.URL, options)
	if err != nil {
		return err
	}
	defer fetcher.Close()

	if err := ensureBaseDir(localDir); err != nil {
		return err
	}

	files, dirs := listing.Count(tree)
	logger := e.Logger.With("url", descriptor.RedactedURL(), "path", localDir)
	logger.Info("receiving directory", "method", options.Method, "files", files, "directories", dirs)

	if err := e.fetchDirectory(ctx, fetcher, tree); err != nil {
		return err
	}
	logger.Info("directory received")
	return nil
}

func (e *Engine) fetchDirectory(ctx context.Context, fetcher transport.Fetcher, nodes []*listing.Node) error {
	for _, node := range nodes {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch node.Class {
		case listing.ClassFile:
			if err := fetcher.FetchToFile(ctx, node.CompleteURL, node.CompletePath); err != nil {
				return err
			}
		case listing.ClassDirectory:
			if err := makeDir(node.CompletePath); err != nil {
				return err
			}
			e.Logger.Debug("created directory", "path", node.CompletePath, "described", node.Described())
			if node.HasChildren() {
				if err := e.fetchDirectory(ctx, fetcher, node.Listing); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// ensureBaseDir creates localDir if it is missing. Only the leaf is
// created; the parent chain must exist.
func ensureBaseDir(localDir string) error {
	info, err := os.Stat(localDir)
	switch {
	case err == nil && info.IsDir():
		return nil
	case err == nil:
		return connerr.Filesystem("%s exists and is not a directory", localDir)
	case os.IsNotExist(err):
		if err := os.Mkdir(localDir, dirMode); err != nil {
			return connerr.Filesystem("creating %s: %w", localDir, err)
		}
		return nil
	default:
		return connerr.Filesystem("stat %s: %w", localDir, err)
	}
}

// makeDir creates a listed directory. An existing directory is accepted;
// anything else in its place is an error.
func makeDir(path string) error {
	err := os.Mkdir(path, dirMode)
	if err == nil {
		return nil
	}
	if os.IsExist(err) {
		if info, statErr := os.Stat(path); statErr == nil && info.IsDir() {
			return nil
		}
	}
	return connerr.Filesystem("creating directory %s: %w", path, err)
}
