// Package httpfs serves a listing as a read-only FUSE filesystem whose
// file contents are read from HTTP with Range requests. Nothing is cached:
// every read goes to the server.
package httpfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"syscall"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/yarkm13/red-connector-http/internal/connerr"
	"github.com/yarkm13/red-connector-http/internal/listing"
	"github.com/yarkm13/red-connector-http/internal/logging"
	"github.com/yarkm13/red-connector-http/internal/transport"
)

// Options configures the FUSE mount.
type Options struct {
	// Mountpoint is created (single level) if it does not exist.
	Mountpoint string

	// BaseURL is the remote directory the listing is resolved against.
	BaseURL string

	Listing []*listing.Node

	// Client issues the HEAD and Range requests.
	Client *transport.HTTP

	// AllowOther permits other users to access the mount. Requires
	// user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// Logger receives diagnostic messages. If nil, a no-op logger
	// is used.
	Logger *slog.Logger
}

// Mount mounts the listing at options.Mountpoint. The caller must call
// Unmount on the returned server when done.
func Mount(options Options) (*fuse.Server, error) {
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint is required")
	}
	if options.Client == nil {
		return nil, fmt.Errorf("client is required")
	}
	if options.Listing == nil {
		return nil, connerr.Listing("mounting requires a listing")
	}
	if options.Logger == nil {
		options.Logger = logging.Discard()
	}

	tree := listing.Clone(options.Listing)
	if err := listing.ResolveURL(options.BaseURL, tree); err != nil {
		return nil, err
	}

	if err := os.Mkdir(options.Mountpoint, 0o755); err != nil && !os.IsExist(err) {
		return nil, connerr.Filesystem("creating mountpoint %s: %w", options.Mountpoint, err)
	}

	root := &dirNode{options: &options, children: tree}
	entryTimeout := time.Second
	attrTimeout := time.Second

	server, err := gofuse.Mount(options.Mountpoint, root, &gofuse.Options{
		EntryTimeout: &entryTimeout,
		AttrTimeout:  &attrTimeout,
		MountOptions: fuse.MountOptions{
			FsName:     transport.Redact(options.BaseURL),
			Name:       "red-connector-http",
			AllowOther: options.AllowOther,
		},
	})
	if err != nil {
		return nil, connerr.Mount("mounting FUSE filesystem at %s: %w", options.Mountpoint, err)
	}

	options.Logger.Info("listing mounted", "mountpoint", options.Mountpoint)
	return server, nil
}

// dirNode is a listed directory. Its children are created once when the
// node is added to the tree.
type dirNode struct {
	gofuse.Inode
	options  *Options
	children []*listing.Node
}

var _ gofuse.InodeEmbedder = (*dirNode)(nil)
var _ gofuse.NodeOnAdder = (*dirNode)(nil)
var _ gofuse.NodeGetattrer = (*dirNode)(nil)

func (d *dirNode) OnAdd(ctx context.Context) {
	for _, child := range d.children {
		var embedder gofuse.InodeEmbedder
		mode := uint32(syscall.S_IFREG)
		if child.IsDir() {
			mode = syscall.S_IFDIR
			embedder = &dirNode{options: d.options, children: descendable(child)}
		} else {
			embedder = &fileNode{options: d.options, url: child.CompleteURL}
		}
		inode := d.NewPersistentInode(ctx, embedder, gofuse.StableAttr{Mode: mode})
		d.AddChild(child.Basename, inode, true)
	}
}

func (d *dirNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = syscall.S_IFDIR | 0o555
	return 0
}

// descendable returns the children the tree exposes for node, matching
// the resolution rule that only non-empty listings are descended into.
func descendable(node *listing.Node) []*listing.Node {
	if node.HasChildren() {
		return node.Listing
	}
	return nil
}

// fileNode is a listed file backed by a URL.
type fileNode struct {
	gofuse.Inode
	options *Options
	url     string

	sizeOnce sync.Once
	size     int64
	sizeErr  error
}

var _ gofuse.InodeEmbedder = (*fileNode)(nil)
var _ gofuse.NodeGetattrer = (*fileNode)(nil)
var _ gofuse.NodeOpener = (*fileNode)(nil)
var _ gofuse.NodeReader = (*fileNode)(nil)

func (f *fileNode) contentLength(ctx context.Context) (int64, error) {
	f.sizeOnce.Do(func() {
		f.size, f.sizeErr = f.options.Client.Head(ctx, f.url)
	})
	return f.size, f.sizeErr
}

func (f *fileNode) Getattr(ctx context.Context, fh gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	size, err := f.contentLength(ctx)
	if err != nil {
		f.options.Logger.Error("HEAD failed", "url", transport.Redact(f.url), "error", err)
		return errnoFor(err)
	}
	out.Mode = syscall.S_IFREG | 0o444
	if size >= 0 {
		out.Size = uint64(size)
	}
	return 0
}

func (f *fileNode) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return nil, 0, syscall.EROFS
	}
	return nil, fuse.FOPEN_DIRECT_IO, 0
}

func (f *fileNode) Read(ctx context.Context, fh gofuse.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	n, err := f.options.Client.ReadRange(ctx, f.url, dest, off)
	if errors.Is(err, io.EOF) {
		return fuse.ReadResultData(nil), 0
	}
	if err != nil {
		f.options.Logger.Error("read failed", "url", transport.Redact(f.url), "offset", off, "error", err)
		return nil, errnoFor(err)
	}
	return fuse.ReadResultData(dest[:n]), 0
}

// errnoFor maps transport failures onto errno values.
func errnoFor(err error) syscall.Errno {
	var transportErr *connerr.TransportError
	if !errors.As(err, &transportErr) {
		return syscall.EIO
	}
	switch transportErr.StatusCode {
	case http.StatusNotFound, http.StatusGone:
		return syscall.ENOENT
	case http.StatusUnauthorized, http.StatusForbidden:
		return syscall.EACCES
	}
	return syscall.EIO
}
