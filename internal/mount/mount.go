// Package mount exposes a remote HTTP directory at a local path through
// the external httpdirfs FUSE driver, and unmounts it with fusermount.
package mount

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/yarkm13/red-connector-http/internal/access"
	"github.com/yarkm13/red-connector-http/internal/connerr"
	"github.com/yarkm13/red-connector-http/internal/logging"
)

// Runner executes name with args and returns its stderr.
type Runner func(ctx context.Context, name string, args []string) (stderr []byte, err error)

// ExecRunner runs the command directly, without a shell, discarding
// stdout.
func ExecRunner(ctx context.Context, name string, args []string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stderr.Bytes(), err
}

// Driver mounts and unmounts remote directories.
type Driver struct {
	Executables Executables
	Logger      *slog.Logger
	Run         Runner
}

// NewDriver returns a Driver using ExecRunner.
func NewDriver(executables Executables, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Driver{Executables: executables, Logger: logger, Run: ExecRunner}
}

// MountArgs builds the httpdirfs argument list for descriptor.
func MountArgs(descriptor *access.Descriptor, localDir string) []string {
	var args []string
	if auth := descriptor.Auth; auth != nil {
		args = append(args, "--username", auth.Username, "--password", auth.Password)
	}
	if descriptor.DisableSSLVerification {
		args = append(args, "--insecure-tls")
	}
	return append(args, descriptor.URL, localDir)
}

// Mount creates localDir and mounts descriptor.URL on it. If the driver
// fails, localDir is removed again (it is only removed while empty).
func (d *Driver) Mount(ctx context.Context, descriptor *access.Descriptor, localDir string) error {
	if err := os.Mkdir(localDir, 0o755); err != nil {
		return connerr.Filesystem("creating mount point %s: %w", localDir, err)
	}

	stderr, err := d.Run(ctx, d.Executables.HTTPDirFS, MountArgs(descriptor, localDir))
	if err != nil {
		if info, statErr := os.Stat(localDir); statErr == nil && info.IsDir() {
			os.Remove(localDir)
		}
		message := strings.TrimSpace(string(stderr))
		if descriptor.Auth != nil {
			return connerr.Mount("Could not mount from %q for user %q using %q: %v\n%s",
				descriptor.RedactedURL(), descriptor.Auth.Username, d.Executables.HTTPDirFS, err, message)
		}
		return connerr.Mount("Could not mount from %q using %q without authentication: %v\n%s",
			descriptor.RedactedURL(), d.Executables.HTTPDirFS, err, message)
	}

	d.Logger.Info("mounted remote directory", "url", descriptor.RedactedURL(), "path", localDir)
	return nil
}

// Unmount unmounts localDir with fusermount -u.
func (d *Driver) Unmount(ctx context.Context, localDir string) error {
	isFUSE, err := isFUSEMount(localDir)
	switch {
	case errors.Is(err, errUnsupported):
	case err != nil:
		d.Logger.Warn("cannot inspect mount point", "path", localDir, "error", err)
	case !isFUSE:
		d.Logger.Warn("path is not a FUSE mount", "path", localDir)
	}

	stderr, err := d.Run(ctx, d.Executables.FuserMount, []string{"-u", localDir})
	if err != nil {
		return connerr.Mount("Could not unmount local_dir_path=%s via %s: %v\n%s",
			localDir, d.Executables.FuserMount, err, strings.TrimSpace(string(stderr)))
	}
	d.Logger.Info("unmounted", "path", localDir)
	return nil
}
