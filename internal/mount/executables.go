package mount

import (
	"os/exec"

	"github.com/yarkm13/red-connector-http/internal/connerr"
)

var (
	HTTPDirFSExecutables  = []string{"httpdirfs"}
	FuserMountExecutables = []string{"fusermount3", "fusermount"}
)

// Executables holds resolved paths of the external mount tools.
type Executables struct {
	HTTPDirFS  string
	FuserMount string
}

// FindExecutables resolves both tools through PATH. A non-empty override
// replaces the default candidate names for that tool.
func FindExecutables(httpdirfsOverride, fusermountOverride string) (Executables, error) {
	httpdirfs, err := lookup(candidates(httpdirfsOverride, HTTPDirFSExecutables))
	if err != nil {
		return Executables{}, err
	}
	fusermount, err := lookup(candidates(fusermountOverride, FuserMountExecutables))
	if err != nil {
		return Executables{}, err
	}
	return Executables{HTTPDirFS: httpdirfs, FuserMount: fusermount}, nil
}

// FindFuserMount resolves only the unmount tool.
func FindFuserMount(override string) (string, error) {
	return lookup(candidates(override, FuserMountExecutables))
}

func candidates(override string, defaults []string) []string {
	if override != "" {
		return []string{override}
	}
	return defaults
}

func lookup(names []string) (string, error) {
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", connerr.Mount("One of the following executables must be present in PATH: %v", names)
}
