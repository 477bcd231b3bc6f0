package mount

import (
	"errors"

	"golang.org/x/sys/unix"
)

var errUnsupported = errors.New("mount inspection unsupported")

func isFUSEMount(path string) (bool, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return false, err
	}
	return stat.Type == unix.FUSE_SUPER_MAGIC, nil
}
