//go:build !linux

package mount

import "errors"

var errUnsupported = errors.New("mount inspection unsupported")

func isFUSEMount(path string) (bool, error) {
	return false, errUnsupported
}
