//go:build !darwin && !linux

package doctor

import "errors"

func filesystemType(string) (string, error) {
	return "", errors.New("filesystem detection is unsupported on this platform")
}
