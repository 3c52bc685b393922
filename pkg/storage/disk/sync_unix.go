//go:build !windows

package disk

import "os"

// syncDir 对目录做 fsync，让 rename 之后的目录项在崩溃后依然可见
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
