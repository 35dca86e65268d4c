// Package fileutil holds small filesystem helpers shared by staging and cleanup.
package fileutil

import (
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// CopyFilePreserve copies src to dst including its permission bits and its
// access/modification times. It returns the number of bytes written. A partial
// dst is removed on failure.
func CopyFilePreserve(src, dst string) (int64, error) {
	info, err := os.Stat(src)
	if err != nil {
		return 0, fmt.Errorf("stat source: %w", err)
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("%s is not a regular file", src)
	}
	// Read atime before the copy; reading src may bump it under relatime.
	atime := accessTime(src, info)

	written, err := copyContents(src, dst, info.Mode().Perm())
	if err != nil {
		_ = os.Remove(dst)
		return 0, err
	}
	if written != info.Size() {
		_ = os.Remove(dst)
		return 0, fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", info.Size(), written)
	}

	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return written, fmt.Errorf("preserve mode: %w", err)
	}
	if err := os.Chtimes(dst, atime, info.ModTime()); err != nil {
		return written, fmt.Errorf("preserve times: %w", err)
	}
	return written, nil
}

func copyContents(src, dst string, mode os.FileMode) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = out.Close()
	}()

	written, err := io.Copy(out, in)
	if err != nil {
		return written, err
	}
	return written, out.Close()
}

func accessTime(path string, info os.FileInfo) time.Time {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return info.ModTime()
	}
	return time.Unix(st.Atim.Unix())
}
