// Copyright (c) 2025 loonghao
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package platform

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// WriteAtomic writes data to path via a sibling temp file and rename, so a
// reader never observes a partial write.
func WriteAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// RenameIntoPlace publishes a staging directory at final. If final already
// exists (a concurrent publisher won, or a rename raced on windows), the
// staging tree is discarded and the existing install is kept.
func RenameIntoPlace(staging, final string) error {
	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(final), err)
	}

	if _, err := os.Stat(final); err == nil {
		_ = os.RemoveAll(staging)
		return nil
	}

	err := os.Rename(staging, final)
	if err == nil {
		return nil
	}

	// Windows reports ERROR_ALREADY_EXISTS / ERROR_ACCESS_DENIED when the
	// target appeared between the stat and the rename. Treat an existing
	// target as already installed.
	if _, statErr := os.Stat(final); statErr == nil {
		_ = os.RemoveAll(staging)
		return nil
	}
	return fmt.Errorf("publish %s: %w", final, err)
}

// RemoveAllRetry removes a tree, retrying transient busy-file failures.
// Returns the last error when attempts are exhausted.
func RemoveAllRetry(path string, attempts int, delay time.Duration) error {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		lastErr = os.RemoveAll(path)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, fs.ErrNotExist) {
			return nil
		}
		time.Sleep(delay)
		delay *= 2
	}
	return fmt.Errorf("remove %s: %w", path, lastErr)
}

// MarkExecutable sets the executable bits on POSIX systems. No-op on
// windows, where execution is extension-driven.
func MarkExecutable(path string) error {
	if Current().OS == OSWindows {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	return os.Chmod(path, info.Mode().Perm()|0o111)
}
