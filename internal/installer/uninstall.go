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

package installer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Uninstall removes one install tree. Busy-file failures (typical on
// windows while the tool is running) are retried with exponential backoff
// before surfacing ErrUninstallBusy. The {store}/{provider}/ parent is
// never removed, even when it becomes empty; cache pruning owns that.
func (i *Installer) Uninstall(ctx context.Context, fp Fingerprint) error {
	unlock, err := i.acquireLock(ctx, fp, 0)
	if err != nil {
		return err
	}
	defer unlock()

	root := i.store.Root(fp)
	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(100*time.Millisecond),
		backoff.WithMaxInterval(2*time.Second),
	), 5), ctx)

	err = backoff.Retry(func() error {
		return os.RemoveAll(root)
	}, policy)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUninstallBusy, fp, err)
	}

	i.logger.Info("uninstalled", "provider", fp.Provider, "version", fp.Version)
	return nil
}
