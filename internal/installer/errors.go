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
	"errors"
	"fmt"
)

// ErrNoInstallMethod means the provider has neither a download URL for this
// platform nor an applicable system-install strategy.
var ErrNoInstallMethod = errors.New("no install method for this platform")

// ErrLockTimeout means the advisory install lock could not be acquired
// within the configured timeout.
var ErrLockTimeout = errors.New("timed out waiting for install lock")

// ErrUninstallBusy means the install tree could not be removed because
// files were in use, even after retries.
var ErrUninstallBusy = errors.New("install is busy and cannot be removed")

// FetchError wraps a download failure after retries were exhausted.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string { return fmt.Sprintf("fetch %s: %v", e.URL, e.Err) }
func (e *FetchError) Unwrap() error { return e.Err }

// ChecksumError reports a digest mismatch on a downloaded payload.
type ChecksumError struct {
	URL      string
	Expected string
	Actual   string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: expected %s, got %s", e.URL, e.Expected, e.Actual)
}

// ExtractionError wraps a failure while unpacking or laying out a payload.
type ExtractionError struct {
	Archive string
	Err     error
}

func (e *ExtractionError) Error() string { return fmt.Sprintf("extract %s: %v", e.Archive, e.Err) }
func (e *ExtractionError) Unwrap() error { return e.Err }
