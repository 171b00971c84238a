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

package secureio

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestWithinRoot(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		name    string
		rel     string
		wantErr bool
	}{
		{"simple file", "bin/node", false},
		{"nested file", "lib/node_modules/npm/bin/npm", false},
		{"dot segment resolves inside", "bin/./node", false},
		{"root itself", ".", false},
		{"escape via dot-dot", "../outside", true},
		{"escape via nested dot-dot", "bin/../../outside", true},
		{"dot-dot resolving inside", "bin/../lib/node", false},
		{"absolute path rejected", root, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := WithinRoot(root, tt.rel)
			if (err != nil) != tt.wantErr {
				t.Fatalf("WithinRoot(%q) error = %v, wantErr %v", tt.rel, err, tt.wantErr)
			}
			if err == nil && !strings.HasPrefix(got, filepath.Clean(root)) {
				t.Errorf("WithinRoot(%q) = %q, escapes root", tt.rel, got)
			}
		})
	}
}

func TestWithinRootJoinsUnderRoot(t *testing.T) {
	// Archive entry names are slash-separated; the result must land under
	// the root after separator conversion.
	root := t.TempDir()
	got, err := WithinRoot(root, "bin/tool")
	if err != nil {
		t.Fatalf("WithinRoot: %v", err)
	}
	if filepath.Dir(got) != filepath.Join(root, "bin") {
		t.Errorf("WithinRoot joined to %q", got)
	}
}
