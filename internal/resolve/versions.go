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

package resolve

import (
	"sort"

	"github.com/Masterminds/semver/v3"

	"github.com/loonghao/vx/internal/provider"
)

// rankVersions orders candidates best-first: semantic version descending
// with the standard prerelease comparator, release date descending as the
// tiebreak. Non-semver versions sort below semver ones and compare
// lexicographically among themselves, which keeps vendor schemes with a
// shared prefix in a stable, predictable order.
func rankVersions(infos []provider.VersionInfo) []provider.VersionInfo {
	out := make([]provider.VersionInfo, len(infos))
	copy(out, infos)

	sort.SliceStable(out, func(i, j int) bool {
		vi, errI := semver.NewVersion(out[i].Version)
		vj, errJ := semver.NewVersion(out[j].Version)

		switch {
		case errI == nil && errJ == nil:
			if cmp := vi.Compare(vj); cmp != 0 {
				return cmp > 0
			}
			return out[i].ReleaseDate.After(out[j].ReleaseDate)
		case errI == nil:
			return true
		case errJ == nil:
			return false
		default:
			if out[i].Version != out[j].Version {
				return out[i].Version > out[j].Version
			}
			return out[i].ReleaseDate.After(out[j].ReleaseDate)
		}
	})

	return out
}
