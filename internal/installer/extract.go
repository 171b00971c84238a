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
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/loonghao/vx/internal/platform"
	"github.com/loonghao/vx/internal/provider"
	"github.com/loonghao/vx/internal/secureio"
)

// Extract unpacks a cached payload into the staging directory according to
// the provider's layout declaration.
func Extract(ctx context.Context, archivePath, staging string, layout provider.Layout, current platform.Platform) error {
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return err
	}

	switch layout.Type {
	case provider.LayoutBinary:
		return extractBinary(archivePath, staging, layout, current)
	case provider.LayoutMSI:
		return extractMSI(ctx, archivePath, staging, current)
	case provider.LayoutArchive, "":
		// dispatch below
	default:
		return &ExtractionError{Archive: archivePath, Err: fmt.Errorf("unknown layout type %q", layout.Type)}
	}

	base := strings.ToLower(filepath.Base(archivePath))
	strip := newPrefixStripper(layout.StripPrefix)
	var err error
	switch {
	case strings.HasSuffix(base, ".zip"):
		err = extractZip(ctx, archivePath, staging, strip)
	case strings.HasSuffix(base, ".tar.gz"), strings.HasSuffix(base, ".tgz"):
		err = extractTarball(ctx, archivePath, staging, strip, func(r io.Reader) (io.Reader, error) {
			gz, err := gzip.NewReader(r)
			if err != nil {
				return nil, err
			}
			return gz, nil
		})
	case strings.HasSuffix(base, ".tar.xz"):
		err = extractTarball(ctx, archivePath, staging, strip, func(r io.Reader) (io.Reader, error) {
			return xz.NewReader(r)
		})
	case strings.HasSuffix(base, ".tar.bz2"):
		err = extractTarball(ctx, archivePath, staging, strip, func(r io.Reader) (io.Reader, error) {
			return bzip2.NewReader(r), nil
		})
	case strings.HasSuffix(base, ".7z.exe"):
		err = extractSelfExtracting(ctx, archivePath, staging, current)
	case strings.HasSuffix(base, ".7z"):
		err = extract7z(ctx, archivePath, staging)
	case strings.HasSuffix(base, ".appimage"):
		// AppImages stay as a single binary.
		return extractBinary(archivePath, staging, layout, current)
	default:
		err = fmt.Errorf("unsupported archive format %q", base)
	}
	if err != nil {
		return &ExtractionError{Archive: archivePath, Err: err}
	}

	return verifyExecutables(staging, layout, current)
}

// verifyExecutables checks the declared executables exist after layout and
// marks them executable on POSIX.
func verifyExecutables(staging string, layout provider.Layout, current platform.Platform) error {
	for _, rel := range layout.ExecutablePaths {
		p, err := executableIn(staging, rel, current)
		if err != nil {
			return err
		}
		if err := platform.MarkExecutable(p); err != nil {
			return err
		}
	}
	return nil
}

// executableIn resolves a declared executable path, tolerating the missing
// ".exe" suffix in declarations written for POSIX.
func executableIn(root, rel string, current platform.Platform) (string, error) {
	p, err := secureio.WithinRoot(root, rel)
	if err != nil {
		return "", err
	}
	if _, statErr := os.Stat(p); statErr == nil {
		return p, nil
	}
	if current.OS == platform.OSWindows && !strings.HasSuffix(rel, ".exe") {
		if withExe, err := secureio.WithinRoot(root, rel+".exe"); err == nil {
			if _, statErr := os.Stat(withExe); statErr == nil {
				return withExe, nil
			}
		}
	}
	return "", fmt.Errorf("declared executable %s missing after extraction", rel)
}

// prefixStripper removes either a leading component count or a literal
// prefix from archive entry names.
type prefixStripper struct {
	count   int
	literal string
}

func newPrefixStripper(spec string) prefixStripper {
	if spec == "" {
		return prefixStripper{}
	}
	if n, err := strconv.Atoi(spec); err == nil {
		return prefixStripper{count: n}
	}
	return prefixStripper{literal: spec}
}

// strip returns the adjusted entry name and whether the entry survives.
func (p prefixStripper) strip(name string) (string, bool) {
	name = path.Clean(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == "/" {
		return "", false
	}

	if p.count > 0 {
		parts := strings.Split(name, "/")
		if len(parts) <= p.count {
			return "", false
		}
		return path.Join(parts[p.count:]...), true
	}

	if p.literal != "" {
		trimmed := strings.TrimPrefix(name, p.literal)
		trimmed = strings.TrimPrefix(trimmed, "/")
		if trimmed == "" {
			return "", false
		}
		return trimmed, true
	}

	return name, true
}

func extractZip(ctx context.Context, archivePath, staging string, strip prefixStripper) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer func() { _ = zr.Close() }()

	for _, entry := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}

		name, ok := strip.strip(entry.Name)
		if !ok {
			continue
		}
		dest, err := secureio.WithinRoot(staging, name)
		if err != nil {
			return err
		}

		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		rc, err := entry.Open()
		if err != nil {
			return err
		}
		err = writeEntry(dest, rc, entry.Mode())
		_ = rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// decompressor wraps the raw archive stream for one tar flavor.
type decompressor func(io.Reader) (io.Reader, error)

func extractTarball(ctx context.Context, archivePath, staging string, strip prefixStripper, wrap decompressor) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	stream, err := wrap(file)
	if err != nil {
		return err
	}

	tr := tar.NewReader(stream)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		name, ok := strip.strip(hdr.Name)
		if !ok {
			continue
		}
		dest, err := secureio.WithinRoot(staging, name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return err
			}
			if err := writeEntry(dest, tr, hdr.FileInfo().Mode()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return err
			}
			// Reject links escaping the staging tree. Relative links that
			// stay inside it (bin/npm -> ../lib/...) are normal.
			if filepath.IsAbs(hdr.Linkname) {
				return fmt.Errorf("absolute symlink %s -> %s", name, hdr.Linkname)
			}
			resolved := filepath.Join(filepath.Dir(dest), filepath.FromSlash(hdr.Linkname))
			if rel, relErr := filepath.Rel(staging, resolved); relErr != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
				return fmt.Errorf("symlink escapes staging: %s -> %s", name, hdr.Linkname)
			}
			_ = os.Remove(dest)
			if err := os.Symlink(hdr.Linkname, dest); err != nil {
				return err
			}
		}
	}
}

func writeEntry(dest string, r io.Reader, mode os.FileMode) error {
	perm := mode.Perm()
	if perm == 0 {
		perm = 0o644
	}
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm|0o200)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// extractBinary lays out a single-file payload under bin/.
func extractBinary(archivePath, staging string, layout provider.Layout, current platform.Platform) error {
	name := layout.TargetName
	if name == "" {
		if len(layout.ExecutablePaths) > 0 {
			name = path.Base(layout.ExecutablePaths[0])
		} else {
			name = strings.TrimSuffix(filepath.Base(archivePath), filepath.Ext(archivePath))
		}
	}
	if current.OS == platform.OSWindows && !strings.HasSuffix(name, ".exe") {
		name += ".exe"
	}

	binDir := filepath.Join(staging, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return err
	}

	mode := os.FileMode(0o755)
	if layout.TargetPermissions != "" {
		if parsed, err := strconv.ParseUint(layout.TargetPermissions, 8, 32); err == nil {
			mode = os.FileMode(parsed)
		}
	}

	src, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	dest := filepath.Join(binDir, name)
	if err := writeEntry(dest, src, mode); err != nil {
		return err
	}
	return os.Chmod(dest, mode)
}

// extractMSI performs an administrative extraction via msiexec.
func extractMSI(ctx context.Context, archivePath, staging string, current platform.Platform) error {
	if current.OS != platform.OSWindows {
		return &ExtractionError{Archive: archivePath, Err: fmt.Errorf("msi payloads require windows")}
	}
	cmd := exec.CommandContext(ctx, "msiexec", "/a", archivePath, "/qn", "TARGETDIR="+staging)
	if out, err := cmd.CombinedOutput(); err != nil {
		return &ExtractionError{Archive: archivePath, Err: fmt.Errorf("msiexec: %w: %s", err, out)}
	}
	return nil
}

// extractSelfExtracting runs an NSIS-style .7z.exe silently into staging.
func extractSelfExtracting(ctx context.Context, archivePath, staging string, current platform.Platform) error {
	if current.OS != platform.OSWindows {
		return fmt.Errorf("self-extracting archives require windows")
	}
	cmd := exec.CommandContext(ctx, archivePath, "/S", "/D="+staging)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("self-extractor: %w: %s", err, out)
	}
	return nil
}

// extract7z shells out to a 7z binary on PATH.
func extract7z(ctx context.Context, archivePath, staging string) error {
	bin, err := exec.LookPath("7z")
	if err != nil {
		return fmt.Errorf("7z archives require a 7z binary on PATH: %w", err)
	}
	cmd := exec.CommandContext(ctx, bin, "x", "-y", "-o"+staging, archivePath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("7z: %w: %s", err, out)
	}
	return nil
}
