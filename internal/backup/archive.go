package backup

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"github.com/BadgerOps/craftctl/internal/safety"
)

// Format is an archive container and compression pair.
type Format int

const (
	FormatZstd Format = iota
	FormatXZ
	FormatZip
)

var formats = []Format{FormatZstd, FormatXZ, FormatZip}

// ParseFormat parses "zstd", "xz" or "zip".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "zstd", "zst", "tar.zst", "":
		return FormatZstd, nil
	case "xz", "tar.xz":
		return FormatXZ, nil
	case "zip":
		return FormatZip, nil
	default:
		return 0, fmt.Errorf("unsupported backup format %q (want zstd, xz or zip)", s)
	}
}

func (f Format) String() string {
	switch f {
	case FormatZstd:
		return "zstd"
	case FormatXZ:
		return "xz"
	case FormatZip:
		return "zip"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// Ext is the file extension including the leading dot.
func (f Format) Ext() string {
	switch f {
	case FormatXZ:
		return ".tar.xz"
	case FormatZip:
		return ".zip"
	default:
		return ".tar.zst"
	}
}

// formatOf returns the format implied by a file name.
func formatOf(name string) (Format, bool) {
	for _, f := range formats {
		if strings.HasSuffix(name, f.Ext()) {
			return f, true
		}
	}
	return 0, false
}

// writeArchive writes every directory and regular file below srcDir into w,
// with entry names rooted at rootName.
func writeArchive(ctx context.Context, w io.Writer, f Format, srcDir, rootName string) (int, int64, error) {
	switch f {
	case FormatZip:
		zw := zip.NewWriter(w)
		n, size, err := walkWorld(ctx, srcDir, rootName, zipAdder(zw))
		if err != nil {
			_ = zw.Close()
			return n, size, err
		}
		if err := zw.Close(); err != nil {
			return n, size, fmt.Errorf("closing zip writer: %w", err)
		}
		return n, size, nil

	case FormatZstd, FormatXZ:
		compressor, err := newCompressor(f, w)
		if err != nil {
			return 0, 0, err
		}
		tw := tar.NewWriter(compressor)
		n, size, err := walkWorld(ctx, srcDir, rootName, tarAdder(tw))
		if err != nil {
			_ = tw.Close()
			_ = compressor.Close()
			return n, size, err
		}
		if err := tw.Close(); err != nil {
			_ = compressor.Close()
			return n, size, fmt.Errorf("closing tar writer: %w", err)
		}
		if err := compressor.Close(); err != nil {
			return n, size, fmt.Errorf("closing %s writer: %w", f, err)
		}
		return n, size, nil

	default:
		return 0, 0, fmt.Errorf("unsupported backup format %s", f)
	}
}

func newCompressor(f Format, w io.Writer) (io.WriteCloser, error) {
	switch f {
	case FormatZstd:
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("creating zstd writer: %w", err)
		}
		return enc, nil
	case FormatXZ:
		xw, err := xz.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("creating xz writer: %w", err)
		}
		return xw, nil
	default:
		return nil, fmt.Errorf("format %s is not a tar format", f)
	}
}

// adder stores one walked directory or regular file under its archive name.
type adder func(srcPath, name string, info fs.FileInfo) error

func walkWorld(ctx context.Context, srcDir, rootName string, add adder) (int, int64, error) {
	files := 0
	var total int64

	err := filepath.WalkDir(srcDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return err
		}
		name := rootName
		if rel != "." {
			name = path.Join(rootName, filepath.ToSlash(rel))
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		switch {
		case info.IsDir():
			return add(p, name+"/", info)
		case info.Mode().IsRegular():
			if err := add(p, name, info); err != nil {
				return fmt.Errorf("adding %s: %w", name, err)
			}
			files++
			total += info.Size()
			return nil
		default:
			// Sockets, devices and links have no place in a world snapshot.
			return nil
		}
	})
	return files, total, err
}

func tarAdder(tw *tar.Writer) adder {
	return func(srcPath, name string, info fs.FileInfo) error {
		if info.IsDir() {
			return tw.WriteHeader(&tar.Header{
				Typeflag: tar.TypeDir,
				Name:     name,
				Mode:     int64(info.Mode().Perm()),
				ModTime:  info.ModTime(),
			})
		}
		return addFileToTar(tw, srcPath, name)
	}
}

func addFileToTar(tw *tar.Writer, srcPath, tarPath string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()

	stat, err := f.Stat()
	if err != nil {
		return err
	}

	header := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     tarPath,
		Size:     stat.Size(),
		Mode:     int64(stat.Mode().Perm()),
		ModTime:  stat.ModTime(),
	}
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}

func zipAdder(zw *zip.Writer) adder {
	return func(srcPath, name string, info fs.FileInfo) error {
		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		header.Name = name
		if info.IsDir() {
			header.Method = zip.Store
			_, err := zw.CreateHeader(header)
			return err
		}
		header.Method = zip.Deflate

		w, err := zw.CreateHeader(header)
		if err != nil {
			return err
		}
		f, err := os.Open(srcPath)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	}
}

// entry is one archive member as seen by a reader.
type entry struct {
	name  string
	dir   bool
	mode  fs.FileMode
	open  func() (io.Reader, func() error, error)
	links bool
}

// walkArchive calls fn for every member of the archive at archivePath.
func walkArchive(archivePath string, fn func(entry) error) error {
	f, ok := formatOf(filepath.Base(archivePath))
	if !ok {
		return fmt.Errorf("unrecognized archive %s", filepath.Base(archivePath))
	}

	if f == FormatZip {
		zr, err := zip.OpenReader(archivePath)
		if err != nil {
			return fmt.Errorf("opening zip: %w", err)
		}
		defer zr.Close()

		for _, zf := range zr.File {
			mode := zf.Mode()
			e := entry{
				name:  zf.Name,
				dir:   strings.HasSuffix(zf.Name, "/") || mode.IsDir(),
				mode:  mode.Perm(),
				links: mode&(fs.ModeSymlink|fs.ModeDevice|fs.ModeNamedPipe|fs.ModeSocket) != 0,
				open: func() (io.Reader, func() error, error) {
					rc, err := zf.Open()
					if err != nil {
						return nil, nil, err
					}
					return rc, rc.Close, nil
				},
			}
			if err := fn(e); err != nil {
				return err
			}
		}
		return nil
	}

	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer file.Close()

	var r io.Reader
	switch f {
	case FormatZstd:
		zr, err := zstd.NewReader(file)
		if err != nil {
			return fmt.Errorf("creating zstd reader: %w", err)
		}
		defer zr.Close()
		r = zr
	case FormatXZ:
		xr, err := xz.NewReader(file)
		if err != nil {
			return fmt.Errorf("creating xz reader: %w", err)
		}
		r = xr
	}

	tr := tar.NewReader(r)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar entry: %w", err)
		}

		e := entry{
			name:  header.Name,
			dir:   header.Typeflag == tar.TypeDir,
			mode:  fs.FileMode(header.Mode).Perm(),
			links: header.Typeflag != tar.TypeDir && header.Typeflag != tar.TypeReg,
			open: func() (io.Reader, func() error, error) {
				return tr, func() error { return nil }, nil
			},
		}
		if err := fn(e); err != nil {
			return err
		}
	}
}

// checkEntry validates that e is a plain file or directory below rootName.
func checkEntry(e entry, rootName string) (string, error) {
	if e.links {
		return "", fmt.Errorf("unsupported archive entry type for %s", e.name)
	}
	clean, err := safety.EntryPath(e.name)
	if err != nil {
		return "", fmt.Errorf("unsafe path in archive %q: %w", e.name, err)
	}
	top := strings.SplitN(filepath.ToSlash(clean), "/", 2)[0]
	if top != rootName {
		return "", fmt.Errorf("archive entry %q is outside world directory %s", e.name, rootName)
	}
	return clean, nil
}

// verifyArchive reads the whole archive, checking every entry and draining
// every payload so corruption is found before anything is deleted.
func verifyArchive(archivePath, rootName string) (int, error) {
	files := 0
	sawRoot := false
	err := walkArchive(archivePath, func(e entry) error {
		if _, err := checkEntry(e, rootName); err != nil {
			return err
		}
		sawRoot = true
		if e.dir {
			return nil
		}
		r, closeFn, err := e.open()
		if err != nil {
			return fmt.Errorf("opening %s: %w", e.name, err)
		}
		_, copyErr := io.Copy(io.Discard, r)
		if err := closeFn(); err != nil && copyErr == nil {
			copyErr = err
		}
		if copyErr != nil {
			return fmt.Errorf("reading %s: %w", e.name, copyErr)
		}
		files++
		return nil
	})
	if err != nil {
		return files, err
	}
	if !sawRoot {
		return 0, errors.New("archive is empty")
	}
	return files, nil
}

// extractArchive unpacks the archive under destRoot.
func extractArchive(ctx context.Context, archivePath, destRoot, rootName string) (int, int64, error) {
	extracted := 0
	var total int64

	err := walkArchive(archivePath, func(e entry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		clean, err := checkEntry(e, rootName)
		if err != nil {
			return err
		}
		destPath, err := safety.JoinUnder(destRoot, filepath.ToSlash(clean))
		if err != nil {
			return err
		}

		if e.dir {
			return os.MkdirAll(destPath, 0o755)
		}
		if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
			return fmt.Errorf("creating directory: %w", err)
		}

		mode := e.mode
		if mode == 0 {
			mode = 0o644
		}
		out, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
		if err != nil {
			return fmt.Errorf("creating file %s: %w", destPath, err)
		}
		r, closeFn, err := e.open()
		if err != nil {
			_ = out.Close()
			return fmt.Errorf("opening %s: %w", e.name, err)
		}
		n, err := io.Copy(out, r)
		if cerr := closeFn(); cerr != nil && err == nil {
			err = cerr
		}
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("extracting %s: %w", e.name, err)
		}

		extracted++
		total += n
		return nil
	})
	return extracted, total, err
}
