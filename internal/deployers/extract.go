package deployers

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/provisio/prov/internal/product"
)

// extractDeployer unpacks the component artifact into a folder under the
// target. Deploy replaces the folder as a whole; Undeploy removes it.
//
// Parameters:
//
//	to      folder relative to the target (default: the target)
//	strip   strip a single top-level folder shared by every entry (default true)
//	format  zip or tar.gz (default: from the artifact file name)
type extractDeployer struct {
	base
	archive string
	dest    string
	format  string
	strip   bool
}

const (
	formatZip   = "zip"
	formatTarGz = "tar.gz"
)

func (d *extractDeployer) Init(_ context.Context, dc product.Context, params map[string]string) error {
	if err := d.init(TypeExtract, dc); err != nil {
		return err
	}
	d.archive = dc.ArtifactFile()
	if d.archive == "" {
		return fmt.Errorf("extract: component %s has no artifact file", dc.Component)
	}

	dest, err := resolveTarget(dc.Target, params["to"])
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	d.dest = dest

	if d.strip, err = boolParam(params, "strip", true); err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	d.format = params["format"]
	if d.format == "" {
		d.format = detectFormat(d.archive)
	}
	switch d.format {
	case formatZip, formatTarGz:
	case "tgz":
		d.format = formatTarGz
	default:
		return fmt.Errorf("extract: unsupported archive format %q (use zip or tar.gz)", d.format)
	}
	return nil
}

func detectFormat(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".zip"), strings.HasSuffix(lower, ".jar"):
		return formatZip
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return formatTarGz
	}
	return filepath.Ext(lower)
}

func (d *extractDeployer) Deploy(context.Context) product.Result {
	parent := filepath.Dir(d.dest)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return d.fail("extract", err)
	}

	// Unpack next to the destination, then swap it in.
	staging := filepath.Join(parent, ".prov-extract-"+uuid.NewString())
	defer os.RemoveAll(staging)

	var err error
	if d.format == formatZip {
		err = extractZip(d.archive, staging, d.strip)
	} else {
		err = extractTarGz(d.archive, staging, d.strip)
	}
	if err != nil {
		return d.fail("extract", fmt.Errorf("%s: %w", filepath.Base(d.archive), err))
	}

	if err := os.RemoveAll(d.dest); err != nil {
		return d.fail("extract", err)
	}
	if err := os.Rename(staging, d.dest); err != nil {
		return d.fail("extract", err)
	}
	d.log.Debug("extracted", "archive", filepath.Base(d.archive), "to", d.dest)
	return product.OK
}

func (d *extractDeployer) Undeploy(context.Context) product.Result {
	if err := os.RemoveAll(d.dest); err != nil {
		return d.fail("remove", err)
	}
	return product.OK
}

func (d *extractDeployer) Start(context.Context) product.Result { return product.OK }

func (d *extractDeployer) Stop(context.Context) product.Result { return product.OK }

func extractZip(archive, dest string, strip bool) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("opening zip: %w", err)
	}
	defer zr.Close()

	prefix := ""
	if strip {
		names := make([]string, 0, len(zr.File))
		for _, f := range zr.File {
			names = append(names, f.Name)
		}
		prefix = commonTopDir(names)
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	for _, f := range zr.File {
		rel, ok, err := entryPath(f.Name, prefix)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		target := filepath.Join(dest, rel)
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("reading %s: %w", f.Name, err)
		}
		err = writeEntry(target, rc, f.Mode())
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// extractTarGz reads the archive twice when stripping: once for the entry
// names, once to unpack.
func extractTarGz(archive, dest string, strip bool) error {
	prefix := ""
	if strip {
		var names []string
		err := walkTarGz(archive, func(h *tar.Header, _ io.Reader) error {
			names = append(names, h.Name)
			return nil
		})
		if err != nil {
			return err
		}
		prefix = commonTopDir(names)
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	return walkTarGz(archive, func(h *tar.Header, r io.Reader) error {
		rel, ok, err := entryPath(h.Name, prefix)
		if err != nil || !ok {
			return err
		}
		target := filepath.Join(dest, rel)
		switch h.Typeflag {
		case tar.TypeDir:
			return os.MkdirAll(target, 0o755)
		case tar.TypeReg:
			return writeEntry(target, r, fs.FileMode(h.Mode))
		}
		// Links and special files are not unpacked.
		return nil
	})
}

func walkTarGz(archive string, fn func(*tar.Header, io.Reader) error) error {
	f, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("opening gzip stream: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		h, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar: %w", err)
		}
		if err := fn(h, tr); err != nil {
			return err
		}
	}
}

// commonTopDir returns the single top-level folder every entry lives
// under, or "" when there is none.
func commonTopDir(names []string) string {
	top := ""
	nested := false
	for _, n := range names {
		n = cleanEntry(n)
		if n == "." {
			continue
		}
		first, _, hasSub := strings.Cut(n, "/")
		if top == "" {
			top = first
		}
		if first != top {
			return ""
		}
		nested = nested || hasSub
	}
	if !nested {
		return ""
	}
	return top
}

func cleanEntry(name string) string {
	return path.Clean(strings.TrimPrefix(strings.ReplaceAll(name, `\`, "/"), "./"))
}

// entryPath maps an archive entry to a path relative to the destination.
// ok is false for entries that produce nothing.
func entryPath(name, prefix string) (rel string, ok bool, err error) {
	n := cleanEntry(name)
	if prefix != "" {
		if n == prefix {
			return "", false, nil
		}
		n = strings.TrimPrefix(n, prefix+"/")
	}
	if n == "." {
		return "", false, nil
	}
	rel = filepath.FromSlash(n)
	if !filepath.IsLocal(rel) {
		return "", false, fmt.Errorf("entry %q escapes the destination folder", name)
	}
	return rel, true, nil
}

func writeEntry(target string, r io.Reader, mode fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	perm := mode.Perm()
	if perm == 0 {
		perm = 0o644
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", target, err)
	}
	return f.Close()
}
