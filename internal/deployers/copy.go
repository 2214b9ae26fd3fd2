package deployers

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/provisio/prov/internal/product"
)

// copyDeployer copies the component artifact, and optionally its
// dependencies, into the target folder.
//
// Parameters:
//
//	to            folder relative to the target (default: the target)
//	dependencies  "true" also copies the dependency files
type copyDeployer struct {
	base
	dir   string
	files []copyPair
}

type copyPair struct {
	src, dst string
}

func (d *copyDeployer) Init(_ context.Context, dc product.Context, params map[string]string) error {
	if err := d.init(TypeCopy, dc); err != nil {
		return err
	}
	if dc.ArtifactFile() == "" {
		return fmt.Errorf("copy: component %s has no artifact file", dc.Component)
	}

	dir, err := resolveTarget(dc.Target, params["to"])
	if err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	deps, err := boolParam(params, "dependencies", false)
	if err != nil {
		return fmt.Errorf("copy: %w", err)
	}

	srcs := dc.Files[:1]
	if deps {
		srcs = dc.Files
	}
	d.dir = dir
	d.files = make([]copyPair, 0, len(srcs))
	for _, src := range srcs {
		d.files = append(d.files, copyPair{src: src, dst: filepath.Join(dir, filepath.Base(src))})
	}
	return nil
}

func (d *copyDeployer) Deploy(context.Context) product.Result {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return d.fail("copy", err)
	}
	for _, f := range d.files {
		if err := copyFile(f.src, f.dst); err != nil {
			return d.fail("copy", err)
		}
		d.log.Debug("copied", "file", f.dst)
	}
	return product.OK
}

func (d *copyDeployer) Undeploy(context.Context) product.Result {
	for _, f := range d.files {
		if err := os.Remove(f.dst); err != nil && !os.IsNotExist(err) {
			return d.fail("remove", err)
		}
	}
	// Only removed when empty.
	_ = os.Remove(d.dir)
	return product.OK
}

func (d *copyDeployer) Start(context.Context) product.Result { return product.OK }

func (d *copyDeployer) Stop(context.Context) product.Result { return product.OK }

// copyFile copies src to dst through a temporary file in dst's folder.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".prov-copy-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return fmt.Errorf("copying %s: %w", src, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
