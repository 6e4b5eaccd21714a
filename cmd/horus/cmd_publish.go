package main

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/horus-robotics/horus/internal/manifest"
	"github.com/horus-robotics/horus/internal/sources"
)

// publishExcludes lists directory names never included in a published
// tarball: version control metadata, the workspace overlay, and the
// build output directories (`build/` for C/C++, `target/` for cargo),
// per spec.md §7's upload-time enforcement note.
var publishExcludes = map[string]bool{
	".git":   true,
	".horus": true,
	"build":  true,
	"target": true,
}

func newPkgPublishCmd() *cobra.Command {
	var freeze, dryRun bool
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Upload the current directory as a package, optionally freezing its environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			return pkgPublish(".", freeze, dryRun)
		},
	}
	cmd.Flags().BoolVar(&freeze, "freeze", false, "also upload an environment manifest alongside the package")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the tarball's file list without uploading")
	return cmd
}

func pkgPublish(dir string, freeze, dryRun bool) error {
	m, err := manifest.Load(filepath.Join(dir, "horus.yaml"))
	if err != nil {
		return asUserError(fmt.Errorf("pkg publish: %w", err))
	}

	files, tarball, err := buildTarball(dir)
	if err != nil {
		return asUserError(fmt.Errorf("pkg publish: %w", err))
	}

	if dryRun {
		fmt.Println("Would publish the following files:")
		for _, f := range files {
			fmt.Println("  " + f)
		}
		return nil
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	registry := a.adapters[sources.KindRegistry].(*sources.RegistryAdapter)
	if err := registry.Publish(context.Background(), m.Name, m.Version, tarball); err != nil {
		return asNetworkError(err)
	}
	fmt.Printf("Published %s@%s (%d files)\n", m.Name, m.Version, len(files))

	if freeze {
		ws, _, _, err := a.openWorkspace(dir)
		if err != nil {
			return err
		}
		env, err := ws.Freeze(m.Name, m.Description, horusVersion)
		if err != nil {
			return asUserError(fmt.Errorf("pkg publish --freeze: %w", err))
		}
		if err := env.ValidateForPublish(); err != nil {
			return asUserError(fmt.Errorf("pkg publish --freeze: %w", err))
		}
		data, err := yaml.Marshal(env)
		if err != nil {
			return asUserError(fmt.Errorf("pkg publish --freeze: encoding manifest: %w", err))
		}
		envTarball, err := wrapYAMLAsTarball("environment.yaml", data)
		if err != nil {
			return asUserError(fmt.Errorf("pkg publish --freeze: %w", err))
		}
		if err := registry.Publish(context.Background(), "env-"+env.HorusID, horusVersion, envTarball); err != nil {
			return asNetworkError(err)
		}
		fmt.Printf("Environment %s published alongside %s@%s\n", env.HorusID, m.Name, m.Version)
	}
	return nil
}

// buildTarball walks dir, excluding publishExcludes directories, and
// returns the sorted-by-walk-order relative file list alongside the
// gzipped tar bytes.
func buildTarball(dir string) ([]string, []byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			if publishExcludes[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if _, err := io.Copy(tw, f); err != nil {
			return err
		}
		files = append(files, hdr.Name)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("building tarball: %w", err)
	}
	if err := tw.Close(); err != nil {
		return nil, nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, nil, err
	}
	return files, buf.Bytes(), nil
}

// wrapYAMLAsTarball packages a single file's bytes into a one-entry
// gzipped tar archive, the same payload shape registry.Fetch's
// extractTarGz expects, so a published environment manifest can be
// fetched back through the ordinary Registry adapter path.
func wrapYAMLAsTarball(name string, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	if err := tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(data))}); err != nil {
		return nil, err
	}
	if _, err := tw.Write(data); err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// deleteFromRegistry backs `pkg unpublish`: a one-shot adapter built
// directly from a base URL, since unpublish needs no cache and no other
// adapter.
func deleteFromRegistry(baseURL, name, version string) error {
	registry := sources.NewRegistryAdapter(baseURL, nil)
	return registry.Delete(context.Background(), name, version)
}

// horusVersion is the running binary's own version, stamped into
// environment manifests it freezes. Hardcoded here rather than threaded
// through a build-time ldflags variable, since this system has no
// release pipeline of its own yet.
const horusVersion = "0.1.0"
