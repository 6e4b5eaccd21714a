package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/horus-robotics/horus/internal/cache"
)

// PyPIAdapter resolves packages via `pip install --target=<tmp>` per
// spec.md §4.4, wrapping the result into a `pypi_<name>@<version>` cache
// entry with a metadata.json sidecar.
type PyPIAdapter struct {
	Cache      *cache.Store
	httpClient *http.Client
}

func NewPyPIAdapter(store *cache.Store) *PyPIAdapter {
	return &PyPIAdapter{Cache: store, httpClient: &http.Client{Timeout: 15 * time.Second}}
}

func (p *PyPIAdapter) Kind() Kind { return KindPyPI }

// ProbeVersions queries PyPI's JSON API for every released version.
func (p *PyPIAdapter) ProbeVersions(ctx context.Context, name string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://pypi.org/pypi/"+name+"/json", nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sources: querying pypi for %q: %w", name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sources: pypi returned HTTP %d for %q", resp.StatusCode, name)
	}

	var payload struct {
		Releases map[string]json.RawMessage `json:"releases"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("sources: decoding pypi response for %q: %w", name, err)
	}
	versions := make([]string, 0, len(payload.Releases))
	for v := range payload.Releases {
		versions = append(versions, v)
	}
	return versions, nil
}

// Fetch shells out to pip to install name==version into a temp target
// directory, then materializes it into the global cache under the
// "pypi_" prefix required by spec.md §4.4.
func (p *PyPIAdapter) Fetch(ctx context.Context, name, version string) (Fetched, error) {
	cacheName := "pypi_" + name

	path, err := p.Cache.Materialize(cacheName, version, "", func(tmp string) error {
		pipTarget := filepath.Join(tmp, "dist")
		spec := name
		if version != "" {
			spec = name + "==" + version
		}
		cmd := exec.CommandContext(ctx, "pip", "install", "--target="+pipTarget, spec)
		out, err := cmd.CombinedOutput()
		if err != nil {
			return fmt.Errorf("pip install %s: %w: %s", spec, err, out)
		}

		metadata, err := json.Marshal(map[string]string{
			"name": name, "version": version, "source": string(KindPyPI),
		})
		if err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(tmp, "metadata.json"), metadata, 0o644)
	})
	if err != nil {
		return Fetched{}, err
	}
	return Fetched{CachePath: path, Version: version}, nil
}
