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

// CratesIOAdapter resolves packages via `cargo install --root=<tmp>
// <name>[@<ver>]` per spec.md §4.4; the resulting bin/ tree is the cache
// payload.
type CratesIOAdapter struct {
	Cache      *cache.Store
	httpClient *http.Client
}

func NewCratesIOAdapter(store *cache.Store) *CratesIOAdapter {
	return &CratesIOAdapter{Cache: store, httpClient: &http.Client{Timeout: 15 * time.Second}}
}

func (c *CratesIOAdapter) Kind() Kind { return KindCratesIO }

// ProbeVersions queries crates.io's API for every published version.
func (c *CratesIOAdapter) ProbeVersions(ctx context.Context, name string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://crates.io/api/v1/crates/"+name+"/versions", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "horus-package-manager")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sources: querying crates.io for %q: %w", name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sources: crates.io returned HTTP %d for %q", resp.StatusCode, name)
	}

	var payload struct {
		Versions []struct {
			Num string `json:"num"`
		} `json:"versions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("sources: decoding crates.io response for %q: %w", name, err)
	}
	versions := make([]string, len(payload.Versions))
	for i, v := range payload.Versions {
		versions[i] = v.Num
	}
	return versions, nil
}

// Fetch shells out to cargo to install name@version into a temp root,
// then materializes its bin/ tree into the global cache.
func (c *CratesIOAdapter) Fetch(ctx context.Context, name, version string) (Fetched, error) {
	cacheName := "cratesio_" + name
	path, err := c.Cache.Materialize(cacheName, version, "", func(tmp string) error {
		spec := name
		if version != "" {
			spec = name + "@" + version
		}
		cmd := exec.CommandContext(ctx, "cargo", "install", "--root="+tmp, spec)
		out, err := cmd.CombinedOutput()
		if err != nil {
			return fmt.Errorf("cargo install %s: %w: %s", spec, err, out)
		}

		metadata, err := json.Marshal(map[string]string{
			"name": name, "version": version, "source": string(KindCratesIO),
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
