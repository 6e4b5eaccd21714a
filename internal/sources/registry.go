package sources

import (
	"archive/tar"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/klauspost/compress/gzip"

	"github.com/horus-robotics/horus/internal/cache"
)

// RegistryAdapter fetches tarballs from the package registry's HTTP API,
// per spec.md §4.4: "HTTP GET a tarball; verify SHA-256; extract under a
// temp dir; atomically rename into the global cache." The retry client
// (3 attempts, exponential backoff) matches the transient/permanent error
// split of §7 — retryablehttp already treats 5xx and connection errors as
// retryable and 4xx as terminal.
type RegistryAdapter struct {
	BaseURL string
	Cache   *cache.Store
	client  *retryablehttp.Client
}

// NewRegistryAdapter returns a RegistryAdapter with a 3-attempt retrying
// HTTP client.
func NewRegistryAdapter(baseURL string, store *cache.Store) *RegistryAdapter {
	client := retryablehttp.NewClient()
	client.RetryMax = 2 // retries after the first attempt: 3 attempts in all
	client.Logger = nil
	return &RegistryAdapter{BaseURL: strings.TrimRight(baseURL, "/"), Cache: store, client: client}
}

func (r *RegistryAdapter) Kind() Kind { return KindRegistry }

// versionPage is one page of the registry's version-listing response.
// The endpoint is paginated (recovered from original_source/registry.rs
// per SPEC_FULL.md §6): a non-empty Next cursor means more pages follow.
type versionPage struct {
	Versions []string `json:"versions"`
	Next     string   `json:"next,omitempty"`
}

// ProbeVersions queries the registry's version endpoint, following its
// `next` pagination cursor until exhausted, and falls back to the set of
// `<name>@<ver>` directories already present in the global cache if the
// registry is unreachable.
func (r *RegistryAdapter) ProbeVersions(ctx context.Context, name string) ([]string, error) {
	var all []string
	url := r.BaseURL + "/packages/" + name + "/versions"

	for url != "" {
		req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := r.client.Do(req)
		if err != nil {
			if len(all) > 0 {
				return all, nil
			}
			return r.cacheFallbackVersions(name)
		}

		page, decodeErr := decodeVersionPage(resp)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			if len(all) > 0 {
				return all, nil
			}
			return r.cacheFallbackVersions(name)
		}
		if decodeErr != nil {
			return nil, fmt.Errorf("sources: decoding version list for %q: %w", name, decodeErr)
		}

		all = append(all, page.Versions...)
		url = page.Next
	}
	return all, nil
}

// decodeVersionPage accepts either the paginated {versions,next} object
// shape or a bare JSON array, so a registry that hasn't adopted
// pagination yet still decodes correctly.
func decodeVersionPage(resp *http.Response) (versionPage, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return versionPage{}, err
	}
	var page versionPage
	if err := json.Unmarshal(body, &page); err == nil && page.Versions != nil {
		return page, nil
	}
	var bare []string
	if err := json.Unmarshal(body, &bare); err != nil {
		return versionPage{}, err
	}
	return versionPage{Versions: bare}, nil
}

func (r *RegistryAdapter) cacheFallbackVersions(name string) ([]string, error) {
	if r.Cache == nil {
		return nil, fmt.Errorf("sources: registry unreachable and no cache fallback for %q", name)
	}
	entries, err := os.ReadDir(r.Cache.Root())
	if err != nil {
		return nil, fmt.Errorf("sources: registry unreachable for %q: %w", name, err)
	}
	prefix := name + "@"
	var versions []string
	for _, e := range entries {
		if n := e.Name(); e.IsDir() && strings.HasPrefix(n, prefix) {
			versions = append(versions, strings.TrimPrefix(n, prefix))
		}
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("sources: no cached versions for %q and registry unreachable", name)
	}
	return versions, nil
}

// Fetch downloads name@version's tarball, verifies its SHA-256 against
// the registry's published digest, and materializes it into the global
// cache.
func (r *RegistryAdapter) Fetch(ctx context.Context, name, version string) (Fetched, error) {
	tarURL := fmt.Sprintf("%s/packages/%s/%s.tar.gz", r.BaseURL, name, version)
	sumURL := tarURL + ".sha256"

	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	wantSum, err := r.fetchChecksum(ctx, sumURL)
	if err != nil {
		return Fetched{}, err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, tarURL, nil)
	if err != nil {
		return Fetched{}, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return Fetched{}, fmt.Errorf("sources: fetching %s@%s: %w", name, version, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Fetched{}, fmt.Errorf("sources: fetching %s@%s: HTTP %d", name, version, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Fetched{}, err
	}
	sum := sha256.Sum256(body)
	gotSum := hex.EncodeToString(sum[:])
	if wantSum != "" && gotSum != wantSum {
		return Fetched{}, fmt.Errorf("%w: %s@%s", cache.ErrChecksumMismatch, name, version)
	}

	path, err := r.Cache.Materialize(name, version, "", func(tmp string) error {
		return extractTarGz(body, tmp)
	})
	if err != nil {
		return Fetched{}, err
	}
	return Fetched{CachePath: path, Version: version, Checksum: gotSum}, nil
}

// Publish uploads a tarball for name@version along with its SHA-256
// digest, per SPEC_FULL.md §6's `pkg publish` command.
func (r *RegistryAdapter) Publish(ctx context.Context, name, version string, tarball []byte) error {
	sum := sha256.Sum256(tarball)
	checksum := hex.EncodeToString(sum[:])

	tarURL := fmt.Sprintf("%s/packages/%s/%s.tar.gz", r.BaseURL, name, version)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPut, tarURL, bytes.NewReader(tarball))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/gzip")
	req.Header.Set("X-Checksum-SHA256", checksum)
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("sources: publishing %s@%s: %w", name, version, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("sources: publishing %s@%s: HTTP %d", name, version, resp.StatusCode)
	}
	return nil
}

// Delete removes a published version from the registry, per
// SPEC_FULL.md §6's `pkg unpublish` command.
func (r *RegistryAdapter) Delete(ctx context.Context, name, version string) error {
	tarURL := fmt.Sprintf("%s/packages/%s/%s.tar.gz", r.BaseURL, name, version)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodDelete, tarURL, nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("sources: unpublishing %s@%s: %w", name, version, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("sources: unpublishing %s@%s: HTTP %d", name, version, resp.StatusCode)
	}
	return nil
}

func (r *RegistryAdapter) fetchChecksum(ctx context.Context, sumURL string) (string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, sumURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", nil // best-effort: absent digest just skips verification
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func extractTarGz(data []byte, destDir string) error {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("sources: opening gzip stream: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("sources: reading tar entry: %w", err)
		}

		target := filepath.Join(destDir, filepath.Clean(hdr.Name))
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("sources: tar entry %q escapes destination", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(f, tr); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
		}
	}
}
