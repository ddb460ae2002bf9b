package dataset

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/noot-app/food-emissions-mcp-server/internal/config"
)

// ErrMissingSource is returned when a reference file is absent and has no download URL
var ErrMissingSource = errors.New("reference file missing and no download URL configured")

// Source is one reference file and where to fetch it from
type Source struct {
	Name string
	URL  string
	Path string
}

// Metadata holds information about a downloaded reference file
type Metadata struct {
	SHA256       string    `json:"sha256"`
	DownloadedAt time.Time `json:"downloaded_at"`
	ETag         string    `json:"etag,omitempty"`
	Size         int64     `json:"size"`
	URL          string    `json:"url"`
}

// Manager keeps the local reference files in step with their remote sources
type Manager struct {
	sources            []Source
	metadataPath       string
	lockPath           string
	disableRemoteCheck bool
	client             *http.Client
	log                *slog.Logger
}

// NewManager creates a manager for the emissions and weights files in cfg
func NewManager(cfg *config.Config, logger *slog.Logger) *Manager {
	return &Manager{
		sources: []Source{
			{Name: "emissions", URL: cfg.EmissionsURL, Path: cfg.EmissionsPath},
			{Name: "weights", URL: cfg.WeightsURL, Path: cfg.WeightsPath},
		},
		metadataPath:       cfg.MetadataPath,
		lockPath:           cfg.LockFile,
		disableRemoteCheck: cfg.DisableRemoteCheck,
		client:             &http.Client{Timeout: 5 * time.Minute},
		log:                logger,
	}
}

// EnsureFiles makes sure every reference file exists locally, downloading
// files that are missing or whose remote copy changed
func (m *Manager) EnsureFiles(ctx context.Context) error {
	start := time.Now()
	m.log.Info("Ensuring reference files are available", "files", len(m.sources))

	var pending []Source
	for _, src := range m.sources {
		fresh, err := m.isFresh(ctx, src)
		if err != nil {
			return err
		}
		if !fresh {
			pending = append(pending, src)
		}
	}

	if len(pending) == 0 {
		m.log.Info("Reference files are up-to-date", "duration", time.Since(start))
		return nil
	}

	if err := m.downloadWithLock(ctx, pending); err != nil {
		return fmt.Errorf("failed to download reference files: %w", err)
	}

	m.log.Info("Reference files ensured", "downloaded", len(pending), "duration", time.Since(start))
	return nil
}

// isFresh reports whether the local copy of src can be used as is
func (m *Manager) isFresh(ctx context.Context, src Source) (bool, error) {
	_, statErr := os.Stat(src.Path)
	exists := statErr == nil

	if src.URL == "" {
		if !exists {
			return false, fmt.Errorf("%s (%s): %w", src.Name, src.Path, ErrMissingSource)
		}
		m.log.Debug("Using local reference file", "name", src.Name, "path", src.Path)
		return true, nil
	}

	if !exists {
		return false, nil
	}

	if m.disableRemoteCheck {
		m.log.Info("Remote checks disabled, using local file", "name", src.Name)
		return true, nil
	}

	upToDate, err := m.isUpToDate(ctx, src)
	if err != nil {
		// The local file still works; a failed freshness check is not fatal
		m.log.Warn("Failed to verify reference freshness", "name", src.Name, "error", err)
		return true, nil
	}
	return upToDate, nil
}

// isUpToDate compares the stored metadata with a HEAD request on the source
func (m *Manager) isUpToDate(ctx context.Context, src Source) (bool, error) {
	all, err := m.loadMetadata()
	if err != nil {
		m.log.Debug("No local metadata found", "error", err)
		return false, nil
	}
	local, ok := all[src.Name]
	if !ok || local.URL != src.URL {
		return false, nil
	}

	remote, err := m.getRemoteMetadata(ctx, src)
	if err != nil {
		return false, err
	}

	if remote.ETag != "" && local.ETag != "" {
		upToDate := remote.ETag == local.ETag
		m.log.Debug("ETag comparison", "name", src.Name, "local", local.ETag, "remote", remote.ETag, "up_to_date", upToDate)
		return upToDate, nil
	}

	upToDate := remote.Size == local.Size
	m.log.Debug("Size comparison", "name", src.Name, "local", local.Size, "remote", remote.Size, "up_to_date", upToDate)
	return upToDate, nil
}

// getRemoteMetadata fetches ETag and size of src using a HEAD request
func (m *Manager) getRemoteMetadata(ctx context.Context, src Source) (*Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, src.URL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HEAD request failed with status: %d", resp.StatusCode)
	}

	return &Metadata{
		ETag: resp.Header.Get("ETag"),
		Size: resp.ContentLength,
		URL:  src.URL,
	}, nil
}

// downloadWithLock downloads sources while holding the lock file
func (m *Manager) downloadWithLock(ctx context.Context, sources []Source) error {
	lockFile, err := acquireLock(m.lockPath)
	if err != nil {
		m.log.Info("Another instance is downloading, waiting", "lock_path", m.lockPath)
		return m.waitForDownload(ctx, sources)
	}
	defer releaseLock(lockFile, m.lockPath)

	all, err := m.loadMetadata()
	if err != nil {
		all = make(map[string]Metadata)
	}

	for _, src := range sources {
		meta, err := m.download(ctx, src)
		if err != nil {
			return fmt.Errorf("%s: %w", src.Name, err)
		}
		all[src.Name] = *meta
	}

	if err := m.saveMetadata(all); err != nil {
		m.log.Warn("Failed to save metadata", "error", err)
	}
	return nil
}

// download fetches src into a temporary file next to its destination and
// renames it into place once complete
func (m *Manager) download(ctx context.Context, src Source) (*Metadata, error) {
	start := time.Now()
	m.log.Info("Downloading reference file", "name", src.Name, "url", src.URL, "path", src.Path)

	if err := os.MkdirAll(filepath.Dir(src.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(src.Path), filepath.Base(src.Path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()

	hash := sha256.New()
	written, err := io.Copy(io.MultiWriter(tmp, hash), resp.Body)
	closeErr := tmp.Close()
	if err != nil || closeErr != nil {
		os.Remove(tmpPath)
		if err == nil {
			err = closeErr
		}
		return nil, fmt.Errorf("failed to write %s: %w", src.Name, err)
	}

	if err := os.Rename(tmpPath, src.Path); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("failed to move file into place: %w", err)
	}

	sum := hex.EncodeToString(hash.Sum(nil))
	m.log.Info("Download completed", "name", src.Name, "bytes", written, "sha256", sum[:16]+"...", "duration", time.Since(start))

	return &Metadata{
		SHA256:       sum,
		DownloadedAt: time.Now().UTC(),
		ETag:         resp.Header.Get("ETag"),
		Size:         written,
		URL:          src.URL,
	}, nil
}

// waitForDownload waits for another instance to release the lock
func (m *Manager) waitForDownload(ctx context.Context, sources []Source) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	timeout := time.After(2 * time.Minute)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout:
			return fmt.Errorf("timeout waiting for download by other instance")
		case <-ticker.C:
			if _, err := os.Stat(m.lockPath); err == nil {
				continue
			}
			for _, src := range sources {
				if _, err := os.Stat(src.Path); err != nil {
					return fmt.Errorf("%s not available after other instance finished: %w", src.Name, err)
				}
			}
			m.log.Info("Reference files available after other instance completed")
			return nil
		}
	}
}

// loadMetadata loads per-file metadata keyed by source name
func (m *Manager) loadMetadata() (map[string]Metadata, error) {
	data, err := os.ReadFile(m.metadataPath)
	if err != nil {
		return nil, err
	}

	var all map[string]Metadata
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	if all == nil {
		all = make(map[string]Metadata)
	}
	return all, nil
}

func (m *Manager) saveMetadata(all map[string]Metadata) error {
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(m.metadataPath), 0755); err != nil {
		return err
	}
	return os.WriteFile(m.metadataPath, data, 0644)
}

// acquireLock attempts to acquire an exclusive lock
func acquireLock(lockPath string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	// O_CREATE|O_EXCL will fail if file exists
	return os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
}

func releaseLock(f *os.File, lockPath string) {
	f.Close()
	os.Remove(lockPath)
}
