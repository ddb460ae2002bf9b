package dataset

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/noot-app/food-emissions-mcp-server/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	emissionsBody = `{"Bananas": {"GHG emissions per kilogram (Poore & Nemecek, 2018)": 0.86}}`
	weightsBody   = `{"Bananas": 0.12}`
)

type fileServer struct {
	*httptest.Server
	gets int32

	mu   sync.Mutex
	etag string
}

func (fs *fileServer) setETag(etag string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.etag = etag
}

func newFileServer(t *testing.T) *fileServer {
	t.Helper()
	fs := &fileServer{etag: `"v1"`}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := emissionsBody
		if r.URL.Path == "/weights.json" {
			body = weightsBody
		}
		fs.mu.Lock()
		w.Header().Set("ETag", fs.etag)
		fs.mu.Unlock()
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		atomic.AddInt32(&fs.gets, 1)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(fs.Close)
	return fs
}

func testConfig(dir, baseURL string) *config.Config {
	cfg := &config.Config{
		EmissionsPath: filepath.Join(dir, "food_footprints.json"),
		WeightsPath:   filepath.Join(dir, "food_weights.json"),
		MetadataPath:  filepath.Join(dir, "metadata.json"),
		LockFile:      filepath.Join(dir, "refresh.lock"),
	}
	if baseURL != "" {
		cfg.EmissionsURL = baseURL + "/footprints.json"
		cfg.WeightsURL = baseURL + "/weights.json"
	}
	return cfg
}

func TestManager_EnsureFiles_Downloads(t *testing.T) {
	dir := t.TempDir()
	server := newFileServer(t)
	cfg := testConfig(dir, server.URL)
	logger := config.NewTestLogger(io.Discard, "debug")

	m := NewManager(cfg, logger)
	require.NoError(t, m.EnsureFiles(context.Background()))

	data, err := os.ReadFile(cfg.EmissionsPath)
	require.NoError(t, err)
	assert.Equal(t, emissionsBody, string(data))

	data, err = os.ReadFile(cfg.WeightsPath)
	require.NoError(t, err)
	assert.Equal(t, weightsBody, string(data))

	var meta map[string]Metadata
	raw, err := os.ReadFile(cfg.MetadataPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &meta))
	assert.Equal(t, `"v1"`, meta["emissions"].ETag)
	assert.Equal(t, int64(len(weightsBody)), meta["weights"].Size)
	assert.Len(t, meta["weights"].SHA256, 64)

	_, err = os.Stat(cfg.LockFile)
	assert.True(t, os.IsNotExist(err), "lock must be released")
}

func TestManager_EnsureFiles_SkipsWhenUpToDate(t *testing.T) {
	dir := t.TempDir()
	server := newFileServer(t)
	cfg := testConfig(dir, server.URL)
	logger := config.NewTestLogger(io.Discard, "debug")

	m := NewManager(cfg, logger)
	require.NoError(t, m.EnsureFiles(context.Background()))
	require.Equal(t, int32(2), atomic.LoadInt32(&server.gets))

	require.NoError(t, m.EnsureFiles(context.Background()))
	assert.Equal(t, int32(2), atomic.LoadInt32(&server.gets), "unchanged files are not downloaded again")

	server.setETag(`"v2"`)
	require.NoError(t, m.EnsureFiles(context.Background()))
	assert.Equal(t, int32(4), atomic.LoadInt32(&server.gets), "changed ETag triggers a refresh")
}

func TestManager_EnsureFiles_RemoteCheckDisabled(t *testing.T) {
	dir := t.TempDir()
	server := newFileServer(t)
	cfg := testConfig(dir, server.URL)
	cfg.DisableRemoteCheck = true
	require.NoError(t, os.WriteFile(cfg.EmissionsPath, []byte(`{}`), 0644))
	require.NoError(t, os.WriteFile(cfg.WeightsPath, []byte(`{}`), 0644))

	m := NewManager(cfg, config.NewTestLogger(io.Discard, "debug"))
	require.NoError(t, m.EnsureFiles(context.Background()))
	assert.Equal(t, int32(0), atomic.LoadInt32(&server.gets))
}

func TestManager_EnsureFiles_LocalOnly(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir, "")
	logger := config.NewTestLogger(io.Discard, "debug")

	m := NewManager(cfg, logger)
	err := m.EnsureFiles(context.Background())
	assert.ErrorIs(t, err, ErrMissingSource)

	require.NoError(t, os.WriteFile(cfg.EmissionsPath, []byte(emissionsBody), 0644))
	require.NoError(t, os.WriteFile(cfg.WeightsPath, []byte(weightsBody), 0644))
	assert.NoError(t, m.EnsureFiles(context.Background()))
}

func TestManager_EnsureFiles_DownloadFailure(t *testing.T) {
	dir := t.TempDir()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()
	cfg := testConfig(dir, server.URL)

	m := NewManager(cfg, config.NewTestLogger(io.Discard, "debug"))
	err := m.EnsureFiles(context.Background())
	assert.Error(t, err)

	_, statErr := os.Stat(cfg.EmissionsPath)
	assert.True(t, os.IsNotExist(statErr), "failed downloads leave no partial file")
}

func TestManager_WaitsForOtherInstance(t *testing.T) {
	dir := t.TempDir()
	server := newFileServer(t)
	cfg := testConfig(dir, server.URL)

	// Simulate another instance holding the lock, then finishing
	require.NoError(t, os.WriteFile(cfg.LockFile, nil, 0644))
	go func() {
		time.Sleep(200 * time.Millisecond)
		_ = os.WriteFile(cfg.EmissionsPath, []byte(emissionsBody), 0644)
		_ = os.WriteFile(cfg.WeightsPath, []byte(weightsBody), 0644)
		_ = os.Remove(cfg.LockFile)
	}()

	m := NewManager(cfg, config.NewTestLogger(io.Discard, "debug"))
	require.NoError(t, m.EnsureFiles(context.Background()))
	assert.Equal(t, int32(0), atomic.LoadInt32(&server.gets))
}

func TestManager_WaitRespectsContext(t *testing.T) {
	dir := t.TempDir()
	server := newFileServer(t)
	cfg := testConfig(dir, server.URL)
	require.NoError(t, os.WriteFile(cfg.LockFile, nil, 0644))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	m := NewManager(cfg, config.NewTestLogger(io.Discard, "debug"))
	err := m.EnsureFiles(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
