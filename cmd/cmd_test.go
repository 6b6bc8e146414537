package cmd

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testDataset = `{"changeNumber": 7, "version": "2024-06-01", "values": [
  {"name": "S1", "id": "S1", "properties": {"systemService": "S1", "addressPrefixes": ["10.0.0.0/24"]}}
]}`

func newSourceServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			http.Error(w, "down", status)
			return
		}
		_, _ = fmt.Fprintf(w, `<script>window.__DLCDetails__={"url":"http://%s/dl/ServiceTags_Public_7.json"}</script>`, r.Host)
	})
	mux.HandleFunc("/dl/ServiceTags_Public_7.json", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(testDataset))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func writeConfig(t *testing.T, base, discoveryURL string) string {
	t.Helper()
	tpl := filepath.Join(base, "tpl.html")
	require.NoError(t, os.WriteFile(tpl, []byte("<p>{{CHANGE_NUMBER}}</p>"), 0o600))
	cfg := fmt.Sprintf(`source:
  discovery_url: %q
  link_pattern: '"url":"(http://[^"]+\.json)"'
http:
  timeout_seconds: 5
paths:
  template: %q
logging:
  development: false
`, discoveryURL, tpl)
	path := filepath.Join(base, "servicetags.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func TestUpdateCommand(t *testing.T) {
	server := newSourceServer(t, http.StatusOK)
	base := t.TempDir()
	cfgPath := writeConfig(t, base, server.URL+"/page")
	publishRoot := filepath.Join(base, "site")
	stagingRoot := filepath.Join(base, "scratch")

	err := run(context.Background(), []string{
		"update",
		"--config", cfgPath,
		"--publish-root", publishRoot,
		"--staging-root", stagingRoot,
	})
	require.NoError(t, err)

	index, err := os.ReadFile(filepath.Join(publishRoot, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "<p>7</p>", string(index))

	ranges, err := os.ReadFile(filepath.Join(publishRoot, "ranges-services-pa", "S1.txt"))
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.0/24", string(ranges))
	assert.FileExists(t, filepath.Join(publishRoot, "json-history", "ServiceTags_Public.json"))

	_, statErr := os.Stat(stagingRoot)
	assert.True(t, os.IsNotExist(statErr))
}

func TestUpdateCommandFailure(t *testing.T) {
	server := newSourceServer(t, http.StatusBadGateway)
	base := t.TempDir()
	cfgPath := writeConfig(t, base, server.URL+"/page")

	err := run(context.Background(), []string{
		"update",
		"--config", cfgPath,
		"--publish-root", filepath.Join(base, "site"),
		"--staging-root", filepath.Join(base, "scratch"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "update failed")

	_, statErr := os.Stat(filepath.Join(base, "scratch"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestUpdateCommandBadConfig(t *testing.T) {
	base := t.TempDir()
	path := filepath.Join(base, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("source:\n  link_pattern: 'no-group'\n"), 0o600))

	err := run(context.Background(), []string{"update", "--config", path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestResolveEnvMissing(t *testing.T) {
	_, err := resolveEnv(context.Background())
	assert.Error(t, err)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	srv := &http.Server{
		Addr:              addr,
		Handler:           http.NotFoundHandler(),
		ReadHeaderTimeout: time.Second,
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, srv, zap.NewNop()) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusNotFound
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}
