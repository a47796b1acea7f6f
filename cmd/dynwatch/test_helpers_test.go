package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"dynwatch/internal/dynamic"
	"dynwatch/internal/testsupport"
)

// fakePlatform serves the feed, live-status, and profile endpoints for a fixed
// set of creators.
type fakePlatform struct {
	feeds map[int64][]dynamic.RawItem
	names map[int64]string
	rooms map[int64]dynamic.LiveRoom
}

func (p *fakePlatform) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var mid int64
	switch r.URL.Path {
	case "/x/polymer/web-dynamic/v1/feed/space":
		fmt.Sscan(r.URL.Query().Get("host_mid"), &mid)
		writeEnvelope(w, 0, map[string]any{"items": p.feeds[mid]})
	case "/x/space/acc/info":
		fmt.Sscan(r.URL.Query().Get("mid"), &mid)
		name, ok := p.names[mid]
		if !ok {
			writeEnvelope(w, -404, nil)
			return
		}
		writeEnvelope(w, 0, map[string]any{"mid": mid, "name": name})
	case "/room/v1/Room/get_status_info_by_uids":
		rooms := map[string]dynamic.LiveRoom{}
		for _, raw := range r.URL.Query()["uids[]"] {
			fmt.Sscan(raw, &mid)
			if room, ok := p.rooms[mid]; ok {
				rooms[raw] = room
			}
		}
		writeEnvelope(w, 0, rooms)
	default:
		http.NotFound(w, r)
	}
}

func writeEnvelope(w http.ResponseWriter, code int, data any) {
	_ = json.NewEncoder(w).Encode(map[string]any{"code": code, "message": "", "data": data})
}

type ntfyRecorder struct {
	mu     sync.Mutex
	topics []string
	bodies []string
}

func (n *ntfyRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	n.mu.Lock()
	n.topics = append(n.topics, strings.TrimPrefix(r.URL.Path, "/"))
	n.bodies = append(n.bodies, string(body))
	n.mu.Unlock()
}

func (n *ntfyRecorder) sent() ([]string, []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.topics...), append([]string(nil), n.bodies...)
}

type cliTestEnv struct {
	platform   *fakePlatform
	ntfy       *ntfyRecorder
	configPath string
	dataDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("DYNWATCH_SESSDATA", "")
	t.Setenv("DYNWATCH_API_TOKEN", "")

	platform := &fakePlatform{
		feeds: map[int64][]dynamic.RawItem{
			42: {
				testsupport.Post("300", testsupport.Author(42, "Alice"), testsupport.Summary("third post")),
				testsupport.Post("200", testsupport.Author(42, "Alice")),
			},
			7: {},
		},
		names: map[int64]string{42: "Alice", 7: "Quiet"},
		rooms: map[int64]dynamic.LiveRoom{
			42: {UID: 42, UserName: "Alice", Title: "late stream", RoomID: 9000, LiveStatus: dynamic.LiveOn},
		},
	}
	platformSrv := httptest.NewServer(platform)
	t.Cleanup(platformSrv.Close)

	ntfy := &ntfyRecorder{}
	ntfySrv := httptest.NewServer(ntfy)
	t.Cleanup(ntfySrv.Close)

	env := &cliTestEnv{
		platform:   platform,
		ntfy:       ntfy,
		configPath: filepath.Join(homeDir, ".config", "dynwatch", "config.toml"),
		dataDir:    filepath.Join(base, "data"),
	}
	if err := os.MkdirAll(filepath.Dir(env.configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q
render_dir = %q

[platform]
feed_base_url = %q
live_base_url = %q
requests_per_second = 0
max_retries = 0

[notifications]
ntfy_server = %q
rich = false

[logging]
format = "json"
level = "error"
`, env.dataDir, filepath.Join(base, "logs"), filepath.Join(base, "cards"), platformSrv.URL, platformSrv.URL, ntfySrv.URL)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
