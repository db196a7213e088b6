package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluekitapp/bluekit-backend/internal/eventbus"
	"github.com/bluekitapp/bluekit-backend/internal/project"
	"github.com/bluekitapp/bluekit-backend/internal/service"
	"github.com/bluekitapp/bluekit-backend/internal/validation"
	"github.com/bluekitapp/bluekit-backend/internal/watch"
)

// testServer wraps the API server with the collaborators tests poke at.
type testServer struct {
	*Server
	api     humatest.TestAPI
	bus     *eventbus.Bus
	manager *watch.Manager
	home    string
}

// envelope mirrors the response envelope for decoding.
type envelope struct {
	V       int             `json:"v"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Details map[string]any  `json:"details"`
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	home, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	bus := eventbus.New(logger)
	ctx, cancel := context.WithCancel(context.Background())
	bus.Start(ctx)

	manager, err := watch.NewManager(logger, bus, watch.Options{})
	require.NoError(t, err)

	store := project.NewStore(home, logger)
	validator := validation.New()

	services := &Services{
		Project: service.NewProjectService(store, validator, logger, "test"),
		Watch:   service.NewWatchService(manager, store, validator, logger),
	}

	srv := NewServer(services, bus, Options{
		Version:     "test",
		CORSOrigins: []string{"tauri://localhost"},
	}, logger)

	t.Cleanup(func() {
		_ = manager.Close()
		_ = bus.Shutdown(context.Background())
		cancel()
		srv.Close()
	})

	return &testServer{
		Server:  srv,
		api:     humatest.Wrap(t, srv.API()),
		bus:     bus,
		manager: manager,
		home:    home,
	}
}

func decode(t *testing.T, resp *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env), "body: %s", resp.Body.String())
	assert.Equal(t, EnvelopeVersion, env.V)
	return env
}

func decodeData[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()
	env := decode(t, resp)
	require.True(t, env.Success, "body: %s", resp.Body.String())
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

// newProject creates <dir>/.bluekit/kits with the given files.
func newProject(t *testing.T, files ...string) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(project.KitsDir(dir), 0o755))
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(project.KitsDir(dir), f), []byte("# "+f), 0o644))
	}
	return dir
}

func TestHealthCheck(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	health := decodeData[HealthResponse](t, resp)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "healthy", health.Components["eventbus"].Status)
	assert.Equal(t, "backend fsnotify", health.Components["watch"].Message)
	assert.Zero(t, health.Watches)
}

func TestHealthCheck_BusShutDown(t *testing.T) {
	ts := setupTestServer(t)
	require.NoError(t, ts.bus.Shutdown(context.Background()))

	health := decodeData[HealthResponse](t, ts.api.Get("/health"))
	assert.Equal(t, "unhealthy", health.Status)
	assert.Equal(t, "unhealthy", health.Components["eventbus"].Status)
}

func TestPing(t *testing.T) {
	ts := setupTestServer(t)

	out := decodeData[struct {
		Message string `json:"message"`
	}](t, ts.api.Get("/api/v1/ping"))
	assert.Equal(t, "pong", out.Message)
}

func TestAppInfo(t *testing.T) {
	ts := setupTestServer(t)

	info := decodeData[service.AppInfo](t, ts.api.Get("/api/v1/app"))
	assert.Equal(t, "bluekit", info.Name)
	assert.Equal(t, "test", info.Version)
	assert.Equal(t, ts.home, info.Home)
}

func TestRegistry(t *testing.T) {
	ts := setupTestServer(t)

	t.Run("missing file is an empty object", func(t *testing.T) {
		resp := ts.api.Get("/api/v1/registry")
		require.Equal(t, http.StatusOK, resp.Code)
		assert.JSONEq(t, `{}`, string(decode(t, resp).Data))
	})

	t.Run("returns the document", func(t *testing.T) {
		doc := `[{"path":"/work/app","name":"app"}]`
		require.NoError(t, os.WriteFile(filepath.Join(ts.home, project.RegistryFileName), []byte(doc), 0o644))

		resp := ts.api.Get("/api/v1/registry")
		require.Equal(t, http.StatusOK, resp.Code)
		assert.JSONEq(t, doc, string(decode(t, resp).Data))
	})

	t.Run("invalid JSON is internal", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(ts.home, project.RegistryFileName), []byte("{"), 0o644))

		resp := ts.api.Get("/api/v1/registry")
		assert.Equal(t, http.StatusInternalServerError, resp.Code)
		env := decode(t, resp)
		assert.False(t, env.Success)
		assert.Equal(t, "INTERNAL", env.Code)
	})
}

func TestListKits(t *testing.T) {
	ts := setupTestServer(t)
	dir := newProject(t, "b.md", "a.md")

	resp := ts.api.Get("/api/v1/projects/kits?project_path=" + dir)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, []string{"a.md", "b.md"}, decodeData[NamesResponse](t, resp).Names)

	// Missing directories list as empty.
	resp = ts.api.Get("/api/v1/projects/scrapbook?project_path=" + dir)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, decodeData[NamesResponse](t, resp).Names)
}

func TestListKits_Validation(t *testing.T) {
	ts := setupTestServer(t)

	t.Run("missing query parameter", func(t *testing.T) {
		resp := ts.api.Get("/api/v1/projects/kits")
		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
		assert.Equal(t, "VALIDATION", decode(t, resp).Code)
	})

	t.Run("relative path", func(t *testing.T) {
		resp := ts.api.Get("/api/v1/projects/kits?project_path=relative/dir")
		assert.Equal(t, http.StatusBadRequest, resp.Code)
		env := decode(t, resp)
		assert.Equal(t, "VALIDATION", env.Code)
		assert.Equal(t, "must be an absolute path", env.Details["project_path"])
	})
}

func TestReadFileAndMarkdownFolder(t *testing.T) {
	ts := setupTestServer(t)
	dir := newProject(t, "guide.md", "notes.txt")
	kits := project.KitsDir(dir)

	resp := ts.api.Get("/api/v1/files?path=" + filepath.Join(kits, "guide.md"))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "# guide.md", decodeData[ContentResponse](t, resp).Content)

	resp = ts.api.Get("/api/v1/files?path=" + filepath.Join(kits, "gone.md"))
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "NOT_FOUND", decode(t, resp).Code)

	resp = ts.api.Get("/api/v1/folders/markdown?path=" + kits)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, []string{"guide.md"}, decodeData[NamesResponse](t, resp).Names)
}

func TestCopyKitAndBlueprint(t *testing.T) {
	ts := setupTestServer(t)
	dir := newProject(t)

	globalKits := filepath.Join(ts.home, project.KitsDirName)
	require.NoError(t, os.MkdirAll(globalKits, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(globalKits, "auth.md"), []byte("# auth"), 0o644))

	blueprint := filepath.Join(ts.home, project.BlueprintsDirName, "saas")
	require.NoError(t, os.MkdirAll(blueprint, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(blueprint, "task-1.md"), []byte("do it"), 0o644))

	resp := ts.api.Post("/api/v1/kits/copy", map[string]any{"kit_name": "auth.md", "project_path": dir})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	assert.Equal(t, filepath.Join(project.KitsDir(dir), "auth.md"), decodeData[CopyResponse](t, resp).Path)

	resp = ts.api.Post("/api/v1/blueprints/copy", map[string]any{"blueprint_id": "saas", "project_path": dir})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	resp = ts.api.Get(fmt.Sprintf("/api/v1/projects/blueprints/task?project_path=%s&blueprint_id=saas&task_file=task-1.md", dir))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "do it", decodeData[ContentResponse](t, resp).Content)

	resp = ts.api.Post("/api/v1/kits/copy", map[string]any{"kit_name": "../escape.md", "project_path": dir})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestWatchLifecycle(t *testing.T) {
	ts := setupTestServer(t)
	file := filepath.Join(newProject(t, "a.md"), "registry.json")
	require.NoError(t, os.WriteFile(file, []byte("{}"), 0o644))

	resp := ts.api.Post("/api/v1/watches/file", map[string]any{"path": file, "channel": "registry"})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	info := decodeData[service.WatchInfo](t, resp)
	assert.True(t, strings.HasPrefix(info.ID, "watch"))
	assert.Equal(t, "file", info.Mode)
	assert.Equal(t, file, info.Root)
	assert.Equal(t, "registry", info.Channel)

	list := decodeData[ListWatchesResponse](t, ts.api.Get("/api/v1/watches"))
	require.Len(t, list.Watches, 1)
	assert.Equal(t, info.ID, list.Watches[0].ID)

	resp = ts.api.Get("/api/v1/watches/" + info.ID)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Delete("/api/v1/watches/" + info.ID)
	assert.Equal(t, http.StatusNoContent, resp.Code)

	resp = ts.api.Get("/api/v1/watches/" + info.ID)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = ts.api.Delete("/api/v1/watches/" + info.ID)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestWatchDirectory_DefaultsSuffix(t *testing.T) {
	ts := setupTestServer(t)
	dir := newProject(t)

	resp := ts.api.Post("/api/v1/watches/directory", map[string]any{"path": dir, "channel": "tree"})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	info := decodeData[service.WatchInfo](t, resp)
	assert.Equal(t, "directory", info.Mode)
	assert.Equal(t, watch.DefaultSuffix, info.Suffix)
}

func TestWatchDirectory_SetupFailure(t *testing.T) {
	ts := setupTestServer(t)
	missing := filepath.Join(newProject(t), "does-not-exist")

	resp := ts.api.Post("/api/v1/watches/directory", map[string]any{"path": missing, "channel": "tree"})
	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)

	env := decode(t, resp)
	assert.False(t, env.Success)
	assert.Equal(t, "WATCH_SETUP", env.Code)
	assert.Equal(t, missing, env.Details["root"])
	assert.Equal(t, "fsnotify", env.Details["backend"])
	assert.NotEmpty(t, env.Details["reason"])

	assert.Empty(t, ts.manager.Handles())
}

func TestWatchProjectKits(t *testing.T) {
	ts := setupTestServer(t)

	t.Run("kits directory must exist", func(t *testing.T) {
		dir, err := filepath.EvalSymlinks(t.TempDir())
		require.NoError(t, err)

		resp := ts.api.Post("/api/v1/watches/project-kits", map[string]any{"project_path": dir})
		assert.Equal(t, http.StatusNotFound, resp.Code)
	})

	t.Run("watches the kits directory", func(t *testing.T) {
		dir := newProject(t)

		resp := ts.api.Post("/api/v1/watches/project-kits", map[string]any{"project_path": dir})
		require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

		info := decodeData[service.WatchInfo](t, resp)
		assert.Equal(t, project.KitsDir(dir), info.Root)
		assert.Equal(t, service.ChannelProjectKitsChanged, info.Channel)
	})
}

func TestWatchFile_PublishesToBus(t *testing.T) {
	ts := setupTestServer(t)
	file := filepath.Join(newProject(t), "notes.md")
	require.NoError(t, os.WriteFile(file, []byte("v1"), 0o644))

	sub, err := ts.bus.Subscribe("notes")
	require.NoError(t, err)

	resp := ts.api.Post("/api/v1/watches/file", map[string]any{"path": file, "channel": "notes"})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	require.NoError(t, os.WriteFile(file, []byte("v2"), 0o644))

	select {
	case ev := <-sub.Events:
		assert.Equal(t, "notes", ev.Channel)
		assert.JSONEq(t, "null", string(ev.Payload))
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for file notification")
	}
}

func TestRateLimitWrites(t *testing.T) {
	ts := setupTestServer(t)

	limited := 0
	for range writeBurst + 10 {
		resp := ts.api.Post("/api/v1/watches/file", map[string]any{"path": "relative", "channel": "x"})
		if resp.Code == http.StatusTooManyRequests {
			limited++
			assert.Equal(t, codeRateLimited, decode(t, resp).Code)
		}
	}
	assert.Positive(t, limited)

	// Reads are never limited.
	assert.Equal(t, http.StatusOK, ts.api.Get("/api/v1/watches").Code)
}

func TestCORSPreflight(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Do(http.MethodOptions, "/api/v1/watches/file",
		"Origin: tauri://localhost",
		"Access-Control-Request-Method: POST",
	)
	assert.Equal(t, "tauri://localhost", resp.Header().Get("Access-Control-Allow-Origin"))

	resp = ts.api.Do(http.MethodOptions, "/api/v1/watches/file",
		"Origin: https://evil.example",
		"Access-Control-Request-Method: POST",
	)
	assert.Empty(t, resp.Header().Get("Access-Control-Allow-Origin"))
}

func TestEventStreamRoute(t *testing.T) {
	ts := setupTestServer(t)
	httpSrv := httptest.NewServer(ts.Server)
	defer httpSrv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, httpSrv.URL+eventsPath+"?channel=notes", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: connected\n", line)
}
