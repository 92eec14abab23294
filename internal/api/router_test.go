package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/datallboy/gorom/internal/api/controllers"
	"github.com/datallboy/gorom/internal/app"
	"github.com/datallboy/gorom/internal/domain"
	"github.com/datallboy/gorom/internal/infra/config"
	"github.com/datallboy/gorom/internal/infra/logger"
	"github.com/datallboy/gorom/internal/notify"
	"github.com/datallboy/gorom/internal/romm"
	"github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var games = map[string]romm.Game{
	"1": {ID: 1, Name: "Chrono Trigger", FsName: "Chrono Trigger (USA).sfc", FsNameNoExt: "Chrono Trigger (USA)", PlatformID: 5, PlatformSlug: "snes"},
	"2": {ID: 2, Name: "EarthBound", FsName: "EarthBound (USA).sfc", FsNameNoExt: "EarthBound (USA)", PlatformID: 5, PlatformSlug: "snes"},
}

// newRomM serves just enough of the RomM API for the engine and catalog.
func newRomM(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Path
		switch {
		case p == "/api/roms":
			list := []romm.Game{games["1"], games["2"]}
			json.NewEncoder(w).Encode(map[string]any{"items": list, "total": len(list)})
		case p == "/api/firmware":
			json.NewEncoder(w).Encode([]romm.Firmware{{ID: 9, FileName: "bios.bin", PlatformID: 5}})
		case strings.HasPrefix(p, "/api/firmware/9/content/"):
			io.WriteString(w, "bios")
		case strings.Contains(p, "/content/"):
			io.WriteString(w, "rom data for "+p)
		case strings.HasPrefix(p, "/api/roms/"):
			g, ok := games[strings.TrimPrefix(p, "/api/roms/")]
			if !ok {
				http.NotFound(w, r)
				return
			}
			json.NewEncoder(w).Encode(g)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

type fixture struct {
	e    *echo.Echo
	app  *app.Context
	root string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := newRomM(t)
	dir := t.TempDir()

	cfg, err := config.FromReader(strings.NewReader(`
romm:
  host: ` + srv.URL + `
download:
  root: ` + filepath.Join(dir, "roms") + `
  max_concurrent: 2
notifications:
  grace_period: 1h
store:
  driver: sqlite
  dsn: ` + filepath.Join(dir, "gorom.db") + `
`))
	require.NoError(t, err)

	a, closeFn, err := app.Bootstrap(cfg, logger.Discard(), notify.NewConsole(io.Discard))
	require.NoError(t, err)
	t.Cleanup(closeFn)

	e := echo.New()
	RegisterRoutes(e, a)
	return &fixture{e: e, app: a, root: cfg.Download.Root}
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) waitSession(t *testing.T, rec *httptest.ResponseRecorder) domain.SessionSnapshot {
	t.Helper()
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var resp controllers.SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := f.app.Engine.Wait(ctx, resp.SessionID)
	require.NoError(t, err)
	return snap
}

func TestDownloadGame(t *testing.T) {
	f := newFixture(t)

	snap := f.waitSession(t, f.do(t, http.MethodPost, "/api/downloads/games/1", ""))
	assert.Equal(t, domain.SessionIndividual, snap.Type)
	assert.Equal(t, 1, snap.Succeeded)

	got, err := os.ReadFile(filepath.Join(f.root, "snes", "Chrono Trigger (USA).sfc"))
	require.NoError(t, err)
	assert.Contains(t, string(got), "rom data for /api/roms/1/content/")

	rec := f.do(t, http.MethodGet, "/api/sessions/"+snap.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view controllers.SessionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.NotNil(t, view.Live)
	assert.Equal(t, 1, view.Live.Succeeded)

	rec = f.do(t, http.MethodGet, "/api/history?kind=game", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var history []domain.DownloadRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history, 1)
	assert.Equal(t, "Chrono Trigger", history[0].Name)
	assert.Equal(t, "snes", history[0].Platform)
}

func TestDownloadGames_Bulk(t *testing.T) {
	f := newFixture(t)

	snap := f.waitSession(t, f.do(t, http.MethodPost, "/api/downloads/games", `{"ids":[1,2]}`))
	assert.Equal(t, domain.SessionBulk, snap.Type)
	assert.Equal(t, 2, snap.Succeeded)

	rec := f.do(t, http.MethodGet, "/api/sessions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var sessions []domain.SessionSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sessions))
	assert.Len(t, sessions, 1)
}

func TestDownloadGames_Empty(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/downloads/games", `{"ids":[]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestDownloadGame_Unknown(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/downloads/games/77", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/downloads/games/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDownloadPlatform_MissingOnly(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, os.MkdirAll(filepath.Join(f.root, "snes"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "snes", "Chrono Trigger (USA).sfc"), []byte("x"), 0o644))

	rec := f.do(t, http.MethodPost, "/api/downloads/platforms/5?missing=true", "")
	var resp controllers.SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Queued)

	snap := f.waitSession(t, rec)
	require.Len(t, snap.Jobs, 1)
	assert.Equal(t, "EarthBound", snap.Jobs[0].DisplayName)
}

func TestDownloadFirmware(t *testing.T) {
	f := newFixture(t)

	snap := f.waitSession(t, f.do(t, http.MethodPost, "/api/downloads/firmware/5", ""))
	assert.Equal(t, 1, snap.Succeeded)
	assert.FileExists(t, filepath.Join(f.root, "firmware", "bios.bin"))
}

func TestCancel(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodDelete, "/api/jobs/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/downloads", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/actions/cancel_all", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/actions/pause", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionNotFound(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/sessions/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSettings(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/settings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var s controllers.SettingsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	assert.Equal(t, 2, s.MaxConcurrentDownloads)
	assert.Equal(t, f.root, s.DestinationRoot)

	rec = f.do(t, http.MethodPut, "/api/settings", `{"max_concurrent_downloads":6}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	assert.Equal(t, 6, s.MaxConcurrentDownloads)
	assert.Equal(t, 6, f.app.Settings.MaxConcurrentDownloads())

	rec = f.do(t, http.MethodPut, "/api/settings", `{"max_concurrent_downloads":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionHistory(t *testing.T) {
	f := newFixture(t)

	snap := f.waitSession(t, f.do(t, http.MethodPost, "/api/downloads/games/2", ""))

	require.Eventually(t, func() bool {
		rec := f.do(t, http.MethodGet, "/api/history/sessions", "")
		var recs []domain.SessionRecord
		if json.Unmarshal(rec.Body.Bytes(), &recs) != nil {
			return false
		}
		return len(recs) == 1 && recs[0].ID == snap.ID && recs[0].Succeeded == 1
	}, time.Second, 10*time.Millisecond)
}
