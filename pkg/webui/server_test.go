package webui

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamlens-dev/teamlens/pkg/skills"
	"github.com/teamlens-dev/teamlens/pkg/team"
)

func TestServerConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  ServerConfig
		wantErr bool
	}{
		{"valid", ServerConfig{Host: "localhost", Port: 8080}, false},
		{"empty host", ServerConfig{Host: "", Port: 8080}, true},
		{"port too low", ServerConfig{Host: "localhost", Port: 0}, true},
		{"port too high", ServerConfig{Host: "localhost", Port: 70000}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func newTestServer(t *testing.T, opts ...team.Option) (*Server, team.Paths) {
	t.Helper()
	dir := t.TempDir()
	paths := team.DefaultPaths(dir)

	require.NoError(t, os.WriteFile(paths.RosterFile, []byte(`# Team

## Members

| Name | Role | Status |
|------|------|--------|
| Linus | Backend | working |
| Rusty | Frontend | idle |
`), 0o644))
	require.NoError(t, os.MkdirAll(paths.LogDirs[0], 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(paths.LogDirs[0], "2026-03-01-api.md"),
		[]byte("## Metadata\n\n- **Date:** 2026-03-01\n- **Topic:** api\n\n## Who Worked\n\n- Linus\n"), 0o644))
	require.NoError(t, os.WriteFile(paths.DecisionsFile,
		[]byte("## 2026-03-01: Ship the API\n\nbody\n"), 0o644))

	server, err := NewServer(&ServerConfig{Host: "localhost", Port: 8080}, team.New(paths, opts...))
	require.NoError(t, err)
	return server, paths
}

func getJSON(t *testing.T, handler http.Handler, path string, out any) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if out != nil && rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

func TestNewServerRequiresAggregator(t *testing.T) {
	_, err := NewServer(&ServerConfig{Host: "localhost", Port: 8080}, nil)
	assert.Error(t, err)
}

func TestGetRoster(t *testing.T) {
	server, _ := newTestServer(t)

	var roster struct {
		Members []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"members"`
	}
	rec := getJSON(t, server.Handler(), "/api/roster", &roster)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Len(t, roster.Members, 2)
	assert.Equal(t, "Linus", roster.Members[0].Name)
	assert.Equal(t, "working", roster.Members[0].Status)
}

func TestGetTeamSnapshot(t *testing.T) {
	server, _ := newTestServer(t)

	var snap struct {
		Degraded  bool              `json:"degraded"`
		Decisions []json.RawMessage `json:"decisions"`
	}
	rec := getJSON(t, server.Handler(), "/api/team", &snap)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, snap.Degraded)
	assert.Len(t, snap.Decisions, 1)
}

func TestListLogsLimit(t *testing.T) {
	server, paths := newTestServer(t)
	for day := 2; day <= 4; day++ {
		name := fmt.Sprintf("2026-03-%02d-more.md", day)
		body := fmt.Sprintf("## Metadata\n\n- **Date:** 2026-03-%02d\n- **Topic:** more\n\n## Who Worked\n\n- Rusty\n", day)
		require.NoError(t, os.WriteFile(filepath.Join(paths.LogDirs[0], name), []byte(body), 0o644))
	}

	var resp struct {
		Entries []struct {
			Date string `json:"date"`
		} `json:"entries"`
		Total int `json:"total"`
	}
	rec := getJSON(t, server.Handler(), "/api/logs?limit=2", &resp)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 2, resp.Total)
	// most recent entries survive the limit
	assert.Equal(t, "2026-03-03", resp.Entries[0].Date)
	assert.Equal(t, "2026-03-04", resp.Entries[1].Date)
}

func TestListDecisions(t *testing.T) {
	server, _ := newTestServer(t)

	var resp struct {
		Decisions []struct {
			Title string `json:"title"`
			Date  string `json:"date"`
		} `json:"decisions"`
	}
	rec := getJSON(t, server.Handler(), "/api/decisions", &resp)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resp.Decisions, 1)
	assert.Equal(t, "Ship the API", resp.Decisions[0].Title)
	assert.Equal(t, "2026-03-01", resp.Decisions[0].Date)
}

func TestSkillCatalogAndInstall(t *testing.T) {
	catalogServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/catalog.json":
			fmt.Fprint(w, `[{"name":"Code Review","description":"review changes","source_url":"`+
				"http://"+r.Host+`/skills/code-review"}]`)
		case "/skills/code-review/instructions.md":
			fmt.Fprint(w, "# Code Review\n\nReview the diff.\n")
		default:
			http.NotFound(w, r)
		}
	}))
	defer catalogServer.Close()

	catalog := skills.NewCatalog(
		skills.WithSources(skills.Source{Name: "test", URL: catalogServer.URL + "/catalog.json"}),
		skills.WithHTTPClient(catalogServer.Client()),
	)
	server, _ := newTestServer(t, team.WithCatalog(catalog))
	handler := server.Handler()

	var listing struct {
		Skills []struct {
			Slug string `json:"slug"`
		} `json:"skills"`
	}
	rec := getJSON(t, handler, "/api/skills/catalog", &listing)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, listing.Skills, 1)
	assert.Equal(t, "code-review", listing.Skills[0].Slug)

	rec = getJSON(t, handler, "/api/skills/catalog?q=nothing-matches", &listing)
	require.Equal(t, http.StatusOK, rec.Code)

	install := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/api/skills/code-review", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, install().Code)
	assert.Equal(t, http.StatusConflict, install().Code, "second install conflicts")

	var installed struct {
		Skills []struct {
			Slug string `json:"slug"`
		} `json:"skills"`
	}
	rec = getJSON(t, handler, "/api/skills", &installed)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, installed.Skills, 1)
	assert.Equal(t, "code-review", installed.Skills[0].Slug)

	req := httptest.NewRequest("DELETE", "/api/skills/code-review", nil)
	del := httptest.NewRecorder()
	handler.ServeHTTP(del, req)
	require.Equal(t, http.StatusOK, del.Code)

	rec = getJSON(t, handler, "/api/skills", &installed)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, installed.Skills)
}

func TestInstallUnknownSkill(t *testing.T) {
	catalogServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer catalogServer.Close()

	catalog := skills.NewCatalog(
		skills.WithSources(skills.Source{Name: "test", URL: catalogServer.URL + "/catalog.json"}),
		skills.WithHTTPClient(catalogServer.Client()),
	)
	server, _ := newTestServer(t, team.WithCatalog(catalog))

	req := httptest.NewRequest("POST", "/api/skills/no-such-skill", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCORSPreflights(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest("OPTIONS", "/api/roster", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
