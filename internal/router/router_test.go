package router_test

import (
	"bytes"
	"context"
	"encoding/gob"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"github.com/user/miroku/internal/apperr"
	"github.com/user/miroku/internal/config"
	"github.com/user/miroku/internal/handler"
	"github.com/user/miroku/internal/middleware"
	"github.com/user/miroku/internal/model"
	"github.com/user/miroku/internal/router"
	"github.com/user/miroku/internal/testutil"
)

const secret = "test-secret"

type stubCatalog struct {
	movies map[int]*model.CatalogMovie
}

func (s *stubCatalog) FetchMovie(_ context.Context, id int) (*model.CatalogMovie, error) {
	if m, ok := s.movies[id]; ok {
		return m, nil
	}
	if id == 500 {
		return nil, apperr.Upstream(nil, "外部目录请求失败")
	}
	return nil, apperr.NotFound("外部目录中不存在电影 %d", id)
}

func (s *stubCatalog) Search(_ context.Context, query string, page int) (*model.CatalogSearchPage, error) {
	return &model.CatalogSearchPage{
		Page:    page,
		Results: []model.CatalogSearchResult{{ID: 42, Title: query}},
	}, nil
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Success bool            `json:"success"`
}

type testServer struct {
	t       *testing.T
	engine  *gin.Engine
	catalog *stubCatalog
}

func newServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	gob.Register(model.SessionUser{})
	if err := handler.RegisterValidators(); err != nil {
		t.Fatalf("RegisterValidators: %v", err)
	}

	order := 0
	catalog := &stubCatalog{movies: map[int]*model.CatalogMovie{
		42: {
			Details:   model.CatalogMovieDetails{ID: 42, Title: "Tokyo Story", ReleaseDate: "1953-11-03", ProductionCountries: []model.Country{}},
			Directors: []model.CatalogPerson{{ExternalID: 1, Name: "Ozu", DisplayName: "Ozu"}},
			Writers:   []model.CatalogPerson{},
			Cast:      []model.CatalogPerson{{ExternalID: 2, Name: "Hara", DisplayName: "Hara", Order: &order}},
		},
	}}
	cfg := &config.Config{AppSecret: secret, JWTExpiry: time.Hour}

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(sessions.Sessions("miroku_session", cookie.NewStore([]byte(secret))))
	router.RegisterRoutes(r, handler.NewHandler(testutil.Repos(t), cfg, catalog))
	return &testServer{t: t, engine: r, catalog: catalog}
}

func (s *testServer) do(method, path, token string, body interface{}) (int, envelope) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			s.t.Fatalf("%s %s: decode %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w.Code, env
}

func (s *testServer) register(email string) string {
	s.t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBufferString(
		`{"email":"`+email+`","password":"secret1","confirm_password":"secret1"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		s.t.Fatalf("register: %d %s", w.Code, w.Body.String())
	}
	auth := w.Header().Get("Authorization")
	if len(auth) <= len("Bearer ") {
		s.t.Fatalf("register: no token in %q", auth)
	}
	return auth[len("Bearer "):]
}

func (s *testServer) importMovie(token string, externalID int) int {
	s.t.Helper()
	code, env := s.do(http.MethodPost, "/api/movies/import", token, map[string]int{"external_id": externalID})
	if code != http.StatusCreated {
		s.t.Fatalf("import: %d %s", code, env.Message)
	}
	var res struct {
		Movie struct {
			ID int `json:"id"`
		} `json:"movie"`
	}
	if err := json.Unmarshal(env.Data, &res); err != nil {
		s.t.Fatalf("decode import: %v", err)
	}
	return res.Movie.ID
}

func TestAuthRequired(t *testing.T) {
	s := newServer(t)
	if code, _ := s.do(http.MethodGet, "/api/movies", "", nil); code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", code)
	}
	if code, _ := s.do(http.MethodGet, "/api/movies", "not-a-token", nil); code != http.StatusUnauthorized {
		t.Fatalf("bad token status = %d, want 401", code)
	}
	if code, _ := s.do(http.MethodGet, "/health", "", nil); code != http.StatusOK {
		t.Fatalf("health status = %d", code)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	s := newServer(t)
	token := s.register("a@example.com")

	code, env := s.do(http.MethodGet, "/api/me", token, nil)
	if code != http.StatusOK {
		t.Fatalf("me: %d %s", code, env.Message)
	}

	if code, _ := s.do(http.MethodPost, "/auth/register", "", map[string]string{
		"email": "a@example.com", "password": "secret1", "confirm_password": "secret1",
	}); code != http.StatusConflict {
		t.Fatalf("duplicate register = %d, want 409", code)
	}
	if code, _ := s.do(http.MethodPost, "/auth/login", "", map[string]string{
		"email": "a@example.com", "password": "wrong-pass",
	}); code != http.StatusUnauthorized {
		t.Fatalf("wrong password = %d, want 401", code)
	}
	if code, _ := s.do(http.MethodPost, "/auth/login", "", map[string]string{
		"email": "a@example.com", "password": "secret1",
	}); code != http.StatusOK {
		t.Fatalf("login = %d, want 200", code)
	}
}

func TestImportErrorsMapToStatus(t *testing.T) {
	s := newServer(t)
	token := s.register("a@example.com")
	s.importMovie(token, 42)

	tests := []struct {
		name string
		body interface{}
		want int
	}{
		{"already added", map[string]int{"external_id": 42}, http.StatusConflict},
		{"unknown", map[string]int{"external_id": 7}, http.StatusNotFound},
		{"upstream", map[string]int{"external_id": 500}, http.StatusBadGateway},
		{"invalid", map[string]int{"external_id": 0}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, env := s.do(http.MethodPost, "/api/movies/import", token, tt.body); code != tt.want {
				t.Fatalf("status = %d (%s), want %d", code, env.Message, tt.want)
			}
		})
	}
}

func TestOwnerIsolation(t *testing.T) {
	s := newServer(t)
	alice := s.register("alice@example.com")
	bob := s.register("bob@example.com")
	id := s.importMovie(alice, 42)

	path := "/api/movies/" + strconv.Itoa(id)
	if code, _ := s.do(http.MethodGet, path, bob, nil); code != http.StatusNotFound {
		t.Fatalf("other owner status = %d, want 404", code)
	}
	if code, _ := s.do(http.MethodGet, path, alice, nil); code != http.StatusOK {
		t.Fatalf("owner status = %d, want 200", code)
	}
}

func TestRefreshEndpoints(t *testing.T) {
	s := newServer(t)
	token := s.register("a@example.com")
	id := s.importMovie(token, 42)
	path := "/api/movies/" + strconv.Itoa(id) + "/refresh"

	if code, _ := s.do(http.MethodPost, path, token, map[string][]string{"fields": {"runtime"}}); code != http.StatusBadRequest {
		t.Fatalf("unknown field status = %d, want 400", code)
	}

	// 标题成功、演员表因缺少名称失败
	m := s.catalog.movies[42]
	m.Details.Title = "Tokyo Story (Restored)"
	m.Cast = []model.CatalogPerson{{ExternalID: 3}}

	code, env := s.do(http.MethodGet, path, token, nil)
	if code != http.StatusOK {
		t.Fatalf("diff status = %d", code)
	}
	var diff struct {
		Fields []struct {
			Field   string `json:"field"`
			Changed bool   `json:"changed"`
		} `json:"fields"`
	}
	if err := json.Unmarshal(env.Data, &diff); err != nil {
		t.Fatalf("decode diff: %v", err)
	}
	changed := map[string]bool{}
	for _, f := range diff.Fields {
		changed[f.Field] = f.Changed
	}
	if !changed["title"] || !changed["cast"] || changed["directors"] {
		t.Fatalf("changed = %v", changed)
	}

	code, env = s.do(http.MethodPost, path, token, map[string][]string{"fields": {"title", "cast"}})
	if code != http.StatusMultiStatus {
		t.Fatalf("apply status = %d (%s), want 207", code, env.Message)
	}

	code, env = s.do(http.MethodPost, "/api/refresh/all", token, nil)
	if code != http.StatusOK {
		t.Fatalf("refresh all status = %d", code)
	}
	var report struct {
		Total  int `json:"total"`
		Failed int `json:"failed"`
	}
	if err := json.Unmarshal(env.Data, &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Total != 1 || report.Failed != 1 {
		t.Fatalf("report = %+v", report)
	}
}

func TestMergeEndpoint(t *testing.T) {
	s := newServer(t)
	token := s.register("a@example.com")
	s.importMovie(token, 42)

	code, env := s.do(http.MethodPost, "/api/persons", token, map[string]string{"name": "Ozu (manual)"})
	if code != http.StatusCreated {
		t.Fatalf("create person: %d %s", code, env.Message)
	}
	var manual model.Person
	if err := json.Unmarshal(env.Data, &manual); err != nil {
		t.Fatalf("decode person: %v", err)
	}

	code, env = s.do(http.MethodGet, "/api/persons", token, nil)
	if code != http.StatusOK {
		t.Fatalf("list persons: %d", code)
	}
	var persons []model.PersonUsage
	if err := json.Unmarshal(env.Data, &persons); err != nil {
		t.Fatalf("decode persons: %v", err)
	}
	var ozu int
	for _, p := range persons {
		if p.DisplayName == "Ozu" {
			ozu = p.ID
		}
	}
	if ozu == 0 {
		t.Fatalf("Ozu not listed: %+v", persons)
	}

	mergePath := "/api/persons/" + strconv.Itoa(ozu) + "/merge"
	if code, _ := s.do(http.MethodPost, mergePath, token, map[string]int{"target_id": ozu}); code != http.StatusBadRequest {
		t.Fatalf("self merge = %d, want 400", code)
	}
	if code, _ := s.do(http.MethodPost, mergePath, token, map[string]int{"target_id": 9999}); code != http.StatusNotFound {
		t.Fatalf("missing target = %d, want 404", code)
	}
	if code, env := s.do(http.MethodPost, mergePath, token, map[string]int{"target_id": manual.ID}); code != http.StatusOK {
		t.Fatalf("merge = %d (%s)", code, env.Message)
	}
	if code, _ := s.do(http.MethodPost, mergePath, token, map[string]int{"target_id": manual.ID}); code != http.StatusBadRequest {
		t.Fatalf("merge tombstone = %d, want 400", code)
	}
}

func TestCatalogProxy(t *testing.T) {
	s := newServer(t)
	token := s.register("a@example.com")
	if code, _ := s.do(http.MethodGet, "/catalog/search?query=ozu", token, nil); code != http.StatusOK {
		t.Fatalf("search = %d", code)
	}
	if code, _ := s.do(http.MethodGet, "/catalog/movie/7", token, nil); code != http.StatusNotFound {
		t.Fatalf("missing movie = %d, want 404", code)
	}
}
