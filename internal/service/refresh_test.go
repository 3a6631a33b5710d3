package service

import (
	"context"
	"errors"
	"testing"

	"github.com/user/miroku/internal/apperr"
	"github.com/user/miroku/internal/model"
	"github.com/user/miroku/internal/testutil"
)

func credits(role model.Role, names ...string) []model.Credit {
	res := make([]model.Credit, 0, len(names))
	for i, n := range names {
		c := model.Credit{ID: i + 1, Role: role, Person: &model.Person{DisplayName: n}}
		if role == model.RoleCast {
			c.CastOrder = testutil.Int(i)
		}
		res = append(res, c)
	}
	return res
}

func people(names ...string) []model.CatalogPerson {
	res := make([]model.CatalogPerson, 0, len(names))
	for i, n := range names {
		res = append(res, person(i+1, n))
	}
	return res
}

func changed(d *RefreshDiff, field RefreshField) bool {
	for _, f := range d.Fields {
		if f.Field == field {
			return f.Changed
		}
	}
	return false
}

func TestComputeDiff(t *testing.T) {
	base := func() (*model.Movie, *model.CreditGroups, *model.CatalogMovie) {
		movie := &model.Movie{ID: 1, Snapshot: model.MovieSnapshot{
			Title:               "Title",
			ReleaseDate:         "2020-01-01",
			PosterPath:          "/p.jpg",
			ProductionCountries: []model.Country{{Code: "JP"}, {Code: "FR"}},
		}}
		stored := &model.CreditGroups{
			Directors: credits(model.RoleDirector, "X", "Y"),
			Writers:   credits(model.RoleWriter, "W"),
			Cast:      credits(model.RoleCast, "A", "B", "C"),
		}
		fetched := &model.CatalogMovie{
			Details: model.CatalogMovieDetails{
				Title:               "Title",
				ReleaseDate:         "2020-01-01",
				PosterPath:          "/p.jpg",
				ProductionCountries: []model.Country{{Code: "JP"}, {Code: "FR"}},
			},
			Directors: people("X", "Y"),
			Writers:   people("W"),
			Cast:      castList(people("A", "B", "C")...),
		}
		return movie, stored, fetched
	}

	tests := []struct {
		name   string
		mutate func(*model.Movie, *model.CatalogMovie)
		want   map[RefreshField]bool
	}{
		{
			name:   "identical",
			mutate: func(*model.Movie, *model.CatalogMovie) {},
			want:   map[RefreshField]bool{},
		},
		{
			name: "cast reordered",
			mutate: func(_ *model.Movie, f *model.CatalogMovie) {
				f.Cast = castList(people("B", "A", "C")...)
			},
			want: map[RefreshField]bool{FieldCast: true},
		},
		{
			name: "directors reordered",
			mutate: func(_ *model.Movie, f *model.CatalogMovie) {
				f.Directors = people("Y", "X")
			},
			want: map[RefreshField]bool{},
		},
		{
			name: "writer membership",
			mutate: func(_ *model.Movie, f *model.CatalogMovie) {
				f.Writers = people("W", "V")
			},
			want: map[RefreshField]bool{FieldWriters: true},
		},
		{
			name: "countries reordered",
			mutate: func(_ *model.Movie, f *model.CatalogMovie) {
				f.Details.ProductionCountries = []model.Country{{Code: "FR"}, {Code: "JP"}}
			},
			want: map[RefreshField]bool{FieldCountries: true},
		},
		{
			name: "title changed",
			mutate: func(_ *model.Movie, f *model.CatalogMovie) {
				f.Details.Title = "New Title"
			},
			want: map[RefreshField]bool{FieldTitle: true},
		},
		{
			name: "override does not affect diff",
			mutate: func(m *model.Movie, _ *model.CatalogMovie) {
				title := "Mine"
				m.Overrides.Title = &title
			},
			want: map[RefreshField]bool{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			movie, stored, fetched := base()
			tt.mutate(movie, fetched)
			diff := ComputeDiff(movie, stored, fetched)
			for _, f := range RefreshFields {
				if got := changed(diff, f); got != tt.want[f] {
					t.Errorf("%s changed = %v, want %v", f, got, tt.want[f])
				}
			}
		})
	}
}

func TestApplyFullyReplacesCreditField(t *testing.T) {
	ctx := context.Background()
	repos := testutil.Repos(t)
	user := testutil.SeedUser(t, repos, "a@example.com")
	movie := testutil.SeedMovie(t, repos, user.ID, 10, "Title")
	other := testutil.SeedMovie(t, repos, user.ID, 11, "Other")

	w1 := testutil.SeedPerson(t, repos, user.ID, 1, "W1")
	testutil.SeedCredit(t, repos, movie.ID, w1.ID, model.RoleWriter, nil)
	testutil.SeedCredit(t, repos, other.ID, w1.ID, model.RoleWriter, nil)

	catalog := newFakeCatalog()
	fetched := catalogMovie("Title")
	fetched.Writers = []model.CatalogPerson{person(2, "W2")}
	catalog.set(10, fetched)

	svc := NewRefreshService(repos, catalog, 0)
	res, err := svc.Apply(ctx, user.ID, movie.ID, []RefreshField{FieldWriters})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(res.Applied) != 1 || res.Applied[0] != FieldWriters {
		t.Fatalf("applied = %v", res.Applied)
	}

	g, _ := NewCreditService(repos).ListForMovie(ctx, user.ID, movie.ID)
	names := model.Names(g.Writers)
	if len(names) != 1 || names[0] != "W2" {
		t.Fatalf("writers = %v, want [W2]", names)
	}
	if _, err := repos.Person.Get(ctx, user.ID, w1.ID); err != nil {
		t.Fatalf("W1 person removed: %v", err)
	}
}

func TestApplyRenamesByExternalID(t *testing.T) {
	ctx := context.Background()
	repos := testutil.Repos(t)
	user := testutil.SeedUser(t, repos, "a@example.com")
	movie := testutil.SeedMovie(t, repos, user.ID, 10, "Title")
	ann := testutil.SeedPerson(t, repos, user.ID, 100, "Ann")
	testutil.SeedCredit(t, repos, movie.ID, ann.ID, model.RoleCast, testutil.Int(0))

	catalog := newFakeCatalog()
	fetched := catalogMovie("Title")
	fetched.Cast = castList(person(100, "アン"), person(101, "Bob"))
	catalog.set(10, fetched)

	svc := NewRefreshService(repos, catalog, 0)
	if _, err := svc.Apply(ctx, user.ID, movie.ID, RefreshFields); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	got, _ := repos.Person.Get(ctx, user.ID, ann.ID)
	if got.DisplayName != "アン" {
		t.Fatalf("display name = %q, want アン", got.DisplayName)
	}
	g, _ := NewCreditService(repos).ListForMovie(ctx, user.ID, movie.ID)
	if len(g.Cast) != 2 || g.Cast[0].PersonID != ann.ID {
		t.Fatalf("cast = %+v, want Ann first", g.Cast)
	}

	diff, err := svc.Diff(ctx, user.ID, movie.ID)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if diff.HasChanges() {
		t.Fatalf("diff after apply still changed: %v", diff.ChangedFields())
	}
}

func TestApplyKeepsOverrides(t *testing.T) {
	ctx := context.Background()
	repos := testutil.Repos(t)
	user := testutil.SeedUser(t, repos, "a@example.com")
	movie := testutil.SeedMovie(t, repos, user.ID, 10, "Old")
	title := "Mine"
	movie.Overrides.Title = &title
	if err := repos.Movie.UpdateOverrides(ctx, movie); err != nil {
		t.Fatalf("UpdateOverrides: %v", err)
	}

	catalog := newFakeCatalog()
	catalog.set(10, catalogMovie("New"))

	if _, err := NewRefreshService(repos, catalog, 0).Apply(ctx, user.ID, movie.ID, []RefreshField{FieldTitle}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	got, _ := repos.Movie.Get(ctx, user.ID, movie.ID)
	if got.Snapshot.Title != "New" || got.Title() != "Mine" {
		t.Fatalf("snapshot=%q effective=%q, want New and Mine", got.Snapshot.Title, got.Title())
	}
}

func TestApplyPartialFailure(t *testing.T) {
	ctx := context.Background()
	repos := testutil.Repos(t)
	user := testutil.SeedUser(t, repos, "a@example.com")
	movie := testutil.SeedMovie(t, repos, user.ID, 10, "Old")
	d := testutil.SeedPerson(t, repos, user.ID, 5, "D")
	testutil.SeedCredit(t, repos, movie.ID, d.ID, model.RoleDirector, nil)

	catalog := newFakeCatalog()
	fetched := catalogMovie("New")
	// 缺少名称的人物无法创建，导演字段整体回滚
	fetched.Directors = []model.CatalogPerson{person(6, "E"), {ExternalID: 7}}
	catalog.set(10, fetched)

	res, err := NewRefreshService(repos, catalog, 0).Apply(ctx, user.ID, movie.ID, []RefreshField{FieldDirectors, FieldTitle})
	if !errors.Is(err, apperr.ErrPartialFailure) {
		t.Fatalf("err = %v, want PartialFailure", err)
	}
	items := apperr.ItemsOf(err)
	if len(items) != 1 || items[0].Item != string(FieldDirectors) {
		t.Fatalf("items = %+v, want directors", items)
	}
	if len(res.Applied) != 1 || res.Applied[0] != FieldTitle {
		t.Fatalf("applied = %v, want [title]", res.Applied)
	}

	g, _ := NewCreditService(repos).ListForMovie(ctx, user.ID, movie.ID)
	if names := model.Names(g.Directors); len(names) != 1 || names[0] != "D" {
		t.Fatalf("directors = %v, want rollback to [D]", names)
	}
}

func TestApplyValidation(t *testing.T) {
	ctx := context.Background()
	repos := testutil.Repos(t)
	user := testutil.SeedUser(t, repos, "a@example.com")
	manual := testutil.SeedMovie(t, repos, user.ID, 0, "Manual")
	linked := testutil.SeedMovie(t, repos, user.ID, 10, "Linked")

	catalog := newFakeCatalog()
	catalog.errs[10] = apperr.Upstream(errors.New("boom"), "外部目录请求失败")
	svc := NewRefreshService(repos, catalog, 0)

	tests := []struct {
		name    string
		movieID int
		fields  []RefreshField
		want    error
	}{
		{"no fields", linked.ID, nil, apperr.ErrInvalidArgument},
		{"unknown field", linked.ID, []RefreshField{"budget"}, apperr.ErrInvalidArgument},
		{"manual movie", manual.ID, []RefreshField{FieldTitle}, apperr.ErrInvalidArgument},
		{"missing movie", 999, []RefreshField{FieldTitle}, apperr.ErrNotFound},
		{"upstream failure", linked.ID, []RefreshField{FieldTitle}, apperr.ErrUpstreamUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Apply(ctx, user.ID, tt.movieID, tt.fields); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRefreshAllContinuesOnError(t *testing.T) {
	ctx := context.Background()
	repos := testutil.Repos(t)
	user := testutil.SeedUser(t, repos, "a@example.com")
	m1 := testutil.SeedMovie(t, repos, user.ID, 1, "Old 1")
	m2 := testutil.SeedMovie(t, repos, user.ID, 2, "Old 2")
	m3 := testutil.SeedMovie(t, repos, user.ID, 3, "Old 3")
	testutil.SeedMovie(t, repos, user.ID, 0, "Manual")

	catalog := newFakeCatalog()
	catalog.set(1, catalogMovie("New 1"))
	catalog.errs[2] = apperr.Upstream(errors.New("timeout"), "外部目录请求失败")
	catalog.set(3, catalogMovie("New 3"))

	report, err := NewRefreshService(repos, catalog, 0).RefreshAll(ctx, user.ID)
	if err != nil {
		t.Fatalf("RefreshAll: %v", err)
	}
	if report.Total != 3 {
		t.Fatalf("total = %d, want 3", report.Total)
	}
	if len(report.Errors) != 1 || report.Errors[0].MovieID != m2.ID {
		t.Fatalf("errors = %+v, want one for movie %d", report.Errors, m2.ID)
	}
	if report.Updated != 2 {
		t.Fatalf("updated = %d, want 2", report.Updated)
	}

	for id, want := range map[int]string{m1.ID: "New 1", m3.ID: "New 3", m2.ID: "Old 2"} {
		got, _ := repos.Movie.Get(ctx, user.ID, id)
		if got.Snapshot.Title != want {
			t.Errorf("movie %d title = %q, want %q", id, got.Snapshot.Title, want)
		}
	}
}

func TestRefreshAllCancelled(t *testing.T) {
	repos := testutil.Repos(t)
	user := testutil.SeedUser(t, repos, "a@example.com")
	testutil.SeedMovie(t, repos, user.ID, 1, "One")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	catalog := newFakeCatalog()
	catalog.set(1, catalogMovie("One"))
	report, err := NewRefreshService(repos, catalog, 0).RefreshAll(ctx, user.ID)
	if err == nil && !report.Cancelled {
		t.Fatalf("report = %+v, want cancelled", report)
	}
}

func TestRefreshFetchesCurrentData(t *testing.T) {
	ctx := context.Background()
	repos := testutil.Repos(t)
	user := testutil.SeedUser(t, repos, "a@example.com")
	movie := testutil.SeedMovie(t, repos, user.ID, 10, "Old")

	catalog := newFakeCatalog()
	catalog.set(10, catalogMovie("New"))
	svc := NewRefreshService(repos, catalog, 0)

	if _, err := svc.Diff(ctx, user.ID, movie.ID); err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if _, err := svc.Apply(ctx, user.ID, movie.ID, []RefreshField{FieldTitle}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if catalog.fresh != 2 {
		t.Fatalf("uncached fetches = %d, want 2", catalog.fresh)
	}
}
