package service

import (
	"context"
	"errors"
	"testing"

	"github.com/user/miroku/internal/apperr"
	"github.com/user/miroku/internal/model"
	"github.com/user/miroku/internal/testutil"
)

func TestGroupCreditsOrdersCast(t *testing.T) {
	credits := []model.Credit{
		{ID: 5, Role: model.RoleCast, CastOrder: nil},
		{ID: 1, Role: model.RoleDirector},
		{ID: 2, Role: model.RoleCast, CastOrder: testutil.Int(3)},
		{ID: 3, Role: model.RoleCast, CastOrder: testutil.Int(0)},
		{ID: 4, Role: model.RoleCast, CastOrder: nil},
		{ID: 6, Role: model.RoleCast, CastOrder: testutil.Int(3)},
		{ID: 7, Role: model.RoleWriter},
	}

	g := GroupCredits(credits)
	var ids []int
	for _, c := range g.Cast {
		ids = append(ids, c.ID)
	}
	want := []int{3, 2, 6, 4, 5}
	if len(ids) != len(want) {
		t.Fatalf("cast ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("cast ids = %v, want %v", ids, want)
		}
	}
	if len(g.Directors) != 1 || len(g.Writers) != 1 {
		t.Fatalf("directors=%d writers=%d, want 1 and 1", len(g.Directors), len(g.Writers))
	}
}

func TestLinkUniqueness(t *testing.T) {
	ctx := context.Background()
	repos := testutil.Repos(t)
	user := testutil.SeedUser(t, repos, "a@example.com")
	movie := testutil.SeedMovie(t, repos, user.ID, 1, "One")
	p := testutil.SeedPerson(t, repos, user.ID, 0, "Ann")

	svc := NewCreditService(repos)
	in := LinkInput{MovieID: movie.ID, PersonID: p.ID, Role: model.RoleDirector}
	if _, err := svc.Link(ctx, user.ID, in); err != nil {
		t.Fatalf("first Link: %v", err)
	}
	if _, err := svc.Link(ctx, user.ID, in); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("second Link err = %v, want Conflict", err)
	}

	credits, _ := repos.Credit.ListForMovie(ctx, movie.ID)
	if len(credits) != 1 {
		t.Fatalf("got %d credits, want 1", len(credits))
	}

	// 同一人物在不同角色下可以各有一条
	in.Role = model.RoleWriter
	if _, err := svc.Link(ctx, user.ID, in); err != nil {
		t.Fatalf("Link as writer: %v", err)
	}
}

func TestLinkValidation(t *testing.T) {
	ctx := context.Background()
	repos := testutil.Repos(t)
	user := testutil.SeedUser(t, repos, "a@example.com")
	movie := testutil.SeedMovie(t, repos, user.ID, 1, "One")
	a := testutil.SeedPerson(t, repos, user.ID, 0, "A")
	b := testutil.SeedPerson(t, repos, user.ID, 0, "B")
	if _, err := NewMergeService(repos).Merge(ctx, user.ID, a.ID, b.ID); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	svc := NewCreditService(repos)
	tests := []struct {
		name string
		in   LinkInput
		want error
	}{
		{"order on director", LinkInput{MovieID: movie.ID, PersonID: b.ID, Role: model.RoleDirector, CastOrder: testutil.Int(1)}, apperr.ErrInvalidArgument},
		{"unknown role", LinkInput{MovieID: movie.ID, PersonID: b.ID, Role: "producer"}, apperr.ErrInvalidArgument},
		{"tombstoned person", LinkInput{MovieID: movie.ID, PersonID: a.ID, Role: model.RoleCast}, apperr.ErrInvalidArgument},
		{"missing movie", LinkInput{MovieID: 999, PersonID: b.ID, Role: model.RoleCast}, apperr.ErrNotFound},
		{"missing person", LinkInput{MovieID: movie.ID, PersonID: 999, Role: model.RoleCast}, apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Link(ctx, user.ID, tt.in); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLinkByNameReusesManualPerson(t *testing.T) {
	ctx := context.Background()
	repos := testutil.Repos(t)
	user := testutil.SeedUser(t, repos, "a@example.com")
	m1 := testutil.SeedMovie(t, repos, user.ID, 0, "One")
	m2 := testutil.SeedMovie(t, repos, user.ID, 0, "Two")

	svc := NewCreditService(repos)
	c1, err := svc.LinkByName(ctx, user.ID, m1.ID, model.RoleCast, " Ann ", testutil.Int(0))
	if err != nil {
		t.Fatalf("LinkByName: %v", err)
	}
	c2, err := svc.LinkByName(ctx, user.ID, m2.ID, model.RoleCast, "Ann", nil)
	if err != nil {
		t.Fatalf("LinkByName: %v", err)
	}
	if c1.PersonID != c2.PersonID {
		t.Fatalf("person ids %d and %d, want the same person", c1.PersonID, c2.PersonID)
	}
}

func TestRelinkConflict(t *testing.T) {
	ctx := context.Background()
	repos := testutil.Repos(t)
	user := testutil.SeedUser(t, repos, "a@example.com")
	movie := testutil.SeedMovie(t, repos, user.ID, 1, "One")
	a := testutil.SeedPerson(t, repos, user.ID, 0, "A")
	b := testutil.SeedPerson(t, repos, user.ID, 0, "B")
	c := testutil.SeedPerson(t, repos, user.ID, 0, "C")
	ca := testutil.SeedCredit(t, repos, movie.ID, a.ID, model.RoleCast, nil)
	testutil.SeedCredit(t, repos, movie.ID, b.ID, model.RoleCast, nil)

	svc := NewCreditService(repos)
	if err := svc.Relink(ctx, user.ID, ca.ID, b.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("Relink err = %v, want Conflict", err)
	}
	if err := svc.Relink(ctx, user.ID, ca.ID, c.ID); err != nil {
		t.Fatalf("Relink: %v", err)
	}
	got, _ := repos.Credit.Get(ctx, ca.ID)
	if got.PersonID != c.ID {
		t.Fatalf("credit person = %d, want %d", got.PersonID, c.ID)
	}
}

func TestUnlinkScopedToOwner(t *testing.T) {
	ctx := context.Background()
	repos := testutil.Repos(t)
	user := testutil.SeedUser(t, repos, "a@example.com")
	other := testutil.SeedUser(t, repos, "b@example.com")
	movie := testutil.SeedMovie(t, repos, user.ID, 1, "One")
	p := testutil.SeedPerson(t, repos, user.ID, 0, "A")
	credit := testutil.SeedCredit(t, repos, movie.ID, p.ID, model.RoleCast, nil)

	svc := NewCreditService(repos)
	if err := svc.Unlink(ctx, other.ID, credit.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("Unlink by other owner err = %v, want NotFound", err)
	}
	if err := svc.Unlink(ctx, user.ID, credit.ID); err != nil {
		t.Fatalf("Unlink: %v", err)
	}
}

func TestUnlinkAllByRole(t *testing.T) {
	ctx := context.Background()
	repos := testutil.Repos(t)
	user := testutil.SeedUser(t, repos, "a@example.com")
	movie := testutil.SeedMovie(t, repos, user.ID, 1, "One")
	p := testutil.SeedPerson(t, repos, user.ID, 0, "A")
	testutil.SeedCredit(t, repos, movie.ID, p.ID, model.RoleCast, nil)
	testutil.SeedCredit(t, repos, movie.ID, p.ID, model.RoleDirector, nil)

	svc := NewCreditService(repos)
	role := model.RoleCast
	if err := svc.UnlinkAll(ctx, user.ID, movie.ID, &role); err != nil {
		t.Fatalf("UnlinkAll: %v", err)
	}
	g, _ := svc.ListForMovie(ctx, user.ID, movie.ID)
	if len(g.Cast) != 0 || len(g.Directors) != 1 {
		t.Fatalf("cast=%d directors=%d, want 0 and 1", len(g.Cast), len(g.Directors))
	}
}
