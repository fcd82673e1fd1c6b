package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"impactflow/api/internal/models"
)

func testGateway(t *testing.T) *Gateway {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db.json")
	file, err := OpenFileStore(path, CollectionNames()...)
	if err != nil {
		t.Fatalf("open file store: %v", err)
	}
	sel := NewSelector(nil, 0, zerolog.Nop())
	return NewGateway(nil, file, sel)
}

func TestSelectorWithoutClientNeverLive(t *testing.T) {
	sel := NewSelector(nil, 0, zerolog.Nop())
	if sel.Live() {
		t.Fatal("selector live with no client")
	}
	sel.Stop() // must not block or panic
}

func TestCreateAssignsIDAndCreatedAt(t *testing.T) {
	gw := testGateway(t)
	ctx := context.Background()

	before := time.Now().Add(-time.Second)
	user, err := gw.Users.Create(ctx, models.User{Name: "Ada", Email: "ada@example.org"})
	if err != nil {
		t.Fatal(err)
	}

	if user.ID == "" {
		t.Fatal("no id assigned")
	}
	if user.CreatedAt.Before(before) {
		t.Fatalf("createdAt not set: %v", user.CreatedAt)
	}
}

func TestCreateKeepsProvidedID(t *testing.T) {
	gw := testGateway(t)
	ctx := context.Background()

	user, err := gw.Users.Create(ctx, models.User{ID: "fixed", Email: "x@example.org"})
	if err != nil {
		t.Fatal(err)
	}
	if user.ID != "fixed" {
		t.Fatalf("provided id replaced: %s", user.ID)
	}
}

func TestFindByIDRoundTrip(t *testing.T) {
	gw := testGateway(t)
	ctx := context.Background()

	created, err := gw.Users.Create(ctx, models.User{
		Name:  "Ada",
		Email: "ada@example.org",
		Role:  models.RoleVolunteer,
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := gw.Users.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Email != "ada@example.org" || got.Role != models.RoleVolunteer {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	if _, err := gw.Users.FindByID(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown id: want ErrNotFound, got %v", err)
	}
}

func TestFindWithPredicateOnDecodedFields(t *testing.T) {
	gw := testGateway(t)
	ctx := context.Background()

	for _, u := range []models.User{
		{Email: "a@example.org", Role: models.RoleAdmin, IsAdminApproved: true},
		{Email: "b@example.org", Role: models.RoleAdmin},
		{Email: "c@example.org", Role: models.RoleVolunteer},
	} {
		if _, err := gw.Users.Create(ctx, u); err != nil {
			t.Fatal(err)
		}
	}

	approved, err := gw.Users.Find(ctx, Predicate{"role": "admin", "isAdminApproved": true})
	if err != nil {
		t.Fatal(err)
	}
	if len(approved) != 1 || approved[0].Email != "a@example.org" {
		t.Fatalf("predicate selected wrong records: %+v", approved)
	}
}

func TestUpdateMergesPartial(t *testing.T) {
	gw := testGateway(t)
	ctx := context.Background()

	created, err := gw.Users.Create(ctx, models.User{Name: "Ada", Email: "ada@example.org", Phone: "123"})
	if err != nil {
		t.Fatal(err)
	}

	updated, err := gw.Users.Update(ctx, created.ID, Predicate{"phone": "456"})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Phone != "456" {
		t.Fatalf("phone not updated: %s", updated.Phone)
	}
	if updated.Name != "Ada" || updated.Email != "ada@example.org" {
		t.Fatalf("untouched fields lost: %+v", updated)
	}
}

func TestUpdateWithTimeValue(t *testing.T) {
	gw := testGateway(t)
	ctx := context.Background()

	created, err := gw.Users.Create(ctx, models.User{Email: "ada@example.org"})
	if err != nil {
		t.Fatal(err)
	}

	expiry := time.Now().Add(10 * time.Minute).UTC()
	updated, err := gw.Users.Update(ctx, created.ID, Predicate{
		"pendingCode":       "123456",
		"pendingCodeExpiry": expiry,
	})
	if err != nil {
		t.Fatal(err)
	}
	if updated.PendingCodeExpiry == nil {
		t.Fatal("expiry not stored")
	}
	if !updated.PendingCodeExpiry.Equal(expiry) {
		t.Fatalf("expiry mismatch: want %v, got %v", expiry, *updated.PendingCodeExpiry)
	}
}

func TestUpdateEmptyPartialIsLookup(t *testing.T) {
	gw := testGateway(t)
	ctx := context.Background()

	created, err := gw.Users.Create(ctx, models.User{Email: "ada@example.org"})
	if err != nil {
		t.Fatal(err)
	}

	got, err := gw.Users.Update(ctx, created.ID, Predicate{})
	if err != nil {
		t.Fatal(err)
	}
	if got.Email != "ada@example.org" {
		t.Fatalf("empty update changed record: %+v", got)
	}
}

func TestDeleteUnknownID(t *testing.T) {
	gw := testGateway(t)

	if _, err := gw.Events.Delete(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}
