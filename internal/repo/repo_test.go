package repo

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"cache2k25/internal/model"
)

func newTestRepo(t *testing.T) *repository {
	t.Helper()
	log := zerolog.Nop()
	r, db, err := NewSQLiteRepository(":memory:", &log)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	impl := r.(*repository)
	base := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	tick := 0
	impl.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return impl
}

func sampleRegistration(eventID, name string) *model.Registration {
	return &model.Registration{
		EventID:         eventID,
		EventName:       "Event " + eventID,
		ParticipantName: name,
		Email:           strings.ToLower(name) + "@example.com",
		Phone:           "9876543210",
		College:         "VSMCOE",
		RollNumber:      "R-1",
		TotalAmount:     299,
		PaymentStatus:   model.PaymentCompleted,
		TransactionID:   "T-" + name,
		PaymentMethod:   model.MethodUPI,
	}
}

func TestSaveAssignsIDAndDefaults(t *testing.T) {
	r := newTestRepo(t)
	reg := sampleRegistration("web-dev", "Asha")
	reg.PaymentStatus = ""

	if err := r.Save(context.Background(), reg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasPrefix(reg.RegistrationID, RegistrationPrefix) {
		t.Errorf("registration id %q lacks prefix", reg.RegistrationID)
	}
	if reg.PaymentStatus != model.PaymentPending {
		t.Errorf("status = %q, want pending", reg.PaymentStatus)
	}
	if reg.TransactionDate.IsZero() || reg.CreatedAt.IsZero() {
		t.Error("timestamps not set")
	}

	all, err := r.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 record, got %d", len(all))
	}
	got := all[0]
	if got.RegistrationID != reg.RegistrationID || got.TotalAmount != 299 || got.PaymentMethod != model.MethodUPI {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.TeamMembers != nil || got.GameIDs != nil {
		t.Errorf("solo registration should carry no team or game data: %+v", got)
	}
}

func TestSaveKeepsTeamAndGameIDs(t *testing.T) {
	r := newTestRepo(t)
	reg := sampleRegistration("bgmi-esports", "Ravi")
	reg.TeamMembers = []model.TeamMember{
		{Name: "A", Email: "a@x.in", Phone: "1", RollNumber: "r1"},
		{Name: "B", Email: "b@x.in", Phone: "2", RollNumber: "r2"},
		{Name: "C", Email: "c@x.in", Phone: "3", RollNumber: "r3"},
	}
	reg.GameIDs = []model.GameID{{PlayerName: "Ravi", GameID: "5123", CharacterName: "Ghost"}}

	if err := r.Save(context.Background(), reg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	list, err := r.ListByEvent(context.Background(), "bgmi-esports")
	if err != nil {
		t.Fatalf("ListByEvent: %v", err)
	}
	if len(list) != 1 || len(list[0].TeamMembers) != 3 || list[0].TeamMembers[2].Name != "C" {
		t.Fatalf("team members not preserved: %+v", list)
	}
	if len(list[0].GameIDs) != 1 || list[0].GameIDs[0].CharacterName != "Ghost" {
		t.Errorf("game ids not preserved: %+v", list[0].GameIDs)
	}
}

func TestSaveDuplicateKey(t *testing.T) {
	r := newTestRepo(t)
	first := sampleRegistration("web-dev", "Asha")
	first.RegistrationID = "CACHE2K25_FIXED"
	if err := r.Save(context.Background(), first); err != nil {
		t.Fatalf("first save: %v", err)
	}
	second := sampleRegistration("web-dev", "Ben")
	second.RegistrationID = "CACHE2K25_FIXED"
	err := r.Save(context.Background(), second)
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
	if second.RegistrationID != "CACHE2K25_FIXED" {
		t.Error("id must not be regenerated on collision")
	}
}

func TestListByEventIsOrderedSubset(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	plan := []struct{ event, name string }{
		{"web-dev", "A"}, {"pycharm", "B"}, {"web-dev", "C"}, {"techexpo", "D"}, {"web-dev", "E"},
	}
	for _, p := range plan {
		if err := r.Save(ctx, sampleRegistration(p.event, p.name)); err != nil {
			t.Fatalf("Save %s: %v", p.name, err)
		}
	}

	all, err := r.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(all) != len(plan) {
		t.Fatalf("ListAll returned %d records", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].CreatedAt.After(all[i-1].CreatedAt) {
			t.Fatalf("ListAll not in descending creation order at %d", i)
		}
	}
	if all[0].ParticipantName != "E" {
		t.Errorf("newest first expected E, got %s", all[0].ParticipantName)
	}

	var want []string
	for _, reg := range all {
		if reg.EventID == "web-dev" {
			want = append(want, reg.RegistrationID)
		}
	}
	got, err := r.ListByEvent(ctx, "web-dev")
	if err != nil {
		t.Fatalf("ListByEvent: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("ListByEvent returned %d, want %d", len(got), len(want))
	}
	for i := range got {
		if got[i].RegistrationID != want[i] {
			t.Errorf("position %d: got %s want %s", i, got[i].RegistrationID, want[i])
		}
	}

	none, err := r.ListByEvent(ctx, "photo-contest")
	if err != nil {
		t.Fatalf("ListByEvent empty: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", none)
	}
}

func TestRegistrationIDsAreDistinct(t *testing.T) {
	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		id := NewRegistrationID()
		if len(id) != len(RegistrationPrefix)+12 {
			t.Fatalf("unexpected id length %q", id)
		}
		if strings.ToUpper(id) != id {
			t.Fatalf("id %q is not upper-case", id)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %s after %d generations", id, i)
		}
		seen[id] = struct{}{}
	}
}
