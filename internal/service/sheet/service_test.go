package sheet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"rollsheet/internal/domain"
	"rollsheet/internal/domain/models"
	"rollsheet/internal/domain/repositories"
	"rollsheet/internal/domain/services"
)

// fakeStore is an in-memory document store. Sheets are kept as JSON so
// every read decodes a fresh copy, like the real store.
type fakeStore struct {
	mu     sync.Mutex
	sheets map[string][]byte
	writes int
}

func newFakeStore() *fakeStore {
	return &fakeStore{sheets: map[string][]byte{}}
}

func (f *fakeStore) Get(_ context.Context, raidID string) (*models.Sheet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.sheets[raidID]
	if !ok {
		return nil, fmt.Errorf("raid %s: %w", raidID, domain.ErrNotFound)
	}
	var sheet models.Sheet
	if err := json.Unmarshal(raw, &sheet); err != nil {
		return nil, err
	}
	return &sheet, nil
}

func (f *fakeStore) GetForUpdate(ctx context.Context, raidID string) (*models.Sheet, error) {
	return f.Get(ctx, raidID)
}

func (f *fakeStore) Upsert(_ context.Context, raidID string, sheet *models.Sheet) error {
	raw, err := json.Marshal(sheet)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sheets[raidID] = raw
	f.writes++
	return nil
}

func (f *fakeStore) ListForUser(ctx context.Context, user models.User) ([]*models.Sheet, error) {
	f.mu.Lock()
	ids := make([]string, 0, len(f.sheets))
	for id := range f.sheets {
		ids = append(ids, id)
	}
	f.mu.Unlock()

	var out []*models.Sheet
	for _, id := range ids {
		sheet, err := f.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		member := sheet.IsAdmin(user) || sheet.FindAttendee(user.ID) != nil
		if member {
			out = append(out, sheet)
		}
	}
	return out, nil
}

func (f *fakeStore) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

// serialTx serializes transactions with a single mutex, standing in for
// the per-row lock the real store takes.
type serialTx struct {
	mu sync.Mutex
}

func (s *serialTx) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(ctx)
}

var testTime = time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)

func newTestService(store *fakeStore) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(store, &serialTx{}, logger).(*Service)
	svc.now = func() time.Time { return testTime }
	return svc
}

func user(id string) models.User {
	return models.User{ID: id, Issuer: "test"}
}

func char(name string) models.Character {
	return models.Character{Name: name, Class: "Warrior", Spec: "Fury"}
}

func createRaid(t *testing.T, svc *Service, owner models.User) *models.Sheet {
	t.Helper()
	sheet, err := svc.CreateOrEditRaid(context.Background(), owner, &services.CreateEditRaidRequest{
		InstanceID: 409,
		Time:       testTime.Add(48 * time.Hour),
	})
	if err != nil {
		t.Fatalf("CreateOrEditRaid: %v", err)
	}
	return sheet
}

func TestService_CreateRaid(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	owner := user("owner")

	sheet := createRaid(t, svc, owner)

	if len(sheet.RaidID) != raidIDLength {
		t.Errorf("raid id %q, want length %d", sheet.RaidID, raidIDLength)
	}
	if !sheet.Owner.Same(owner) {
		t.Errorf("owner = %v, want %v", sheet.Owner, owner)
	}
	if !sheet.IsAdmin(owner) {
		t.Error("owner is not an admin")
	}
	if sheet.HardReserves == nil {
		t.Error("hard reserves not normalized to empty slice")
	}
	if len(sheet.Attendees) != 0 {
		t.Errorf("new raid has %d attendees", len(sheet.Attendees))
	}
	if len(sheet.ActivityLog) != 1 {
		t.Fatalf("activity log has %d entries, want 1", len(sheet.ActivityLog))
	}
	entry, ok := sheet.ActivityLog[0].(models.RaidChanged)
	if !ok || entry.Change != models.RaidCreated {
		t.Errorf("first activity = %#v, want RaidChanged/created", sheet.ActivityLog[0])
	}
}

func TestService_CreateRaid_Validation(t *testing.T) {
	svc := newTestService(newFakeStore())

	_, err := svc.CreateOrEditRaid(context.Background(), user("u"), &services.CreateEditRaidRequest{})
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestService_CreateRaid_IDCollisionRetries(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	// First raid occupies an id; force the generator to emit it once
	// before producing a fresh one.
	existing := createRaid(t, svc, user("other"))
	ids := []string{existing.RaidID, "fresh"}
	svc.newRaidID = func() string {
		id := ids[0]
		if len(ids) > 1 {
			ids = ids[1:]
		}
		return id
	}

	sheet := createRaid(t, svc, user("owner"))
	if sheet.RaidID != "fresh" {
		t.Errorf("raid id = %q, want %q", sheet.RaidID, "fresh")
	}

	// The colliding raid is untouched.
	kept, err := svc.GetSheet(context.Background(), existing.RaidID)
	if err != nil {
		t.Fatalf("GetSheet: %v", err)
	}
	if !kept.Owner.Same(user("other")) {
		t.Errorf("existing raid owner changed to %v", kept.Owner)
	}
}

func TestService_EditRaid(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	owner := user("owner")
	sheet := createRaid(t, svc, owner)

	edited, err := svc.CreateOrEditRaid(context.Background(), owner, &services.CreateEditRaidRequest{
		RaidID:      sheet.RaidID,
		InstanceID:  409,
		Time:        testTime.Add(72 * time.Hour),
		Description: "moved to friday",
		SrCount:     2,
	})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}

	if edited.Description != "moved to friday" {
		t.Errorf("description = %q", edited.Description)
	}
	if edited.SrCount != 2 {
		t.Errorf("srCount = %d, want 2", edited.SrCount)
	}
	if len(edited.ActivityLog) != 2 {
		t.Fatalf("activity log has %d entries, want 2", len(edited.ActivityLog))
	}
	entry, ok := edited.ActivityLog[1].(models.RaidChanged)
	if !ok || entry.Change != models.RaidEdited {
		t.Errorf("second activity = %#v, want RaidChanged/edited", edited.ActivityLog[1])
	}
}

func TestService_EditRaid_NonAdminForbidden(t *testing.T) {
	svc := newTestService(newFakeStore())
	sheet := createRaid(t, svc, user("owner"))

	_, err := svc.CreateOrEditRaid(context.Background(), user("stranger"), &services.CreateEditRaidRequest{
		RaidID:     sheet.RaidID,
		InstanceID: 409,
		Time:       testTime,
	})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("err = %v, want ErrForbidden", err)
	}
}

func TestService_EditRaid_InstanceChangeClearsAttendees(t *testing.T) {
	svc := newTestService(newFakeStore())
	owner := user("owner")
	sheet := createRaid(t, svc, owner)

	reserve(t, svc, user("raider"), sheet.RaidID, char("Thunderfury"), 19019)

	edited, err := svc.CreateOrEditRaid(context.Background(), owner, &services.CreateEditRaidRequest{
		RaidID:     sheet.RaidID,
		InstanceID: 533,
		Time:       testTime,
	})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if len(edited.Attendees) != 0 {
		t.Errorf("instance change kept %d attendees", len(edited.Attendees))
	}

	// Editing without changing the instance keeps them.
	reserve(t, svc, user("raider"), sheet.RaidID, char("Thunderfury"), 19019)
	edited, err = svc.CreateOrEditRaid(context.Background(), owner, &services.CreateEditRaidRequest{
		RaidID:     sheet.RaidID,
		InstanceID: 533,
		Time:       testTime,
		SrCount:    3,
	})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if len(edited.Attendees) != 1 {
		t.Errorf("same-instance edit dropped attendees, have %d", len(edited.Attendees))
	}
}

func reserve(t *testing.T, svc *Service, caller models.User, raidID string, c models.Character, itemIDs ...int) *models.Sheet {
	t.Helper()
	sheet, err := svc.CreateSoftReserve(context.Background(), caller, &services.CreateReserveRequest{
		RaidID:          raidID,
		Character:       c,
		SelectedItemIDs: itemIDs,
	})
	if err != nil {
		t.Fatalf("CreateSoftReserve: %v", err)
	}
	return sheet
}

func TestService_CreateSoftReserve(t *testing.T) {
	svc := newTestService(newFakeStore())
	raid := createRaid(t, svc, user("owner"))
	raider := user("raider")

	sheet := reserve(t, svc, raider, raid.RaidID, char("Ashkandi"), 19364, 19335)

	attendee := sheet.FindAttendee(raider.ID)
	if attendee == nil {
		t.Fatal("attendee not recorded")
	}
	if got := attendee.ItemIDs(); !sameInts(got, []int{19364, 19335}) {
		t.Errorf("claimed items = %v", got)
	}

	// One SrChanged/created per claimed item after the RaidChanged entry.
	created := srEntries(sheet.ActivityLog, models.SrCreated)
	if len(created) != 2 {
		t.Fatalf("created entries = %d, want 2", len(created))
	}
}

func TestService_CreateSoftReserve_IdempotentReclaim(t *testing.T) {
	svc := newTestService(newFakeStore())
	raid := createRaid(t, svc, user("owner"))
	raider := user("raider")

	first := reserve(t, svc, raider, raid.RaidID, char("Ashkandi"), 19364, 19335)
	second := reserve(t, svc, raider, raid.RaidID, char("Ashkandi"), 19335, 19364)

	if len(second.ActivityLog) != len(first.ActivityLog) {
		t.Errorf("re-claim with same items appended %d audit entries",
			len(second.ActivityLog)-len(first.ActivityLog))
	}
	if len(second.Attendees) != 1 {
		t.Errorf("attendees = %d, want 1", len(second.Attendees))
	}
}

func TestService_CreateSoftReserve_Replacement(t *testing.T) {
	svc := newTestService(newFakeStore())
	raid := createRaid(t, svc, user("owner"))
	raider := user("raider")

	reserve(t, svc, raider, raid.RaidID, char("Oldchar"), 100, 200)
	sheet := reserve(t, svc, raider, raid.RaidID, char("Newchar"), 200, 300)

	attendee := sheet.FindAttendee(raider.ID)
	if attendee == nil {
		t.Fatal("attendee missing after replacement")
	}
	if attendee.Character.Name != "Newchar" {
		t.Errorf("character = %q, want Newchar", attendee.Character.Name)
	}
	if got := attendee.ItemIDs(); !sameInts(got, []int{200, 300}) {
		t.Errorf("items = %v, want [200 300]", got)
	}

	deleted := srEntries(sheet.ActivityLog, models.SrDeleted)
	created := srEntries(sheet.ActivityLog, models.SrCreated)
	if len(deleted) != 1 || deleted[0].ItemID != 100 {
		t.Fatalf("deleted entries = %+v, want one for item 100", deleted)
	}
	if len(created) != 3 {
		// Two from the initial claim, one from the replacement.
		t.Fatalf("created entries = %d, want 3", len(created))
	}

	// Deletion carries the replaced character and is stamped just before
	// the creation it pairs with.
	if deleted[0].Character == nil || deleted[0].Character.Name != "Oldchar" {
		t.Errorf("deleted character = %+v, want Oldchar", deleted[0].Character)
	}
	replacementCreated := created[2]
	if !deleted[0].Time.Before(replacementCreated.Time) {
		t.Errorf("deletion %v not before creation %v", deleted[0].Time, replacementCreated.Time)
	}
	if got := replacementCreated.Time.Sub(deleted[0].Time); got != time.Millisecond {
		t.Errorf("deletion offset = %v, want 1ms", got)
	}
}

func TestService_CreateSoftReserve_CharacterNameCollision(t *testing.T) {
	svc := newTestService(newFakeStore())
	raid := createRaid(t, svc, user("owner"))

	reserve(t, svc, user("first"), raid.RaidID, char("Sameface"), 100)
	sheet := reserve(t, svc, user("second"), raid.RaidID, char("Sameface"), 200)

	if len(sheet.Attendees) != 1 {
		t.Fatalf("attendees = %d, want 1 (name collision replaces)", len(sheet.Attendees))
	}
	if sheet.Attendees[0].User.ID != "second" {
		t.Errorf("surviving attendee = %q, want second", sheet.Attendees[0].User.ID)
	}
}

func TestService_CreateSoftReserve_Locked(t *testing.T) {
	svc := newTestService(newFakeStore())
	owner := user("owner")
	raid := createRaid(t, svc, owner)

	if _, err := svc.ToggleLock(context.Background(), owner, raid.RaidID); err != nil {
		t.Fatalf("ToggleLock: %v", err)
	}

	_, err := svc.CreateSoftReserve(context.Background(), user("raider"), &services.CreateReserveRequest{
		RaidID:          raid.RaidID,
		Character:       char("Latecomer"),
		SelectedItemIDs: []int{1},
	})
	if !errors.Is(err, domain.ErrLocked) {
		t.Errorf("err = %v, want ErrLocked", err)
	}
}

func TestService_DeleteSoftReserve(t *testing.T) {
	ctx := context.Background()

	t.Run("owner deletes own claim", func(t *testing.T) {
		svc := newTestService(newFakeStore())
		raid := createRaid(t, svc, user("owner"))
		raider := user("raider")
		reserve(t, svc, raider, raid.RaidID, char("Ashkandi"), 100, 200)

		sheet, err := svc.DeleteSoftReserve(ctx, raider, &services.DeleteReserveRequest{
			RaidID: raid.RaidID, UserID: raider.ID, ItemID: 100,
		})
		if err != nil {
			t.Fatalf("DeleteSoftReserve: %v", err)
		}
		attendee := sheet.FindAttendee(raider.ID)
		if attendee == nil || !sameInts(attendee.ItemIDs(), []int{200}) {
			t.Errorf("attendee after delete = %+v", attendee)
		}
	})

	t.Run("admin deletes another user's claim", func(t *testing.T) {
		svc := newTestService(newFakeStore())
		owner := user("owner")
		raid := createRaid(t, svc, owner)
		raider := user("raider")
		reserve(t, svc, raider, raid.RaidID, char("Ashkandi"), 100)

		sheet, err := svc.DeleteSoftReserve(ctx, owner, &services.DeleteReserveRequest{
			RaidID: raid.RaidID, UserID: raider.ID, ItemID: 100,
		})
		if err != nil {
			t.Fatalf("DeleteSoftReserve: %v", err)
		}
		if sheet.FindAttendee(raider.ID) != nil {
			t.Error("attendee with no claims left was not dropped")
		}
	})

	t.Run("non-admin cannot delete another user's claim", func(t *testing.T) {
		svc := newTestService(newFakeStore())
		raid := createRaid(t, svc, user("owner"))
		raider := user("raider")
		reserve(t, svc, raider, raid.RaidID, char("Ashkandi"), 100)

		_, err := svc.DeleteSoftReserve(ctx, user("stranger"), &services.DeleteReserveRequest{
			RaidID: raid.RaidID, UserID: raider.ID, ItemID: 100,
		})
		if !errors.Is(err, domain.ErrForbidden) {
			t.Errorf("err = %v, want ErrForbidden", err)
		}
	})

	t.Run("locked sheet rejects deletion", func(t *testing.T) {
		svc := newTestService(newFakeStore())
		owner := user("owner")
		raid := createRaid(t, svc, owner)
		raider := user("raider")
		reserve(t, svc, raider, raid.RaidID, char("Ashkandi"), 100)
		if _, err := svc.ToggleLock(ctx, owner, raid.RaidID); err != nil {
			t.Fatalf("ToggleLock: %v", err)
		}

		_, err := svc.DeleteSoftReserve(ctx, raider, &services.DeleteReserveRequest{
			RaidID: raid.RaidID, UserID: raider.ID, ItemID: 100,
		})
		if !errors.Is(err, domain.ErrLocked) {
			t.Errorf("err = %v, want ErrLocked", err)
		}
	})

	t.Run("duplicate claims lose one per request", func(t *testing.T) {
		svc := newTestService(newFakeStore())
		raid := createRaid(t, svc, user("owner"))
		raider := user("raider")
		reserve(t, svc, raider, raid.RaidID, char("Ashkandi"), 100, 100)

		sheet, err := svc.DeleteSoftReserve(ctx, raider, &services.DeleteReserveRequest{
			RaidID: raid.RaidID, UserID: raider.ID, ItemID: 100,
		})
		if err != nil {
			t.Fatalf("DeleteSoftReserve: %v", err)
		}
		attendee := sheet.FindAttendee(raider.ID)
		if attendee == nil || !sameInts(attendee.ItemIDs(), []int{100}) {
			t.Errorf("attendee after delete = %+v, want one copy left", attendee)
		}
	})

	t.Run("missing claim is not found", func(t *testing.T) {
		svc := newTestService(newFakeStore())
		raid := createRaid(t, svc, user("owner"))
		raider := user("raider")
		reserve(t, svc, raider, raid.RaidID, char("Ashkandi"), 100)

		_, err := svc.DeleteSoftReserve(ctx, raider, &services.DeleteReserveRequest{
			RaidID: raid.RaidID, UserID: raider.ID, ItemID: 999,
		})
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestService_ToggleLock(t *testing.T) {
	svc := newTestService(newFakeStore())
	owner := user("owner")
	raid := createRaid(t, svc, owner)

	locked, err := svc.ToggleLock(context.Background(), owner, raid.RaidID)
	if err != nil {
		t.Fatalf("ToggleLock: %v", err)
	}
	if !locked.Locked {
		t.Error("sheet not locked after toggle")
	}

	unlocked, err := svc.ToggleLock(context.Background(), owner, raid.RaidID)
	if err != nil {
		t.Fatalf("ToggleLock: %v", err)
	}
	if unlocked.Locked {
		t.Error("sheet still locked after second toggle")
	}

	last := unlocked.ActivityLog[len(unlocked.ActivityLog)-1].(models.RaidChanged)
	if last.Change != models.RaidUnlocked {
		t.Errorf("last activity change = %q, want unlocked", last.Change)
	}

	if _, err := svc.ToggleLock(context.Background(), user("stranger"), raid.RaidID); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("non-admin toggle err = %v, want ErrForbidden", err)
	}
}

func TestService_EditAdmins(t *testing.T) {
	ctx := context.Background()

	t.Run("add and remove applied independently", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store)
		owner := user("owner")
		raid := createRaid(t, svc, owner)

		add := user("helper")
		result, err := svc.EditAdmins(ctx, owner, &services.EditAdminsRequest{
			RaidID: raid.RaidID,
			Add:    &add,
		})
		if err != nil {
			t.Fatalf("EditAdmins: %v", err)
		}
		if !result.Added || result.Removed {
			t.Errorf("result = %+v, want Added only", result)
		}
		if !result.Sheet.IsAdmin(add) {
			t.Error("added user is not an admin")
		}

		remove := add
		result, err = svc.EditAdmins(ctx, owner, &services.EditAdminsRequest{
			RaidID: raid.RaidID,
			Remove: &remove,
		})
		if err != nil {
			t.Fatalf("EditAdmins: %v", err)
		}
		if !result.Removed {
			t.Error("removal of an admin not applied")
		}
		if result.Sheet.IsAdmin(remove) {
			t.Error("removed user still an admin")
		}
	})

	t.Run("owner cannot be removed", func(t *testing.T) {
		svc := newTestService(newFakeStore())
		owner := user("owner")
		raid := createRaid(t, svc, owner)

		result, err := svc.EditAdmins(ctx, owner, &services.EditAdminsRequest{
			RaidID: raid.RaidID,
			Remove: &owner,
		})
		if err != nil {
			t.Fatalf("EditAdmins: %v", err)
		}
		if result.Removed {
			t.Error("owner removal reported as applied")
		}
		if !result.Sheet.IsAdmin(owner) {
			t.Error("owner lost admin status")
		}
	})

	t.Run("no-op skips the write", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store)
		owner := user("owner")
		raid := createRaid(t, svc, owner)
		writesBefore := store.writeCount()

		stranger := user("stranger")
		result, err := svc.EditAdmins(ctx, owner, &services.EditAdminsRequest{
			RaidID: raid.RaidID,
			Add:    &owner,    // already an admin
			Remove: &stranger, // not an admin
		})
		if err != nil {
			t.Fatalf("EditAdmins: %v", err)
		}
		if result.Added || result.Removed {
			t.Errorf("result = %+v, want neither applied", result)
		}
		if store.writeCount() != writesBefore {
			t.Error("no-op admin edit wrote the document")
		}
	})

	t.Run("non-admin caller forbidden", func(t *testing.T) {
		svc := newTestService(newFakeStore())
		raid := createRaid(t, svc, user("owner"))

		add := user("friend")
		_, err := svc.EditAdmins(ctx, user("stranger"), &services.EditAdminsRequest{
			RaidID: raid.RaidID,
			Add:    &add,
		})
		if !errors.Is(err, domain.ErrForbidden) {
			t.Errorf("err = %v, want ErrForbidden", err)
		}
	})
}

func TestService_Redaction(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newTestService(store)
	owner := user("owner")
	raid := createRaid(t, svc, owner)

	// Plant a legacy credential on the stored document.
	stored, err := store.Get(ctx, raid.RaidID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	stored.Password = &models.Password{Salt: "s4lt", Hash: "h4sh"}
	if err := store.Upsert(ctx, raid.RaidID, stored); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	public, err := svc.GetSheet(ctx, raid.RaidID)
	if err != nil {
		t.Fatalf("GetSheet: %v", err)
	}
	if public.Password != nil {
		t.Error("public read leaked the credential sub-field")
	}

	listed, err := svc.MyRaids(ctx, owner)
	if err != nil {
		t.Fatalf("MyRaids: %v", err)
	}
	if len(listed) != 1 || listed[0].Password != nil {
		t.Error("list read leaked the credential sub-field")
	}

	// Mutations respond redacted too, but keep the stored value intact.
	mutated, err := svc.ToggleLock(ctx, owner, raid.RaidID)
	if err != nil {
		t.Fatalf("ToggleLock: %v", err)
	}
	if mutated.Password != nil {
		t.Error("mutation response leaked the credential sub-field")
	}

	full, err := svc.GetSheetForEdit(ctx, owner, raid.RaidID)
	if err != nil {
		t.Fatalf("GetSheetForEdit: %v", err)
	}
	if full.Password == nil || full.Password.Hash != "h4sh" {
		t.Errorf("admin edit-fetch password = %+v, want stored value", full.Password)
	}

	if _, err := svc.GetSheetForEdit(ctx, user("stranger"), raid.RaidID); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("non-admin edit-fetch err = %v, want ErrForbidden", err)
	}
}

func TestService_MyRaids(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newFakeStore())
	owner := user("owner")
	raider := user("raider")

	mine := createRaid(t, svc, owner)
	createRaid(t, svc, user("someone-else"))
	attended := createRaid(t, svc, user("someone-else"))
	reserve(t, svc, raider, attended.RaidID, char("Ashkandi"), 100)

	sheets, err := svc.MyRaids(ctx, owner)
	if err != nil {
		t.Fatalf("MyRaids: %v", err)
	}
	if len(sheets) != 1 || sheets[0].RaidID != mine.RaidID {
		t.Errorf("owner raids = %d, want exactly the owned raid", len(sheets))
	}

	sheets, err = svc.MyRaids(ctx, raider)
	if err != nil {
		t.Fatalf("MyRaids: %v", err)
	}
	if len(sheets) != 1 || sheets[0].RaidID != attended.RaidID {
		t.Errorf("raider raids = %d, want exactly the attended raid", len(sheets))
	}
}

// TestService_ConcurrentReserves drives parallel claims at one raid and
// checks that every attendee survives: each mutation read the latest
// committed document rather than clobbering a sibling's write.
func TestService_ConcurrentReserves(t *testing.T) {
	svc := newTestService(newFakeStore())
	raid := createRaid(t, svc, user("owner"))

	const raiders = 16
	var wg sync.WaitGroup
	for i := 0; i < raiders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			caller := user(fmt.Sprintf("raider-%02d", i))
			_, err := svc.CreateSoftReserve(context.Background(), caller, &services.CreateReserveRequest{
				RaidID:          raid.RaidID,
				Character:       char(fmt.Sprintf("Char%02d", i)),
				SelectedItemIDs: []int{1000 + i},
			})
			if err != nil {
				t.Errorf("reserve %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	sheet, err := svc.GetSheet(context.Background(), raid.RaidID)
	if err != nil {
		t.Fatalf("GetSheet: %v", err)
	}
	if len(sheet.Attendees) != raiders {
		t.Errorf("attendees = %d, want %d", len(sheet.Attendees), raiders)
	}
	if got := len(srEntries(sheet.ActivityLog, models.SrCreated)); got != raiders {
		t.Errorf("created audit entries = %d, want %d", got, raiders)
	}
}

// TestService_Scenario runs a full sheet lifecycle: claims, replacement,
// admin promotion, lock, and the rejected late claim.
func TestService_Scenario(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newFakeStore())
	owner := user("owner")
	alice := user("alice")
	bob := user("bob")

	raid := createRaid(t, svc, owner)

	reserve(t, svc, alice, raid.RaidID, char("Alicechar"), 100, 200)
	reserve(t, svc, bob, raid.RaidID, char("Bobchar"), 100)

	// Alice swaps item 100 for 300.
	sheet := reserve(t, svc, alice, raid.RaidID, char("Alicechar"), 200, 300)
	aliceEntry := sheet.FindAttendee(alice.ID)
	if aliceEntry == nil || !sameInts(aliceEntry.ItemIDs(), []int{200, 300}) {
		t.Fatalf("alice items = %+v", aliceEntry)
	}
	if bobEntry := sheet.FindAttendee(bob.ID); bobEntry == nil || !sameInts(bobEntry.ItemIDs(), []int{100}) {
		t.Fatalf("bob items = %+v", bobEntry)
	}

	// Owner promotes alice, then locks.
	if _, err := svc.EditAdmins(ctx, owner, &services.EditAdminsRequest{RaidID: raid.RaidID, Add: &alice}); err != nil {
		t.Fatalf("EditAdmins: %v", err)
	}
	if _, err := svc.ToggleLock(ctx, alice, raid.RaidID); err != nil {
		t.Fatalf("promoted admin cannot lock: %v", err)
	}

	if _, err := svc.CreateSoftReserve(ctx, bob, &services.CreateReserveRequest{
		RaidID:          raid.RaidID,
		Character:       char("Bobchar"),
		SelectedItemIDs: []int{100, 400},
	}); !errors.Is(err, domain.ErrLocked) {
		t.Errorf("late claim err = %v, want ErrLocked", err)
	}

	// Audit log preserved every step in append order.
	final, err := svc.GetSheetForEdit(ctx, owner, raid.RaidID)
	if err != nil {
		t.Fatalf("GetSheetForEdit: %v", err)
	}
	var kinds []string
	for _, entry := range final.ActivityLog {
		switch e := entry.(type) {
		case models.RaidChanged:
			kinds = append(kinds, "raid:"+e.Change)
		case models.SrChanged:
			kinds = append(kinds, "sr:"+e.Change)
		case models.AdminChanged:
			kinds = append(kinds, "admin:"+e.Change)
		}
	}
	want := []string{
		"raid:created",
		"sr:created", "sr:created", // alice 100, 200
		"sr:created",               // bob 100
		"sr:deleted", "sr:created", // alice swap
		"admin:promoted",
		"raid:locked",
	}
	if len(kinds) != len(want) {
		t.Fatalf("activity kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("activity[%d] = %q, want %q", i, kinds[i], want[i])
		}
	}
}

func srEntries(log models.ActivityLog, change string) []models.SrChanged {
	var out []models.SrChanged
	for _, entry := range log {
		if sr, ok := entry.(models.SrChanged); ok && sr.Change == change {
			out = append(out, sr)
		}
	}
	return out
}
