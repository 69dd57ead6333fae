package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestSheet_Redacted(t *testing.T) {
	sheet := &Sheet{
		RaidID:   "abc12",
		Password: &Password{Salt: "s", Hash: "h"},
		Attendees: []Attendee{
			{User: User{ID: "u1"}, Character: Character{Name: "Ashkandi"}},
		},
	}

	redacted := sheet.Redacted()
	if redacted.Password != nil {
		t.Error("redacted sheet still carries the credential")
	}
	if sheet.Password == nil {
		t.Error("redaction mutated the original")
	}
	if redacted.RaidID != sheet.RaidID || len(redacted.Attendees) != 1 {
		t.Error("redaction altered non-credential fields")
	}

	// The credential must not appear in serialized output either.
	raw, err := json.Marshal(redacted)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(raw), "password") {
		t.Errorf("serialized redacted sheet mentions password: %s", raw)
	}
}

func TestSheet_IsAdmin(t *testing.T) {
	owner := User{ID: "owner"}
	helper := User{ID: "helper"}
	sheet := &Sheet{Owner: owner, Admins: []User{owner, helper}}

	if !sheet.IsAdmin(owner) {
		t.Error("owner not recognized as admin")
	}
	if !sheet.IsAdmin(User{ID: "helper", Issuer: "different-issuer"}) {
		t.Error("admin match must compare IDs only")
	}
	if sheet.IsAdmin(User{ID: "stranger"}) {
		t.Error("stranger recognized as admin")
	}
}

func TestSheet_FindAttendee(t *testing.T) {
	sheet := &Sheet{
		Attendees: []Attendee{
			{User: User{ID: "u1"}, SoftReserves: []SoftReserve{{ItemID: 1}}},
			{User: User{ID: "u2"}, SoftReserves: []SoftReserve{{ItemID: 2}}},
		},
	}

	found := sheet.FindAttendee("u2")
	if found == nil || found.SoftReserves[0].ItemID != 2 {
		t.Fatalf("FindAttendee(u2) = %+v", found)
	}

	// The pointer aliases the sheet's slice so callers can mutate in place.
	found.SoftReserves = nil
	if sheet.Attendees[1].SoftReserves != nil {
		t.Error("FindAttendee returned a copy")
	}

	if sheet.FindAttendee("missing") != nil {
		t.Error("FindAttendee returned entry for unknown user")
	}
}

func TestAttendee_ItemIDs(t *testing.T) {
	attendee := Attendee{SoftReserves: []SoftReserve{
		{ItemID: 3}, {ItemID: 1}, {ItemID: 3},
	}}
	got := attendee.ItemIDs()
	want := []int{3, 1, 3}
	if len(got) != len(want) {
		t.Fatalf("ItemIDs = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ItemIDs[%d] = %d, want %d (order and duplicates preserved)", i, got[i], want[i])
		}
	}
}
