package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Activity type tags as stored in the document JSON.
const (
	ActivityTypeRaidChanged  = "RaidChanged"
	ActivityTypeSrChanged    = "SrChanged"
	ActivityTypeAdminChanged = "AdminChanged"
)

// Raid-level change kinds.
const (
	RaidCreated  = "created"
	RaidEdited   = "edited"
	RaidLocked   = "locked"
	RaidUnlocked = "unlocked"
)

// Soft-reserve change kinds.
const (
	SrCreated = "created"
	SrDeleted = "deleted"
)

// Admin change kinds.
const (
	AdminPromoted = "promoted"
	AdminRemoved  = "removed"
)

// Activity is one entry in a sheet's append-only audit log. It is a
// closed union: RaidChanged, SrChanged and AdminChanged are the only
// variants, so a type switch over them can be checked for exhaustiveness.
type Activity interface {
	// ActivityTime is the entry's timestamp; log append order is the
	// authoritative ordering, timestamps are presentation only.
	ActivityTime() time.Time

	activityType() string
}

// RaidChanged records a change to the raid document itself:
// creation, edit, lock or unlock.
type RaidChanged struct {
	Time   time.Time `json:"time"`
	ByUser User      `json:"byUser"`
	Change string    `json:"change"`
}

// SrChanged records one item claimed or unclaimed by a participant.
type SrChanged struct {
	Time      time.Time  `json:"time"`
	ByUser    User       `json:"byUser"`
	Change    string     `json:"change"`
	ItemID    int        `json:"itemId"`
	Character *Character `json:"character,omitempty"`
}

// AdminChanged records one user promoted to or removed from the admin set.
type AdminChanged struct {
	Time      time.Time  `json:"time"`
	ByUser    User       `json:"byUser"`
	Change    string     `json:"change"`
	Target    User       `json:"user"`
	Character *Character `json:"character,omitempty"`
}

func (a RaidChanged) ActivityTime() time.Time  { return a.Time }
func (a SrChanged) ActivityTime() time.Time    { return a.Time }
func (a AdminChanged) ActivityTime() time.Time { return a.Time }

func (RaidChanged) activityType() string  { return ActivityTypeRaidChanged }
func (SrChanged) activityType() string    { return ActivityTypeSrChanged }
func (AdminChanged) activityType() string { return ActivityTypeAdminChanged }

// MarshalJSON adds the type tag to the variant's own fields.
func (a RaidChanged) MarshalJSON() ([]byte, error) {
	type alias RaidChanged
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{Type: a.activityType(), alias: alias(a)})
}

func (a SrChanged) MarshalJSON() ([]byte, error) {
	type alias SrChanged
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{Type: a.activityType(), alias: alias(a)})
}

func (a AdminChanged) MarshalJSON() ([]byte, error) {
	type alias AdminChanged
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{Type: a.activityType(), alias: alias(a)})
}

// ActivityLog is the append-only ordered audit log. Entries are only ever
// appended; existing entries are never reordered or mutated.
type ActivityLog []Activity

// UnmarshalJSON decodes each entry into its concrete variant based on the
// type tag. Unknown tags are an error: the union is closed.
func (l *ActivityLog) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}

	entries := make(ActivityLog, 0, len(raws))
	for i, raw := range raws {
		var tag struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &tag); err != nil {
			return fmt.Errorf("activity %d: %w", i, err)
		}

		switch tag.Type {
		case ActivityTypeRaidChanged:
			var entry RaidChanged
			if err := json.Unmarshal(raw, &entry); err != nil {
				return fmt.Errorf("activity %d: %w", i, err)
			}
			entries = append(entries, entry)
		case ActivityTypeSrChanged:
			var entry SrChanged
			if err := json.Unmarshal(raw, &entry); err != nil {
				return fmt.Errorf("activity %d: %w", i, err)
			}
			entries = append(entries, entry)
		case ActivityTypeAdminChanged:
			var entry AdminChanged
			if err := json.Unmarshal(raw, &entry); err != nil {
				return fmt.Errorf("activity %d: %w", i, err)
			}
			entries = append(entries, entry)
		default:
			return fmt.Errorf("activity %d: unknown type %q", i, tag.Type)
		}
	}

	*l = entries
	return nil
}
