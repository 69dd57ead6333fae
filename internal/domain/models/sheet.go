package models

import (
	"time"
)

// Character is a participant's in-game character.
type Character struct {
	Name  string `json:"name"`
	Class string `json:"class"`
	Spec  string `json:"spec"`
}

// SoftReserve is one claimed item on a sheet.
type SoftReserve struct {
	ItemID  int     `json:"itemId"`
	SrPlus  *int    `json:"srPlus"`
	Comment *string `json:"comment"`
}

// Attendee groups one participant's character and their claims.
// A sheet holds at most one attendee per user ID; replacing a claim
// replaces the whole entry.
type Attendee struct {
	Character    Character     `json:"character"`
	User         User          `json:"user"`
	SoftReserves []SoftReserve `json:"softReserves"`
}

// ItemIDs returns the attendee's claimed item IDs in claim order.
// Duplicates are preserved; the audit diff treats the result as a multiset.
func (a *Attendee) ItemIDs() []int {
	ids := make([]int, 0, len(a.SoftReserves))
	for _, sr := range a.SoftReserves {
		ids = append(ids, sr.ItemID)
	}
	return ids
}

// Password is the legacy admin credential sub-field. Sheets created by
// current clients carry none, but stored documents may still hold one and
// the redaction contract applies to it either way.
type Password struct {
	Salt string `json:"salt"`
	Hash string `json:"hash"`
}

// Sheet is the raid soft-reserve document: the unit of locking,
// versioning and fan-out. It is stored as a single JSONB value and every
// mutation rewrites it whole.
type Sheet struct {
	RaidID           string      `json:"raidId"`
	InstanceID       int         `json:"instanceId"`
	Time             time.Time   `json:"time"`
	Description      string      `json:"description"`
	SrCount          int         `json:"srCount"`
	UseSrPlus        bool        `json:"useSrPlus"`
	AllowDuplicateSr bool        `json:"allowDuplicateSr"`
	HardReserves     []int       `json:"hardReserves"`
	Locked           bool        `json:"locked"`
	Owner            User        `json:"owner"`
	Admins           []User      `json:"admins"`
	Attendees        []Attendee  `json:"attendees"`
	ActivityLog      ActivityLog `json:"activityLog"`
	Password         *Password   `json:"password,omitempty"`
}

// IsAdmin reports whether the user is in the sheet's admin set.
// The owner is always an admin.
func (s *Sheet) IsAdmin(u User) bool {
	for _, admin := range s.Admins {
		if admin.Same(u) {
			return true
		}
	}
	return false
}

// FindAttendee returns the attendee entry for the given user ID, or nil.
func (s *Sheet) FindAttendee(userID string) *Attendee {
	for i := range s.Attendees {
		if s.Attendees[i].User.ID == userID {
			return &s.Attendees[i]
		}
	}
	return nil
}

// Redacted returns a copy of the sheet with credential sub-fields
// stripped. Every payload leaving the core on the public read, list or
// push paths must go through this; only the admin edit-fetch path may
// return the sheet unredacted.
func (s *Sheet) Redacted() *Sheet {
	clone := *s
	clone.Password = nil
	return &clone
}
