package services

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"rollsheet/internal/config"
	"rollsheet/internal/domain/models"
)

// SheetService is the mutation pipeline and read surface for raid
// sheets. Every mutation runs as one bounded transaction against the
// latest committed document; sheets returned from mutations and public
// reads are redacted.
type SheetService interface {
	// CreateOrEditRaid creates a raid when req.RaidID is empty, otherwise
	// edits the existing raid (admins only). Changing the instance clears
	// all attendees.
	CreateOrEditRaid(ctx context.Context, caller models.User, req *CreateEditRaidRequest) (*models.Sheet, error)

	// CreateSoftReserve adds or fully replaces the caller's claim entry.
	CreateSoftReserve(ctx context.Context, caller models.User, req *CreateReserveRequest) (*models.Sheet, error)

	// DeleteSoftReserve removes one matching (user, item) claim. Allowed
	// for the claim's owner and for admins.
	DeleteSoftReserve(ctx context.Context, caller models.User, req *DeleteReserveRequest) (*models.Sheet, error)

	// ToggleLock flips the sheet's locked flag. Admins only.
	ToggleLock(ctx context.Context, caller models.User, raidID string) (*models.Sheet, error)

	// EditAdmins applies the add and remove halves independently and
	// reports which of them took effect.
	EditAdmins(ctx context.Context, caller models.User, req *EditAdminsRequest) (*EditAdminsResult, error)

	// GetSheet is the public, unauthenticated read. Redacted.
	GetSheet(ctx context.Context, raidID string) (*models.Sheet, error)

	// GetSheetForEdit returns the sheet unredacted. Admins only.
	GetSheetForEdit(ctx context.Context, caller models.User, raidID string) (*models.Sheet, error)

	// MyRaids lists every sheet where the caller is an admin or attendee.
	MyRaids(ctx context.Context, caller models.User) ([]*models.Sheet, error)
}

// CreateEditRaidRequest carries the editable sheet fields. RaidID empty
// means create; the transport layer fills it from the URL on edit.
type CreateEditRaidRequest struct {
	RaidID           string    `json:"raidId,omitempty"`
	InstanceID       int       `json:"instanceId"`
	Description      string    `json:"description"`
	Time             time.Time `json:"time"`
	SrCount          int       `json:"srCount"`
	UseSrPlus        bool      `json:"useSrPlus"`
	AllowDuplicateSr bool      `json:"allowDuplicateSr"`
	HardReserves     []int     `json:"hardReserves"`
}

func (r CreateEditRaidRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.InstanceID, validation.Required, validation.Min(1)),
		validation.Field(&r.Description, validation.Length(0, config.MaxDescriptionLength)),
		validation.Field(&r.SrCount, validation.Min(0)),
		validation.Field(&r.Time, validation.Required),
		validation.Field(&r.HardReserves, validation.Length(0, config.MaxHardReserves)),
	)
}

// CreateReserveRequest replaces the caller's claim entry with the given
// character and item selection.
type CreateReserveRequest struct {
	RaidID          string           `json:"raidId,omitempty"`
	Character       models.Character `json:"character"`
	SelectedItemIDs []int            `json:"selectedItemIds"`
}

func (r CreateReserveRequest) Validate() error {
	if err := validation.ValidateStruct(&r,
		validation.Field(&r.SelectedItemIDs, validation.Required,
			validation.Length(1, config.MaxReservesPerClaim)),
	); err != nil {
		return err
	}
	return validation.ValidateStruct(&r.Character,
		validation.Field(&r.Character.Name, validation.Required,
			validation.Length(1, config.MaxCharacterNameLength)),
		validation.Field(&r.Character.Class, validation.Required),
	)
}

// DeleteReserveRequest removes the first claim matching (UserID, ItemID).
type DeleteReserveRequest struct {
	RaidID string `json:"raidId,omitempty"`
	UserID string `json:"userId"`
	ItemID int    `json:"itemId"`
}

func (r DeleteReserveRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UserID, validation.Required),
		validation.Field(&r.ItemID, validation.Required, validation.Min(1)),
	)
}

// EditAdminsRequest promotes Add and/or removes Remove. Either half may
// be nil; the halves are applied independently.
type EditAdminsRequest struct {
	RaidID string       `json:"raidId,omitempty"`
	Add    *models.User `json:"add,omitempty"`
	Remove *models.User `json:"remove,omitempty"`
}

// EditAdminsResult reports the per-field outcome of an admin edit: a
// half that did not meet its precondition (already an admin, target is
// the owner, not an admin) is reported false rather than failing the
// whole request.
type EditAdminsResult struct {
	Added   bool          `json:"added"`
	Removed bool          `json:"removed"`
	Sheet   *models.Sheet `json:"sheet"`
}
