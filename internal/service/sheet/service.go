package sheet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"rollsheet/internal/domain"
	"rollsheet/internal/domain/models"
	"rollsheet/internal/domain/repositories"
	"rollsheet/internal/domain/services"
)

// deletionOffset orders the deletion half of a swap slightly before the
// creation half when both land in the same request, so the log reads
// remove-then-add.
const deletionOffset = time.Millisecond

const raidIDCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

const raidIDLength = 5

// createAttempts bounds raid-id generation retries on collision.
const createAttempts = 5

// errRaidIDCollision signals that a freshly generated raid id already
// exists; the create path regenerates and retries.
var errRaidIDCollision = errors.New("raid id collision")

// GenerateRaidID returns a 5-character alphanumeric, human-shareable
// raid id.
func GenerateRaidID() string {
	id := make([]byte, raidIDLength)
	for i := range id {
		id[i] = raidIDCharset[rand.IntN(len(raidIDCharset))]
	}
	return string(id)
}

// Service is the mutation pipeline for raid sheets. Every mutation is
// one transaction: lock the document row, load, authorize, transform,
// write, commit. The row lock serializes writers per raid id; the
// transaction manager bounds how long any of it may take.
type Service struct {
	repo   repositories.SheetRepository
	txm    repositories.TransactionManager
	logger *slog.Logger

	// Injection points for tests.
	now       func() time.Time
	newRaidID func() string
}

// NewService creates a new sheet service.
func NewService(
	repo repositories.SheetRepository,
	txm repositories.TransactionManager,
	logger *slog.Logger,
) services.SheetService {
	return &Service{
		repo:      repo,
		txm:       txm,
		logger:    logger,
		now:       time.Now,
		newRaidID: GenerateRaidID,
	}
}

// CreateOrEditRaid creates the raid when the target id does not exist
// and edits it otherwise. Edits require the caller to be an admin.
// Changing the instance invalidates every existing claim, so attendees
// are cleared.
func (s *Service) CreateOrEditRaid(ctx context.Context, caller models.User, req *services.CreateEditRaidRequest) (*models.Sheet, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	if req.RaidID != "" {
		return s.createOrEdit(ctx, caller, req, req.RaidID, false)
	}

	// Fresh raid: generate an id, retrying on the off chance it is taken.
	var lastErr error
	for range createAttempts {
		sheet, err := s.createOrEdit(ctx, caller, req, s.newRaidID(), true)
		if errors.Is(err, errRaidIDCollision) {
			lastErr = err
			continue
		}
		return sheet, err
	}
	return nil, fmt.Errorf("allocate raid id: %w", lastErr)
}

func (s *Service) createOrEdit(ctx context.Context, caller models.User, req *services.CreateEditRaidRequest, raidID string, generated bool) (*models.Sheet, error) {
	var result *models.Sheet
	err := s.txm.ExecTx(ctx, func(txCtx context.Context) error {
		current, err := s.repo.GetForUpdate(txCtx, raidID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			result = s.newSheet(caller, req, raidID)
		case err != nil:
			return err
		case generated:
			// Collision with an unrelated existing raid; try another id.
			return errRaidIDCollision
		default:
			if !current.IsAdmin(caller) {
				return fmt.Errorf("edit raid %s: %w", raidID, domain.ErrForbidden)
			}
			result = s.editSheet(caller, current, req)
		}
		return s.repo.Upsert(txCtx, raidID, result)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("raid saved", "raid_id", raidID, "user_id", caller.ID)
	return result.Redacted(), nil
}

func (s *Service) newSheet(caller models.User, req *services.CreateEditRaidRequest, raidID string) *models.Sheet {
	return &models.Sheet{
		RaidID:           raidID,
		InstanceID:       req.InstanceID,
		Time:             req.Time,
		Description:      req.Description,
		SrCount:          req.SrCount,
		UseSrPlus:        req.UseSrPlus,
		AllowDuplicateSr: req.AllowDuplicateSr,
		HardReserves:     normalizeItemIDs(req.HardReserves),
		Owner:            caller,
		Admins:           []models.User{caller},
		Attendees:        []models.Attendee{},
		ActivityLog: models.ActivityLog{
			models.RaidChanged{Time: s.now(), ByUser: caller, Change: models.RaidCreated},
		},
	}
}

func (s *Service) editSheet(caller models.User, sheet *models.Sheet, req *services.CreateEditRaidRequest) *models.Sheet {
	if sheet.InstanceID != req.InstanceID {
		// Claims reference items scoped to the instance and become
		// meaningless when it changes.
		sheet.Attendees = []models.Attendee{}
	}
	sheet.InstanceID = req.InstanceID
	sheet.Time = req.Time
	sheet.Description = req.Description
	sheet.SrCount = req.SrCount
	sheet.UseSrPlus = req.UseSrPlus
	sheet.AllowDuplicateSr = req.AllowDuplicateSr
	sheet.HardReserves = normalizeItemIDs(req.HardReserves)
	sheet.ActivityLog = append(sheet.ActivityLog,
		models.RaidChanged{Time: s.now(), ByUser: caller, Change: models.RaidEdited})
	return sheet
}

// CreateSoftReserve adds or fully replaces the caller's claim entry. The
// prior entry (matched by user id, plus any entry colliding on character
// name) is removed; the multiset diff of old versus new item ids becomes
// the audit entries, deletions stamped just before creations.
//
// srCount and allowDuplicateSr are stored on the sheet but not enforced
// here; clients apply them when rendering the claim form.
func (s *Service) CreateSoftReserve(ctx context.Context, caller models.User, req *services.CreateReserveRequest) (*models.Sheet, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	var result *models.Sheet
	err := s.txm.ExecTx(ctx, func(txCtx context.Context) error {
		sheet, err := s.repo.GetForUpdate(txCtx, req.RaidID)
		if err != nil {
			return err
		}
		if sheet.Locked {
			return fmt.Errorf("raid %s: %w", req.RaidID, domain.ErrLocked)
		}

		var oldIDs []int
		var oldCharacter models.Character
		if old := sheet.FindAttendee(caller.ID); old != nil {
			oldIDs = old.ItemIDs()
			oldCharacter = old.Character
		} else {
			oldCharacter = req.Character
		}
		diff := DiffItemIDs(oldIDs, req.SelectedItemIDs)

		kept := sheet.Attendees[:0:0]
		for _, a := range sheet.Attendees {
			if a.User.Same(caller) || a.Character.Name == req.Character.Name {
				continue
			}
			kept = append(kept, a)
		}
		reserves := make([]models.SoftReserve, 0, len(req.SelectedItemIDs))
		for _, itemID := range req.SelectedItemIDs {
			reserves = append(reserves, models.SoftReserve{ItemID: itemID})
		}
		sheet.Attendees = append(kept, models.Attendee{
			Character:    req.Character,
			User:         caller,
			SoftReserves: reserves,
		})

		now := s.now()
		for _, itemID := range diff.Removed {
			character := oldCharacter
			sheet.ActivityLog = append(sheet.ActivityLog, models.SrChanged{
				Time:      now.Add(-deletionOffset),
				ByUser:    caller,
				Change:    models.SrDeleted,
				ItemID:    itemID,
				Character: &character,
			})
		}
		for _, itemID := range diff.Added {
			character := req.Character
			sheet.ActivityLog = append(sheet.ActivityLog, models.SrChanged{
				Time:      now,
				ByUser:    caller,
				Change:    models.SrCreated,
				ItemID:    itemID,
				Character: &character,
			})
		}

		result = sheet
		return s.repo.Upsert(txCtx, req.RaidID, sheet)
	})
	if err != nil {
		return nil, err
	}

	return result.Redacted(), nil
}

// DeleteSoftReserve removes the first claim matching (UserID, ItemID).
// Allowed for the claim's owner and for admins; rejected while the sheet
// is locked. An attendee whose claim list empties is dropped entirely.
func (s *Service) DeleteSoftReserve(ctx context.Context, caller models.User, req *services.DeleteReserveRequest) (*models.Sheet, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	var result *models.Sheet
	err := s.txm.ExecTx(ctx, func(txCtx context.Context) error {
		sheet, err := s.repo.GetForUpdate(txCtx, req.RaidID)
		if err != nil {
			return err
		}
		if sheet.Locked {
			return fmt.Errorf("raid %s: %w", req.RaidID, domain.ErrLocked)
		}
		if caller.ID != req.UserID && !sheet.IsAdmin(caller) {
			return fmt.Errorf("delete soft-reserve: %w", domain.ErrForbidden)
		}

		attendee := sheet.FindAttendee(req.UserID)
		if attendee == nil {
			return fmt.Errorf("soft-reserve for user %s: %w", req.UserID, domain.ErrNotFound)
		}

		// First match only: with duplicate claims for the same item only
		// one is removed per request.
		matched := -1
		for i, sr := range attendee.SoftReserves {
			if sr.ItemID == req.ItemID {
				matched = i
				break
			}
		}
		if matched < 0 {
			return fmt.Errorf("soft-reserve item %d: %w", req.ItemID, domain.ErrNotFound)
		}

		character := attendee.Character
		attendee.SoftReserves = append(attendee.SoftReserves[:matched], attendee.SoftReserves[matched+1:]...)
		if len(attendee.SoftReserves) == 0 {
			kept := sheet.Attendees[:0:0]
			for _, a := range sheet.Attendees {
				if a.User.ID == req.UserID {
					continue
				}
				kept = append(kept, a)
			}
			sheet.Attendees = kept
		}

		sheet.ActivityLog = append(sheet.ActivityLog, models.SrChanged{
			Time:      s.now(),
			ByUser:    caller,
			Change:    models.SrDeleted,
			ItemID:    req.ItemID,
			Character: &character,
		})

		result = sheet
		return s.repo.Upsert(txCtx, req.RaidID, sheet)
	})
	if err != nil {
		return nil, err
	}

	return result.Redacted(), nil
}

// ToggleLock flips the locked flag. Admins only.
func (s *Service) ToggleLock(ctx context.Context, caller models.User, raidID string) (*models.Sheet, error) {
	var result *models.Sheet
	err := s.txm.ExecTx(ctx, func(txCtx context.Context) error {
		sheet, err := s.repo.GetForUpdate(txCtx, raidID)
		if err != nil {
			return err
		}
		if !sheet.IsAdmin(caller) {
			return fmt.Errorf("toggle lock: %w", domain.ErrForbidden)
		}

		sheet.Locked = !sheet.Locked
		change := models.RaidUnlocked
		if sheet.Locked {
			change = models.RaidLocked
		}
		sheet.ActivityLog = append(sheet.ActivityLog,
			models.RaidChanged{Time: s.now(), ByUser: caller, Change: change})

		result = sheet
		return s.repo.Upsert(txCtx, raidID, sheet)
	})
	if err != nil {
		return nil, err
	}

	return result.Redacted(), nil
}

// EditAdmins applies the add and remove halves independently. A half
// whose precondition fails (target already an admin, target is the
// owner, target not an admin) is reported as not applied rather than
// failing the request.
func (s *Service) EditAdmins(ctx context.Context, caller models.User, req *services.EditAdminsRequest) (*services.EditAdminsResult, error) {
	result := &services.EditAdminsResult{}
	err := s.txm.ExecTx(ctx, func(txCtx context.Context) error {
		sheet, err := s.repo.GetForUpdate(txCtx, req.RaidID)
		if err != nil {
			return err
		}
		if !sheet.IsAdmin(caller) {
			return fmt.Errorf("edit admins: %w", domain.ErrForbidden)
		}

		now := s.now()
		if req.Add != nil && !sheet.IsAdmin(*req.Add) {
			sheet.Admins = append(sheet.Admins, *req.Add)
			sheet.ActivityLog = append(sheet.ActivityLog, models.AdminChanged{
				Time:      now,
				ByUser:    caller,
				Change:    models.AdminPromoted,
				Target:    *req.Add,
				Character: attendeeCharacter(sheet, req.Add.ID),
			})
			result.Added = true
		}
		if req.Remove != nil && !req.Remove.Same(sheet.Owner) && sheet.IsAdmin(*req.Remove) {
			kept := sheet.Admins[:0:0]
			for _, admin := range sheet.Admins {
				if admin.Same(*req.Remove) {
					continue
				}
				kept = append(kept, admin)
			}
			sheet.Admins = kept
			sheet.ActivityLog = append(sheet.ActivityLog, models.AdminChanged{
				Time:      now,
				ByUser:    caller,
				Change:    models.AdminRemoved,
				Target:    *req.Remove,
				Character: attendeeCharacter(sheet, req.Remove.ID),
			})
			result.Removed = true
		}

		result.Sheet = sheet
		if !result.Added && !result.Removed {
			// Nothing changed; skip the write so no notification fires.
			return nil
		}
		return s.repo.Upsert(txCtx, req.RaidID, sheet)
	})
	if err != nil {
		return nil, err
	}

	result.Sheet = result.Sheet.Redacted()
	return result, nil
}

// GetSheet is the public, unauthenticated read. Never blocks on the row
// lock and may trail an in-flight mutation; always redacted.
func (s *Service) GetSheet(ctx context.Context, raidID string) (*models.Sheet, error) {
	sheet, err := s.repo.Get(ctx, raidID)
	if err != nil {
		return nil, err
	}
	return sheet.Redacted(), nil
}

// GetSheetForEdit returns the sheet unredacted, including any credential
// sub-fields. Admins only.
func (s *Service) GetSheetForEdit(ctx context.Context, caller models.User, raidID string) (*models.Sheet, error) {
	sheet, err := s.repo.Get(ctx, raidID)
	if err != nil {
		return nil, err
	}
	if !sheet.IsAdmin(caller) {
		return nil, fmt.Errorf("edit-fetch raid %s: %w", raidID, domain.ErrForbidden)
	}
	return sheet, nil
}

// MyRaids lists every sheet where the caller is an admin or attendee.
func (s *Service) MyRaids(ctx context.Context, caller models.User) ([]*models.Sheet, error) {
	sheets, err := s.repo.ListForUser(ctx, caller)
	if err != nil {
		return nil, err
	}
	redacted := make([]*models.Sheet, 0, len(sheets))
	for _, sheet := range sheets {
		redacted = append(redacted, sheet.Redacted())
	}
	return redacted, nil
}

func attendeeCharacter(sheet *models.Sheet, userID string) *models.Character {
	if attendee := sheet.FindAttendee(userID); attendee != nil {
		character := attendee.Character
		return &character
	}
	return nil
}

func normalizeItemIDs(ids []int) []int {
	if ids == nil {
		return []int{}
	}
	return ids
}
