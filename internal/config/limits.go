package config

const (
	// MaxDescriptionLength is the maximum length for raid descriptions.
	// Descriptions are free text shown on the sheet header; anything
	// longer indicates abuse rather than legitimate use.
	MaxDescriptionLength = 2000

	// MaxCharacterNameLength is the maximum length for character names.
	MaxCharacterNameLength = 64

	// MaxReservesPerClaim is the maximum number of items a single
	// claim submission may carry.
	MaxReservesPerClaim = 50

	// MaxHardReserves is the maximum number of hard reserve entries
	// on a single sheet.
	MaxHardReserves = 100
)
