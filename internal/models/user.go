package models

// User is a guild member registered with the bank.
type User struct {
	// ID is the member's Discord user ID. It is the primary key; a member
	// re-registering keeps their balance and only updates Name.
	ID string

	// Name is the member's exact in-game character name. Used for the
	// owner's !add/!remove roster commands (case-insensitive lookup) and
	// for rendering rosters and audit embeds.
	Name string

	// Balance is the member's accumulated silver, in whole units.
	// Never negative: debits that would overdraw are rejected.
	Balance int64
}
