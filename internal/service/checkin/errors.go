package checkin

import "errors"

var (
	// ErrNotFreezeAuthority is returned when admission is attempted by an
	// account that is not the ticket asset's freeze authority. Checked
	// against live asset parameters immediately before submission.
	ErrNotFreezeAuthority = errors.New("checkin: connected account is not the freeze authority")

	// ErrNotAdmittable is returned when Admit is called for a ticket that did
	// not verify as valid.
	ErrNotAdmittable = errors.New("checkin: ticket is not in a valid state")
)
