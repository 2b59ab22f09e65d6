package core

import "errors"

// Configuration errors describe an invalid authored network.
var (
	ErrEmptySegmentID  = errors.New("empty segment ID")
	ErrSegmentExists   = errors.New("segment already exists")
	ErrSegmentNotFound = errors.New("segment not found")
	ErrInvalidRadius   = errors.New("curve radius must be positive")
	ErrInvalidSweep    = errors.New("curve sweep must be positive")
	ErrInvalidLength   = errors.New("segment length must be positive")
	ErrAsymmetricSnap  = errors.New("snap relation is not symmetric")
	ErrChainNotClosed  = errors.New("chain does not close on its start segment")
	ErrEmptyMoverID    = errors.New("empty mover ID")
	ErrMoverExists     = errors.New("mover already exists")
	ErrMoverNotFound   = errors.New("mover not found")
)

// Layout errors.
var (
	ErrDriveNotFound      = errors.New("drive not found")
	ErrUnknownSegmentKind = errors.New("unknown segment kind")
	ErrUnknownStationKind = errors.New("unknown station kind")
	ErrUnknownStrategy    = errors.New("unknown path strategy")
	ErrChainExists        = errors.New("chain already exists")
	ErrStationExists      = errors.New("station already exists")
)

// Station logic errors.
var (
	ErrOccupantExited    = errors.New("station occupant left the zone without release")
	ErrOccupantAtPathEnd = errors.New("mover reached a path end while occupying a station")
	ErrOccupantDetached  = errors.New("mover removed from path while occupying a station")
	ErrNoOccupant        = errors.New("station has no occupant")
	ErrStationOccupied   = errors.New("station already has an occupant")
)
