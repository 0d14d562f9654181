package domain

import "errors"

// Storage gateway errors
var (
	ErrNotFound       = errors.New("not found")
	ErrNoBids         = errors.New("no bids found for auction")
	ErrAlreadyExists  = errors.New("already exists")
	ErrWinnerConflict = errors.New("auction already has a different winner recorded")
)
