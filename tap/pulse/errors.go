package pulse

import "errors"

// Error kinds shared by the tap packages.
var (
	ErrParse      = errors.New("parse error")
	ErrValidation = errors.New("validation error")
	ErrLookup     = errors.New("lookup error")
	ErrShape      = errors.New("shape error")
)
