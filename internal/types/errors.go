package types

import "errors"

// ErrInputMissing reports that a reading source or model artifact is absent.
var ErrInputMissing = errors.New("input missing")
