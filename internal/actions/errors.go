package actions

import "errors"

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrPayloadRequired = errors.New("analysis payload required")
)
