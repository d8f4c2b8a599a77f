package pldm

import (
	"errors"
	"fmt"
)

var (
	ErrShortHeader    = errors.New("pldm: short header")
	ErrTruncated      = errors.New("pldm: truncated record")
	ErrInvalidLength  = errors.New("pldm: invalid length")
	ErrNotPLDM        = errors.New("pldm: not a pldm message")
	ErrWrongType      = errors.New("pldm: wrong pldm type")
	ErrCompletion     = errors.New("pldm: completion code not success")
	ErrStringTooLong  = errors.New("pldm: version string too long")
	ErrTooManyEntries = errors.New("pldm: too many entries")
	ErrHeaderMismatch = errors.New("pldm: response does not match request")
)

// CompletionError carries the non-success completion code of a response.
type CompletionError struct {
	Command Command
	Code    CompletionCode
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("pldm: %s completion code %s", e.Command, e.Code)
}

func (e *CompletionError) Is(target error) bool {
	return target == ErrCompletion
}
