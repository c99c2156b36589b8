package jobs

import "errors"

// Sentinel errors surfaced to the API boundary. Handlers map these to
// response codes with errors.Is.
var (
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrAdmissionDenied      = errors.New("concurrent job limit reached")
	ErrFileNotOwned         = errors.New("file does not belong to organization")
	ErrJobNotFound          = errors.New("job not found")
	ErrResultNotFound       = errors.New("analysis result not found")
	ErrDispatchFailed       = errors.New("failed to trigger processing")
	ErrValidationFailed     = errors.New("callback missing transcript or sentiment")
	ErrUnknownStatus        = errors.New("unknown status in callback")
)
