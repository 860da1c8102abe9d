package server

const (
	// Validation (1xxx)
	ErrCodeInvalidArgument = 1000
	ErrCodeInvalidJSON     = 1001
	ErrCodeRequestTooLarge = 1002
	ErrCodeInvalidFilter   = 1003
	ErrCodeInvalidID       = 1004
	ErrCodeMissingFile     = 1005

	// Domain state (2xxx)
	ErrCodeFileNotFound  = 2001
	ErrCodeFileTooLarge  = 2101
	ErrCodeQuotaExceeded = 2102

	// Limits (3xxx)
	ErrCodeResourceExhausted = 3003

	// Internal/system (4xxx)
	ErrCodeInternal            = 4001
	ErrCodeStoreFailure        = 4002
	ErrCodeStorageWriteFailed  = 4003
	ErrCodeCatalogWriteFailed  = 4004
	ErrCodeInconsistency       = 4005
	ErrCodeStorageDeleteFailed = 4006
)

func defaultErrorCodeByStatus(status int) int {
	switch status {
	case 400:
		return ErrCodeInvalidArgument
	case 404:
		return ErrCodeFileNotFound
	case 429:
		return ErrCodeResourceExhausted
	case 500:
		return ErrCodeInternal
	default:
		return 0
	}
}
