package errs

// Pairing domain codes (1xxx) and backend classifications (11xx).
const (
	CodeNotLoggedIn            = 1001
	CodeAlreadyPartnered       = 1002
	CodeNotConnected           = 1003
	CodeSelfPairing            = 1004
	CodeInvalidOrExpiredCode   = 1005
	CodeRequestNotFound        = 1006
	CodeRequestNoLongerPending = 1007
	CodeRequestExpired         = 1008
	CodeNotAuthorized          = 1009
	CodeTermTooShort           = 1010

	CodePermissionDenied        = 1101
	CodeNetworkUnavailable      = 1102
	CodeOperationTimedOut       = 1103
	CodeBackendTransientFailure = 1104
)

var (
	ErrNotLoggedIn            = NewCodeError(CodeNotLoggedIn, "not logged in")
	ErrAlreadyPartnered       = NewCodeError(CodeAlreadyPartnered, "already has a partner")
	ErrNotConnected           = NewCodeError(CodeNotConnected, "no partner connected")
	ErrSelfPairing            = NewCodeError(CodeSelfPairing, "cannot redeem your own invite code")
	ErrInvalidOrExpiredCode   = NewCodeError(CodeInvalidOrExpiredCode, "invalid or expired invite code")
	ErrRequestNotFound        = NewCodeError(CodeRequestNotFound, "partner request not found")
	ErrRequestNoLongerPending = NewCodeError(CodeRequestNoLongerPending, "partner request is no longer pending")
	ErrRequestExpired         = NewCodeError(CodeRequestExpired, "partner request has expired")
	ErrNotAuthorized          = NewCodeError(CodeNotAuthorized, "not authorized for this request")
	ErrTermTooShort           = NewCodeError(CodeTermTooShort, "search term must be at least 2 characters")

	ErrPermissionDenied        = NewCodeError(CodePermissionDenied, "permission denied")
	ErrNetworkUnavailable      = NewCodeError(CodeNetworkUnavailable, "network unavailable")
	ErrOperationTimedOut       = NewCodeError(CodeOperationTimedOut, "operation timed out")
	ErrBackendTransientFailure = NewCodeError(CodeBackendTransientFailure, "backend temporarily unavailable")
)

// IsTransient reports whether err is in the retryable classification set.
func IsTransient(err error) bool {
	switch CodeOf(err) {
	case CodeNetworkUnavailable, CodeOperationTimedOut, CodeBackendTransientFailure:
		return true
	}
	return false
}

// IsValidation reports whether err is a caller mistake that must never
// be retried.
func IsValidation(err error) bool {
	c := CodeOf(err)
	return c >= CodeNotLoggedIn && c <= CodeTermTooShort
}
