package engine

// Error is a typed engine error carrying the wire code sent back to the
// originating client as a session-error event. Engine errors never reach
// other participants' connections.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Wire error codes
const (
	CodeSessionNotFound   = "SessionNotFound"
	CodePresenterConflict = "PresenterConflict"
	CodeRegistryExhausted = "RegistryExhausted"
	CodeInvalidOption     = "InvalidOption"
	CodeActivityEnded     = "ActivityEnded"
	CodeDuplicateResponse = "DuplicateResponse"
	CodeConnectionError   = "ConnectionError"
	CodeRateLimited       = "RateLimited"
)

var (
	ErrSessionNotFound   = &Error{CodeSessionNotFound, "session not found"}
	ErrPresenterConflict = &Error{CodePresenterConflict, "a presenter is already connected to this session"}
	ErrRegistryExhausted = &Error{CodeRegistryExhausted, "could not allocate a unique session code"}
	ErrInvalidOption     = &Error{CodeInvalidOption, "option index out of range"}
	ErrActivityEnded     = &Error{CodeActivityEnded, "activity is no longer accepting responses"}
	ErrDuplicateResponse = &Error{CodeDuplicateResponse, "response already recorded for this user"}
	ErrConnectionError   = &Error{CodeConnectionError, "connection failure"}
	ErrRateLimited       = &Error{CodeRateLimited, "too many requests, slow down"}
)

// AsError extracts the engine error code for an error, falling back to
// ConnectionError for anything untyped.
func AsError(err error) *Error {
	if e, ok := err.(*Error); ok {
		return e
	}
	return &Error{CodeConnectionError, err.Error()}
}
