package challengedto

// Stable error codes for the challenge session taxonomy.
const (
	CodeInvalidToken      = "INVALID_TOKEN"
	CodeSessionExpired    = "SESSION_EXPIRED"
	CodeTooLate           = "TOO_LATE"
	CodeSessionNotFound   = "SESSION_NOT_FOUND"
	CodeNoPuzzleAvailable = "NO_PUZZLE_AVAILABLE"
	CodePuzzleNotFound    = "PUZZLE_NOT_FOUND"
	CodeInvalidMoveFormat = "INVALID_MOVE_FORMAT"
)

type DomainError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "challenge engine error"
}

// Errf builds a DomainError with the given code. Expiry-class codes are
// retryable: a later poll may reactivate the session while the order is
// still undelivered.
func Errf(code, message string) DomainError {
	retryable := code == CodeSessionExpired || code == CodeTooLate || code == CodeNoPuzzleAvailable
	return DomainError{Code: code, Message: message, Retryable: retryable}
}
