package response

// ErrCode is a machine-readable error identifier returned to clients.
type ErrCode string

const (
	ErrCodeValidation            ErrCode = "VALIDATION_ERROR"
	ErrCodeInvalidPayload        ErrCode = "INVALID_PAYLOAD"
	ErrCodeInvalidID             ErrCode = "INVALID_ID"
	ErrCodeNotFound              ErrCode = "NOT_FOUND"
	ErrCodeSessionNotFound       ErrCode = "SESSION_NOT_FOUND"
	ErrCodeSessionSubmitted      ErrCode = "SESSION_SUBMITTED"
	ErrCodeInsufficientQuestions ErrCode = "INSUFFICIENT_QUESTIONS"
	ErrCodePauseCooldown         ErrCode = "PAUSE_COOLDOWN"
	ErrCodeInvalidIndex          ErrCode = "INVALID_INDEX"
	ErrCodeRateLimitExceeded     ErrCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal              ErrCode = "INTERNAL_ERROR"
)

var errMessages = map[ErrCode]string{
	ErrCodeValidation:            "One or more fields failed validation",
	ErrCodeInvalidPayload:        "Request body could not be parsed",
	ErrCodeInvalidID:             "Identifier is malformed",
	ErrCodeNotFound:              "Resource not found",
	ErrCodeSessionNotFound:       "Exam session not found or expired",
	ErrCodeSessionSubmitted:      "Exam session has already been submitted",
	ErrCodeInsufficientQuestions: "Not enough questions match the request",
	ErrCodePauseCooldown:         "Pause is still on cooldown",
	ErrCodeInvalidIndex:          "Question index is out of range",
	ErrCodeRateLimitExceeded:     "Too many requests, slow down",
	ErrCodeInternal:              "Internal server error",
}

// GetMessage returns the human-readable message for a code.
func GetMessage(code ErrCode) string {
	if msg, ok := errMessages[code]; ok {
		return msg
	}
	return "Unknown error"
}
