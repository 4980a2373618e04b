package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"
	ErrForbidden     ErrCode = "FORBIDDEN"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Sessions ──────────────────────────────────────────────────────
	ErrMissingRequiredAsset ErrCode = "MISSING_REQUIRED_ASSET"
	ErrSessionSubmitted     ErrCode = "SESSION_ALREADY_SUBMITTED"
	ErrSessionNotLive       ErrCode = "SESSION_NOT_LIVE"
	ErrSessionNotSubmitted  ErrCode = "SESSION_NOT_SUBMITTED"

	// ─── Uploads & exports ─────────────────────────────────────────────
	ErrFileRequired      ErrCode = "FILE_REQUIRED"
	ErrUnsupportedFile   ErrCode = "UNSUPPORTED_FILE_TYPE"
	ErrFileTooLarge      ErrCode = "FILE_TOO_LARGE"
	ErrUnsupportedFormat ErrCode = "UNSUPPORTED_EXPORT_FORMAT"

	// ─── Server ────────────────────────────────────────────────────────
	ErrTooManyRequests ErrCode = "TOO_MANY_REQUESTS"
	ErrInternal        ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."
	case ErrTokenExpired:
		return "The authentication token has expired."
	case ErrForbidden:
		return "You do not have access to this resource."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."

	// ─── Sessions ──────────────────────────────────────────────────────
	case ErrMissingRequiredAsset:
		return "The exam cannot start without the required material. Please upload it and try again."
	case ErrSessionSubmitted:
		return "This exam session has already been submitted."
	case ErrSessionNotLive:
		return "This exam session is no longer live."
	case ErrSessionNotSubmitted:
		return "This exam session has not been submitted yet."

	// ─── Uploads & exports ─────────────────────────────────────────────
	case ErrFileRequired:
		return "A file upload is required."
	case ErrUnsupportedFile:
		return "Unsupported file type."
	case ErrFileTooLarge:
		return "The file exceeds the size limit."
	case ErrUnsupportedFormat:
		return "Unsupported export format."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrTooManyRequests:
		return "Too many requests. Please slow down."
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
