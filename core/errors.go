package core

import (
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorBadInput             = "ONBOARDING_BAD_INPUT"
	ErrorValidationFailed     = "ONBOARDING_VALIDATION_FAILED"
	ErrorDuplicateResource    = "ONBOARDING_DUPLICATE_RESOURCE"
	ErrorVerificationMismatch = "ONBOARDING_VERIFICATION_MISMATCH"
	ErrorVerificationFailed   = "ONBOARDING_VERIFICATION_FAILED"
	ErrorSessionExpiredHard   = "ONBOARDING_SESSION_EXPIRED_HARD"
	ErrorSessionExpiredSoft   = "ONBOARDING_SESSION_EXPIRED_SOFT"
	ErrorDuplicateAction      = "ONBOARDING_DUPLICATE_ACTION"
	ErrorMaxRetriesExceeded   = "ONBOARDING_MAX_RETRIES_EXCEEDED"
	ErrorUpstreamFailure      = "ONBOARDING_UPSTREAM_FAILURE"
	ErrorNetworkFailure       = "ONBOARDING_NETWORK_FAILURE"
	ErrorRateLimited          = "ONBOARDING_RATE_LIMITED"
	ErrorNotFound             = "ONBOARDING_NOT_FOUND"
	ErrorInternal             = "ONBOARDING_INTERNAL_ERROR"
)

// NewValidationError reports a field level failure. It is recovered by the
// form that raised it and never crosses the workflow boundary.
func NewValidationError(field string, message string) *goerrors.Error {
	return goerrors.NewValidation("onboarding: validation failed", goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorValidationFailed).
		WithSeverity(goerrors.SeverityError)
}

func NewBadInputError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorBadInput)
}

func NewInternalError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(ErrorInternal)
}

// NewDuplicateResourceError is raised when the backend already knows the
// resource, e.g. a phone number registered to another merchant.
func NewDuplicateResourceError(resource string, value string) *goerrors.Error {
	return goerrors.New(fmt.Sprintf("onboarding: %s already registered", resource), goerrors.CategoryConflict).
		WithCode(http.StatusConflict).
		WithTextCode(ErrorDuplicateResource).
		WithMetadata(map[string]any{"resource": resource, "value": value})
}

func NewVerificationMismatchError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryExternal).
		WithCode(http.StatusUnprocessableEntity).
		WithTextCode(ErrorVerificationMismatch)
}

func NewVerificationFailedError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryExternal).
		WithCode(http.StatusUnprocessableEntity).
		WithTextCode(ErrorVerificationFailed)
}

// NewSessionExpiredHardError is the Unauthorized classification: the retry
// after a refresh was still rejected with 401.
func NewSessionExpiredHardError(message string) *goerrors.Error {
	if strings.TrimSpace(message) == "" {
		message = "onboarding: session expired"
	}
	return goerrors.New(message, goerrors.CategoryAuth).
		WithCode(http.StatusUnauthorized).
		WithTextCode(ErrorSessionExpiredHard)
}

// NewSessionExpiredSoftError is the Forbidden classification. Callers only
// get a notification, credentials are left in place.
func NewSessionExpiredSoftError(message string) *goerrors.Error {
	if strings.TrimSpace(message) == "" {
		message = "onboarding: access forbidden"
	}
	return goerrors.New(message, goerrors.CategoryAuthz).
		WithCode(http.StatusForbidden).
		WithTextCode(ErrorSessionExpiredSoft)
}

// NewDuplicateActionError signals a re-entrant call for an action that is
// still running. Seeing it at runtime points at a UI double submit.
func NewDuplicateActionError(actionID string) *goerrors.Error {
	return goerrors.New(fmt.Sprintf("onboarding: action %q already in progress", actionID), goerrors.CategoryConflict).
		WithCode(http.StatusConflict).
		WithTextCode(ErrorDuplicateAction).
		WithMetadata(map[string]any{"action_id": actionID})
}

func NewMaxRetriesExceededError(actionID string, retries int) *goerrors.Error {
	return goerrors.New(fmt.Sprintf("onboarding: action %q exhausted its retries", actionID), goerrors.CategoryOperation).
		WithCode(http.StatusTooManyRequests).
		WithTextCode(ErrorMaxRetriesExceeded).
		WithMetadata(map[string]any{"action_id": actionID, "retry_count": retries})
}

// ErrorFromStatus classifies a non-2xx backend response. The body is kept as
// metadata so presentation layers can extract backend messages.
func ErrorFromStatus(status int, body []byte) *goerrors.Error {
	message := fmt.Sprintf("onboarding: request failed with status %d", status)
	var err *goerrors.Error
	switch {
	case status == http.StatusUnauthorized:
		err = NewSessionExpiredHardError("")
	case status == http.StatusForbidden:
		err = NewSessionExpiredSoftError("")
	case status == http.StatusConflict:
		err = goerrors.New(message, goerrors.CategoryConflict).
			WithCode(status).
			WithTextCode(ErrorDuplicateResource)
	case status == http.StatusNotFound:
		err = goerrors.New(message, goerrors.CategoryNotFound).
			WithCode(status).
			WithTextCode(ErrorNotFound)
	case status == http.StatusUnprocessableEntity, status == http.StatusBadRequest:
		err = goerrors.New(message, goerrors.CategoryValidation).
			WithCode(status).
			WithTextCode(ErrorValidationFailed)
	case status == http.StatusTooManyRequests:
		err = goerrors.New(message, goerrors.CategoryRateLimit).
			WithCode(status).
			WithTextCode(ErrorRateLimited)
	case status >= 500:
		err = goerrors.New(message, goerrors.CategoryExternal).
			WithCode(status).
			WithTextCode(ErrorUpstreamFailure)
	default:
		err = goerrors.New(message, goerrors.CategoryOperation).
			WithCode(status).
			WithTextCode(ErrorUpstreamFailure)
	}
	metadata := map[string]any{"status_code": status}
	if len(body) > 0 {
		metadata["body"] = string(body)
	}
	err.WithMetadata(metadata)
	return err
}

// HasTextCode reports whether err carries the given text code.
func HasTextCode(err error, textCode string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(richErr.TextCode), textCode)
}

func IsUnauthorized(err error) bool {
	return HasTextCode(err, ErrorSessionExpiredHard)
}

func IsForbidden(err error) bool {
	return HasTextCode(err, ErrorSessionExpiredSoft)
}

// IsNetworkError reports a transport level failure, where no HTTP status was
// received at all.
func IsNetworkError(err error) bool {
	return HasTextCode(err, ErrorNetworkFailure)
}

func IsDuplicateAction(err error) bool {
	return HasTextCode(err, ErrorDuplicateAction)
}

func IsMaxRetriesExceeded(err error) bool {
	return HasTextCode(err, ErrorMaxRetriesExceeded)
}

func onboardingErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "already in progress"):
		return newOnboardingError(err.Error(), goerrors.CategoryConflict, ErrorDuplicateAction)
	case strings.Contains(msg, "already registered"):
		return newOnboardingError(err.Error(), goerrors.CategoryConflict, ErrorDuplicateResource)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return newOnboardingError(err.Error(), goerrors.CategoryBadInput, ErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

func newOnboardingError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = httpStatusForCategory(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput:
		return ErrorBadInput
	case goerrors.CategoryValidation:
		return ErrorValidationFailed
	case goerrors.CategoryNotFound:
		return ErrorNotFound
	case goerrors.CategoryAuth:
		return ErrorSessionExpiredHard
	case goerrors.CategoryAuthz:
		return ErrorSessionExpiredSoft
	case goerrors.CategoryConflict:
		return ErrorDuplicateResource
	case goerrors.CategoryRateLimit:
		return ErrorRateLimited
	case goerrors.CategoryExternal:
		return ErrorUpstreamFailure
	default:
		return ErrorInternal
	}
}

func httpStatusForCategory(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// MapError normalises any error into the onboarding error envelope.
func MapError(err error) *goerrors.Error {
	return onboardingErrorMapper(err)
}
