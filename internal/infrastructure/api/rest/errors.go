package rest

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/leadctl/optimizer/pkg/models"
)

type APIError struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
}

func (e *APIError) Error() string {
	return e.Message
}

func NewAPIError(code, message string, httpStatus int) *APIError {
	return &APIError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

func NewAPIErrorWithDetails(code, message string, httpStatus int, details map[string]interface{}) *APIError {
	return &APIError{
		Code:       code,
		Message:    message,
		Details:    details,
		HTTPStatus: httpStatus,
	}
}

var (
	ErrBadRequest       = NewAPIError("BAD_REQUEST", "Invalid request", http.StatusBadRequest)
	ErrUnauthorized     = NewAPIError("UNAUTHORIZED", "Authentication required", http.StatusUnauthorized)
	ErrForbidden        = NewAPIError("FORBIDDEN", "Access denied", http.StatusForbidden)
	ErrNotFound         = NewAPIError("NOT_FOUND", "Resource not found", http.StatusNotFound)
	ErrConflict         = NewAPIError("CONFLICT", "Resource conflict", http.StatusConflict)
	ErrValidationFailed = NewAPIError("VALIDATION_FAILED", "Validation failed", http.StatusBadRequest)
	ErrInternalServer   = NewAPIError("INTERNAL_ERROR", "Internal server error", http.StatusInternalServerError)
	ErrTooManyRequests  = NewAPIError("RATE_LIMIT_EXCEEDED", "Too many requests", http.StatusTooManyRequests)
	ErrInvalidJSON      = NewAPIError("INVALID_JSON", "Invalid JSON in request body", http.StatusBadRequest)
	ErrMissingParameter = NewAPIError("MISSING_PARAMETER", "Required parameter is missing", http.StatusBadRequest)
	ErrInvalidParameter = NewAPIError("INVALID_PARAMETER", "Invalid parameter value", http.StatusBadRequest)
	ErrServiceUnavailable = NewAPIError("SERVICE_UNAVAILABLE", "Upstream collaborator unavailable", http.StatusServiceUnavailable)
)

// TranslateError maps a domain error (spec §7's stable error-kind table) to
// the HTTP response the Control Plane and webhook boundary return.
func TranslateError(err error) *APIError {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, models.ErrLeadNotFound):
		return NewAPIError("LEAD_NOT_FOUND", "Lead not found", http.StatusNotFound)
	case errors.Is(err, models.ErrInteractionNotFound):
		return NewAPIError("INTERACTION_NOT_FOUND", "Interaction not found", http.StatusNotFound)
	case errors.Is(err, models.ErrSequenceNotFound):
		return NewAPIError("SEQUENCE_NOT_FOUND", "Sequence not found", http.StatusNotFound)
	case errors.Is(err, models.ErrRecommendationNotFound):
		return NewAPIError("RECOMMENDATION_NOT_FOUND", "Recommendation not found", http.StatusNotFound)
	case errors.Is(err, models.ErrCampaignNotFound):
		return NewAPIError("CAMPAIGN_NOT_FOUND", "Campaign not found", http.StatusNotFound)
	case errors.Is(err, models.ErrSnapshotNotFound):
		return NewAPIError("SNAPSHOT_NOT_FOUND", "Performance snapshot not found", http.StatusNotFound)

	case errors.Is(err, models.ErrInvalidStateTransition):
		return NewAPIError("INVALID_STATE_TRANSITION", err.Error(), http.StatusBadRequest)
	case errors.Is(err, models.ErrNoBaseline):
		return NewAPIError("NO_BASELINE", "No baseline metrics recorded for this optimization", http.StatusConflict)
	case errors.Is(err, models.ErrDuplicateConflict):
		return NewAPIError("DUPLICATE_CONFLICT", "Record conflicts with an existing duplicate", http.StatusConflict)
	case errors.Is(err, models.ErrBreakerOpen):
		return NewAPIError("BREAKER_OPEN", "Circuit breaker is open for this resource", http.StatusServiceUnavailable)
	case errors.Is(err, models.ErrQuarantined):
		return NewAPIError("QUARANTINED", "Optimization is quarantined pending rollback review", http.StatusConflict)
	case errors.Is(err, models.ErrExternalUnavailable):
		return NewAPIError("EXTERNAL_UNAVAILABLE", "External collaborator unavailable", http.StatusServiceUnavailable)
	case errors.Is(err, models.ErrTimeout):
		return NewAPIError("TIMEOUT", "Operation timed out", http.StatusGatewayTimeout)
	case errors.Is(err, models.ErrIntegrity):
		return NewAPIErrorWithDetails("INTEGRITY_ERROR", "Unrecoverable state corruption detected", http.StatusInternalServerError, nil)

	case errors.Is(err, sql.ErrNoRows):
		return NewAPIError("NOT_FOUND", "Resource not found", http.StatusNotFound)
	}

	errMsg := strings.ToLower(err.Error())
	if strings.Contains(errMsg, "no rows") || strings.Contains(errMsg, "not found") {
		return NewAPIError("NOT_FOUND", "Resource not found", http.StatusNotFound)
	}

	var stateErr *models.StateTransitionErr
	if errors.As(err, &stateErr) {
		return NewAPIError("INVALID_STATE_TRANSITION", stateErr.Error(), http.StatusBadRequest)
	}

	var validationErr *models.ValidationErr
	if errors.As(err, &validationErr) {
		return NewAPIErrorWithDetails(
			"VALIDATION_ERROR",
			validationErr.Message,
			http.StatusBadRequest,
			map[string]interface{}{"field": validationErr.Field},
		)
	}

	var validationErrs models.ValidationErrs
	if errors.As(err, &validationErrs) {
		details := make(map[string]interface{})
		for _, ve := range validationErrs {
			details[ve.Field] = ve.Message
		}
		if len(validationErrs) > 0 {
			return NewAPIErrorWithDetails("VALIDATION_FAILED", validationErrs[0].Message, http.StatusBadRequest, details)
		}
		return NewAPIErrorWithDetails("VALIDATION_FAILED", "Multiple validation errors", http.StatusBadRequest, details)
	}

	var externalErr *models.ExternalErr
	if errors.As(err, &externalErr) {
		return NewAPIErrorWithDetails(
			"EXTERNAL_UNAVAILABLE",
			externalErr.Error(),
			http.StatusServiceUnavailable,
			map[string]interface{}{"resource": externalErr.Resource},
		)
	}

	return NewAPIError("INTERNAL_ERROR", "An unexpected error occurred", http.StatusInternalServerError)
}
