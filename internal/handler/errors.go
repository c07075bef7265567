package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/fairshare/fairshare/internal/handler/dto"
	"github.com/fairshare/fairshare/internal/service"
)

// errorResponse maps a service error to a status code and body.
// Typed workflow errors are matched first since they wrap store causes.
func errorResponse(err error) (int, dto.ErrorResponse) {
	var (
		partial    *service.PartialProvisioningFailure
		ambiguous  *service.AmbiguousOutcomeError
		validation *service.ValidationError
	)

	switch {
	case errors.As(err, &partial):
		userID := partial.UserID
		return http.StatusInternalServerError, dto.ErrorResponse{
			Error:       "User was created but the group was not; retry group creation with userId",
			Code:        "PARTIAL_PROVISIONING_FAILURE",
			UserID:      &userID,
			ProvisionID: partial.ProvisionID,
			Step:        service.StepCreateGroup,
		}
	case errors.As(err, &ambiguous):
		resp := dto.ErrorResponse{
			Error:       "Outcome of the write is unknown; verify state before retrying",
			Code:        "AMBIGUOUS_OUTCOME",
			ProvisionID: ambiguous.ProvisionID,
			Step:        ambiguous.Step,
		}
		if ambiguous.UserID != 0 {
			userID := ambiguous.UserID
			resp.UserID = &userID
		}
		return http.StatusGatewayTimeout, resp
	case errors.As(err, &validation):
		fields := make([]dto.FieldError, 0, len(validation.Fields))
		for _, f := range validation.Fields {
			fields = append(fields, dto.FieldError{Field: f.Field, Reason: f.Reason})
		}
		return http.StatusBadRequest, dto.ErrorResponse{
			Error:  "Validation failed",
			Code:   "VALIDATION_ERROR",
			Fields: fields,
		}
	case errors.Is(err, service.ErrEmailTaken):
		return http.StatusConflict, dto.ErrorResponse{Error: "Email already in use", Code: "EMAIL_TAKEN"}
	case errors.Is(err, service.ErrDanglingReference):
		return http.StatusUnprocessableEntity, dto.ErrorResponse{Error: "Creator user does not exist", Code: "DANGLING_REFERENCE"}
	case errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound, dto.ErrorResponse{Error: "User not found", Code: "USER_NOT_FOUND"}
	case errors.Is(err, service.ErrGroupNotFound):
		return http.StatusNotFound, dto.ErrorResponse{Error: "Group not found", Code: "GROUP_NOT_FOUND"}
	case errors.Is(err, service.ErrUserOwnsGroups):
		return http.StatusConflict, dto.ErrorResponse{Error: "User owns groups and cannot be discarded", Code: "USER_OWNS_GROUPS"}
	default:
		return http.StatusInternalServerError, dto.ErrorResponse{Error: "An internal error occurred", Code: "INTERNAL_ERROR"}
	}
}

// handleServiceError writes the mapped error and logs server-side failures.
func handleServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, resp := errorResponse(err)
	logServiceError(r, logger, status, resp, err)
	writeJSON(w, status, resp)
}

func logServiceError(r *http.Request, logger *slog.Logger, status int, resp dto.ErrorResponse, err error) {
	if status < http.StatusInternalServerError {
		return
	}
	logger.ErrorContext(r.Context(), "request_failed",
		"code", resp.Code,
		"provision_id", resp.ProvisionID,
		"error", err,
	)
}
