package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fairshare/fairshare/internal/cache"
	"github.com/fairshare/fairshare/internal/handler/dto"
	"github.com/fairshare/fairshare/internal/model"
	"github.com/fairshare/fairshare/internal/service"
)

// IdempotencyKeyHeader carries the caller's idempotency key.
const IdempotencyKeyHeader = "Idempotency-Key"

const (
	maxIdempotencyKeyLength = 255
	idempotencyWriteTimeout = 2 * time.Second
)

// IdempotencyStore reserves keys and records responses for replay.
type IdempotencyStore interface {
	Reserve(ctx context.Context, key, fingerprint string) (*cache.IdempotencyRecord, error)
	Complete(ctx context.Context, key, fingerprint string, status int, body []byte) error
	Release(ctx context.Context, key string) error
}

// ProvisionHandler serves the provisioning workflow.
type ProvisionHandler struct {
	workflow *service.ProvisioningWorkflow
	idem     IdempotencyStore
	logger   *slog.Logger
}

// NewProvisionHandler creates a ProvisionHandler. idem may be nil, in which
// case Idempotency-Key headers are ignored.
func NewProvisionHandler(workflow *service.ProvisioningWorkflow, idem IdempotencyStore, logger *slog.Logger) *ProvisionHandler {
	return &ProvisionHandler{workflow: workflow, idem: idem, logger: logger}
}

// Provision handles POST /groups:provision.
func (h *ProvisionHandler) Provision(w http.ResponseWriter, r *http.Request) {
	var req dto.ProvisionGroupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	if key == "" {
		status, body, _ := h.run(r, req)
		writeJSON(w, status, body)
		return
	}
	if len(key) > maxIdempotencyKeyLength {
		writeError(w, http.StatusBadRequest, "INVALID_IDEMPOTENCY_KEY", "Idempotency-Key is too long")
		return
	}
	if h.idem == nil {
		h.logger.WarnContext(r.Context(), "idempotency key ignored: no idempotency store configured")
		status, body, _ := h.run(r, req)
		writeJSON(w, status, body)
		return
	}

	fingerprint := provisionFingerprint(req)
	record, err := h.idem.Reserve(r.Context(), key, fingerprint)
	switch {
	case errors.Is(err, cache.ErrIdempotencyKeyReused):
		writeError(w, http.StatusUnprocessableEntity, "IDEMPOTENCY_KEY_REUSED", "Idempotency-Key was already used with a different request")
		return
	case errors.Is(err, cache.ErrIdempotencyInProgress):
		writeError(w, http.StatusConflict, "REQUEST_IN_PROGRESS", "A request with this Idempotency-Key is in progress")
		return
	case err != nil:
		h.logger.ErrorContext(r.Context(), "idempotency reserve failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "IDEMPOTENCY_UNAVAILABLE", "Idempotency store unavailable; retry later")
		return
	case record != nil:
		w.Header().Set("Idempotent-Replayed", "true")
		writeRawJSON(w, record.Status, record.Body)
		return
	}

	status, body, final := h.run(r, req)
	data, err := json.Marshal(body)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "encode provision response failed", "error", err)
		final = false
		status = http.StatusInternalServerError
		data, _ = json.Marshal(dto.ErrorResponse{Error: "An internal error occurred", Code: "INTERNAL_ERROR"})
	}

	// The record must be written even if the client went away.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), idempotencyWriteTimeout)
	defer cancel()

	if final {
		if err := h.idem.Complete(ctx, key, fingerprint, status, data); err != nil {
			h.logger.ErrorContext(r.Context(), "idempotency complete failed", "error", err)
		}
	} else if err := h.idem.Release(ctx, key); err != nil {
		h.logger.ErrorContext(r.Context(), "idempotency release failed", "error", err)
	}

	writeRawJSON(w, status, data)
}

// run executes the workflow. final reports whether the response is
// deterministic for this request and may be replayed; ambiguous outcomes
// and internal errors are not.
func (h *ProvisionHandler) run(r *http.Request, req dto.ProvisionGroupRequest) (status int, body any, final bool) {
	result, err := h.workflow.ProvisionGroup(r.Context(), service.ProvisionInput{
		UserName:  req.UserName,
		UserEmail: req.UserEmail,
		GroupName: req.GroupName,
	})
	if err != nil {
		status, resp := errorResponse(err)
		logServiceError(r, h.logger, status, resp, err)

		final = resp.Code != "AMBIGUOUS_OUTCOME" && resp.Code != "INTERNAL_ERROR"
		return status, resp, final
	}

	return http.StatusCreated, dto.ProvisionResponse{
		ProvisionID: result.ProvisionID,
		User:        dto.ToUserResponse(result.User),
		Group:       dto.ToGroupResponse(result.Group),
	}, true
}

// provisionFingerprint hashes the normalized request so whitespace and
// email case differences count as the same request.
func provisionFingerprint(req dto.ProvisionGroupRequest) string {
	normalized := dto.ProvisionGroupRequest{
		UserName:  strings.TrimSpace(req.UserName),
		UserEmail: model.NormalizeEmail(req.UserEmail),
		GroupName: strings.TrimSpace(req.GroupName),
	}
	data, _ := json.Marshal(normalized)
	return cache.Fingerprint(data)
}
