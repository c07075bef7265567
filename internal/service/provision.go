package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fairshare/fairshare/internal/metrics"
	"github.com/fairshare/fairshare/internal/model"
	"github.com/fairshare/fairshare/internal/repository"
)

// ProvisionMode selects how the two provisioning writes are committed.
type ProvisionMode string

const (
	// ModeAtomic commits user and group in one transaction when the store supports it.
	ModeAtomic ProvisionMode = "atomic"
	// ModeSaga commits them as two independent writes with explicit orphan reporting.
	ModeSaga ProvisionMode = "saga"
)

var tracer = otel.Tracer("github.com/fairshare/fairshare/internal/service")

// ProvisionInput defines input for provisioning a group.
type ProvisionInput struct {
	UserName  string
	UserEmail string
	GroupName string
}

// ProvisionResult is the outcome of a successful provisioning.
type ProvisionResult struct {
	ProvisionID string
	User        *model.User
	Group       *model.Group
}

// ProvisioningWorkflow creates a user and a group administered by that user.
type ProvisioningWorkflow struct {
	users   *UserService
	groups  *GroupService
	tx      TxProvisioner
	mode    ProvisionMode
	metrics metrics.Recorder
}

// NewProvisioningWorkflow creates a workflow. tx may be nil, in which case
// the saga path is used regardless of mode.
func NewProvisioningWorkflow(users *UserService, groups *GroupService, tx TxProvisioner, mode ProvisionMode, recorder metrics.Recorder) *ProvisioningWorkflow {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if mode == "" {
		mode = ModeAtomic
	}
	return &ProvisioningWorkflow{
		users:   users,
		groups:  groups,
		tx:      tx,
		mode:    mode,
		metrics: recorder,
	}
}

// Atomic reports whether provisioning runs in a single transaction.
func (w *ProvisioningWorkflow) Atomic() bool {
	return w.mode == ModeAtomic && w.tx != nil
}

// ProvisionGroup validates the input, creates the user and then the group.
//
// Validation failures return *ValidationError before any write. In saga mode
// a definite group failure returns *PartialProvisioningFailure naming the
// created user; it is never retried or compensated here. Writes whose commit
// status is unknown return *AmbiguousOutcomeError.
func (w *ProvisioningWorkflow) ProvisionGroup(ctx context.Context, input ProvisionInput) (*ProvisionResult, error) {
	provisionID := newProvisionID()
	start := time.Now()

	ctx, span := tracer.Start(ctx, "provision_group", trace.WithAttributes(
		attribute.String("provision.id", provisionID),
		attribute.Bool("provision.atomic", w.Atomic()),
	))
	defer span.End()

	result, outcome, err := w.provision(ctx, provisionID, input)

	w.metrics.IncProvision(outcome)
	w.metrics.ObserveProvisionDuration(time.Since(start))
	span.SetAttributes(attribute.String("provision.result", outcome))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int64("user.id", result.User.ID),
		attribute.Int64("group.id", result.Group.ID),
	)
	slog.InfoContext(ctx, "group_provisioned",
		"provision_id", provisionID,
		"user_id", result.User.ID,
		"group_id", result.Group.ID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// provision runs the workflow and returns the metrics result label.
func (w *ProvisioningWorkflow) provision(ctx context.Context, provisionID string, input ProvisionInput) (*ProvisionResult, string, error) {
	userName := strings.TrimSpace(input.UserName)
	userEmail := model.NormalizeEmail(input.UserEmail)
	groupName := strings.TrimSpace(input.GroupName)

	if err := validateStruct(provisionFields{UserName: userName, UserEmail: userEmail, GroupName: groupName}); err != nil {
		return nil, metrics.ProvisionValidationError, err
	}

	if w.Atomic() {
		return w.provisionAtomic(ctx, provisionID, userName, userEmail, groupName)
	}
	return w.provisionSaga(ctx, provisionID, userName, userEmail, groupName)
}

func (w *ProvisioningWorkflow) provisionSaga(ctx context.Context, provisionID, userName, userEmail, groupName string) (*ProvisionResult, string, error) {
	userCtx, userSpan := tracer.Start(ctx, "create_user")
	user, err := w.users.create(userCtx, userName, userEmail)
	endSpan(userSpan, err)
	if err != nil {
		var ambiguous *AmbiguousOutcomeError
		if errors.As(err, &ambiguous) {
			ambiguous.ProvisionID = provisionID
			slog.ErrorContext(ctx, "provisioning_ambiguous_outcome",
				"provision_id", provisionID,
				"step", StepCreateUser,
				"error", err,
			)
			return nil, metrics.ProvisionAmbiguous, ambiguous
		}
		return nil, metrics.ProvisionUserFailed, err
	}

	groupCtx, groupSpan := tracer.Start(ctx, "create_group", trace.WithAttributes(
		attribute.Int64("user.id", user.ID),
	))
	group, err := w.groups.create(groupCtx, groupName, user.ID)
	endSpan(groupSpan, err)
	if err != nil {
		var ambiguous *AmbiguousOutcomeError
		if errors.As(err, &ambiguous) {
			ambiguous.ProvisionID = provisionID
			ambiguous.UserID = user.ID
			slog.ErrorContext(ctx, "provisioning_ambiguous_outcome",
				"provision_id", provisionID,
				"step", StepCreateGroup,
				"user_id", user.ID,
				"error", err,
			)
			return nil, metrics.ProvisionAmbiguous, ambiguous
		}

		w.metrics.IncOrphanedUser()
		slog.ErrorContext(ctx, "provisioning_partial_failure",
			"provision_id", provisionID,
			"user_id", user.ID,
			"error", err,
		)
		return nil, metrics.ProvisionPartialFailure, &PartialProvisioningFailure{
			ProvisionID: provisionID,
			UserID:      user.ID,
			Cause:       err,
		}
	}

	return &ProvisionResult{ProvisionID: provisionID, User: user, Group: group}, metrics.ProvisionSuccess, nil
}

func (w *ProvisioningWorkflow) provisionAtomic(ctx context.Context, provisionID, userName, userEmail, groupName string) (*ProvisionResult, string, error) {
	createdAt := w.users.clock()
	user := &model.User{Name: userName, Email: userEmail, CreatedAt: createdAt}
	group := &model.Group{Name: groupName, CreatedAt: createdAt}

	txCtx, span := tracer.Start(ctx, "provision_tx")
	storeCtx, cancel := withTimeout(txCtx, w.users.storeTimeout)
	err := w.tx.ProvisionGroup(storeCtx, user, group)
	cancel()
	endSpan(span, err)

	if err != nil {
		switch {
		case errors.Is(err, repository.ErrEmailExists):
			return nil, metrics.ProvisionUserFailed, ErrEmailTaken
		case errors.Is(err, repository.ErrOutcomeUnknown):
			slog.ErrorContext(ctx, "provisioning_ambiguous_outcome",
				"provision_id", provisionID,
				"step", StepProvision,
				"error", err,
			)
			return nil, metrics.ProvisionAmbiguous, &AmbiguousOutcomeError{
				ProvisionID: provisionID,
				Step:        StepProvision,
				Cause:       err,
			}
		default:
			return nil, metrics.ProvisionTxFailed, fmt.Errorf("failed to provision group: %w", err)
		}
	}

	w.users.metrics.IncUserCreated()
	slog.InfoContext(ctx, "user_created", "user_id", user.ID)
	w.groups.created(ctx, group)

	return &ProvisionResult{ProvisionID: provisionID, User: user, Group: group}, metrics.ProvisionSuccess, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func newProvisionID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}
