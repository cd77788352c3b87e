package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/edu-tenant-core/pkg/database"
	appErrors "github.com/noah-isme/edu-tenant-core/pkg/errors"
)

// storageError converts a repository failure into a typed error. Typed errors
// pass through untouched so rule violations raised inside a transaction keep
// their code.
func storageError(err error, message string) error {
	if err == nil {
		return nil
	}
	var typed *appErrors.Error
	if errors.As(err, &typed) {
		return err
	}
	if database.IsTransient(err) {
		return appErrors.Wrap(err, appErrors.ErrTransient.Code, appErrors.ErrTransient.Status, appErrors.ErrTransient.Message)
	}
	return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, message)
}

// lookupError maps sql.ErrNoRows to a not found error.
func lookupError(err error, notFound, failure string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return storageError(err, failure)
}

// logFailure logs rule violations at debug and everything else at error.
func logFailure(logger *zap.Logger, err error, msg string, fields ...zap.Field) {
	if err == nil {
		return
	}
	fields = append(fields, zap.Error(err))
	if appErrors.IsBusinessRule(err) {
		logger.Debug(msg, fields...)
		return
	}
	logger.Error(msg, fields...)
}

func invalidArgument(message string) error {
	return appErrors.Clone(appErrors.ErrInvalidArgument, message)
}

func dateConflict(message string) error {
	return appErrors.Clone(appErrors.ErrDateConflict, message)
}

func stateTransition(message string) error {
	return appErrors.Clone(appErrors.ErrStateTransition, message)
}

func internalError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

type actorKey struct{}

// SystemActor is recorded when no authenticated actor is on the context.
const SystemActor = "system"

// WithActor attaches the acting user id to ctx for audit trails.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the acting user id, or SystemActor.
func ActorFromContext(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}
	return SystemActor
}
