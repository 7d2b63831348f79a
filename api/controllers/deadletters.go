package controllers

import (
	"net/http"
	"strings"

	"github.com/davidortega/channelsync-backend/api/responses"
	"github.com/davidortega/channelsync-backend/api/validators"
	"github.com/davidortega/channelsync-backend/internal/scheduler"
	"github.com/davidortega/channelsync-backend/pkg/enums"
	pkgerrors "github.com/davidortega/channelsync-backend/pkg/errors"
	"github.com/davidortega/channelsync-backend/pkg/logger"
)

// DeadLetterList returns exhausted sync tasks, newest failures first.
func DeadLetterList(repo scheduler.DeadLetterRepository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var channel *enums.Channel
		if raw := strings.TrimSpace(r.URL.Query().Get("channel")); raw != "" {
			parsed, err := enums.ParseChannel(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeValidation, "unknown channel").
						WithDetails(map[string]any{"channel": raw}))
				return
			}
			channel = &parsed
		}

		limit, err := validators.ParseQueryInt(r, "limit", 100, 1, 500)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		letters, err := repo.List(r.Context(), channel, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeStorageFailure, err, "list dead letters"))
			return
		}
		responses.WriteSuccess(w, letters)
	}
}

// DeadLetterDelete discards one dead letter after operator review.
func DeadLetterDelete(repo scheduler.DeadLetterRepository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "deadLetterId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		found, err := repo.Delete(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeStorageFailure, err, "delete dead letter"))
			return
		}
		if !found {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeNotFound, "dead letter not found"))
			return
		}
		responses.WriteSuccess(w, map[string]string{"id": id.String(), "status": "deleted"})
	}
}
