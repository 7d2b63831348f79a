package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/davidortega/channelsync-backend/api/validators"
	"github.com/davidortega/channelsync-backend/pkg/enums"
	pkgerrors "github.com/davidortega/channelsync-backend/pkg/errors"
)

func parseChannelParam(r *http.Request) (enums.Channel, error) {
	raw := chi.URLParam(r, "channel")
	channel, err := enums.ParseChannel(raw)
	if err != nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "unknown channel").
			WithDetails(map[string]any{"channel": raw})
	}
	return channel, nil
}

func parseBodyDate(field, value string) (time.Time, error) {
	parsed, err := time.Parse(validators.DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "must be a YYYY-MM-DD date").
			WithDetails(map[string]any{"field": field})
	}
	return parsed, nil
}
