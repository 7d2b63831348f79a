package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolationPostgres(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_bookings_channel_external_id"}
	wrapped := fmt.Errorf("create booking: %w", pgErr)

	assert.True(t, IsUniqueViolation(wrapped, "ux_bookings_channel_external_id"))
	assert.True(t, IsUniqueViolation(wrapped, ""))
	assert.False(t, IsUniqueViolation(wrapped, "ux_channel_mappings_room_channel"))
}

func TestIsUniqueViolationPostgresOtherCode(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23503", ConstraintName: "fk_bookings_room_type"}
	assert.False(t, IsUniqueViolation(pgErr, ""))
}

func TestIsUniqueViolationSqlite(t *testing.T) {
	err := errors.New("UNIQUE constraint failed: channel_mappings.room_type_id, channel_mappings.channel")

	assert.True(t, IsUniqueViolation(err, "ux_channel_mappings_room_channel"))
	assert.True(t, IsUniqueViolation(err, ""))
	assert.False(t, IsUniqueViolation(err, "ux_bookings_channel_external_id"))
}

func TestIsUniqueViolationSqliteBookings(t *testing.T) {
	err := errors.New("UNIQUE constraint failed: bookings.channel, bookings.external_reservation_id")
	assert.True(t, IsUniqueViolation(err, "ux_bookings_channel_external_id"))
}

func TestIsUniqueViolationUnrelated(t *testing.T) {
	assert.False(t, IsUniqueViolation(nil, ""))
	assert.False(t, IsUniqueViolation(errors.New("connection reset"), ""))
}
