package bookings

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/davidortega/channelsync-backend/pkg/db/models"
	"github.com/davidortega/channelsync-backend/pkg/enums"
	"github.com/davidortega/channelsync-backend/pkg/pagination"
)

func setupBookingsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS bookings (
  id TEXT PRIMARY KEY,
  room_type_id TEXT NOT NULL,
  channel TEXT NOT NULL,
  external_reservation_id TEXT NOT NULL,
  check_in DATETIME NOT NULL,
  check_out DATETIME NOT NULL,
  units INTEGER NOT NULL DEFAULT 1,
  guest_name TEXT,
  guest_email TEXT,
  status TEXT NOT NULL DEFAULT 'confirmed',
  created_at DATETIME,
  updated_at DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_bookings_channel_external_id
  ON bookings (channel, external_reservation_id);`

	require.NoError(t, conn.Exec(ddl).Error)
	return conn
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func mustCreateBooking(t *testing.T, repo Repository, roomTypeID uuid.UUID, channel enums.Channel, externalID string, checkIn, checkOut time.Time, units int, createdAt time.Time) *models.Booking {
	t.Helper()
	booking := &models.Booking{
		ID:                    uuid.New(),
		RoomTypeID:            roomTypeID,
		Channel:               channel,
		ExternalReservationID: externalID,
		CheckIn:               checkIn,
		CheckOut:              checkOut,
		Units:                 units,
		Status:                enums.BookingStatusConfirmed,
		CreatedAt:             createdAt,
	}
	require.NoError(t, repo.Create(context.Background(), booking))
	return booking
}

func TestRepositoryDuplicateExternalID(t *testing.T) {
	conn := setupBookingsTestDB(t)
	repo := NewRepository(conn)
	roomTypeID := uuid.New()

	mustCreateBooking(t, repo, roomTypeID, enums.ChannelBookingCom, "r-1",
		date(2026, 9, 15), date(2026, 9, 17), 1, time.Now().UTC())

	dup := &models.Booking{
		ID:                    uuid.New(),
		RoomTypeID:            roomTypeID,
		Channel:               enums.ChannelBookingCom,
		ExternalReservationID: "r-1",
		CheckIn:               date(2026, 10, 1),
		CheckOut:              date(2026, 10, 2),
		Units:                 1,
		Status:                enums.BookingStatusConfirmed,
	}
	require.Error(t, repo.Create(context.Background(), dup))

	// same external id on another channel is fine
	other := *dup
	other.Channel = enums.ChannelExpedia
	require.NoError(t, repo.Create(context.Background(), &other))
}

func TestRepositoryOverlapQueryAndOrdering(t *testing.T) {
	conn := setupBookingsTestDB(t)
	repo := NewRepository(conn)
	roomTypeID := uuid.New()
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	// later-created booking inserted first to prove ordering is by created_at
	second := mustCreateBooking(t, repo, roomTypeID, enums.ChannelExpedia, "x-2",
		date(2026, 9, 16), date(2026, 9, 18), 9, base.Add(time.Hour))
	first := mustCreateBooking(t, repo, roomTypeID, enums.ChannelBookingCom, "x-1",
		date(2026, 9, 15), date(2026, 9, 17), 2, base)
	// adjacent stay: checks out the day the range starts, no overlap
	mustCreateBooking(t, repo, roomTypeID, enums.ChannelAgoda, "x-3",
		date(2026, 9, 10), date(2026, 9, 15), 1, base)

	overlapping, err := repo.ListConfirmedOverlapping(context.Background(), roomTypeID,
		date(2026, 9, 15), date(2026, 9, 18))
	require.NoError(t, err)
	require.Len(t, overlapping, 2)
	assert.Equal(t, first.ID, overlapping[0].ID, "earliest created_at first")
	assert.Equal(t, second.ID, overlapping[1].ID)
}

func TestRepositoryListFilters(t *testing.T) {
	conn := setupBookingsTestDB(t)
	repo := NewRepository(conn)
	roomTypeID := uuid.New()

	booking := mustCreateBooking(t, repo, roomTypeID, enums.ChannelAirbnb, "a-1",
		date(2026, 9, 1), date(2026, 9, 3), 1, time.Now().UTC())
	booking.Status = enums.BookingStatusConflict
	require.NoError(t, repo.Update(context.Background(), booking))

	status := enums.BookingStatusConflict
	rows, err := repo.List(context.Background(), ListParams{RoomTypeID: &roomTypeID, Status: &status})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, booking.ID, rows[0].ID)

	status = enums.BookingStatusConfirmed
	rows, err = repo.List(context.Background(), ListParams{RoomTypeID: &roomTypeID, Status: &status})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestServiceListConflicts(t *testing.T) {
	conn := setupBookingsTestDB(t)
	repo := NewRepository(conn)
	svc, err := NewService(repo)
	require.NoError(t, err)
	roomTypeID := uuid.New()

	booking := mustCreateBooking(t, repo, roomTypeID, enums.ChannelAgoda, "g-1",
		date(2026, 9, 1), date(2026, 9, 2), 1, time.Now().UTC())
	booking.Status = enums.BookingStatusConflict
	require.NoError(t, repo.Update(context.Background(), booking))

	conflicts, err := svc.ListConflicts(context.Background(), &roomTypeID)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, booking.ID, conflicts[0].ID)
}

func TestServiceListPaginatesWithCursor(t *testing.T) {
	conn := setupBookingsTestDB(t)
	repo := NewRepository(conn)
	svc, err := NewService(repo)
	require.NoError(t, err)
	roomTypeID := uuid.New()
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	var created []*models.Booking
	for i := 0; i < 5; i++ {
		created = append(created, mustCreateBooking(t, repo, roomTypeID, enums.ChannelBookingCom,
			"p-"+uuid.NewString(), date(2026, 9, 1+i), date(2026, 9, 2+i), 1, base.Add(time.Duration(i)*time.Minute)))
	}

	page, err := svc.List(context.Background(), ListParams{RoomTypeID: &roomTypeID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.NotEmpty(t, page.NextCursor, "expected more pages")
	// newest first
	assert.Equal(t, created[4].ID, page.Items[0].ID)
	assert.Equal(t, created[3].ID, page.Items[1].ID)

	cursor, err := pagination.ParseCursor(page.NextCursor)
	require.NoError(t, err)
	page, err = svc.List(context.Background(), ListParams{RoomTypeID: &roomTypeID, Limit: 2, Cursor: cursor})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, created[2].ID, page.Items[0].ID)
	assert.Equal(t, created[1].ID, page.Items[1].ID)

	cursor, err = pagination.ParseCursor(page.NextCursor)
	require.NoError(t, err)
	page, err = svc.List(context.Background(), ListParams{RoomTypeID: &roomTypeID, Limit: 2, Cursor: cursor})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Empty(t, page.NextCursor)
}

func TestServiceGetNotFound(t *testing.T) {
	conn := setupBookingsTestDB(t)
	svc, err := NewService(NewRepository(conn))
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), uuid.New())
	require.Error(t, err)
}
