package rooms

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/davidortega/channelsync-backend/pkg/db/models"
	"github.com/davidortega/channelsync-backend/pkg/enums"
)

func setupRoomsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	roomTypes := `
CREATE TABLE IF NOT EXISTS room_types (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT,
  total_units INTEGER NOT NULL,
  base_rate TEXT NOT NULL,
  currency TEXT NOT NULL DEFAULT 'USD',
  max_guests INTEGER NOT NULL DEFAULT 2,
  created_at DATETIME,
  updated_at DATETIME
);`
	mappings := `
CREATE TABLE IF NOT EXISTS channel_mappings (
  id TEXT PRIMARY KEY,
  room_type_id TEXT NOT NULL,
  channel TEXT NOT NULL,
  ota_room_id TEXT NOT NULL,
  ota_property_id TEXT,
  ical_url TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_channel_mappings_room_channel
  ON channel_mappings (room_type_id, channel);`

	require.NoError(t, conn.Exec(roomTypes).Error)
	require.NoError(t, conn.Exec(mappings).Error)
	return conn
}

func mustCreateRoomType(t *testing.T, conn *gorm.DB, name string, units int) *models.RoomType {
	t.Helper()
	roomType := &models.RoomType{
		ID:         uuid.New(),
		Name:       name,
		TotalUnits: units,
		BaseRate:   decimal.NewFromInt(120),
		Currency:   "USD",
		MaxGuests:  2,
	}
	require.NoError(t, conn.Create(roomType).Error)
	return roomType
}

func TestRepositoryRoomTypeCRUD(t *testing.T) {
	conn := setupRoomsTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	created := mustCreateRoomType(t, conn, "Deluxe King", 10)

	got, err := repo.GetRoomType(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Deluxe King", got.Name)
	assert.Equal(t, 10, got.TotalUnits)

	got.TotalUnits = 12
	require.NoError(t, repo.UpdateRoomType(ctx, got))

	all, err := repo.ListRoomTypes(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 12, all[0].TotalUnits)
}

func TestRepositoryMappingUniqueness(t *testing.T) {
	conn := setupRoomsTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	roomType := mustCreateRoomType(t, conn, "Standard Queen", 5)

	first := &models.ChannelMapping{
		ID:         uuid.New(),
		RoomTypeID: roomType.ID,
		Channel:    enums.ChannelBookingCom,
		OTARoomID:  "bdc-889",
		IsActive:   true,
	}
	require.NoError(t, repo.CreateMapping(ctx, first))

	dup := &models.ChannelMapping{
		ID:         uuid.New(),
		RoomTypeID: roomType.ID,
		Channel:    enums.ChannelBookingCom,
		OTARoomID:  "bdc-890",
		IsActive:   true,
	}
	require.Error(t, repo.CreateMapping(ctx, dup))
}

func TestRepositoryActiveFeedMappings(t *testing.T) {
	conn := setupRoomsTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	roomType := mustCreateRoomType(t, conn, "Suite", 3)

	feedURL := "https://airbnb.test/calendar.ics"
	withFeed := &models.ChannelMapping{
		ID:         uuid.New(),
		RoomTypeID: roomType.ID,
		Channel:    enums.ChannelAirbnb,
		OTARoomID:  "abnb-1",
		ICalURL:    &feedURL,
		IsActive:   true,
	}
	require.NoError(t, repo.CreateMapping(ctx, withFeed))

	noFeed := &models.ChannelMapping{
		ID:         uuid.New(),
		RoomTypeID: roomType.ID,
		Channel:    enums.ChannelExpedia,
		OTARoomID:  "exp-1",
		IsActive:   true,
	}
	require.NoError(t, repo.CreateMapping(ctx, noFeed))

	feeds, err := repo.ListActiveFeedMappings(ctx)
	require.NoError(t, err)
	require.Len(t, feeds, 1)
	assert.Equal(t, enums.ChannelAirbnb, feeds[0].Channel)

	// deactivated mappings fall out of the feed list
	found, err := repo.SetMappingActive(ctx, withFeed.ID, false)
	require.NoError(t, err)
	assert.True(t, found)

	feeds, err = repo.ListActiveFeedMappings(ctx)
	require.NoError(t, err)
	assert.Empty(t, feeds)
}

func TestRepositoryListActiveMappingsByChannel(t *testing.T) {
	conn := setupRoomsTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	a := mustCreateRoomType(t, conn, "A", 2)
	b := mustCreateRoomType(t, conn, "B", 4)

	for _, rt := range []*models.RoomType{a, b} {
		require.NoError(t, repo.CreateMapping(ctx, &models.ChannelMapping{
			ID:         uuid.New(),
			RoomTypeID: rt.ID,
			Channel:    enums.ChannelExpedia,
			OTARoomID:  "exp-" + rt.Name,
			IsActive:   true,
		}))
	}

	mappings, err := repo.ListActiveMappingsByChannel(ctx, enums.ChannelExpedia)
	require.NoError(t, err)
	assert.Len(t, mappings, 2)

	mappings, err = repo.ListActiveMappingsByChannel(ctx, enums.ChannelAgoda)
	require.NoError(t, err)
	assert.Empty(t, mappings)
}
