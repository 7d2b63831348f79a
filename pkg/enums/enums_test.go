package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChannel(t *testing.T) {
	ch, err := ParseChannel("airbnb")
	require.NoError(t, err)
	assert.Equal(t, ChannelAirbnb, ch)

	_, err = ParseChannel("hotel_tonight")
	assert.Error(t, err)
}

func TestMutationSourceRoundTrip(t *testing.T) {
	src := SourceChannel(ChannelExpedia)
	assert.Equal(t, MutationSource("channel:expedia"), src)

	ch, ok := src.Channel()
	require.True(t, ok)
	assert.Equal(t, ChannelExpedia, ch)

	_, ok = SourceManual.Channel()
	assert.False(t, ok)

	assert.True(t, SourceManual.IsValid())
	assert.True(t, SourceReconciliation.IsValid())
	assert.True(t, src.IsValid())
	assert.False(t, MutationSource("channel:bogus").IsValid())
}

func TestBookingStatusValidation(t *testing.T) {
	assert.True(t, BookingStatusConflict.IsValid())
	_, err := ParseBookingStatus("no_show")
	assert.Error(t, err)
}

func TestTaskKindValidation(t *testing.T) {
	assert.True(t, TaskKindCancellation.IsValid())
	_, err := ParseTaskKind("resync")
	assert.Error(t, err)
}
