package enums

import "fmt"

// Channel identifies an external OTA integration.
type Channel string

const (
	ChannelBookingCom Channel = "booking_com"
	ChannelAirbnb     Channel = "airbnb"
	ChannelExpedia    Channel = "expedia"
	ChannelAgoda      Channel = "agoda"
)

var validChannels = []Channel{
	ChannelBookingCom,
	ChannelAirbnb,
	ChannelExpedia,
	ChannelAgoda,
}

// Channels returns all known channels in a fixed order.
func Channels() []Channel {
	out := make([]Channel, len(validChannels))
	copy(out, validChannels)
	return out
}

// IsValid reports whether the value matches a known channel.
func (c Channel) IsValid() bool {
	for _, candidate := range validChannels {
		if candidate == c {
			return true
		}
	}
	return false
}

func (c Channel) String() string {
	return string(c)
}

// ParseChannel converts raw input into a Channel.
func ParseChannel(value string) (Channel, error) {
	for _, candidate := range validChannels {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid channel %q", value)
}
