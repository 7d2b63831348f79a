package channels

import (
	"time"

	"github.com/davidortega/channelsync-backend/pkg/config"
)

// NewDefaultRegistry registers the production adapter set from config.
func NewDefaultRegistry(cfg config.ChannelsConfig, timeout time.Duration) (*Registry, error) {
	registry := NewRegistry()
	adapters := []Adapter{
		NewBookingCom(cfg.BookingComURL, timeout),
		NewAirbnb(cfg.AirbnbURL, timeout),
		NewExpedia(cfg.ExpediaURL, timeout),
		NewAgoda(cfg.AgodaURL, timeout),
	}
	for _, adapter := range adapters {
		if err := registry.Register(adapter); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
