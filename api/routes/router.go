package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/davidortega/channelsync-backend/api/controllers"
	"github.com/davidortega/channelsync-backend/api/middleware"
	"github.com/davidortega/channelsync-backend/internal/bookings"
	"github.com/davidortega/channelsync-backend/internal/health"
	"github.com/davidortega/channelsync-backend/internal/ledger"
	"github.com/davidortega/channelsync-backend/internal/reconcile"
	"github.com/davidortega/channelsync-backend/internal/rooms"
	"github.com/davidortega/channelsync-backend/internal/scheduler"
	"github.com/davidortega/channelsync-backend/pkg/config"
	"github.com/davidortega/channelsync-backend/pkg/db"
	"github.com/davidortega/channelsync-backend/pkg/logger"
	"github.com/davidortega/channelsync-backend/pkg/redis"
)

// RouterParams carries everything the HTTP surface needs.
type RouterParams struct {
	Config *config.Config
	Logger *logger.Logger

	DBPinger    db.Pinger
	RedisClient *redis.Client

	LedgerService    ledger.Service
	ReconcileService reconcile.Service
	RoomsService     rooms.Service
	RoomsRepo        rooms.Repository
	BookingsService  bookings.Service
	Monitor          *health.Monitor
	DeadLetters      scheduler.DeadLetterRepository
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DBPinger, p.RedisClient))
		r.Get("/channels", controllers.ChannelHealth(p.Monitor))
		r.Post("/channels/{channel}/reset", controllers.ChannelHealthReset(p.Monitor, logg))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(p.RedisClient, logg))

		r.Route("/webhook", func(r chi.Router) {
			r.Post("/booking-received", controllers.BookingReceived(p.ReconcileService, logg))
			r.Post("/booking-cancelled", controllers.BookingCancelled(p.ReconcileService, logg))
			r.Post("/{channel}/ical-sync", controllers.ICalSync(p.ReconcileService, p.RoomsRepo, logg))
		})

		r.Route("/inventory/{roomTypeId}", func(r chi.Router) {
			r.Get("/", controllers.InventoryRange(p.LedgerService, logg))
			r.Post("/bulk", controllers.InventoryBulk(p.ReconcileService, logg))
		})

		r.Post("/rates/{roomTypeId}/parity", controllers.RateParity(p.ReconcileService, logg))

		r.Route("/bookings", func(r chi.Router) {
			r.Get("/", controllers.BookingList(p.BookingsService, logg))
			r.Get("/{bookingId}", controllers.BookingDetail(p.BookingsService, logg))
			r.Post("/{bookingId}/resolve", controllers.BookingResolve(p.ReconcileService, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Route("/room-types", func(r chi.Router) {
				r.Get("/", controllers.RoomTypeList(p.RoomsService, logg))
				r.Post("/", controllers.RoomTypeCreate(p.RoomsService, logg))
				r.Route("/{roomTypeId}", func(r chi.Router) {
					r.Get("/", controllers.RoomTypeDetail(p.RoomsService, logg))
					r.Patch("/", controllers.RoomTypeUpdate(p.RoomsService, logg))
					r.Get("/mappings", controllers.MappingList(p.RoomsService, logg))
					r.Post("/mappings", controllers.MappingCreate(p.RoomsService, logg))
				})
			})
			r.Patch("/mappings/{mappingId}", controllers.MappingSetActive(p.RoomsService, logg))
			r.Route("/dead-letters", func(r chi.Router) {
				r.Get("/", controllers.DeadLetterList(p.DeadLetters, logg))
				r.Delete("/{deadLetterId}", controllers.DeadLetterDelete(p.DeadLetters, logg))
			})
		})
	})

	return r
}
