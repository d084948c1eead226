package server

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jrsteele09/go-fermax-cloud/cloud"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// APITimeout covers a door action plus its follow-up refresh.
const APITimeout = 2 * cloud.TotalTimeout

func (s *Server) initRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.RecoverMiddleware)
	r.Use(s.LoggingMiddleware)

	r.Get(RouteHealth, s.HealthHandler())
	r.Method("GET", RouteMetrics, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route(RouteAPI, func(api chi.Router) {
		api.Use(middleware.Timeout(APITimeout))

		api.Get(RouteDevices, s.ListDevicesHandler())
		api.Get(RouteDevice, s.GetDeviceHandler())
		api.Post(RouteOpenDoor, s.OpenDoorHandler())
		api.Post(RouteRefresh, s.RefreshHandler())
		api.Get(RouteStatus, s.StatusHandler())
	})

	r.NotFound(s.NotFoundHandler())
	s.router = r
}
