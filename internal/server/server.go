package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/chrisdamba/menustats/internal/analytics"
	"github.com/chrisdamba/menustats/internal/menu"
	"github.com/chrisdamba/menustats/internal/repositories"
	"github.com/gorilla/mux"
	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("server")

// Server exposes dish sales recording, menus and on-demand analytics over
// HTTP.
type Server struct {
	restaurants repositories.RestaurantRepository
	dishes      repositories.DishRepository
	menus       *menu.Service
	weather     analytics.WeatherLookup
	options     analytics.Options
	router      *mux.Router
}

func New(restaurants repositories.RestaurantRepository, dishes repositories.DishRepository, menus *menu.Service, lookup analytics.WeatherLookup, opts analytics.Options) *Server {
	s := &Server{
		restaurants: restaurants,
		dishes:      dishes,
		menus:       menus,
		weather:     lookup,
		options:     opts,
		router:      mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)

	rr := r.PathPrefix("/restaurants/{restaurantID}").Subrouter()
	rr.HandleFunc("/analytics", s.dishAnalytics).Methods(http.MethodGet)
	rr.HandleFunc("/dishes", s.listDishes).Methods(http.MethodGet)
	rr.HandleFunc("/dishes/{dishID}/sales", s.recordSale).Methods(http.MethodPost)
	rr.HandleFunc("/dishes/{dishID}/archive", s.archiveDish).Methods(http.MethodPost)
	rr.HandleFunc("/menus", s.createMenu).Methods(http.MethodPost)
	rr.HandleFunc("/menus/live", s.liveMenu).Methods(http.MethodGet)
	rr.HandleFunc("/menus/{menuID}/live", s.setLiveMenu).Methods(http.MethodPut)

	r.Use(requestLogger)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// HTTPServer wraps the handler with the timeouts used in production.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// ListenAndServe runs until ctx is cancelled, then drains in-flight
// requests for up to 30 seconds.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := s.HTTPServer(addr)
	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debugf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("error encoding response: %v", err)
	}
}

type badRequest struct{ err error }

func (b badRequest) Error() string { return b.err.Error() }
func (b badRequest) Unwrap() error { return b.err }

// writeError maps domain errors to status codes. Unexpected errors are
// logged and reported without detail.
func writeError(w http.ResponseWriter, err error) {
	var bad badRequest
	switch {
	case errors.As(err, &bad), errors.Is(err, menu.ErrInvalidMenu):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, repositories.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, menu.ErrArchived):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		log.Errorf("internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}
