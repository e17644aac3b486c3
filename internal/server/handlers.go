package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/chrisdamba/menustats/internal/analytics"
	"github.com/chrisdamba/menustats/internal/models"
	"github.com/chrisdamba/menustats/internal/repositories"
	"github.com/gorilla/mux"
)

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// dishAnalytics runs a pass over the restaurant's stored dishes. The
// restaurant's own location stands in for sales recorded without one.
func (s *Server) dishAnalytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	restaurantID := mux.Vars(r)["restaurantID"]

	opts := s.options
	if mode := r.URL.Query().Get("anova_mode"); mode != "" {
		parsed, err := analytics.ParseANOVAMode(mode)
		if err != nil {
			writeError(w, badRequest{err})
			return
		}
		opts.ANOVAMode = parsed
	}
	if r.URL.Query().Get("exclude_archived") == "true" {
		opts.ExcludeArchived = true
	}

	restaurant, err := s.restaurants.Get(ctx, restaurantID)
	switch {
	case err == nil:
		if !restaurant.Location.IsZero() {
			opts.DefaultLocation = restaurant.Location
		}
	case errors.Is(err, repositories.ErrNotFound):
	default:
		writeError(w, err)
		return
	}

	dishes, err := s.dishes.Scan(ctx, restaurantID)
	if err != nil {
		writeError(w, err)
		return
	}
	report, err := analytics.NewEngine(s.weather, opts).Run(ctx, dishes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) listDishes(w http.ResponseWriter, r *http.Request) {
	dishes, err := s.menus.Dishes(r.Context(), mux.Vars(r)["restaurantID"])
	if err != nil {
		writeError(w, err)
		return
	}
	if dishes == nil {
		dishes = []models.Dish{}
	}
	writeJSON(w, http.StatusOK, dishes)
}

type saleRequest struct {
	Time     *time.Time       `json:"time"`
	Location *models.Location `json:"location"`
}

func (s *Server) recordSale(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req saleRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, badRequest{fmt.Errorf("invalid request body: %w", err)})
			return
		}
	}
	var at time.Time
	if req.Time != nil {
		at = *req.Time
	}

	sale, err := s.menus.RecordSale(r.Context(), vars["restaurantID"], vars["dishID"], at, req.Location)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sale)
}

func (s *Server) archiveDish(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	dish, err := s.menus.ArchiveDish(r.Context(), vars["restaurantID"], vars["dishID"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dish)
}

type menuRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	DishIDs     []string `json:"dish_ids"`
}

func (s *Server) createMenu(w http.ResponseWriter, r *http.Request) {
	var req menuRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, badRequest{fmt.Errorf("invalid request body: %w", err)})
		return
	}
	m, err := s.menus.CreateMenu(r.Context(), mux.Vars(r)["restaurantID"], req.Name, req.Description, req.DishIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) liveMenu(w http.ResponseWriter, r *http.Request) {
	m, err := s.menus.LiveMenu(r.Context(), mux.Vars(r)["restaurantID"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) setLiveMenu(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	m, err := s.menus.SetLiveMenu(r.Context(), vars["restaurantID"], vars["menuID"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}
