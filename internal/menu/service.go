package menu

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chrisdamba/menustats/internal/models"
	"github.com/chrisdamba/menustats/internal/repositories"
	"github.com/lucsky/cuid"
	"github.com/op/go-logging"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

var log = logging.MustGetLogger("menu")

var (
	ErrArchived    = errors.New("dish is archived")
	ErrInvalidMenu = errors.New("invalid menu")
)

// Service holds the store logic that sits above plain reads and writes:
// price snapshots on sales, the archive flag and the single live menu.
type Service struct {
	dishes repositories.DishRepository
	menus  repositories.MenuRepository
	now    func() time.Time
	newID  func() string
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

func NewService(dishes repositories.DishRepository, menus repositories.MenuRepository, opts ...Option) *Service {
	s := &Service{dishes: dishes, menus: menus, now: time.Now, newID: cuid.New}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Dishes(ctx context.Context, restaurantID string) ([]models.Dish, error) {
	return s.dishes.Scan(ctx, restaurantID)
}

// RecordSale appends a sale stamped with the dish's current price. A zero
// time means now.
func (s *Service) RecordSale(ctx context.Context, restaurantID, dishID string, at time.Time, loc *models.Location) (models.Sale, error) {
	dish, err := s.dishes.Get(ctx, restaurantID, dishID)
	if err != nil {
		return models.Sale{}, err
	}
	if dish.Archived {
		return models.Sale{}, fmt.Errorf("record sale for %s: %w", dish.Name, ErrArchived)
	}
	if at.IsZero() {
		at = s.now()
	}
	sale := models.Sale{
		Time:  at.UTC(),
		Price: decimal.NewNullDecimal(dish.Price),
	}
	if loc != nil && !loc.IsZero() {
		l := *loc
		sale.Location = &l
	}
	if err := s.dishes.AppendSale(ctx, restaurantID, dishID, sale); err != nil {
		return models.Sale{}, err
	}
	log.Debugf("sale recorded: restaurant=%s dish=%s price=%s", restaurantID, dish.Name, dish.Price)
	return sale, nil
}

// ArchiveDish flags the dish; its sales history is kept.
func (s *Service) ArchiveDish(ctx context.Context, restaurantID, dishID string) (*models.Dish, error) {
	dish, err := s.dishes.Get(ctx, restaurantID, dishID)
	if err != nil {
		return nil, err
	}
	if dish.Archived {
		return dish, nil
	}
	dish.Archived = true
	if err := s.dishes.Update(ctx, dish); err != nil {
		return nil, err
	}
	log.Infof("dish archived: restaurant=%s dish=%s", restaurantID, dish.Name)
	return dish, nil
}

// CreateMenu snapshots the named dishes into a new, not yet live menu.
func (s *Service) CreateMenu(ctx context.Context, restaurantID, name, description string, dishIDs []string) (*models.Menu, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: missing name", ErrInvalidMenu)
	}
	m := &models.Menu{
		ID:           s.newID(),
		RestaurantID: restaurantID,
		Name:         name,
		Description:  description,
		Dishes:       make([]models.MenuDish, 0, len(dishIDs)),
	}
	for _, id := range lo.Uniq(dishIDs) {
		dish, err := s.dishes.Get(ctx, restaurantID, id)
		if err != nil {
			return nil, fmt.Errorf("menu %s: dish %s: %w", name, id, err)
		}
		if dish.Archived {
			return nil, fmt.Errorf("menu %s: dish %s: %w", name, dish.Name, ErrArchived)
		}
		m.Dishes = append(m.Dishes, models.SnapshotDish(dish))
	}
	if err := s.menus.Put(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) SetLiveMenu(ctx context.Context, restaurantID, menuID string) (*models.Menu, error) {
	if err := s.menus.SetLive(ctx, restaurantID, menuID); err != nil {
		return nil, err
	}
	log.Infof("live menu: restaurant=%s menu=%s", restaurantID, menuID)
	return s.menus.Get(ctx, restaurantID, menuID)
}

// LiveMenu returns the restaurant's live menu or ErrNotFound when none is.
func (s *Service) LiveMenu(ctx context.Context, restaurantID string) (*models.Menu, error) {
	menus, err := s.menus.Scan(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	live, ok := lo.Find(menus, func(m models.Menu) bool { return m.IsLive })
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &live, nil
}
