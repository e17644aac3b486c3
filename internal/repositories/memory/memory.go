package memory

import (
	"context"
	"sync"

	"github.com/chrisdamba/menustats/internal/models"
	"github.com/chrisdamba/menustats/internal/repositories"
	"github.com/samber/lo"
)

// table keeps rows per restaurant in insertion order.
type table[T any] struct {
	rows  map[string]map[string]T
	order map[string][]string
}

func newTable[T any]() table[T] {
	return table[T]{rows: make(map[string]map[string]T), order: make(map[string][]string)}
}

func (t *table[T]) get(restaurantID, id string) (T, bool) {
	row, ok := t.rows[restaurantID][id]
	return row, ok
}

func (t *table[T]) put(restaurantID, id string, row T) {
	byID, ok := t.rows[restaurantID]
	if !ok {
		byID = make(map[string]T)
		t.rows[restaurantID] = byID
	}
	if _, exists := byID[id]; !exists {
		t.order[restaurantID] = append(t.order[restaurantID], id)
	}
	byID[id] = row
}

func (t *table[T]) delete(restaurantID, id string) bool {
	if _, ok := t.rows[restaurantID][id]; !ok {
		return false
	}
	delete(t.rows[restaurantID], id)
	t.order[restaurantID] = lo.Without(t.order[restaurantID], id)
	return true
}

func (t *table[T]) scan(restaurantID string) []T {
	out := make([]T, 0, len(t.order[restaurantID]))
	for _, id := range t.order[restaurantID] {
		out = append(out, t.rows[restaurantID][id])
	}
	return out
}

type DishRepository struct {
	mu     sync.RWMutex
	dishes table[models.Dish]
}

func NewDishRepository() *DishRepository {
	return &DishRepository{dishes: newTable[models.Dish]()}
}

func (r *DishRepository) Scan(_ context.Context, restaurantID string) ([]models.Dish, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Map(r.dishes.scan(restaurantID), func(d models.Dish, _ int) models.Dish { return cloneDish(d) }), nil
}

func (r *DishRepository) Get(_ context.Context, restaurantID, dishID string) (*models.Dish, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.dishes.get(restaurantID, dishID)
	if !ok {
		return nil, repositories.ErrNotFound
	}
	d = cloneDish(d)
	return &d, nil
}

func (r *DishRepository) Put(_ context.Context, dish *models.Dish) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dishes.put(dish.RestaurantID, dish.ID, cloneDish(*dish))
	return nil
}

func (r *DishRepository) BulkCreate(ctx context.Context, dishes []*models.Dish) error {
	for _, d := range dishes {
		if err := r.Put(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

func (r *DishRepository) Update(_ context.Context, dish *models.Dish) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.dishes.get(dish.RestaurantID, dish.ID); !ok {
		return repositories.ErrNotFound
	}
	r.dishes.put(dish.RestaurantID, dish.ID, cloneDish(*dish))
	return nil
}

func (r *DishRepository) Delete(_ context.Context, restaurantID, dishID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.dishes.delete(restaurantID, dishID) {
		return repositories.ErrNotFound
	}
	return nil
}

func (r *DishRepository) AppendSale(_ context.Context, restaurantID, dishID string, sale models.Sale) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.dishes.get(restaurantID, dishID)
	if !ok {
		return repositories.ErrNotFound
	}
	d.Sales = append(cloneSales(d.Sales), cloneSale(sale))
	r.dishes.put(restaurantID, dishID, d)
	return nil
}

func (r *DishRepository) DeleteAll(_ context.Context, restaurantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.dishes.rows, restaurantID)
	delete(r.dishes.order, restaurantID)
	return nil
}

type MenuRepository struct {
	mu    sync.RWMutex
	menus table[models.Menu]
}

func NewMenuRepository() *MenuRepository {
	return &MenuRepository{menus: newTable[models.Menu]()}
}

func (r *MenuRepository) Scan(_ context.Context, restaurantID string) ([]models.Menu, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Map(r.menus.scan(restaurantID), func(m models.Menu, _ int) models.Menu { return cloneMenu(m) }), nil
}

func (r *MenuRepository) Get(_ context.Context, restaurantID, menuID string) (*models.Menu, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.menus.get(restaurantID, menuID)
	if !ok {
		return nil, repositories.ErrNotFound
	}
	m = cloneMenu(m)
	return &m, nil
}

func (r *MenuRepository) Put(_ context.Context, menu *models.Menu) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.menus.put(menu.RestaurantID, menu.ID, cloneMenu(*menu))
	if menu.IsLive {
		r.clearLive(menu.RestaurantID, menu.ID)
	}
	return nil
}

func (r *MenuRepository) Update(_ context.Context, menu *models.Menu) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.menus.get(menu.RestaurantID, menu.ID)
	if !ok {
		return repositories.ErrNotFound
	}
	updated := cloneMenu(*menu)
	updated.IsLive = current.IsLive
	r.menus.put(menu.RestaurantID, menu.ID, updated)
	return nil
}

func (r *MenuRepository) Delete(_ context.Context, restaurantID, menuID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.menus.delete(restaurantID, menuID) {
		return repositories.ErrNotFound
	}
	return nil
}

func (r *MenuRepository) SetLive(_ context.Context, restaurantID, menuID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.menus.get(restaurantID, menuID)
	if !ok {
		return repositories.ErrNotFound
	}
	r.clearLive(restaurantID, menuID)
	m.IsLive = true
	r.menus.put(restaurantID, menuID, m)
	return nil
}

func (r *MenuRepository) clearLive(restaurantID, except string) {
	for id, m := range r.menus.rows[restaurantID] {
		if id != except && m.IsLive {
			m.IsLive = false
			r.menus.rows[restaurantID][id] = m
		}
	}
}

type RestaurantRepository struct {
	mu          sync.RWMutex
	restaurants table[models.Restaurant]
}

func NewRestaurantRepository() *RestaurantRepository {
	return &RestaurantRepository{restaurants: newTable[models.Restaurant]()}
}

// all restaurants live under one partition
const restaurantPartition = ""

func (r *RestaurantRepository) Put(_ context.Context, restaurant *models.Restaurant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *restaurant
	c.Cuisines = append([]string{}, restaurant.Cuisines...)
	c.Location = cloneLocation(restaurant.Location)
	r.restaurants.put(restaurantPartition, c.ID, c)
	return nil
}

func (r *RestaurantRepository) Get(_ context.Context, id string) (*models.Restaurant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.restaurants.get(restaurantPartition, id)
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &c, nil
}

func (r *RestaurantRepository) Scan(_ context.Context) ([]models.Restaurant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.restaurants.scan(restaurantPartition), nil
}

func cloneDish(d models.Dish) models.Dish {
	d.Ingredients = append([]string{}, d.Ingredients...)
	d.Sales = cloneSales(d.Sales)
	return d
}

func cloneSales(sales []models.Sale) []models.Sale {
	return lo.Map(sales, func(s models.Sale, _ int) models.Sale { return cloneSale(s) })
}

func cloneSale(s models.Sale) models.Sale {
	if s.Location != nil {
		loc := cloneLocation(*s.Location)
		s.Location = &loc
	}
	return s
}

func cloneLocation(l models.Location) models.Location {
	if l.Lat != nil {
		lat := *l.Lat
		l.Lat = &lat
	}
	if l.Lon != nil {
		lon := *l.Lon
		l.Lon = &lon
	}
	return l
}

func cloneMenu(m models.Menu) models.Menu {
	m.Dishes = append([]models.MenuDish{}, m.Dishes...)
	return m
}
