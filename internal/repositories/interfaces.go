package repositories

import (
	"context"
	"errors"

	"github.com/chrisdamba/menustats/internal/models"
)

var ErrNotFound = errors.New("not found")

type RestaurantRepository interface {
	Put(ctx context.Context, restaurant *models.Restaurant) error
	Get(ctx context.Context, id string) (*models.Restaurant, error)
	Scan(ctx context.Context) ([]models.Restaurant, error)
}

// DishRepository stores dishes with their embedded sales. Scan returns a
// restaurant's dishes in creation order.
type DishRepository interface {
	Scan(ctx context.Context, restaurantID string) ([]models.Dish, error)
	Get(ctx context.Context, restaurantID, dishID string) (*models.Dish, error)
	Put(ctx context.Context, dish *models.Dish) error
	BulkCreate(ctx context.Context, dishes []*models.Dish) error
	Update(ctx context.Context, dish *models.Dish) error
	Delete(ctx context.Context, restaurantID, dishID string) error
	AppendSale(ctx context.Context, restaurantID, dishID string, sale models.Sale) error
	DeleteAll(ctx context.Context, restaurantID string) error
}

type MenuRepository interface {
	Scan(ctx context.Context, restaurantID string) ([]models.Menu, error)
	Get(ctx context.Context, restaurantID, menuID string) (*models.Menu, error)
	Put(ctx context.Context, menu *models.Menu) error
	Update(ctx context.Context, menu *models.Menu) error
	Delete(ctx context.Context, restaurantID, menuID string) error
	// SetLive makes menuID the restaurant's only live menu.
	SetLive(ctx context.Context, restaurantID, menuID string) error
}
