package postgres

import (
	"context"
	"fmt"

	"github.com/chrisdamba/menustats/internal/models"
	"github.com/chrisdamba/menustats/internal/repositories"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RestaurantRepository struct {
	pool *pgxpool.Pool
}

func NewRestaurantRepository(pool *pgxpool.Pool) *RestaurantRepository {
	return &RestaurantRepository{pool: pool}
}

func (r *RestaurantRepository) Put(ctx context.Context, restaurant *models.Restaurant) error {
	query := `
        INSERT INTO restaurants (id, name, slug_name, phone, city, state, lat, lon, cuisines)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (id) DO UPDATE SET
            name       = EXCLUDED.name,
            slug_name  = EXCLUDED.slug_name,
            phone      = EXCLUDED.phone,
            city       = EXCLUDED.city,
            state      = EXCLUDED.state,
            lat        = EXCLUDED.lat,
            lon        = EXCLUDED.lon,
            cuisines   = EXCLUDED.cuisines,
            updated_at = now()
    `
	cuisines := restaurant.Cuisines
	if cuisines == nil {
		cuisines = []string{}
	}
	_, err := r.pool.Exec(ctx, query,
		restaurant.ID,
		restaurant.Name,
		restaurant.SlugName,
		restaurant.Phone,
		restaurant.Location.City,
		restaurant.Location.State,
		restaurant.Location.Lat,
		restaurant.Location.Lon,
		cuisines,
	)
	if err != nil {
		return fmt.Errorf("put restaurant %s: %w", restaurant.ID, err)
	}
	return nil
}

const restaurantQuery = `
    SELECT id, name, slug_name, phone, city, state, lat, lon, cuisines
    FROM restaurants
`

func (r *RestaurantRepository) Get(ctx context.Context, id string) (*models.Restaurant, error) {
	restaurant, err := scanRestaurant(r.pool.QueryRow(ctx, restaurantQuery+` WHERE id = $1`, id))
	if notFound(err) {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get restaurant %s: %w", id, err)
	}
	return restaurant, nil
}

func (r *RestaurantRepository) Scan(ctx context.Context) ([]models.Restaurant, error) {
	rows, err := r.pool.Query(ctx, restaurantQuery+` ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("scan restaurants: %w", err)
	}
	defer rows.Close()

	restaurants := []models.Restaurant{}
	for rows.Next() {
		restaurant, err := scanRestaurant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan restaurants: %w", err)
		}
		restaurants = append(restaurants, *restaurant)
	}
	return restaurants, rows.Err()
}

func scanRestaurant(row pgx.Row) (*models.Restaurant, error) {
	restaurant := &models.Restaurant{}
	err := row.Scan(
		&restaurant.ID,
		&restaurant.Name,
		&restaurant.SlugName,
		&restaurant.Phone,
		&restaurant.Location.City,
		&restaurant.Location.State,
		&restaurant.Location.Lat,
		&restaurant.Location.Lon,
		&restaurant.Cuisines,
	)
	if err != nil {
		return nil, err
	}
	return restaurant, nil
}
