package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chrisdamba/menustats/internal/models"
	"github.com/chrisdamba/menustats/internal/repositories"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DishRepository struct {
	pool *pgxpool.Pool
}

func NewDishRepository(pool *pgxpool.Pool) *DishRepository {
	return &DishRepository{pool: pool}
}

const dishColumns = `id, restaurant_id, name, description, price, ingredients, sales, archived`

func (r *DishRepository) BulkCreate(ctx context.Context, dishes []*models.Dish) error {
	_, err := r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"dishes"},
		[]string{
			"id", "restaurant_id", "name", "description", "price",
			"ingredients", "sales", "archived",
		},
		pgx.CopyFromSlice(len(dishes), func(i int) ([]interface{}, error) {
			sales, err := json.Marshal(salesOrEmpty(dishes[i].Sales))
			if err != nil {
				return nil, err
			}
			return []interface{}{
				dishes[i].ID,
				dishes[i].RestaurantID,
				dishes[i].Name,
				dishes[i].Description,
				toNumeric(dishes[i].Price),
				stringsOrEmpty(dishes[i].Ingredients),
				sales,
				dishes[i].Archived,
			}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copy dishes: %w", err)
	}
	return nil
}

// Put inserts the dish or replaces the stored row with the same id.
func (r *DishRepository) Put(ctx context.Context, dish *models.Dish) error {
	query := `
        INSERT INTO dishes (` + dishColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (id) DO UPDATE SET
            restaurant_id = EXCLUDED.restaurant_id,
            name          = EXCLUDED.name,
            description   = EXCLUDED.description,
            price         = EXCLUDED.price,
            ingredients   = EXCLUDED.ingredients,
            sales         = EXCLUDED.sales,
            archived      = EXCLUDED.archived,
            updated_at    = now()
    `
	args, err := dishArgs(dish)
	if err != nil {
		return err
	}
	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("put dish %s: %w", dish.ID, err)
	}
	return nil
}

func (r *DishRepository) Update(ctx context.Context, dish *models.Dish) error {
	query := `
        UPDATE dishes SET
            name        = $3,
            description = $4,
            price       = $5,
            ingredients = $6,
            sales       = $7,
            archived    = $8,
            updated_at  = now()
        WHERE id = $1 AND restaurant_id = $2
    `
	args, err := dishArgs(dish)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update dish %s: %w", dish.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

func (r *DishRepository) Get(ctx context.Context, restaurantID, dishID string) (*models.Dish, error) {
	query := `SELECT ` + dishColumns + ` FROM dishes WHERE restaurant_id = $1 AND id = $2`
	dish, err := scanDish(r.pool.QueryRow(ctx, query, restaurantID, dishID))
	if notFound(err) {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get dish %s: %w", dishID, err)
	}
	return dish, nil
}

func (r *DishRepository) Scan(ctx context.Context, restaurantID string) ([]models.Dish, error) {
	query := `
        SELECT ` + dishColumns + `
        FROM dishes
        WHERE restaurant_id = $1
        ORDER BY created_at, id
    `
	rows, err := r.pool.Query(ctx, query, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("scan dishes: %w", err)
	}
	defer rows.Close()

	dishes := []models.Dish{}
	for rows.Next() {
		dish, err := scanDish(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dishes: %w", err)
		}
		dishes = append(dishes, *dish)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan dishes: %w", err)
	}
	return dishes, nil
}

func (r *DishRepository) Delete(ctx context.Context, restaurantID, dishID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM dishes WHERE restaurant_id = $1 AND id = $2`, restaurantID, dishID)
	if err != nil {
		return fmt.Errorf("delete dish %s: %w", dishID, err)
	}
	if tag.RowsAffected() == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

// AppendSale adds one sale to the dish's embedded list without rewriting
// the rest of the row.
func (r *DishRepository) AppendSale(ctx context.Context, restaurantID, dishID string, sale models.Sale) error {
	payload, err := json.Marshal([]models.Sale{sale})
	if err != nil {
		return err
	}
	query := `
        UPDATE dishes
        SET sales = COALESCE(sales, '[]'::jsonb) || $3::jsonb, updated_at = now()
        WHERE restaurant_id = $1 AND id = $2
    `
	tag, err := r.pool.Exec(ctx, query, restaurantID, dishID, payload)
	if err != nil {
		return fmt.Errorf("append sale to %s: %w", dishID, err)
	}
	if tag.RowsAffected() == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

func (r *DishRepository) DeleteAll(ctx context.Context, restaurantID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM dishes WHERE restaurant_id = $1`, restaurantID)
	return err
}

func dishArgs(dish *models.Dish) ([]interface{}, error) {
	sales, err := json.Marshal(salesOrEmpty(dish.Sales))
	if err != nil {
		return nil, fmt.Errorf("encode sales of %s: %w", dish.ID, err)
	}
	return []interface{}{
		dish.ID,
		dish.RestaurantID,
		dish.Name,
		dish.Description,
		toNumeric(dish.Price),
		stringsOrEmpty(dish.Ingredients),
		sales,
		dish.Archived,
	}, nil
}

func scanDish(row pgx.Row) (*models.Dish, error) {
	var (
		dish  models.Dish
		price pgtype.Numeric
		sales []byte
	)
	err := row.Scan(
		&dish.ID,
		&dish.RestaurantID,
		&dish.Name,
		&dish.Description,
		&price,
		&dish.Ingredients,
		&sales,
		&dish.Archived,
	)
	if err != nil {
		return nil, err
	}
	if dish.Price, err = fromNumeric(price); err != nil {
		return nil, fmt.Errorf("dish %s: %w", dish.ID, err)
	}
	if err := json.Unmarshal(sales, &dish.Sales); err != nil {
		return nil, fmt.Errorf("dish %s: decode sales: %w", dish.ID, err)
	}
	dish.Ingredients = stringsOrEmpty(dish.Ingredients)
	dish.Sales = salesOrEmpty(dish.Sales)
	return &dish, nil
}

func salesOrEmpty(s []models.Sale) []models.Sale {
	if s == nil {
		return []models.Sale{}
	}
	return s
}

func stringsOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
