package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chrisdamba/menustats/internal/models"
	"github.com/chrisdamba/menustats/internal/repositories"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MenuRepository struct {
	pool *pgxpool.Pool
}

func NewMenuRepository(pool *pgxpool.Pool) *MenuRepository {
	return &MenuRepository{pool: pool}
}

const menuColumns = `id, restaurant_id, name, description, dishes, is_live`

// Put upserts the menu. A live menu demotes the restaurant's other menus.
func (r *MenuRepository) Put(ctx context.Context, menu *models.Menu) error {
	dishes, err := encodeMenuDishes(menu)
	if err != nil {
		return err
	}
	query := `
        INSERT INTO menus (` + menuColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (id) DO UPDATE SET
            restaurant_id = EXCLUDED.restaurant_id,
            name          = EXCLUDED.name,
            description   = EXCLUDED.description,
            dishes        = EXCLUDED.dishes,
            is_live       = EXCLUDED.is_live,
            updated_at    = now()
    `
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if menu.IsLive {
		_, err = tx.Exec(ctx, `UPDATE menus SET is_live = false, updated_at = now() WHERE restaurant_id = $1 AND id <> $2 AND is_live`,
			menu.RestaurantID, menu.ID)
		if err != nil {
			return fmt.Errorf("put menu %s: %w", menu.ID, err)
		}
	}
	_, err = tx.Exec(ctx, query,
		menu.ID,
		menu.RestaurantID,
		menu.Name,
		menu.Description,
		dishes,
		menu.IsLive,
	)
	if err != nil {
		return fmt.Errorf("put menu %s: %w", menu.ID, err)
	}
	return tx.Commit(ctx)
}

// Update rewrites everything except is_live, which only SetLive changes.
func (r *MenuRepository) Update(ctx context.Context, menu *models.Menu) error {
	dishes, err := encodeMenuDishes(menu)
	if err != nil {
		return err
	}
	query := `
        UPDATE menus SET name = $3, description = $4, dishes = $5, updated_at = now()
        WHERE id = $1 AND restaurant_id = $2
    `
	tag, err := r.pool.Exec(ctx, query, menu.ID, menu.RestaurantID, menu.Name, menu.Description, dishes)
	if err != nil {
		return fmt.Errorf("update menu %s: %w", menu.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

func (r *MenuRepository) Get(ctx context.Context, restaurantID, menuID string) (*models.Menu, error) {
	query := `SELECT ` + menuColumns + ` FROM menus WHERE restaurant_id = $1 AND id = $2`
	menu, err := scanMenu(r.pool.QueryRow(ctx, query, restaurantID, menuID))
	if notFound(err) {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get menu %s: %w", menuID, err)
	}
	return menu, nil
}

func (r *MenuRepository) Scan(ctx context.Context, restaurantID string) ([]models.Menu, error) {
	query := `SELECT ` + menuColumns + ` FROM menus WHERE restaurant_id = $1 ORDER BY created_at, id`
	rows, err := r.pool.Query(ctx, query, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("scan menus: %w", err)
	}
	defer rows.Close()

	menus := []models.Menu{}
	for rows.Next() {
		menu, err := scanMenu(rows)
		if err != nil {
			return nil, fmt.Errorf("scan menus: %w", err)
		}
		menus = append(menus, *menu)
	}
	return menus, rows.Err()
}

func (r *MenuRepository) Delete(ctx context.Context, restaurantID, menuID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM menus WHERE restaurant_id = $1 AND id = $2`, restaurantID, menuID)
	if err != nil {
		return fmt.Errorf("delete menu %s: %w", menuID, err)
	}
	if tag.RowsAffected() == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

// SetLive clears the live flag on every menu of the restaurant and sets it
// on menuID, in one transaction.
func (r *MenuRepository) SetLive(ctx context.Context, restaurantID, menuID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`UPDATE menus SET is_live = false, updated_at = now() WHERE restaurant_id = $1 AND is_live AND id <> $2`,
		restaurantID, menuID,
	)
	if err != nil {
		return fmt.Errorf("clear live menu: %w", err)
	}
	tag, err := tx.Exec(ctx,
		`UPDATE menus SET is_live = true, updated_at = now() WHERE restaurant_id = $1 AND id = $2`,
		restaurantID, menuID,
	)
	if err != nil {
		return fmt.Errorf("set live menu %s: %w", menuID, err)
	}
	if tag.RowsAffected() == 0 {
		return repositories.ErrNotFound
	}
	return tx.Commit(ctx)
}

func encodeMenuDishes(menu *models.Menu) ([]byte, error) {
	dishes := menu.Dishes
	if dishes == nil {
		dishes = []models.MenuDish{}
	}
	b, err := json.Marshal(dishes)
	if err != nil {
		return nil, fmt.Errorf("encode dishes of menu %s: %w", menu.ID, err)
	}
	return b, nil
}

func scanMenu(row pgx.Row) (*models.Menu, error) {
	var (
		menu   models.Menu
		dishes []byte
	)
	if err := row.Scan(&menu.ID, &menu.RestaurantID, &menu.Name, &menu.Description, &dishes, &menu.IsLive); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(dishes, &menu.Dishes); err != nil {
		return nil, fmt.Errorf("menu %s: decode dishes: %w", menu.ID, err)
	}
	if menu.Dishes == nil {
		menu.Dishes = []models.MenuDish{}
	}
	return &menu, nil
}
