package factories

import (
	"fmt"

	"github.com/chrisdamba/menustats/internal/models"
	"github.com/shopspring/decimal"
)

var dishesByCuisine = map[string][]string{
	"Italian":       {"Margherita Pizza", "Spaghetti Carbonara", "Lasagna", "Tiramisu"},
	"Indian":        {"Chicken Tikka Masala", "Vegetable Curry", "Naan Bread", "Biryani"},
	"American":      {"Cheeseburger", "Hot Dog", "BBQ Ribs", "Apple Pie"},
	"Japanese":      {"Sushi Roll", "Ramen", "Tempura", "Miso Soup"},
	"Mexican":       {"Tacos", "Burrito", "Guacamole", "Quesadilla"},
	"Chinese":       {"Kung Pao Chicken", "Fried Rice", "Dumplings", "Mapo Tofu"},
	"Thai":          {"Pad Thai", "Green Curry", "Tom Yum Soup", "Mango Sticky Rice"},
	"Greek":         {"Gyros", "Greek Salad", "Moussaka", "Baklava"},
	"French":        {"Coq au Vin", "Beef Bourguignon", "Ratatouille", "Crème Brûlée"},
	"Mediterranean": {"Falafel", "Hummus", "Tabbouleh", "Grilled Halloumi"},
}

var allIngredients = []string{"Chicken", "Beef", "Pork", "Fish", "Tofu", "Cheese", "Tomato", "Lettuce", "Onion", "Garlic", "Bread", "Rice", "Pasta", "Egg", "Milk"}

// archiveRate is the share of generated dishes that come out archived.
const archiveRate = 0.1

// CreateDishes returns n dishes with names unique within the restaurant.
func (f *Factory) CreateDishes(restaurant *models.Restaurant, n int) []*models.Dish {
	used := make(map[string]int, n)
	dishes := make([]*models.Dish, 0, n)
	for i := 0; i < n; i++ {
		name := f.randomDishName(restaurant.Cuisines)
		if seen := used[name]; seen > 0 {
			used[name] = seen + 1
			name = fmt.Sprintf("%s No. %d", name, seen+1)
		} else {
			used[name] = 1
		}
		dishes = append(dishes, f.CreateDish(restaurant, name))
	}
	return dishes
}

func (f *Factory) CreateDish(restaurant *models.Restaurant, name string) *models.Dish {
	return &models.Dish{
		ID:           f.newID(),
		RestaurantID: restaurant.ID,
		Name:         name,
		Description:  f.fake.Lorem().Sentence(10),
		Price:        decimal.NewFromFloat(f.fake.Float64(2, 5, 50)).Round(2),
		Ingredients:  f.randomIngredients(),
		Sales:        []models.Sale{},
		Archived:     f.rng.Float64() < archiveRate,
	}
}

func (f *Factory) randomIngredients() []string {
	ingredientCount := f.rng.Intn(5) + 2 // 2 to 6 ingredients
	picked := f.rng.Perm(len(allIngredients))[:ingredientCount]
	ingredients := make([]string, ingredientCount)
	for i, idx := range picked {
		ingredients[i] = allIngredients[idx]
	}
	return ingredients
}

func (f *Factory) randomDishName(cuisines []string) string {
	if len(cuisines) == 0 {
		return "Special of the Day"
	}
	cuisine := cuisines[f.rng.Intn(len(cuisines))]
	if items, ok := dishesByCuisine[cuisine]; ok {
		return items[f.rng.Intn(len(items))]
	}
	return "Special of the Day"
}

// CreateMenus builds a lunch and a dinner menu from the live dishes and
// makes the dinner menu live.
func (f *Factory) CreateMenus(restaurant *models.Restaurant, dishes []*models.Dish) []*models.Menu {
	var active []*models.Dish
	for _, d := range dishes {
		if !d.Archived {
			active = append(active, d)
		}
	}
	if len(active) == 0 {
		return nil
	}

	lunch := &models.Menu{
		ID:           f.newID(),
		RestaurantID: restaurant.ID,
		Name:         "Lunch",
		Description:  f.fake.Lorem().Sentence(6),
	}
	for _, idx := range f.rng.Perm(len(active))[:(len(active)+1)/2] {
		lunch.Dishes = append(lunch.Dishes, models.SnapshotDish(active[idx]))
	}

	dinner := &models.Menu{
		ID:           f.newID(),
		RestaurantID: restaurant.ID,
		Name:         "Dinner",
		Description:  f.fake.Lorem().Sentence(6),
		IsLive:       true,
	}
	for _, d := range active {
		dinner.Dishes = append(dinner.Dishes, models.SnapshotDish(d))
	}
	return []*models.Menu{lunch, dinner}
}
