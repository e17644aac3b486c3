package factories

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/chrisdamba/menustats/internal/models"
	"github.com/jaswdr/faker"
	"github.com/lucsky/cuid"
)

// Factory generates synthetic restaurants, dishes and sales. Two factories
// built from the same seed produce the same names, prices and sales; only
// the generated IDs differ.
type Factory struct {
	rng   *rand.Rand
	fake  faker.Faker
	newID func() string

	slugCache sync.Map // to track used slugs
}

func New(seed int64) *Factory {
	return &Factory{
		rng:   rand.New(rand.NewSource(seed)),
		fake:  faker.NewWithSeed(rand.NewSource(seed)),
		newID: cuid.New,
	}
}

// WithIDs replaces the ID generator.
func (f *Factory) WithIDs(newID func() string) *Factory {
	f.newID = newID
	return f
}

func (f *Factory) CreateRestaurant(city, state string) *models.Restaurant {
	name := f.fake.Company().Name()
	return &models.Restaurant{
		ID:       f.newID(),
		Name:     name,
		SlugName: f.createUniqueSlug(name),
		Phone:    f.fake.Phone().Number(),
		Location: models.Location{City: city, State: state},
		Cuisines: f.randomCuisines(),
	}
}

func (f *Factory) createUniqueSlug(name string) string {
	base := strings.ToLower(strings.ReplaceAll(name, " ", "-"))
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return -1
	}, base)

	slug := base
	counter := 1

	for {
		if _, exists := f.slugCache.LoadOrStore(slug, true); !exists {
			return slug
		}
		slug = fmt.Sprintf("%s-%d", base, counter)
		counter++
	}
}

var allCuisines = []string{"Italian", "Indian", "American", "Japanese", "Mexican", "Chinese", "Thai", "Greek", "French", "Mediterranean"}

func (f *Factory) randomCuisines() []string {
	cuisineCount := f.rng.Intn(3) + 1 // 1 to 3 cuisines
	picked := f.rng.Perm(len(allCuisines))[:cuisineCount]
	cuisines := make([]string, cuisineCount)
	for i, idx := range picked {
		cuisines[i] = allCuisines[idx]
	}
	return cuisines
}

// Dataset is one restaurant with its dishes, sales history and menus.
type Dataset struct {
	Restaurant *models.Restaurant
	Dishes     []*models.Dish
	Menus      []*models.Menu
}

type DatasetConfig struct {
	RestaurantID string
	City         string
	State        string
	Dishes       int
	Months       int
	SalesPerDay  float64
	EndDate      time.Time
	// Progress is called after each dish's history is generated.
	Progress func(done, total int)
}

// Generate builds a full dataset ending on cfg.EndDate (today when zero).
func (f *Factory) Generate(cfg DatasetConfig) Dataset {
	restaurant := f.CreateRestaurant(cfg.City, cfg.State)
	if cfg.RestaurantID != "" {
		restaurant.ID = cfg.RestaurantID
	}

	end := cfg.EndDate
	if end.IsZero() {
		end = time.Now()
	}
	end = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	start := end.AddDate(0, -cfg.Months, 0)

	dishes := f.CreateDishes(restaurant, cfg.Dishes)
	perDish := cfg.SalesPerDay / float64(max(len(dishes), 1))
	for i, d := range dishes {
		popularity := 0.4 + 1.2*f.rng.Float64()
		d.Sales = f.CreateSales(d, restaurant.Location, start, end, perDish*popularity)
		if cfg.Progress != nil {
			cfg.Progress(i+1, len(dishes))
		}
	}

	return Dataset{
		Restaurant: restaurant,
		Dishes:     dishes,
		Menus:      f.CreateMenus(restaurant, dishes),
	}
}
