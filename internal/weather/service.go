package weather

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/chrisdamba/menustats/internal/models"
	"github.com/op/go-logging"
	"github.com/samber/mo"
	"golang.org/x/sync/singleflight"
)

var log = logging.MustGetLogger("weather")

// Service turns (location, day) into a condition label. Successful geocodes
// and conditions are memoised for the life of the Service; failures are not,
// so a later pass retries them.
type Service struct {
	geocoder Geocoder
	fetcher  ConditionFetcher
	timeout  time.Duration

	mu         sync.RWMutex
	coords     map[string]mo.Option[models.Coordinates]
	conditions map[string]string
	group      singleflight.Group
}

func NewService(geocoder Geocoder, fetcher ConditionFetcher, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Service{
		geocoder:   geocoder,
		fetcher:    fetcher,
		timeout:    timeout,
		coords:     make(map[string]mo.Option[models.Coordinates]),
		conditions: make(map[string]string),
	}
}

// Lookup never fails. A location that cannot be geocoded, for lack of a
// match or because the geocoder is unreachable, yields ConditionUnknown. A
// failed conditions fetch yields ConditionFetchFailed.
func (s *Service) Lookup(ctx context.Context, loc models.Location, day time.Time) string {
	if loc.IsZero() {
		return ConditionUnknown
	}
	key := day.Format("2006-01-02") + "|" + loc.Key()

	s.mu.RLock()
	cached, ok := s.conditions[key]
	s.mu.RUnlock()
	if ok {
		return cached
	}

	v, _, _ := s.group.Do(key, func() (interface{}, error) {
		condition, cacheable := s.lookup(ctx, loc, day)
		if cacheable {
			s.mu.Lock()
			s.conditions[key] = condition
			s.mu.Unlock()
		}
		return condition, nil
	})
	return v.(string)
}

// CacheSize reports how many conditions are memoised.
func (s *Service) CacheSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conditions)
}

func (s *Service) lookup(ctx context.Context, loc models.Location, day time.Time) (string, bool) {
	coords, err := s.resolve(ctx, loc)
	if err != nil {
		log.Warningf("geocode %s failed: %v", loc, err)
		return ConditionUnknown, false
	}
	at, ok := coords.Get()
	if !ok {
		log.Debugf("geocode %s: no match", loc)
		return ConditionUnknown, true
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	code, err := s.fetcher.FetchCondition(callCtx, at, day)
	switch {
	case errors.Is(err, ErrNoConditionCode):
		return ConditionUnknown, true
	case err != nil:
		log.Warningf("conditions for %s on %s failed: %v", loc, day.Format("2006-01-02"), err)
		return ConditionFetchFailed, false
	}
	return Describe(code), true
}

func (s *Service) resolve(ctx context.Context, loc models.Location) (mo.Option[models.Coordinates], error) {
	if coords := loc.Coordinates(); coords.IsPresent() {
		return coords, nil
	}
	key := loc.Key()

	s.mu.RLock()
	cached, ok := s.coords[key]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	v, err, _ := s.group.Do("geo|"+key, func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		coords, err := s.geocoder.Geocode(callCtx, loc)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.coords[key] = coords
		s.mu.Unlock()
		return coords, nil
	})
	if err != nil {
		return mo.None[models.Coordinates](), err
	}
	return v.(mo.Option[models.Coordinates]), nil
}

// Static answers every lookup with the same label.
type Static string

func (s Static) Lookup(context.Context, models.Location, time.Time) string {
	return string(s)
}
