package analytics

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	ErrTooFewGroups = errors.New("anova: need at least two non-empty groups")
	ErrDegenerate   = errors.New("anova: within-group variance is zero or has no degrees of freedom")
)

// ANOVAMode selects what goes into each monthly group.
type ANOVAMode string

const (
	// MonthlyTotals puts the month's sale count in as the only member of its
	// group. Groups of one leave no within-group degrees of freedom, so every
	// dish comes out degenerate; the mode exists to match existing dashboards.
	MonthlyTotals ANOVAMode = "monthly_total"
	// DailyCounts uses the per-day sale counts of each month as the group.
	DailyCounts ANOVAMode = "daily_counts"
)

func ParseANOVAMode(s string) (ANOVAMode, error) {
	switch ANOVAMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", MonthlyTotals:
		return MonthlyTotals, nil
	case DailyCounts:
		return DailyCounts, nil
	default:
		return "", fmt.Errorf("unknown anova mode %q", s)
	}
}

type ANOVAResult struct {
	F         float64
	P         float64
	DFBetween int
	DFWithin  int
}

// OneWayANOVA compares the means of the given groups. Empty groups are
// ignored.
func OneWayANOVA(groups [][]float64) (ANOVAResult, error) {
	var (
		all []float64
		k   int
	)
	for _, g := range groups {
		if len(g) == 0 {
			continue
		}
		k++
		all = append(all, g...)
	}
	if k < 2 {
		return ANOVAResult{}, ErrTooFewGroups
	}

	grand := stat.Mean(all, nil)
	var ssb, ssw float64
	for _, g := range groups {
		if len(g) == 0 {
			continue
		}
		mean := stat.Mean(g, nil)
		ssb += float64(len(g)) * (mean - grand) * (mean - grand)
		for _, x := range g {
			ssw += (x - mean) * (x - mean)
		}
	}

	dfb := k - 1
	dfw := len(all) - k
	if dfw <= 0 || ssw == 0 {
		return ANOVAResult{DFBetween: dfb, DFWithin: dfw}, ErrDegenerate
	}

	f := (ssb / float64(dfb)) / (ssw / float64(dfw))
	dist := distuv.F{D1: float64(dfb), D2: float64(dfw)}
	p := 1 - dist.CDF(f)
	if math.IsNaN(f) || math.IsInf(f, 0) || math.IsNaN(p) {
		return ANOVAResult{DFBetween: dfb, DFWithin: dfw}, ErrDegenerate
	}
	p = math.Min(1, math.Max(0, p))
	return ANOVAResult{F: f, P: p, DFBetween: dfb, DFWithin: dfw}, nil
}

type SignificanceStatus string

const (
	StatusOK               SignificanceStatus = "ok"
	StatusInsufficientData SignificanceStatus = "insufficient_data"
	StatusDegenerate       SignificanceStatus = "degenerate"
)

// Significance is the per-dish outcome. FStatistic and PValue are only set
// when Status is ok.
type Significance struct {
	Status      SignificanceStatus `json:"status"`
	Months      int                `json:"months"`
	FStatistic  *float64           `json:"f_statistic,omitempty"`
	PValue      *float64           `json:"p_value,omitempty"`
	Significant bool               `json:"significant"`
}

// dailySales is one dish's sale counts keyed by day (YYYY-MM-DD), all in
// the analysis location.
type dailySales struct {
	loc    *time.Location
	counts map[string]int
	first  time.Time
	last   time.Time
}

func newDailySales(loc *time.Location) *dailySales {
	return &dailySales{loc: loc, counts: make(map[string]int)}
}

func (d *dailySales) add(t time.Time) {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, d.loc)
	d.counts[DayKey(day)]++
	if d.first.IsZero() || day.Before(d.first) {
		d.first = day
	}
	if d.last.IsZero() || day.After(d.last) {
		d.last = day
	}
}

func (d *dailySales) months() []string {
	seen := make(map[string]int)
	for day, n := range d.counts {
		seen[day[:7]] += n
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (d *dailySales) groups(mode ANOVAMode) [][]float64 {
	months := d.months()
	groups := make([][]float64, 0, len(months))
	for _, month := range months {
		start, err := time.ParseInLocation("2006-01", month, d.loc)
		if err != nil {
			continue
		}
		end := start.AddDate(0, 1, -1)
		if mode == MonthlyTotals {
			total := 0
			for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
				total += d.counts[DayKey(day)]
			}
			groups = append(groups, []float64{float64(total)})
			continue
		}
		if start.Before(d.first) {
			start = d.first
		}
		if end.After(d.last) {
			end = d.last
		}
		var g []float64
		for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
			g = append(g, float64(d.counts[DayKey(day)]))
		}
		groups = append(groups, g)
	}
	return groups
}

func significance(d *dailySales, mode ANOVAMode, threshold float64) Significance {
	months := len(d.months())
	if months < 2 {
		return Significance{Status: StatusInsufficientData, Months: months}
	}
	res, err := OneWayANOVA(d.groups(mode))
	switch {
	case errors.Is(err, ErrTooFewGroups):
		return Significance{Status: StatusInsufficientData, Months: months}
	case err != nil:
		return Significance{Status: StatusDegenerate, Months: months}
	}
	f, p := res.F, res.P
	return Significance{
		Status:      StatusOK,
		Months:      months,
		FStatistic:  &f,
		PValue:      &p,
		Significant: p < threshold,
	}
}
