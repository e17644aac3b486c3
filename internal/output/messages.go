package output

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/chrisdamba/menustats/internal/analytics"
	"github.com/samber/lo"
)

const (
	TopicReport       = "report"
	TopicDishes       = "dish_stats"
	TopicMonthly      = "monthly_sales"
	TopicSeasonal     = "seasonal_sales"
	TopicWeather      = "weather_sales"
	TopicSignificance = "significance"
	TopicRankings     = "rankings"
)

// Message is one publishable unit of a report. Row is the flat record for
// tabular sinks and is nil for the full report document.
type Message struct {
	Topic string
	Key   string
	Value []byte
	Row   interface{}
}

type DishRow struct {
	RunID            string  `json:"run_id" parquet:"name=run_id,type=BYTE_ARRAY,convertedtype=UTF8"`
	Timestamp        int64   `json:"timestamp" parquet:"name=timestamp,type=INT64"`
	Dish             string  `json:"dish" parquet:"name=dish,type=BYTE_ARRAY,convertedtype=UTF8"`
	Archived         bool    `json:"archived" parquet:"name=archived,type=BOOLEAN"`
	TotalSales       int64   `json:"total_sales" parquet:"name=total_sales,type=INT64"`
	TotalRevenue     float64 `json:"total_revenue" parquet:"name=total_revenue,type=DOUBLE"`
	TotalProfit      float64 `json:"total_profit" parquet:"name=total_profit,type=DOUBLE"`
	AverageSalePrice float64 `json:"average_sale_price" parquet:"name=average_sale_price,type=DOUBLE"`
}

type MonthlyRow struct {
	RunID        string  `json:"run_id" parquet:"name=run_id,type=BYTE_ARRAY,convertedtype=UTF8"`
	Timestamp    int64   `json:"timestamp" parquet:"name=timestamp,type=INT64"`
	Month        string  `json:"month" parquet:"name=month,type=BYTE_ARRAY,convertedtype=UTF8"`
	TotalSales   int64   `json:"total_sales" parquet:"name=total_sales,type=INT64"`
	TotalRevenue float64 `json:"total_revenue" parquet:"name=total_revenue,type=DOUBLE"`
}

type SeasonalRow struct {
	RunID     string `json:"run_id" parquet:"name=run_id,type=BYTE_ARRAY,convertedtype=UTF8"`
	Timestamp int64  `json:"timestamp" parquet:"name=timestamp,type=INT64"`
	Season    string `json:"season" parquet:"name=season,type=BYTE_ARRAY,convertedtype=UTF8"`
	Dish      string `json:"dish" parquet:"name=dish,type=BYTE_ARRAY,convertedtype=UTF8"`
	Count     int64  `json:"count" parquet:"name=count,type=INT64"`
}

type WeatherRow struct {
	RunID     string  `json:"run_id" parquet:"name=run_id,type=BYTE_ARRAY,convertedtype=UTF8"`
	Timestamp int64   `json:"timestamp" parquet:"name=timestamp,type=INT64"`
	Condition string  `json:"condition" parquet:"name=condition,type=BYTE_ARRAY,convertedtype=UTF8"`
	Dish      string  `json:"dish" parquet:"name=dish,type=BYTE_ARRAY,convertedtype=UTF8"`
	Count     int64   `json:"count" parquet:"name=count,type=INT64"`
	Revenue   float64 `json:"revenue" parquet:"name=revenue,type=DOUBLE"`
}

type SignificanceRow struct {
	RunID       string   `json:"run_id" parquet:"name=run_id,type=BYTE_ARRAY,convertedtype=UTF8"`
	Timestamp   int64    `json:"timestamp" parquet:"name=timestamp,type=INT64"`
	Dish        string   `json:"dish" parquet:"name=dish,type=BYTE_ARRAY,convertedtype=UTF8"`
	Status      string   `json:"status" parquet:"name=status,type=BYTE_ARRAY,convertedtype=UTF8"`
	Months      int64    `json:"months" parquet:"name=months,type=INT64"`
	FStatistic  *float64 `json:"f_statistic" parquet:"name=f_statistic,type=DOUBLE,repetitiontype=OPTIONAL"`
	PValue      *float64 `json:"p_value" parquet:"name=p_value,type=DOUBLE,repetitiontype=OPTIONAL"`
	Significant bool     `json:"significant" parquet:"name=significant,type=BOOLEAN"`
}

type RankingRow struct {
	RunID        string  `json:"run_id" parquet:"name=run_id,type=BYTE_ARRAY,convertedtype=UTF8"`
	Timestamp    int64   `json:"timestamp" parquet:"name=timestamp,type=INT64"`
	List         string  `json:"list" parquet:"name=list,type=BYTE_ARRAY,convertedtype=UTF8"`
	Rank         int64   `json:"rank" parquet:"name=rank,type=INT64"`
	Dish         string  `json:"dish" parquet:"name=dish,type=BYTE_ARRAY,convertedtype=UTF8"`
	TotalSales   int64   `json:"total_sales" parquet:"name=total_sales,type=INT64"`
	TotalRevenue float64 `json:"total_revenue" parquet:"name=total_revenue,type=DOUBLE"`
	TotalProfit  float64 `json:"total_profit" parquet:"name=total_profit,type=DOUBLE"`
}

// rowPrototype returns the struct the parquet schema of a tabular topic is
// derived from.
func rowPrototype(topic string) (interface{}, error) {
	switch topic {
	case TopicDishes:
		return new(DishRow), nil
	case TopicMonthly:
		return new(MonthlyRow), nil
	case TopicSeasonal:
		return new(SeasonalRow), nil
	case TopicWeather:
		return new(WeatherRow), nil
	case TopicSignificance:
		return new(SignificanceRow), nil
	case TopicRankings:
		return new(RankingRow), nil
	default:
		return nil, fmt.Errorf("no schema for topic %s", topic)
	}
}

var seasonOrder = []analytics.Season{analytics.Spring, analytics.Summer, analytics.Fall, analytics.Winter}

// Messages flattens a report into the full document followed by one row per
// aggregate entry. The order is deterministic.
func Messages(report *analytics.Report) ([]Message, error) {
	doc, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	msgs := []Message{{Topic: TopicReport, Key: report.RunID, Value: doc}}

	ts := report.GeneratedAt.Unix()
	var rows []Message
	add := func(topic, key string, row interface{}) {
		rows = append(rows, Message{Topic: topic, Key: key, Row: row})
	}

	for _, d := range report.Dishes {
		add(TopicDishes, d.Name, DishRow{
			RunID:            report.RunID,
			Timestamp:        ts,
			Dish:             d.Name,
			Archived:         d.Archived,
			TotalSales:       int64(d.TotalSales),
			TotalRevenue:     d.TotalRevenue.InexactFloat64(),
			TotalProfit:      d.TotalProfit.InexactFloat64(),
			AverageSalePrice: d.AverageSalePrice.InexactFloat64(),
		})
	}
	for _, m := range report.Monthly {
		add(TopicMonthly, m.Month, MonthlyRow{
			RunID:        report.RunID,
			Timestamp:    ts,
			Month:        m.Month,
			TotalSales:   int64(m.TotalSales),
			TotalRevenue: m.TotalRevenue.InexactFloat64(),
		})
	}
	for _, season := range seasonOrder {
		byDish := report.Seasonal[season]
		for _, dish := range sortedKeys(byDish) {
			add(TopicSeasonal, string(season)+"|"+dish, SeasonalRow{
				RunID:     report.RunID,
				Timestamp: ts,
				Season:    string(season),
				Dish:      dish,
				Count:     int64(byDish[dish]),
			})
		}
	}
	for _, condition := range sortedKeys(report.Weather) {
		byDish := report.Weather[condition]
		for _, dish := range sortedKeys(byDish) {
			ws := byDish[dish]
			add(TopicWeather, condition+"|"+dish, WeatherRow{
				RunID:     report.RunID,
				Timestamp: ts,
				Condition: condition,
				Dish:      dish,
				Count:     int64(ws.Count),
				Revenue:   ws.Revenue.InexactFloat64(),
			})
		}
	}
	for _, dish := range sortedKeys(report.Significance) {
		s := report.Significance[dish]
		add(TopicSignificance, dish, SignificanceRow{
			RunID:       report.RunID,
			Timestamp:   ts,
			Dish:        dish,
			Status:      string(s.Status),
			Months:      int64(s.Months),
			FStatistic:  s.FStatistic,
			PValue:      s.PValue,
			Significant: s.Significant,
		})
	}
	lists := []struct {
		name    string
		entries []analytics.DishSummary
	}{
		{"top_by_sales", report.TopBySales},
		{"top_by_revenue", report.TopByRevenue},
		{"top_by_profit", report.TopByProfit},
		{"bottom_by_sales", report.BottomBySales},
	}
	for _, l := range lists {
		for i, e := range l.entries {
			add(TopicRankings, l.name+"|"+strconv.Itoa(i+1), RankingRow{
				RunID:        report.RunID,
				Timestamp:    ts,
				List:         l.name,
				Rank:         int64(i + 1),
				Dish:         e.Name,
				TotalSales:   int64(e.TotalSales),
				TotalRevenue: e.TotalRevenue.InexactFloat64(),
				TotalProfit:  e.TotalProfit.InexactFloat64(),
			})
		}
	}

	for i := range rows {
		value, err := json.Marshal(rows[i].Row)
		if err != nil {
			return nil, fmt.Errorf("encode %s row: %w", rows[i].Topic, err)
		}
		rows[i].Value = value
	}
	return append(msgs, rows...), nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}
