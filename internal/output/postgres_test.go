package output

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInsertStatement(t *testing.T) {
	msgs, err := Messages(testReport(t))
	require.NoError(t, err)

	query, args, err := insertStatement(msgs[1])
	require.NoError(t, err)
	require.Equal(t,
		`INSERT INTO fact_dish_sales ("archived", "average_sale_price", "dish", "run_id", "timestamp", "total_profit", "total_revenue", "total_sales") VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		query)
	require.Equal(t, []interface{}{false, int64(10), "Pad Thai", "run-1", msgs[1].Row.(DishRow).Timestamp, int64(8), int64(20), int64(2)}, args)

	_, _, err = insertStatement(msgs[0])
	require.ErrorContains(t, err, "no table")
}

func TestInsertStatement_NullsAndFractions(t *testing.T) {
	query, args, err := insertStatement(Message{
		Topic: TopicSignificance,
		Value: []byte(`{"dish":"Curry","f_statistic":null,"p_value":0.25}`),
	})
	require.NoError(t, err)
	require.Contains(t, query, "INSERT INTO fact_significance")
	require.Equal(t, []interface{}{"Curry", nil, 0.25}, args)
}
