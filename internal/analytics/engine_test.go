package analytics

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AgriDataHub/internal/schema"
	"AgriDataHub/internal/store"
	"AgriDataHub/internal/store/memstore"
)

func setup(t *testing.T) (*schema.Catalogue, *memstore.Store) {
	t.Helper()
	cat, err := schema.LoadCatalogue("../../modules.yaml")
	require.NoError(t, err)
	return cat, memstore.New(cat.Tables())
}

func module(t *testing.T, cat *schema.Catalogue, name string) *schema.FieldSchema {
	t.Helper()
	s, err := cat.Get(name)
	require.NoError(t, err)
	return s
}

func seed(t *testing.T, st store.RowStore, table string, rows ...store.Row) {
	t.Helper()
	for _, r := range rows {
		_, err := st.Insert(context.Background(), table, r)
		require.NoError(t, err)
	}
}

func TestAnalyzeEmptyStore(t *testing.T) {
	cat, st := setup(t)
	e := NewEngine(st)

	legacy, err := e.Analyze(context.Background(), module(t, cat, "nursery"), Query{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"table": []store.Row{}, "monthGraph": []Bucket{}, "totalGraph": []Bucket{},
	}, legacy.Fields())

	current, err := e.Analyze(context.Background(), module(t, cat, "calamity"), Query{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"table": []store.Row{}, "total": 0, "lineGraph": []Series{}, "barGraph": []BarRecord{},
	}, current.Fields())

	n, err := e.Count(context.Background(), module(t, cat, "calamity"), Query{Region: "Region 1"})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestAnalyzeDefaultsToLatestMonth(t *testing.T) {
	cat, st := setup(t)
	s := module(t, cat, "nursery")
	seed(t, st, s.Table,
		store.Row{"report_date": "2024-01-10", "region": "Region 1", "nursery_name": "A", "planting_material": "Seedling", "quantity": 5.0},
		store.Row{"report_date": "2024-02-20", "region": "Region 1", "nursery_name": "B", "planting_material": "Seedling", "quantity": 7.0},
	)

	r, err := NewEngine(st).Analyze(context.Background(), s, Query{})
	require.NoError(t, err)
	assert.Equal(t, "2024-02-01..2024-02-29", r.Window)
	require.Len(t, r.Table, 1)
	assert.Equal(t, "2024-02-20", r.Table[0]["report_date"])
	assert.Equal(t, []Bucket{{Dimension: "Seedling", Metric: 7}}, r.TotalGraph)
	assert.Equal(t, []Bucket{{Dimension: "Seedling", Month: "February2024", Metric: 7}}, r.MonthGraph)
}

func TestAnalyzeSixMonthGraphKeepsMonthTable(t *testing.T) {
	cat, st := setup(t)
	s := module(t, cat, "distribution")
	seed(t, st, s.Table,
		store.Row{"report_date": "2023-08-30", "region": "Region 3", "beneficiary_name": "Old", "planting_material": "Seedling", "quantity": 99.0},
		store.Row{"report_date": "2023-12-05", "region": "Region 3", "beneficiary_name": "Ana", "planting_material": "Seedling", "quantity": 10.0},
		store.Row{"report_date": "2024-02-20", "region": "Region 3", "beneficiary_name": "Ben", "planting_material": "Cutting", "quantity": 4.0},
		store.Row{"report_date": "2024-02-11", "region": "Region 1", "beneficiary_name": "Cy", "planting_material": "Seedling", "quantity": 6.0},
	)

	r, err := NewEngine(st).Analyze(context.Background(), s, Query{})
	require.NoError(t, err)
	assert.Equal(t, "2023-09-01..2024-02-29", r.GraphWindow)

	require.Len(t, r.Table, 2)
	assert.Equal(t, "Region 1", r.Table[0]["region"], "ordered by region first")
	assert.Equal(t, 2, r.Total)

	require.Len(t, r.LineGraph, 2)
	for _, series := range r.LineGraph {
		xs := []string{}
		for _, p := range series.Data {
			xs = append(xs, p.X)
		}
		assert.Equal(t, []string{"December2023", "February2024"}, xs)
	}
	assert.Len(t, r.BarGraph, 2)
}

func TestAnalyzeExplicitWindowAndFilters(t *testing.T) {
	cat, st := setup(t)
	s := module(t, cat, "calamity")
	seed(t, st, s.Table,
		store.Row{"report_date": "2024-01-03", "region": "Region 2", "municipality": "Aparri", "calamity_type": "Typhoon", "estimated_loss": 100.0, "remarks": "Flooded rice fields"},
		store.Row{"report_date": "2024-01-15", "region": "Region 2", "municipality": "Gattaran", "calamity_type": "Drought", "estimated_loss": 50.0},
		store.Row{"report_date": "2024-01-20", "region": "Region 5", "municipality": "Daet", "calamity_type": "Typhoon", "estimated_loss": 70.0},
		store.Row{"report_date": "2024-03-01", "region": "Region 2", "municipality": "Aparri", "calamity_type": "Typhoon", "estimated_loss": 10.0},
	)
	e := NewEngine(st)
	ctx := context.Background()

	r, err := e.Analyze(ctx, s, Query{Start: "2024/01/01", End: "2024/01/31", Region: "Region 2"})
	require.NoError(t, err)
	require.Len(t, r.Table, 2)
	assert.Equal(t, "2024-01-15", r.Table[0]["report_date"], "report date descending within a region")
	assert.Equal(t, []BarRecord{
		{"calamity_type": "Drought", "January2024": 50.0},
		{"calamity_type": "Typhoon", "January2024": 100.0},
	}, r.BarGraph)

	rows, err := e.Search(ctx, s, Query{Start: "2024/01/01", End: "2024/01/31", Search: "flooded"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Aparri", rows[0]["municipality"])

	n, err := e.Count(ctx, s, Query{Start: "2024/01/01", End: "2024/03/31"})
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestAnalyzeSurfacesBadDates(t *testing.T) {
	cat, st := setup(t)
	_, err := NewEngine(st).Analyze(context.Background(), module(t, cat, "nursery"), Query{Start: "01-02-2024", End: "2024/02/01"})
	var pe *DateParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "start", pe.Field)
}

type brokenStore struct {
	*memstore.Store
}

func (brokenStore) SelectWhere(context.Context, string, store.Predicate, []store.Order) ([]store.Row, error) {
	return nil, store.Wrap("select", errors.New("timeout"))
}

func TestAnalyzePropagatesStoreErrors(t *testing.T) {
	cat, st := setup(t)
	s := module(t, cat, "training")
	seed(t, st, s.Table, store.Row{"report_date": "2024-02-20", "region": "Region 1", "participant_name": "A", "gender": "Male"})

	_, err := NewEngine(brokenStore{st}).Analyze(context.Background(), s, Query{})
	var se *store.StoreError
	assert.ErrorAs(t, err, &se)
}
