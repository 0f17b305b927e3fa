package queryset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	qs := New("mihai_simple_sys_up", CountryMonth)
	assert.Equal(t, "mihai_simple_sys_up", qs.Name)
	assert.Equal(t, CountryMonth, qs.LevelOfAnalysis)
	assert.Empty(t, qs.Columns)
}

func TestWithColumn_Chainable(t *testing.T) {
	qs := New("baseline", CountryMonth).
		WithColumn(NewColumn("sb_count_cm", "ged2_cm", "ged_sb_best_count_nokgi")).
		WithColumn(NewColumn("sb_acled_cm", "acled2_cm", "acled_sb_count"))

	require.Len(t, qs.Columns, 2)
	assert.Equal(t, []string{"sb_count_cm", "sb_acled_cm"}, qs.ColumnNames())
	assert.Equal(t, "acled2_cm", qs.Columns[1].FromTable)
}

func TestWithColumn_DoesNotMutateReceiver(t *testing.T) {
	base := New("base", CountryMonth).
		WithColumn(NewColumn("a", "t", "a"))

	left := base.WithColumn(NewColumn("left", "t", "l"))
	right := base.WithColumn(NewColumn("right", "t", "r"))

	assert.Equal(t, []string{"a"}, base.ColumnNames())
	assert.Equal(t, []string{"a", "left"}, left.ColumnNames())
	assert.Equal(t, []string{"a", "right"}, right.ColumnNames())
}

func TestDescribeAndThemes(t *testing.T) {
	base := New("qs", CountryYear)
	described := base.Describe("yearly mix").WithThemes("fatalities", "food")

	assert.Empty(t, base.Description)
	assert.Empty(t, base.Themes)
	assert.Equal(t, "yearly mix", described.Description)
	assert.Equal(t, []string{"fatalities", "food"}, described.Themes)
}

func TestColumnAggregate(t *testing.T) {
	plain := NewColumn("ged_pgm", "ged2_pgm", "ged_sb_best_sum_nokgi")
	summed := plain.Aggregate(Sum)

	assert.Equal(t, Values, plain.Operator())
	assert.Equal(t, Sum, summed.Operator())
	assert.Empty(t, plain.Aggregation, "Aggregate must return a copy")
}

func TestColumnOperations(t *testing.T) {
	ops := NewColumn("ged_cm", "ged2_cm", "ged_sb_best_sum_nokgi").Aggregate(Sum).Operations()

	require.Len(t, ops, 2)
	assert.Equal(t, Operation{Namespace: "trf", Name: "util.rename", Arguments: []string{"ged_cm"}}, ops[0])
	assert.Equal(t, Operation{Namespace: "base", Name: "ged2_cm.ged_sb_best_sum_nokgi", Arguments: []string{"sum"}}, ops[1])
}

func TestQuerysetOperations(t *testing.T) {
	qs := New("qs", CountryMonth).
		WithColumn(NewColumn("a", "t1", "c1")).
		WithColumn(NewColumn("b", "t2", "c2").Aggregate(Max))

	chains := qs.Operations()
	require.Len(t, chains, 2)
	assert.Equal(t, []string{"a"}, chains[0][0].Arguments)
	assert.Equal(t, "t2.c2", chains[1][1].Name)
	assert.Equal(t, []string{"max"}, chains[1][1].Arguments)
}

func TestIndexNames(t *testing.T) {
	tests := []struct {
		loa  LevelOfAnalysis
		want [2]string
	}{
		{CountryMonth, [2]string{"month_id", "country_id"}},
		{PriogridMonth, [2]string{"month_id", "priogrid_gid"}},
		{CountryYear, [2]string{"year_id", "country_id"}},
		{PriogridYear, [2]string{"year_id", "priogrid_gid"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.loa), func(t *testing.T) {
			got, err := tt.loa.IndexNames()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, tt.loa.Valid())
		})
	}

	_, err := LevelOfAnalysis("galaxy_decade").IndexNames()
	assert.Error(t, err)
	assert.False(t, LevelOfAnalysis("galaxy_decade").Valid())
}
