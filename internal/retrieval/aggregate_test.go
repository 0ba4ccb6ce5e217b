package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregate_Empty(t *testing.T) {
	summary := Aggregate(nil)

	assert.Equal(t, 0, summary.Count)
	assert.Nil(t, summary.AveragePrice)
	assert.Nil(t, summary.MinPrice)
	assert.Nil(t, summary.MaxPrice)
}

func TestAggregate_ComputesPriceStatistics(t *testing.T) {
	summary := Aggregate([]Result{
		{ProductID: "A", Price: 10},
		{ProductID: "B", Price: 30},
		{ProductID: "C", Price: 20},
	})

	assert.Equal(t, 3, summary.Count)
	require.NotNil(t, summary.AveragePrice)
	require.NotNil(t, summary.MinPrice)
	require.NotNil(t, summary.MaxPrice)
	assert.Equal(t, 20.0, *summary.AveragePrice)
	assert.Equal(t, 10.0, *summary.MinPrice)
	assert.Equal(t, 30.0, *summary.MaxPrice)
}

func TestAggregate_SingleResult(t *testing.T) {
	summary := Aggregate([]Result{{ProductID: "A", Price: 42.5}})

	assert.Equal(t, 1, summary.Count)
	require.NotNil(t, summary.AveragePrice)
	assert.Equal(t, 42.5, *summary.AveragePrice)
	assert.Equal(t, 42.5, *summary.MinPrice)
	assert.Equal(t, 42.5, *summary.MaxPrice)
}
