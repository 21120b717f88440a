package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableZeroValue(t *testing.T) {
	var table Table

	table.AddRow("1", CSVRecord{"Title": "a"})
	table.AddRow("2", CSVRecord{"Title": "b"})
	table.AddRow("1", CSVRecord{"Title": "c"})
	table.AddStatus("Todo")

	assert.Equal(t, []string{"1", "2"}, table.Order)
	assert.Equal(t, 2, table.Len())
	row, ok := table.Row("1")
	assert.True(t, ok)
	assert.Equal(t, "c", row["Title"])
	assert.Equal(t, map[string]struct{}{"Todo": {}}, table.Statuses)
	_, ok = (&Table{}).Row("missing")
	assert.False(t, ok)
}
