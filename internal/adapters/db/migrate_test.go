package db

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationNames_SortedAndEmbedded(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "0001_init.sql", names[0])

	for i := 1; i < len(names); i++ {
		assert.Less(t, names[i-1], names[i])
	}
}

func TestInitMigration_GuardsWinnerAndLotNumber(t *testing.T) {
	content, err := migrationFiles.ReadFile("migrations/0001_init.sql")
	require.NoError(t, err)
	schema := string(content)

	for _, table := range []string{"bidders", "vehicles", "auctions", "lots", "bids", "winners"} {
		assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
	assert.Contains(t, schema, "UNIQUE (auction_id, lot_number)")
	assert.True(t, strings.Contains(schema, "lot_id UUID NOT NULL UNIQUE"))
}
