package projections

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assetdesk/stock-ledger-service/internal/domain"
)

func TestBuildSummary(t *testing.T) {
	item, _, err := domain.NewItem("ITEM-1", "Hex Bolt M8", "HB-M8-40", "PROJ-A", 100, 10, "", "", "", "tester")
	require.NoError(t, err)
	_, err = item.AddStock("PROJ-B", 8, 5, "", "", "", "tester")
	require.NoError(t, err)
	_, err = item.Issue("PROJ-B", 4, "crew-7", "", "tester")
	require.NoError(t, err)

	summary := BuildSummary(item)

	assert.Equal(t, "ITEM-1", summary.ItemID)
	assert.Equal(t, "Hex Bolt M8", summary.Name)
	assert.Equal(t, "HB-M8-40", summary.PartNumber)
	assert.Equal(t, 104, summary.TotalQuantity)
	assert.Equal(t, 2, summary.ProjectCount)
	assert.ElementsMatch(t, []string{"PROJ-A", "PROJ-B"}, summary.Projects)
	// PROJ-B sits at 4 with threshold 5
	assert.Equal(t, []string{"PROJ-B"}, summary.LowProjects)
	assert.True(t, summary.IsLowStock)
	assert.Equal(t, item.Revision, summary.Revision)
}

func TestBuildSummary_NoLowAllocations(t *testing.T) {
	item, _, err := domain.NewItem("ITEM-1", "Hex Bolt M8", "", "PROJ-A", 100, 10, "", "", "", "tester")
	require.NoError(t, err)

	summary := BuildSummary(item)

	assert.False(t, summary.IsLowStock)
	assert.Empty(t, summary.LowProjects)
	assert.Equal(t, 1, summary.ProjectCount)
}
