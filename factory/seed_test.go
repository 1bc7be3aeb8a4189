package factory_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/procurement-engine/factory"
	"github.com/warp/procurement-engine/procurement"
	"github.com/warp/procurement-engine/procurement/store"
)

var now = time.Date(2026, 3, 6, 12, 0, 0, 0, time.UTC)

func TestLoad_EmbeddedDefault(t *testing.T) {
	seed, err := factory.Load("")
	require.NoError(t, err)

	primary, ok := seed.PrimaryWarehouse()
	assert.True(t, ok)
	assert.Equal(t, procurement.WarehouseID("wh-central"), primary)
	assert.Len(t, seed.ToProducts(), 6)

	requests, err := seed.ToRequests(now)
	require.NoError(t, err)
	require.Len(t, requests, 5)

	first := requests[0]
	assert.Equal(t, procurement.RequestID("pr-001"), first.ID)
	assert.Equal(t, "North Branch", first.Warehouse.Name)
	assert.Equal(t, 5, first.Quantity)
	assert.True(t, decimal.RequireFromString("229.5").Equal(procurement.CalculateItemsTotal(first.Items)))

	mixed := requests[3]
	assert.Equal(t, procurement.StatusObserved, mixed.Status)
	assert.Equal(t, 10, mixed.Quantity)
	assert.Equal(t, []int{1, 2}, []int{mixed.Items[0].Number, mixed.Items[1].Number})
}

func TestApply_WritesStoresAndSkipsExisting(t *testing.T) {
	// GIVEN: Empty stores and the default seed
	ctx := context.Background()
	products := store.NewProducts()
	requests := store.NewMemory()
	seed, err := factory.Load("")
	require.NoError(t, err)

	// WHEN: Applying twice, as a restart on a file database would
	require.NoError(t, seed.Apply(ctx, products, requests, now))
	require.NoError(t, seed.Apply(ctx, products, requests, now))

	// THEN: Nothing is duplicated
	listed, err := requests.List(ctx, procurement.RequestFilter{})
	require.NoError(t, err)
	assert.Len(t, listed, 5)

	catalogue, err := products.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, catalogue, 6)
	assert.Equal(t, "Central Warehouse", catalogue[0].WarehouseName)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "malformed yaml",
			yaml: "warehouses: [",
			want: "invalid seed YAML",
		},
		{
			name: "product in unknown warehouse",
			yaml: "warehouses: [{id: wh-a}]\nproducts: [{id: p1, warehouse: wh-b}]",
			want: `unknown warehouse "wh-b"`,
		},
		{
			name: "unknown status",
			yaml: "requests: [{id: pr-1, status: lost}]",
			want: `unknown status "lost"`,
		},
		{
			name: "request without id",
			yaml: "requests: [{reason: x}]",
			want: "seed request without id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := factory.Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestToRequests_InvalidRequestNamesIt(t *testing.T) {
	seed, err := factory.Parse([]byte("warehouses: [{id: wh-a}]\nrequests: [{id: pr-9, warehouse: wh-a}]"))
	require.NoError(t, err)

	_, err = seed.ToRequests(now)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "seed request pr-9")
	assert.ErrorIs(t, err, procurement.ErrValidation)
}

func TestLoad_FileDefaultsMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	doc := `
warehouses: [{id: wh-a, name: A}]
requests:
  - id: pr-1
    warehouse: wh-a
    reason: Gloves
    requested_by: {id: u-1}
    items: [{description: Gloves, quantity: 2, unit_price: "3.10"}]
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	seed, err := factory.Load(path)
	require.NoError(t, err)
	_, ok := seed.PrimaryWarehouse()
	assert.False(t, ok)

	requests, err := seed.ToRequests(now)
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, procurement.StatusPending, requests[0].Status)
	assert.Equal(t, procurement.UrgencyMedium, requests[0].Urgency)
	assert.True(t, now.Equal(requests[0].RequestedAt))

	_, err = factory.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
