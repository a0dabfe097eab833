package services

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalogfacets/internal/models"
)

func testSnapshot() *Snapshot {
	return &Snapshot{
		GeneratedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Categories: []models.Category{
			{ID: "1", Name: "Clothing", Slug: "clothing"},
			{ID: "2", Name: "Shirts", Slug: "shirts", ParentID: "1", ProductCount: 3},
		},
		Attributes: []models.AttributeTaxonomy{
			{Name: "pa_color", Label: "Color", Terms: []models.AttributeTerm{{ID: "10", Slug: "red", Name: "Red", Count: 2}}},
		},
		Products: []models.Product{
			{ID: "p1", Name: "Linen shirt", Price: 40, StockStatus: "instock", Categories: []string{"2"}},
		},
	}
}

func TestSnapshot_EncodeDecode(t *testing.T) {
	var buf bytes.Buffer
	snapshot := testSnapshot()

	require.NoError(t, EncodeSnapshot(&buf, snapshot))
	assert.Equal(t, SnapshotVersion, snapshot.Version)

	decoded, err := DecodeSnapshot(&buf)
	require.NoError(t, err)
	assert.Equal(t, snapshot.Categories, decoded.Categories)
	assert.Equal(t, snapshot.Attributes, decoded.Attributes)
	assert.Equal(t, "p1", decoded.Products[0].ID)
	assert.True(t, snapshot.GeneratedAt.Equal(decoded.GeneratedAt))
}

func TestSnapshot_RejectsOtherVersions(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	require.NoError(t, json.NewEncoder(zw).Encode(map[string]int{"version": SnapshotVersion + 1}))
	require.NoError(t, zw.Close())

	_, err := DecodeSnapshot(&buf)

	assert.ErrorContains(t, err, "unsupported snapshot version")
}

func TestSnapshot_RejectsPlainJSON(t *testing.T) {
	_, err := DecodeSnapshot(strings.NewReader(`{"version":1}`))

	assert.Error(t, err)
}

func TestSnapshotSource(t *testing.T) {
	source := SnapshotSource{Snapshot: testSnapshot()}

	categories, err := source.ListCategories(context.Background())
	require.NoError(t, err)
	assert.Len(t, categories, 2)

	attributes, err := source.ListAttributes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pa_color", attributes[0].Name)
}
