package urlcodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"catalogfacets/internal/query"
)

func TestSplitJoinURL(t *testing.T) {
	base, q, frag := SplitURL("https://shop.test/shop/?a=1&b=2#top")
	assert.Equal(t, "https://shop.test/shop/", base)
	assert.Equal(t, "a=1&b=2", q)
	assert.Equal(t, "#top", frag)

	assert.Equal(t, "https://shop.test/shop/#top", JoinURL(base, "", frag))
}

func TestSyncer_WriteSkipsIdenticalURL(t *testing.T) {
	loc := NewMemoryLocation("/shop?stock_status=instock")
	syncer := NewSyncer(loc, zap.NewNop())
	s := syncer.Read()

	url, changed, err := syncer.Write(s)

	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, "/shop?stock_status=instock", url)
	assert.Equal(t, 0, loc.Replacements())
}

func TestSyncer_EndToEndExample(t *testing.T) {
	loc := NewMemoryLocation("/shop")
	syncer := NewSyncer(loc, zap.NewNop())
	s := syncer.Read()
	assert.True(t, s.IsEmpty())

	require.NoError(t, s.Toggle(query.FacetStockStatus, "instock"))
	_, _, err := syncer.Write(s)
	require.NoError(t, err)
	assert.Equal(t, "/shop?stock_status=instock", loc.Current())

	require.NoError(t, s.SetRange(query.Float(10), query.Float(50)))
	_, _, err = syncer.Write(s)
	require.NoError(t, err)
	assert.Equal(t, "/shop?stock_status=instock&min_price=10&max_price=50", loc.Current())

	require.NoError(t, s.SetRange(nil, nil))
	_, _, err = syncer.Write(s)
	require.NoError(t, err)
	assert.Equal(t, "/shop?stock_status=instock", loc.Current())
	assert.Equal(t, 3, loc.Replacements())
}

func TestSyncer_ReadSkipsMalformed(t *testing.T) {
	loc := NewMemoryLocation("/shop?min_price=x&product_cat=4#grid")
	s := NewSyncer(loc, zap.NewNop()).Read()

	assert.Nil(t, s.MinPrice)
	assert.Equal(t, []string{"4"}, s.Categories)
}

func TestParams_SetKeepsPositionAndDropsDuplicates(t *testing.T) {
	p := ParseParams("a=1&b=2&a=3&c")
	p.Set("a", "9")

	assert.Equal(t, "a=9&b=2&c", p.String())
	assert.Equal(t, []string{"a", "b", "c"}, p.Keys())
}
