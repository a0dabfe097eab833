package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type StateTestSuite struct {
	suite.Suite
	state State
}

func (suite *StateTestSuite) SetupTest() {
	suite.state = State{}
}

func TestStateTestSuite(t *testing.T) {
	suite.Run(t, new(StateTestSuite))
}

func (suite *StateTestSuite) TestToggle_AddsAndSorts() {
	require.NoError(suite.T(), suite.state.Toggle(FacetCategory, "7"))
	require.NoError(suite.T(), suite.state.Toggle(FacetCategory, "12"))
	require.NoError(suite.T(), suite.state.Toggle(FacetCategory, "5"))

	assert.Equal(suite.T(), []string{"12", "5", "7"}, suite.state.Categories)
}

func (suite *StateTestSuite) TestToggle_TwiceRestoresOriginal() {
	require.NoError(suite.T(), suite.state.Toggle(FacetCategory, "3"))
	original := suite.state.Clone()

	require.NoError(suite.T(), suite.state.Toggle(FacetCategory, "5"))
	require.NoError(suite.T(), suite.state.Toggle(FacetCategory, "5"))

	assert.True(suite.T(), original.Equal(suite.state))
	assert.Equal(suite.T(), []string{"3"}, suite.state.Categories)
}

func (suite *StateTestSuite) TestToggle_LastValueLeavesNilSet() {
	require.NoError(suite.T(), suite.state.Toggle(FacetStockStatus, StockInStock))
	require.NoError(suite.T(), suite.state.Toggle(FacetStockStatus, StockInStock))

	assert.Nil(suite.T(), suite.state.StockStatus)
	assert.True(suite.T(), suite.state.IsEmpty())
}

func (suite *StateTestSuite) TestToggle_NonSetFacetIsNoop() {
	err := suite.state.Toggle(FacetPrice, "10")

	assert.NoError(suite.T(), err)
	assert.True(suite.T(), suite.state.Equal(State{}))
}

func (suite *StateTestSuite) TestToggleKey_UnknownFacet() {
	err := suite.state.ToggleKey("colour", "blue")

	assert.Error(suite.T(), err)
	assert.True(suite.T(), IsValidationError(err))
	assert.True(suite.T(), suite.state.IsEmpty())
}

func (suite *StateTestSuite) TestToggle_RejectsUnknownStockStatus() {
	err := suite.state.Toggle(FacetStockStatus, "discontinued")

	assert.True(suite.T(), IsValidationError(err))
	assert.Nil(suite.T(), suite.state.StockStatus)
}

func (suite *StateTestSuite) TestToggle_RejectsRatingOutOfRange() {
	assert.True(suite.T(), IsValidationError(suite.state.Toggle(FacetRating, "6")))
	assert.True(suite.T(), IsValidationError(suite.state.Toggle(FacetRating, "four")))
	assert.NoError(suite.T(), suite.state.Toggle(FacetRating, "4"))
	assert.Equal(suite.T(), []string{"4"}, suite.state.Ratings)
}

func (suite *StateTestSuite) TestSetRange_SetsAndClears() {
	require.NoError(suite.T(), suite.state.SetRange(Float(10), Float(50)))
	assert.Equal(suite.T(), 10.0, *suite.state.MinPrice)
	assert.Equal(suite.T(), 50.0, *suite.state.MaxPrice)

	require.NoError(suite.T(), suite.state.SetRange(nil, Float(40)))
	assert.Nil(suite.T(), suite.state.MinPrice)
	assert.Equal(suite.T(), 40.0, *suite.state.MaxPrice)

	require.NoError(suite.T(), suite.state.SetRange(nil, nil))
	assert.Nil(suite.T(), suite.state.MaxPrice)
}

func (suite *StateTestSuite) TestSetRange_RejectsInvertedBounds() {
	require.NoError(suite.T(), suite.state.SetRange(Float(5), Float(20)))

	err := suite.state.SetRange(Float(50), Float(10))

	assert.True(suite.T(), IsValidationError(err))
	assert.Contains(suite.T(), err.Error(), "greater than")
	assert.Equal(suite.T(), 5.0, *suite.state.MinPrice)
	assert.Equal(suite.T(), 20.0, *suite.state.MaxPrice)
}

func (suite *StateTestSuite) TestSetRange_RejectsNegative() {
	err := suite.state.SetRange(Float(-1), nil)

	assert.True(suite.T(), IsValidationError(err))
	assert.Nil(suite.T(), suite.state.MinPrice)
}

func (suite *StateTestSuite) TestSetRange_DoesNotAliasArguments() {
	lower := 10.0
	require.NoError(suite.T(), suite.state.SetRange(&lower, nil))
	lower = 99

	assert.Equal(suite.T(), 10.0, *suite.state.MinPrice)
}

func (suite *StateTestSuite) TestSetAttribute_InsertReplaceRemove() {
	require.NoError(suite.T(), suite.state.SetAttribute("pa_color", []string{"red", "blue"}, OperatorOr))
	require.NoError(suite.T(), suite.state.SetAttribute("pa_size", []string{"m"}, OperatorAnd))
	require.NoError(suite.T(), suite.state.SetAttribute("pa_color", []string{"green"}, OperatorAnd))

	require.Len(suite.T(), suite.state.Attributes, 2)
	assert.Equal(suite.T(), AttributeFilter{Attribute: "pa_color", Operator: OperatorAnd, Slugs: []string{"green"}}, suite.state.Attributes[0])
	assert.Equal(suite.T(), "pa_size", suite.state.Attributes[1].Attribute)

	require.NoError(suite.T(), suite.state.SetAttribute("pa_color", nil, OperatorOr))
	require.Len(suite.T(), suite.state.Attributes, 1)
	assert.Equal(suite.T(), "pa_size", suite.state.Attributes[0].Attribute)

	require.NoError(suite.T(), suite.state.SetAttribute("pa_size", []string{" "}, OperatorOr))
	assert.Nil(suite.T(), suite.state.Attributes)
}

func (suite *StateTestSuite) TestSetAttribute_DefaultsAndValidatesOperator() {
	require.NoError(suite.T(), suite.state.SetAttribute("pa_color", []string{"red"}, ""))
	assert.Equal(suite.T(), OperatorOr, suite.state.Attributes[0].Operator)

	err := suite.state.SetAttribute("pa_color", []string{"red"}, "xor")
	assert.True(suite.T(), IsValidationError(err))
}

func (suite *StateTestSuite) TestSetAttribute_RejectsOperatorParamCollisions() {
	for _, name := range []string{"qt", "pa_qt", "size_qt", "pa_size_qt"} {
		err := suite.state.SetAttribute(name, []string{"a"}, OperatorOr)
		assert.True(suite.T(), IsValidationError(err), name)
	}
	assert.Nil(suite.T(), suite.state.Attributes)

	require.NoError(suite.T(), suite.state.SetAttribute("qty", []string{"a"}, OperatorOr))
	assert.Equal(suite.T(), "pa_qty", suite.state.Attributes[0].Attribute)
}

func (suite *StateTestSuite) TestToggle_StoresCanonicalRating() {
	require.NoError(suite.T(), suite.state.Toggle(FacetRating, "05"))
	assert.Equal(suite.T(), []string{"5"}, suite.state.Ratings)

	require.NoError(suite.T(), suite.state.Toggle(FacetRating, "5"))
	assert.Nil(suite.T(), suite.state.Ratings)

	require.NoError(suite.T(), suite.state.SetValues(FacetRating, []string{"04", "4", " 3"}))
	assert.Equal(suite.T(), []string{"3", "4"}, suite.state.Ratings)
}

func (suite *StateTestSuite) TestSetSort_ValidatesOrder() {
	require.NoError(suite.T(), suite.state.SetSort("price-desc"))
	assert.Equal(suite.T(), "price-desc", suite.state.OrderBy)

	assert.True(suite.T(), IsValidationError(suite.state.SetSort("cheapest")))
	assert.Equal(suite.T(), "price-desc", suite.state.OrderBy)
}

func (suite *StateTestSuite) TestClearAll_PreservesOrderBy() {
	require.NoError(suite.T(), suite.state.Toggle(FacetCategory, "1"))
	require.NoError(suite.T(), suite.state.SetAttribute("pa_color", []string{"red"}, OperatorOr))
	require.NoError(suite.T(), suite.state.SetRange(Float(1), Float(2)))
	suite.state.SetSearch("boots")
	require.NoError(suite.T(), suite.state.SetSort("date"))

	suite.state.ClearAll()

	assert.True(suite.T(), suite.state.IsEmpty())
	assert.Equal(suite.T(), "date", suite.state.OrderBy)
}

func (suite *StateTestSuite) TestClone_IsDeep() {
	require.NoError(suite.T(), suite.state.SetAttribute("pa_color", []string{"red"}, OperatorOr))
	clone := suite.state.Clone()
	clone.Attributes[0].Slugs[0] = "blue"

	assert.Equal(suite.T(), "red", suite.state.Attributes[0].Slugs[0])
}

func TestEqual_IgnoresOrder(t *testing.T) {
	a := State{
		Categories: []string{"1", "2"},
		Attributes: []AttributeFilter{
			{Attribute: "pa_color", Operator: OperatorOr, Slugs: []string{"red", "blue"}},
			{Attribute: "pa_size", Operator: OperatorAnd, Slugs: []string{"m"}},
		},
	}
	b := State{
		Categories: []string{"2", "1"},
		Attributes: []AttributeFilter{
			{Attribute: "pa_size", Operator: OperatorAnd, Slugs: []string{"m"}},
			{Attribute: "pa_color", Operator: OperatorOr, Slugs: []string{"blue", "red"}},
		},
	}

	assert.True(t, a.Equal(b))

	b.Attributes[0].Operator = OperatorOr
	assert.False(t, a.Equal(b))
}

func TestCriteria_LiftRemovesOnlyOneFacet(t *testing.T) {
	s := State{}
	require.NoError(t, s.Toggle(FacetCategory, "5"))
	require.NoError(t, s.Toggle(FacetStockStatus, StockInStock))
	require.NoError(t, s.SetAttribute("pa_color", []string{"red"}, OperatorOr))
	require.NoError(t, s.SetAttribute("pa_size", []string{"m"}, OperatorOr))
	require.NoError(t, s.SetRange(Float(10), nil))

	c := s.Criteria()

	lifted := c.Lift(FacetKey{Facet: FacetCategory})
	assert.Nil(t, lifted.Categories)
	assert.Equal(t, []string{StockInStock}, lifted.StockStatus)
	assert.Len(t, lifted.Attributes, 2)

	lifted = c.Lift(FacetKey{Facet: FacetAttributes, Attribute: "pa_color"})
	require.Len(t, lifted.Attributes, 1)
	assert.Equal(t, "pa_size", lifted.Attributes[0].Attribute)
	assert.Equal(t, []string{"5"}, lifted.Categories)
	assert.Len(t, c.Attributes, 2)

	lifted = c.Lift(FacetKey{Facet: FacetPrice})
	assert.Nil(t, lifted.MinPrice)
	assert.Equal(t, []string{"5"}, lifted.Categories)
}

func TestParseFacet_Aliases(t *testing.T) {
	tests := []struct {
		key  string
		want Facet
	}{
		{"category", FacetCategory},
		{"product_cat", FacetCategory},
		{"stock_status", FacetStockStatus},
		{"min_price", FacetPrice},
		{"s", FacetSearch},
		{"orderby", FacetOrderBy},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := ParseFacet(tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
