package mdl

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaultsMissingCollections(t *testing.T) {
	m, err := Parse([]byte(`{}`))
	require.NoError(t, err)

	assert.NotNil(t, m.Models)
	assert.NotNil(t, m.Relationships)
	assert.NotNil(t, m.Views)
	assert.NotNil(t, m.Metrics)
	assert.Empty(t, m.Models)
	assert.Empty(t, m.Metrics)
}

func TestParseRejectsMalformedJSON(t *testing.T) {
	_, err := Parse([]byte(`{"models": [`))
	require.Error(t, err)

	var parseErr *ParseError
	assert.True(t, errors.As(err, &parseErr))
}

func TestParseFullManifest(t *testing.T) {
	raw := `{
		"models": [
			{
				"name": "orders",
				"primaryKey": "id",
				"properties": {"displayName": "Orders"},
				"columns": [
					{"name": "id", "type": "int"},
					{"name": "customer", "type": "varchar", "relationship": "OrdersCustomers"},
					{"name": "profit", "type": "decimal", "isCalculated": true, "expression": "revenue - cost"}
				]
			}
		],
		"relationships": [
			{"models": ["orders", "customers"], "condition": "orders.customer_id = customers.id", "joinType": "many_to_one"}
		],
		"views": [
			{"name": "top_orders", "statement": "SELECT 1", "properties": {"question": "top orders?"}}
		],
		"metrics": [
			{"name": "revenue", "baseObject": "orders", "dimension": [{"name": "city", "type": "varchar"}], "measure": [{"name": "total", "type": "decimal", "expression": "sum(price)"}]}
		]
	}`

	m, err := Parse([]byte(raw))
	require.NoError(t, err)

	require.Len(t, m.Models, 1)
	assert.Equal(t, "orders", m.Models[0].Name)
	assert.Equal(t, "id", m.Models[0].PrimaryKey)
	require.Len(t, m.Models[0].Columns, 3)
	assert.Equal(t, "OrdersCustomers", m.Models[0].Columns[1].Relationship)
	assert.True(t, m.Models[0].Columns[2].IsCalculated)

	require.Len(t, m.Relationships, 1)
	assert.Equal(t, JoinManyToOne, m.Relationships[0].Join())

	require.Len(t, m.Views, 1)
	assert.Equal(t, "top orders?", m.Views[0].Properties["question"])

	require.Len(t, m.Metrics, 1)
	assert.Equal(t, "orders", m.Metrics[0].BaseObject)
	require.Len(t, m.Metrics[0].Dimensions, 1)
	require.Len(t, m.Metrics[0].Measures, 1)
}

func TestJoinNormalizesCase(t *testing.T) {
	assert.Equal(t, JoinOneToOne, Relationship{JoinType: "one_to_one"}.Join())
	assert.Equal(t, JoinOneToMany, Relationship{JoinType: " One_To_Many "}.Join())
}
