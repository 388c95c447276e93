package docstore

import (
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numValue(t *testing.T, av types.AttributeValue) string {
	t.Helper()

	n, ok := av.(*types.AttributeValueMemberN)
	require.True(t, ok, "expected N attribute, got %T", av)

	return n.Value
}

func TestAttrValueScalars(t *testing.T) {
	av, err := attrValue("hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", av.(*types.AttributeValueMemberS).Value)

	av, err = attrValue(true)
	require.NoError(t, err)
	assert.True(t, av.(*types.AttributeValueMemberBOOL).Value)

	av, err = attrValue(nil)
	require.NoError(t, err)
	assert.True(t, av.(*types.AttributeValueMemberNULL).Value)
}

func TestAttrValueFloats(t *testing.T) {
	cases := map[float64]string{
		0.1:       "0.1",
		48.858093: "48.858093",
		-2.5:      "-2.5",
		3:         "3",
		-0:        "0",
		1e6:       "1000000",
	}

	for in, want := range cases {
		av, err := attrValue(in)
		require.NoError(t, err)
		assert.Equal(t, want, numValue(t, av), "float %v", in)
	}
}

func TestAttrValueJSONNumberPassesThrough(t *testing.T) {
	av, err := attrValue(json.Number("0.30000000000000004"))
	require.NoError(t, err)
	assert.Equal(t, "0.30000000000000004", numValue(t, av))
}

func TestAttrValueNested(t *testing.T) {
	var doc map[string]interface{}

	raw := `{"waypoints":[{"lat":48.858093,"lon":2.294694},{"lat":48.86,"lon":2.3}],"speed":0.75,"loops":3}`
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))

	av, err := attrValue(doc)
	require.NoError(t, err)

	m := av.(*types.AttributeValueMemberM).Value
	assert.Equal(t, "0.75", numValue(t, m["speed"]))
	assert.Equal(t, "3", numValue(t, m["loops"]), "integral floats become plain integers")

	waypoints := m["waypoints"].(*types.AttributeValueMemberL).Value
	require.Len(t, waypoints, 2)

	first := waypoints[0].(*types.AttributeValueMemberM).Value
	assert.Equal(t, "48.858093", numValue(t, first["lat"]))
	assert.Equal(t, "2.294694", numValue(t, first["lon"]))
}

func TestAttrValueMissionList(t *testing.T) {
	missions := []map[string]interface{}{
		{"name": "patrol", "duration": 12.5},
		{"name": "dock", "duration": 3.0},
	}

	av, err := attrValue(missions)
	require.NoError(t, err)

	l := av.(*types.AttributeValueMemberL).Value
	require.Len(t, l, 2)

	second := l[1].(*types.AttributeValueMemberM).Value
	assert.Equal(t, "dock", second["name"].(*types.AttributeValueMemberS).Value)
	assert.Equal(t, "3", numValue(t, second["duration"]))
}

func TestAttrValueRejectsUnsupportedType(t *testing.T) {
	_, err := attrValue(struct{}{})
	require.Error(t, err)
}

func TestFormatFixedNeverUsesExponent(t *testing.T) {
	assert.Equal(t, "0.000001", formatFixed(1e-6))
	assert.Equal(t, "123456789.25", formatFixed(123456789.25))
}
