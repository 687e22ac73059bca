package boundary

import (
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

func TestEncodePolygonWKB(t *testing.T) {
	poly := &shp.Polygon{
		NumParts: 1,
		Parts:    []int32{0},
		Points: []shp.Point{
			{X: -85.0, Y: 35.0},
			{X: -85.0, Y: 36.0},
			{X: -84.0, Y: 36.0},
			{X: -84.0, Y: 35.0},
			{X: -85.0, Y: 35.0}, // closed ring
		},
	}

	wkb, err := encodePolygonWKB(poly)
	require.NoError(t, err)
	require.NotNil(t, wkb)

	g, err := ewkb.Unmarshal(wkb)
	require.NoError(t, err)
	mp, ok := g.(*geom.MultiPolygon)
	require.True(t, ok)
	assert.Equal(t, 4326, mp.SRID())
	assert.Equal(t, 1, mp.NumPolygons())
}

func TestEncodePolygonWKB_MultiPart(t *testing.T) {
	poly := &shp.Polygon{
		NumParts: 2,
		Parts:    []int32{0, 5},
		Points: []shp.Point{
			{X: -85.0, Y: 35.0},
			{X: -85.0, Y: 36.0},
			{X: -84.0, Y: 36.0},
			{X: -84.0, Y: 35.0},
			{X: -85.0, Y: 35.0},
			{X: -86.0, Y: 36.0},
			{X: -86.0, Y: 37.0},
			{X: -85.0, Y: 37.0},
			{X: -85.0, Y: 36.0},
			{X: -86.0, Y: 36.0},
		},
	}

	wkb, err := encodePolygonWKB(poly)
	require.NoError(t, err)
	require.NotNil(t, wkb)

	g, err := ewkb.Unmarshal(wkb)
	require.NoError(t, err)
	mp := g.(*geom.MultiPolygon)
	assert.Equal(t, 2, mp.NumPolygons())
}

func TestEncodePolygonWKB_Skipped(t *testing.T) {
	// Nil, non-polygon, and empty shapes are skipped without error.
	wkb, err := encodePolygonWKB(nil)
	require.NoError(t, err)
	assert.Nil(t, wkb)

	wkb, err = encodePolygonWKB(&shp.Point{X: -85.0, Y: 35.0})
	require.NoError(t, err)
	assert.Nil(t, wkb)

	wkb, err = encodePolygonWKB(&shp.Polygon{})
	require.NoError(t, err)
	assert.Nil(t, wkb)
}
