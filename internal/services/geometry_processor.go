package services

import (
	"fmt"
	"math"

	"github.com/knulata/satteli/internal/models"
)

const (
	kmPerDegreeLat = 110.574
	kmPerDegreeLon = 111.32 // at the equator, scaled by cos(lat)
)

// GeometryProcessor derives area and centroid facts from parcel boundaries.
// Area uses the bounding-box approximation with latitude-corrected degree
// lengths; good enough for threshold comparisons at parcel scale.
type GeometryProcessor struct{}

func NewGeometryProcessor() *GeometryProcessor {
	return &GeometryProcessor{}
}

// ComputeFacts returns the parcel's approximate area in hectares and its
// bounding-box centroid. Returns ErrInvalidGeometry for polygons it cannot
// derive facts from.
func (g *GeometryProcessor) ComputeFacts(boundary *models.GeoJSONPolygon) (float64, *models.GeoJSONPoint, error) {
	if boundary == nil || boundary.Type != "Polygon" {
		return 0, nil, fmt.Errorf("boundary must be a Polygon: %w", models.ErrInvalidGeometry)
	}

	ring := boundary.OuterRing()
	if len(ring) < 3 {
		return 0, nil, fmt.Errorf("outer ring needs at least 3 coordinates: %w", models.ErrInvalidGeometry)
	}

	minLon, maxLon := ring[0][0], ring[0][0]
	minLat, maxLat := ring[0][1], ring[0][1]
	for _, coord := range ring {
		if len(coord) < 2 {
			return 0, nil, fmt.Errorf("coordinate missing lon/lat: %w", models.ErrInvalidGeometry)
		}
		lon, lat := coord[0], coord[1]
		if lon < -180 || lon > 180 || lat < -90 || lat > 90 {
			return 0, nil, fmt.Errorf("coordinate out of range: %w", models.ErrInvalidGeometry)
		}
		minLon = math.Min(minLon, lon)
		maxLon = math.Max(maxLon, lon)
		minLat = math.Min(minLat, lat)
		maxLat = math.Max(maxLat, lat)
	}

	midLat := (minLat + maxLat) / 2
	kmPerLon := kmPerDegreeLon * math.Cos(midLat*math.Pi/180)
	widthKm := (maxLon - minLon) * kmPerLon
	heightKm := (maxLat - minLat) * kmPerDegreeLat

	areaHa := widthKm * heightKm * 100 // km2 to hectares
	centroid := models.NewGeoJSONPoint((minLon+maxLon)/2, (minLat+maxLat)/2)

	return areaHa, centroid, nil
}
