// Package route holds the polyline helpers used when a journey is created
// and when its route is shown on the map.
package route

import "github.com/dalemusser/tellevo/internal/domain/models"

// DefaultStride keeps every fifth vertex of a drawn route.
const DefaultStride = 5

// Downsample keeps the points whose index is a multiple of stride
// (0, stride, 2*stride, ...). A stride below 1 is treated as 1.
// The result is a fresh slice; points is never modified.
func Downsample(points []models.GeoPoint, stride int) []models.GeoPoint {
	if stride < 1 {
		stride = 1
	}
	out := make([]models.GeoPoint, 0, (len(points)+stride-1)/stride)
	for i := 0; i < len(points); i += stride {
		out = append(out, points[i])
	}
	return out
}

// Waypoints returns the points a map needs to redraw a stored route:
// the first, the middle (index len/2) and the last point.
// Routes with fewer than three points are returned unchanged.
func Waypoints(points []models.GeoPoint) []models.GeoPoint {
	if len(points) < 3 {
		out := make([]models.GeoPoint, len(points))
		copy(out, points)
		return out
	}
	return []models.GeoPoint{
		points[0],
		points[len(points)/2],
		points[len(points)-1],
	}
}
