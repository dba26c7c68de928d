// Package geo resolves a best-effort visitor location for click analytics.
package geo

import (
	"context"
	"math/rand/v2"

	"github.com/linkpulse/url-shortener/internal/models"
)

var mockLocations = []models.GeoLocation{
	{Country: "IN", City: "Delhi", Latitude: 28.6139, Longitude: 77.2090},
	{Country: "IN", City: "Mumbai", Latitude: 19.0760, Longitude: 72.8777},
	{Country: "IN", City: "Bangalore", Latitude: 12.9716, Longitude: 77.5946},
	{Country: "IN", City: "Chennai", Latitude: 13.0827, Longitude: 80.2707},
}

// MockResolver returns one of a fixed set of locations regardless of the IP.
type MockResolver struct {
	intN func(n int) int
}

func NewMockResolver() *MockResolver {
	return &MockResolver{intN: rand.IntN}
}

func (r *MockResolver) Resolve(ctx context.Context, _ string) (*models.GeoLocation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	loc := mockLocations[r.intN(len(mockLocations))]
	return &loc, nil
}
