package models

import (
	"testing"

	"github.com/delivery/backend/internal/domain/restaurant"
	"github.com/delivery/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRestaurantModel_ToDomain_OpeningHours(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected restaurant.OpeningHours
	}{
		{"json", `{"open":"11:00","close":"23:00","closedDay":"Monday"}`, restaurant.OpeningHours{Open: "11:00", Close: "23:00", ClosedDay: "Monday"}},
		{"legacy", "11:00-23:00|Lundi", restaurant.OpeningHours{Open: "11:00", Close: "23:00", ClosedDay: "Monday"}},
		{"empty", "", restaurant.OpeningHours{}},
		{"free text reads as always open", "tous les jours sauf lundi", restaurant.OpeningHours{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &RestaurantModel{OpeningHours: tt.raw, Categories: `["pizza"]`}
			r := m.ToDomain()
			assert.Equal(t, tt.expected, r.OpeningHours)
			assert.Equal(t, []string{"pizza"}, r.Categories)
		})
	}
}

func TestRestaurantModel_FromDomain(t *testing.T) {
	r, err := restaurant.NewRestaurant("Pizza Carthage", "22123456", "Avenue Habib Bourguiba, Tunis")
	require.NoError(t, err)
	hours, err := restaurant.NewOpeningHours("18:00", "02:00", "")
	require.NoError(t, err)
	r.SetOpeningHours(hours)
	point, err := valueobject.NewGeoPoint(36.8, 10.18)
	require.NoError(t, err)
	r.SetLocation(&point)
	require.NoError(t, r.SetMinOrder(decimal.RequireFromString("15")))

	m := RestaurantModelFromDomain(r)

	assert.Equal(t, r.ID, m.ID)
	assert.JSONEq(t, `{"open":"18:00","close":"02:00","closedDay":""}`, m.OpeningHours)
	assert.Equal(t, "[]", m.Categories)
	require.NotNil(t, m.Latitude)
	assert.InDelta(t, 36.8, *m.Latitude, 1e-9)

	back := m.ToDomain()
	assert.Equal(t, r.OpeningHours, back.OpeningHours)
	assert.True(t, back.MinOrder.Equal(r.MinOrder))
	require.NotNil(t, back.Location)
	assert.InDelta(t, 10.18, back.Location.Longitude, 1e-9)
}

func TestJoinLocation_IgnoresPartialOrInvalid(t *testing.T) {
	lat := 36.8
	bad := 500.0
	assert.Nil(t, joinLocation(&lat, nil))
	assert.Nil(t, joinLocation(&bad, &lat))
	assert.NotNil(t, joinLocation(&lat, &lat))
}
