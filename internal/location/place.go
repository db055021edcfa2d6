// Package location provides place lookup for tagging posts: forward and
// reverse geocoding, debounced search-as-you-type, and a short list of
// recently used places.
package location

import (
	"strings"
)

// Place is a selectable location.
type Place struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	ShortName string  `json:"shortName"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Type      string  `json:"type"`
	IsCurrent bool    `json:"isCurrent,omitempty"`
}

// Address holds the address components returned with addressdetails=1.
type Address struct {
	Amenity       string `json:"amenity"`
	Shop          string `json:"shop"`
	Tourism       string `json:"tourism"`
	Road          string `json:"road"`
	Neighbourhood string `json:"neighbourhood"`
	Suburb        string `json:"suburb"`
	City          string `json:"city"`
	Town          string `json:"town"`
	Village       string `json:"village"`
	State         string `json:"state"`
	Country       string `json:"country"`
}

// ShortName builds a compact label from the first three available of:
// point of interest, road, neighbourhood, locality, state, country.
// It falls back to displayName when the address has none of them.
func ShortName(addr Address, displayName string) string {
	parts := make([]string, 0, 6)
	add := func(candidates ...string) {
		for _, c := range candidates {
			if c != "" {
				parts = append(parts, c)
				return
			}
		}
	}
	add(addr.Amenity, addr.Shop, addr.Tourism)
	add(addr.Road)
	add(addr.Neighbourhood, addr.Suburb)
	add(addr.City, addr.Town, addr.Village)
	add(addr.State)
	add(addr.Country)

	if len(parts) > 3 {
		parts = parts[:3]
	}
	if len(parts) == 0 {
		return displayName
	}
	return strings.Join(parts, ", ")
}
