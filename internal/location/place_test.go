package location

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShortName(t *testing.T) {
	tests := []struct {
		name    string
		addr    Address
		display string
		want    string
	}{
		{
			name:    "amenity road city",
			addr:    Address{Amenity: "Blue Bottle", Road: "Mint Plaza", City: "San Francisco", State: "California", Country: "USA"},
			display: "Blue Bottle, 66, Mint Plaza, San Francisco, California, USA",
			want:    "Blue Bottle, Mint Plaza, San Francisco",
		},
		{
			name:    "town falls in after city",
			addr:    Address{Road: "High Street", Town: "Lewes", Country: "UK"},
			display: "High Street, Lewes, UK",
			want:    "High Street, Lewes, UK",
		},
		{
			name:    "no address uses display name",
			display: "Somewhere, Nowhere",
			want:    "Somewhere, Nowhere",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShortName(tt.addr, tt.display))
		})
	}
}
