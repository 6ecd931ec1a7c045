package location

import (
	"strings"

	"github.com/jpalmerr/disasterboard/internal/geo"
)

// IndiaCentroid is used when a search matches no catalog entry.
var IndiaCentroid = geo.Position{Latitude: 20.5937, Longitude: 78.9629}

// Place is a selectable city.
type Place struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

// Position converts p to a geo.Position addressed by its name.
func (p Place) Position() geo.Position {
	return geo.Position{Latitude: p.Lat, Longitude: p.Lng, Address: p.Name}
}

// Catalog is the list of disaster-prone cities offered for quick selection.
var Catalog = []Place{
	{Name: "Mumbai, Maharashtra", Lat: 19.0760, Lng: 72.8777},
	{Name: "Delhi, Delhi", Lat: 28.7041, Lng: 77.1025},
	{Name: "Bangalore, Karnataka", Lat: 12.9716, Lng: 77.5946},
	{Name: "Chennai, Tamil Nadu", Lat: 13.0827, Lng: 80.2707},
	{Name: "Kolkata, West Bengal", Lat: 22.5726, Lng: 88.3639},
	{Name: "Hyderabad, Telangana", Lat: 17.3850, Lng: 78.4867},
	{Name: "Pune, Maharashtra", Lat: 18.5204, Lng: 73.8567},
	{Name: "Ahmedabad, Gujarat", Lat: 23.0225, Lng: 72.5714},
	{Name: "Surat, Gujarat", Lat: 21.1702, Lng: 72.8311},
	{Name: "Jaipur, Rajasthan", Lat: 26.9124, Lng: 75.7873},
	{Name: "Kochi, Kerala", Lat: 9.9312, Lng: 76.2673},
	{Name: "Bhubaneswar, Odisha", Lat: 20.2961, Lng: 85.8245},
	{Name: "Guwahati, Assam", Lat: 26.1445, Lng: 91.7362},
	{Name: "Shimla, Himachal Pradesh", Lat: 31.1048, Lng: 77.1734},
	{Name: "Gangtok, Sikkim", Lat: 27.3389, Lng: 88.6065},
}

// Search returns the catalog entries whose name contains query,
// case-insensitively. An empty query returns the whole catalog.
func Search(query string) []Place {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]Place, 0, len(Catalog))
	for _, p := range Catalog {
		if strings.Contains(strings.ToLower(p.Name), q) {
			out = append(out, p)
		}
	}
	return out
}

// Geocode resolves a search query to the first matching catalog entry, or
// the India centroid addressed as "<query>, India". ok is false for a blank
// query.
func Geocode(query string) (pos geo.Position, ok bool) {
	q := strings.TrimSpace(query)
	if q == "" {
		return geo.Position{}, false
	}
	if matches := Search(q); len(matches) > 0 {
		return matches[0].Position(), true
	}
	pos = IndiaCentroid
	pos.Address = q + ", India"
	return pos, true
}
