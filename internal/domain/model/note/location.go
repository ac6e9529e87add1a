package note

// Location is the place a memo was recorded. Latitude and longitude always
// come together; the resolved city and street names arrive later from a
// reverse geocoder and may stay empty forever.
type Location struct {
	latitude   float64
	longitude  float64
	cityName   string
	streetName string
}

// NewLocation creates an unresolved location from raw coordinates
func NewLocation(latitude, longitude float64) Location {
	return Location{latitude: latitude, longitude: longitude}
}

// ReconstructLocation rebuilds a Location from persisted data
func ReconstructLocation(latitude, longitude float64, cityName, streetName string) Location {
	return Location{
		latitude:   latitude,
		longitude:  longitude,
		cityName:   cityName,
		streetName: streetName,
	}
}

func (l Location) Latitude() float64  { return l.latitude }
func (l Location) Longitude() float64 { return l.longitude }
func (l Location) CityName() string   { return l.cityName }
func (l Location) StreetName() string { return l.streetName }

// IsResolved reports whether a geocoder has filled in place names
func (l Location) IsResolved() bool {
	return l.cityName != "" || l.streetName != ""
}

// Resolved returns a copy with place names filled in
func (l Location) Resolved(cityName, streetName string) Location {
	l.cityName = cityName
	l.streetName = streetName
	return l
}
