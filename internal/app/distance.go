package app

import "math"

const earthRadiusKm = 6371

// distanceKm returns the great-circle distance between two coordinates
// using the haversine formula.
func distanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	if lat1 == lat2 && lon1 == lon2 {
		return 0
	}
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := 0.5 - math.Cos(dLat)/2 +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*(1-math.Cos(dLon))/2
	return earthRadiusKm * 2 * math.Asin(math.Sqrt(a))
}
