package models

// Raw GTFS rows. Every field is kept as text; numeric interpretation
// happens when the snapshot is built.

type StopRow struct {
	StopID   string `csv:"stop_id"`
	StopName string `csv:"stop_name"`
	StopLat  string `csv:"stop_lat"`
	StopLon  string `csv:"stop_lon"`
}

type RouteRow struct {
	RouteID        string `csv:"route_id"`
	RouteShortName string `csv:"route_short_name"`
	RouteLongName  string `csv:"route_long_name"`
	AgencyID       string `csv:"agency_id"`
	RouteType      string `csv:"route_type"`
}

type TripRow struct {
	TripID  string `csv:"trip_id"`
	RouteID string `csv:"route_id"`
}

type StopTimeRow struct {
	TripID string `csv:"trip_id"`
	StopID string `csv:"stop_id"`
}

// Feed holds the four tables the snapshot is built from.
type Feed struct {
	Stops     []StopRow
	Routes    []RouteRow
	Trips     []TripRow
	StopTimes []StopTimeRow
}
