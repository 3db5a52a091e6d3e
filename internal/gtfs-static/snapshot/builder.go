package snapshot

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/travelguide-gtfs/internal/common/logger"
	"github.com/travelguide-gtfs/pkg/gtfs-static/models"
)

const (
	UnknownAgency   = "Unknown"
	GenericMode     = "Transit"
	DefaultMaxStops = 400
)

var routeTypeLabels = map[string]string{
	"0": "Tram/Light Rail",
	"1": "Metro",
	"2": "Rail",
	"3": "Bus",
	"4": "Ferry",
	"5": "Cable Car",
	"6": "Gondola",
	"7": "Funicular",
}

// RouteTypeLabel maps a GTFS route_type code to a display label. Codes
// are matched exactly, so " 1" is not Metro.
func RouteTypeLabel(code string) string {
	if label, ok := routeTypeLabels[code]; ok {
		return label
	}
	return GenericMode
}

// Stats counts rows dropped or skipped while building a snapshot.
type Stats struct {
	TripsMissingIDs     int
	StopTimesMissingIDs int
	OrphanStopTimes     int
	InvalidStops        int
	RoutesMissingID     int
	TruncatedStops      int
}

// Result is the ranked, bounded content of a snapshot.
type Result struct {
	Stops  []models.Stop
	Routes []models.Route
	Stats  Stats
}

// StopRoutes maps a stop id to the distinct routes serving it, in the
// order the routes were first seen for that stop.
type StopRoutes struct {
	routes map[string][]string
	seen   map[string]map[string]struct{}
}

func newStopRoutes() *StopRoutes {
	return &StopRoutes{
		routes: make(map[string][]string),
		seen:   make(map[string]map[string]struct{}),
	}
}

func (s *StopRoutes) add(stopID, routeID string) {
	set, ok := s.seen[stopID]
	if !ok {
		set = make(map[string]struct{})
		s.seen[stopID] = set
	}
	if _, dup := set[routeID]; dup {
		return
	}
	set[routeID] = struct{}{}
	s.routes[stopID] = append(s.routes[stopID], routeID)
}

// Routes returns the routes serving stopID, or nil.
func (s *StopRoutes) Routes(stopID string) []string {
	return s.routes[stopID]
}

func (s *StopRoutes) Len() int {
	return len(s.routes)
}

type Builder struct {
	maxStops int
	logger   logger.Logger
}

func NewBuilder(maxStops int, logger logger.Logger) *Builder {
	return &Builder{maxStops: maxStops, logger: logger}
}

// Build joins stops to routes through trips and stop-times, ranks stops
// by how many routes serve them and keeps the first maxStops. Routes are
// all kept; their stop counts come from the whole feed.
func (b *Builder) Build(feed *models.Feed) *Result {
	var stats Stats

	tripRoutes := TripRoutes(feed.Trips, &stats)
	stopRoutes := JoinStopRoutes(feed.StopTimes, tripRoutes, &stats)
	counts := RouteStopCounts(stopRoutes)

	stops := NormalizeStops(feed.Stops, stopRoutes, &stats)
	ranked := RankStops(stops, b.maxStops)
	stats.TruncatedStops = len(stops) - len(ranked)

	routes := NormalizeRoutes(feed.Routes, counts, &stats)

	b.logger.Info("Joined stops to routes",
		"trips", len(tripRoutes),
		"served_stops", stopRoutes.Len(),
		"served_routes", len(counts),
		"valid_stops", len(stops),
		"stops_kept", len(ranked),
		"routes_kept", len(routes))

	if stats != (Stats{}) {
		b.logger.Info("Skipped rows while building snapshot",
			"trips_missing_ids", stats.TripsMissingIDs,
			"stop_times_missing_ids", stats.StopTimesMissingIDs,
			"orphan_stop_times", stats.OrphanStopTimes,
			"invalid_stops", stats.InvalidStops,
			"routes_missing_id", stats.RoutesMissingID,
			"truncated_stops", stats.TruncatedStops)
	}

	return &Result{Stops: ranked, Routes: routes, Stats: stats}
}

// TripRoutes maps trip ids to route ids. A trip listed twice keeps its
// last route.
func TripRoutes(trips []models.TripRow, stats *Stats) map[string]string {
	out := make(map[string]string, len(trips))
	for _, trip := range trips {
		if trip.TripID == "" || trip.RouteID == "" {
			stats.TripsMissingIDs++
			continue
		}
		out[trip.TripID] = trip.RouteID
	}
	return out
}

// JoinStopRoutes resolves each stop-time's trip to a route. Stop-times
// whose trip has no route are skipped.
func JoinStopRoutes(stopTimes []models.StopTimeRow, tripRoutes map[string]string, stats *Stats) *StopRoutes {
	out := newStopRoutes()
	for _, st := range stopTimes {
		if st.StopID == "" || st.TripID == "" {
			stats.StopTimesMissingIDs++
			continue
		}
		routeID, ok := tripRoutes[st.TripID]
		if !ok {
			stats.OrphanStopTimes++
			continue
		}
		out.add(st.StopID, routeID)
	}
	return out
}

// RouteStopCounts counts, for each route, the distinct stops it serves.
func RouteStopCounts(stopRoutes *StopRoutes) map[string]int {
	counts := make(map[string]int)
	for _, routes := range stopRoutes.routes {
		for _, routeID := range routes {
			counts[routeID]++
		}
	}
	return counts
}

// NormalizeStops keeps stops with an id, a name and finite coordinates,
// in input order. Ids and names are used verbatim; coordinates may carry
// surrounding whitespace.
func NormalizeStops(rows []models.StopRow, stopRoutes *StopRoutes, stats *Stats) []models.Stop {
	stops := make([]models.Stop, 0, len(rows))
	for _, row := range rows {
		lat, latOK := parseCoordinate(row.StopLat)
		lon, lonOK := parseCoordinate(row.StopLon)
		if row.StopID == "" || row.StopName == "" || !latOK || !lonOK {
			stats.InvalidStops++
			continue
		}

		routes := stopRoutes.Routes(row.StopID)
		served := make([]string, len(routes))
		copy(served, routes)

		stops = append(stops, models.Stop{
			ID:     row.StopID,
			Name:   row.StopName,
			Lat:    lat,
			Lon:    lon,
			Routes: served,
		})
	}
	return stops
}

// RankStops orders stops by descending route count, keeping input order
// among ties, and truncates to maxStops.
func RankStops(stops []models.Stop, maxStops int) []models.Stop {
	ranked := make([]models.Stop, len(stops))
	copy(ranked, stops)
	sort.SliceStable(ranked, func(i, j int) bool {
		return len(ranked[i].Routes) > len(ranked[j].Routes)
	})
	if maxStops < 0 {
		maxStops = 0
	}
	if len(ranked) > maxStops {
		ranked = ranked[:maxStops]
	}
	return ranked
}

// NormalizeRoutes converts every route row with an id, filling display
// fallbacks and the feed-wide stop count.
func NormalizeRoutes(rows []models.RouteRow, counts map[string]int, stats *Stats) []models.Route {
	routes := make([]models.Route, 0, len(rows))
	for _, row := range rows {
		if row.RouteID == "" {
			stats.RoutesMissingID++
			continue
		}
		shortName := firstNonEmpty(row.RouteShortName, row.RouteID)
		routes = append(routes, models.Route{
			ID:        row.RouteID,
			ShortName: shortName,
			LongName:  firstNonEmpty(row.RouteLongName, shortName),
			AgencyID:  firstNonEmpty(row.AgencyID, UnknownAgency),
			Type:      RouteTypeLabel(row.RouteType),
			StopCount: counts[row.RouteID],
		})
	}
	return routes
}

func parseCoordinate(value string) (float64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
