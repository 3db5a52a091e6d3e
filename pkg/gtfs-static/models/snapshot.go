package models

// Snapshot is the JSON document read by the map and explore screens.
type Snapshot struct {
	GeneratedAt string  `json:"generatedAt"`
	SourceURL   string  `json:"sourceUrl"`
	Stops       []Stop  `json:"stops"`
	Routes      []Route `json:"routes"`
}

type Stop struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Lat    float64  `json:"lat"`
	Lon    float64  `json:"lon"`
	Routes []string `json:"routes"`
}

type Route struct {
	ID        string `json:"id"`
	ShortName string `json:"shortName"`
	LongName  string `json:"longName"`
	AgencyID  string `json:"agencyId"`
	Type      string `json:"type"`
	StopCount int    `json:"stopCount"`
}
