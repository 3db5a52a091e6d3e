// Package gtfstest builds small GTFS archives for tests.
package gtfstest

import (
	"bytes"
	"sort"
	"testing"

	"github.com/klauspost/compress/zip"
)

// Archive zips the given member name to content pairs.
func Archive(t testing.TB, files map[string]string) []byte {
	t.Helper()

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("creating %s: %v", name, err)
		}
		if _, err := w.Write([]byte(files[name])); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing archive: %v", err)
	}
	return buf.Bytes()
}

// Feed is a three-stop network: KL Sentral is served by five routes,
// Pasar Seni by two and Depot by none.
var Feed = map[string]string{
	"agency.txt": "agency_id,agency_name,agency_url,agency_timezone\n" +
		"RKL,Rapid KL,https://myrapid.com.my,Asia/Kuala_Lumpur\n",
	"stops.txt": "stop_id,stop_name,stop_lat,stop_lon\n" +
		"A,Pasar Seni,3.1424,101.6955\n" +
		"B,Depot,3.1000,101.6000\n" +
		"C,KL Sentral,3.1343,101.6865\n",
	"routes.txt": "route_id,agency_id,route_short_name,route_long_name,route_type\n" +
		"KJ,RKL,KJ,Kelana Jaya Line,1\n" +
		"SBK,RKL,SBK,Sungai Buloh-Kajang Line,1\n" +
		"KLM,,KLM,,2\n" +
		"T789,RKL,T789,,3\n" +
		"U80,RKL,,,3\n" +
		"NEW,RKL,NEW,Unserved Line,700\n",
	"trips.txt": "route_id,service_id,trip_id\n" +
		"KJ,WK,kj-1\n" +
		"SBK,WK,sbk-1\n" +
		"KLM,WK,klm-1\n" +
		"T789,WK,t789-1\n" +
		"U80,WK,u80-1\n",
	"stop_times.txt": "trip_id,arrival_time,departure_time,stop_id,stop_sequence\n" +
		"kj-1,08:00:00,08:00:00,A,1\n" +
		"kj-1,08:05:00,08:05:00,C,2\n" +
		"sbk-1,08:00:00,08:00:00,A,1\n" +
		"sbk-1,08:06:00,08:06:00,C,2\n" +
		"klm-1,09:00:00,09:00:00,C,1\n" +
		"t789-1,10:00:00,10:00:00,C,1\n" +
		"u80-1,11:00:00,11:00:00,C,1\n" +
		"ghost-1,12:00:00,12:00:00,B,1\n",
}
