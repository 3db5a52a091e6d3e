package parser

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"io"
	"strings"

	"github.com/travelguide-gtfs/internal/common/logger"
)

const maxLoggedWarnings = 3

// tolerantReader feeds gocsv one table. Stray quotes are kept as literal
// text and rows whose width differs from the header are padded or cut,
// with only the first few mismatches logged.
type tolerantReader struct {
	r          *csv.Reader
	table      string
	logger     logger.Logger
	width      int
	rows       int
	mismatched int
	readHead   bool
}

func newTolerantReader(src io.Reader, table string, log logger.Logger) *tolerantReader {
	r := csv.NewReader(skipBOM(src))
	r.FieldsPerRecord = -1 // Variable number of fields
	r.LazyQuotes = true
	return &tolerantReader{r: r, table: table, logger: log}
}

func (t *tolerantReader) Read() ([]string, error) {
	record, err := t.r.Read()
	if err != nil {
		return nil, err
	}

	if !t.readHead {
		t.readHead = true
		t.width = len(record)
		return normalizeHeader(record), nil
	}

	t.rows++
	if len(record) != t.width {
		t.warnWidth(len(record))
	}
	return t.fit(record), nil
}

func (t *tolerantReader) ReadAll() ([][]string, error) {
	var records [][]string
	for {
		record, err := t.Read()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
}

// fit pads or truncates a row to the header width. Values are kept as
// they appear in the file.
func (t *tolerantReader) fit(record []string) []string {
	if len(record) == t.width {
		return record
	}
	row := make([]string, t.width)
	copy(row, record)
	return row
}

func (t *tolerantReader) warnWidth(got int) {
	t.mismatched++
	if t.mismatched <= maxLoggedWarnings {
		line, _ := t.r.FieldPos(0)
		t.logger.Warn("CSV parse warning",
			"table", t.table,
			"line", line,
			"fields", got,
			"expected", t.width)
	}
}

func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = strings.TrimSpace(h)
	}
	return out
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func skipBOM(src io.Reader) io.Reader {
	br := bufio.NewReader(src)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(prefix, utf8BOM) {
		br.Discard(len(utf8BOM))
	}
	return br
}
