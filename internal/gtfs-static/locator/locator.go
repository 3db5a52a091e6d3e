package locator

import (
	"net/url"
	"sort"
)

// Selection is the operator's choice of feed, all fields optional.
type Selection struct {
	URL      string
	Agency   string
	Category string
}

type Locator struct {
	catalog *Catalog
}

func New(catalog *Catalog) *Locator {
	return &Locator{catalog: catalog}
}

// Candidates returns the feed URLs to try, highest priority first.
//
// An explicit URL wins outright. A configured agency narrows the list to
// that agency (one URL per category when it publishes several and no
// category was chosen). Otherwise every known feed is swept, rail first.
func (l *Locator) Candidates(sel Selection) []string {
	if sel.URL != "" {
		return []string{sel.URL}
	}

	if sel.Agency != "" {
		op, ok := l.catalog.Operator(sel.Agency)
		if ok && op.MultiCategory() {
			if sel.Category != "" {
				return []string{l.categoryURL(op.ID, sel.Category)}
			}
			return dedupe(l.operatorURLs(op))
		}
		return []string{l.operatorURL(sel.Agency)}
	}

	var urls []string
	for _, op := range l.sweepOrder() {
		urls = append(urls, l.operatorURLs(op)...)
	}
	return dedupe(urls)
}

// sweepOrder puts rail operators first, then multi-category operators,
// then the remaining agencies. Catalog order is kept within each group.
func (l *Locator) sweepOrder() []Operator {
	ops := make([]Operator, len(l.catalog.Operators))
	copy(ops, l.catalog.Operators)
	sort.SliceStable(ops, func(i, j int) bool {
		return sweepRank(ops[i]) < sweepRank(ops[j])
	})
	return ops
}

func sweepRank(op Operator) int {
	switch {
	case op.Mode == ModeRail && !op.MultiCategory():
		return 0
	case op.MultiCategory():
		return 1
	default:
		return 2
	}
}

func (l *Locator) operatorURLs(op Operator) []string {
	if !op.MultiCategory() {
		return []string{l.operatorURL(op.ID)}
	}
	urls := make([]string, 0, len(op.Categories))
	for _, category := range op.Categories {
		urls = append(urls, l.categoryURL(op.ID, category))
	}
	return urls
}

func (l *Locator) operatorURL(agency string) string {
	return l.catalog.BaseURL + "/" + url.PathEscape(agency)
}

func (l *Locator) categoryURL(agency, category string) string {
	return l.operatorURL(agency) + "?category=" + url.QueryEscape(category)
}

func dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
