package models

// Triangle is a closed three-pair currency conversion cycle. The pair order
// defines the forward rotation: the first two hops buy through the ask, the
// last hop sells through the bid. Triangles are defined at startup and never
// change afterwards.
type Triangle struct {
	Name  string    `json:"name" yaml:"name"`
	Pairs [3]string `json:"pairs" yaml:"pairs"`
}

// Symbols returns the exchange symbols of the triangle's pairs.
func (t Triangle) Symbols() []string {
	out := make([]string, 0, len(t.Pairs))
	for _, p := range t.Pairs {
		out = append(out, PairSymbol(p))
	}
	return out
}

// UniqueSymbols collects the distinct exchange symbols across a triangle set.
func UniqueSymbols(triangles []Triangle) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(triangles)*3)
	for _, tri := range triangles {
		for _, s := range tri.Symbols() {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
