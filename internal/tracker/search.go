package tracker

import "strings"

// MaxSearchResults caps the number of assets a search returns
const MaxSearchResults = 20

// Search filters candidates by a trimmed, case-insensitive query. An asset
// matches when its symbol equals the query or its name or symbol contains
// it. Exact symbol matches come first; otherwise the candidate order is kept.
// An empty query returns every candidate.
func Search(query string, candidates []Asset) []Asset {
	term := strings.ToLower(strings.TrimSpace(query))
	if term == "" {
		all := make([]Asset, len(candidates))
		copy(all, candidates)
		return all
	}

	exact := make([]Asset, 0)
	partial := make([]Asset, 0)
	for _, asset := range candidates {
		symbol := strings.ToLower(asset.Symbol)
		switch {
		case symbol == term:
			exact = append(exact, asset)
		case strings.Contains(strings.ToLower(asset.Name), term), strings.Contains(symbol, term):
			partial = append(partial, asset)
		}
	}

	results := append(exact, partial...)
	if len(results) > MaxSearchResults {
		results = results[:MaxSearchResults]
	}
	return results
}
