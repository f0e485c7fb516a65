package services

import (
	"context"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/iota-uz/flockdesk/modules/dashboard/domain/entity"
	"github.com/iota-uz/flockdesk/modules/dashboard/infrastructure/ajax"
)

// Searcher is the search endpoint. *ajax.Client implements it.
type Searcher interface {
	Search(ctx context.Context, query string) (ajax.SearchResults, error)
}

// RankedHit is a search hit with its fuzzy distance to the query. Hits the
// server matched on other fields (email, phone, city) have Distance -1.
type RankedHit struct {
	ajax.SearchHit
	Kind     entity.Kind
	Distance int
}

func groups(res ajax.SearchResults) []struct {
	kind entity.Kind
	hits []ajax.SearchHit
} {
	return []struct {
		kind entity.Kind
		hits []ajax.SearchHit
	}{
		{entity.Member, res.Members},
		{entity.Family, res.Families},
		{entity.Assembly, res.Assemblies},
		{entity.Unit, res.Units},
		{entity.Cell, res.Cells},
	}
}

// Rank orders hits by how closely their name matches query. Ties keep the
// server's order.
func Rank(query string, res ajax.SearchResults) []RankedHit {
	var hits []RankedHit
	for _, g := range groups(res) {
		for _, h := range g.hits {
			hits = append(hits, RankedHit{SearchHit: h, Kind: g.kind, Distance: -1})
		}
	}
	query = strings.TrimSpace(query)
	if query == "" || len(hits) == 0 {
		return hits
	}

	names := make([]string, len(hits))
	for i, h := range hits {
		names[i] = h.Name
	}
	ranks := fuzzy.RankFindNormalizedFold(query, names)
	sort.Stable(ranks)

	out := make([]RankedHit, 0, len(hits))
	matched := make([]bool, len(hits))
	for _, r := range ranks {
		h := hits[r.OriginalIndex]
		h.Distance = r.Distance
		out = append(out, h)
		matched[r.OriginalIndex] = true
	}
	for i, h := range hits {
		if !matched[i] {
			out = append(out, h)
		}
	}
	return out
}

// SearchService queries the server and ranks the result locally.
type SearchService struct {
	searcher Searcher
}

func NewSearchService(searcher Searcher) *SearchService {
	return &SearchService{searcher: searcher}
}

func (s *SearchService) Search(ctx context.Context, query string) ([]RankedHit, error) {
	res, err := s.searcher.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	return Rank(query, res), nil
}
