package matcher

import (
	"math"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	ahocorasick "github.com/cloudflare/ahocorasick"

	"FeedAggregator/internal/domain"
)

// Scoring constants. Confidence is 1-exp(-evidence), so one whole-token hit on
// a single-word alias of four or more runes clears the default 0.4 threshold.
const (
	baseSpecificity  = 0.6
	perTokenBonus    = 0.3
	maxSpecificity   = 1.5
	shortAliasRunes  = 4
	shortAliasFactor = 0.6
	partialHitFactor = 0.35 // alias found only inside a longer token
	repeatBonus      = 0.1
	maxRepeatBonus   = 0.3
)

type aliasRef struct {
	entity      int
	specificity float64
}

// Index scores text against one class of entities.
type Index struct {
	class    domain.EntityClass
	entities []domain.Entity
	aliases  []string
	refs     [][]aliasRef

	// ahocorasick.Matcher keeps per-call counters, so Match is serialised.
	mu      sync.Mutex
	matcher *ahocorasick.Matcher
}

type evidence struct {
	entity   int
	weight   float64
	bestSpec float64
}

// NewIndex builds the alias automaton. Entity order is the tie-break order.
func NewIndex(class domain.EntityClass, entities []domain.Entity) *Index {
	ix := &Index{class: class}
	positions := map[string]int{}

	for _, entity := range entities {
		if entity.ID == "" {
			continue
		}
		entityPos := len(ix.entities)
		ix.entities = append(ix.entities, entity)

		seen := map[string]struct{}{}
		for _, raw := range append([]string{entity.Name}, entity.Aliases...) {
			alias := normalizeAlias(raw)
			if alias == "" {
				continue
			}
			if _, dup := seen[alias]; dup {
				continue
			}
			seen[alias] = struct{}{}

			pos, ok := positions[alias]
			if !ok {
				pos = len(ix.aliases)
				positions[alias] = pos
				ix.aliases = append(ix.aliases, alias)
				ix.refs = append(ix.refs, nil)
			}
			ix.refs[pos] = append(ix.refs[pos], aliasRef{entity: entityPos, specificity: specificity(alias)})
		}
	}

	if len(ix.aliases) > 0 {
		ix.matcher = ahocorasick.NewStringMatcher(ix.aliases)
	}
	return ix
}

// Len returns the number of indexed entities.
func (ix *Index) Len() int {
	return len(ix.entities)
}

// Match returns entities scoring at least threshold, best first.
func (ix *Index) Match(text string, threshold float64) []domain.EntityMatch {
	if ix == nil || ix.matcher == nil || strings.TrimSpace(text) == "" {
		return nil
	}

	normalized := Normalize(text)

	ix.mu.Lock()
	hits := ix.matcher.Match([]byte(normalized))
	ix.mu.Unlock()

	byEntity := map[int]*evidence{}
	for _, hit := range hits {
		if hit < 0 || hit >= len(ix.aliases) {
			continue
		}
		alias := ix.aliases[hit]
		occurrences := wholeTokenCount(normalized, alias)

		for _, ref := range ix.refs[hit] {
			ev, ok := byEntity[ref.entity]
			if !ok {
				ev = &evidence{entity: ref.entity}
				byEntity[ref.entity] = ev
			}
			if occurrences > 0 {
				ev.weight += ref.specificity + math.Min(maxRepeatBonus, repeatBonus*float64(occurrences-1))
				ev.bestSpec = math.Max(ev.bestSpec, ref.specificity)
			} else {
				ev.weight += ref.specificity * partialHitFactor
				ev.bestSpec = math.Max(ev.bestSpec, ref.specificity*partialHitFactor)
			}
		}
	}

	ranked := make([]*evidence, 0, len(byEntity))
	for _, ev := range byEntity {
		if confidence(ev.weight) >= threshold {
			ranked = append(ranked, ev)
		}
	}

	sort.Slice(ranked, func(i, j int) bool {
		ci, cj := confidence(ranked[i].weight), confidence(ranked[j].weight)
		if ci != cj {
			return ci > cj
		}
		if ranked[i].bestSpec != ranked[j].bestSpec {
			return ranked[i].bestSpec > ranked[j].bestSpec
		}
		return ranked[i].entity < ranked[j].entity
	})

	matches := make([]domain.EntityMatch, 0, len(ranked))
	for _, ev := range ranked {
		matches = append(matches, domain.EntityMatch{
			EntityID:    ix.entities[ev.entity].ID,
			Confidence:  confidence(ev.weight),
			EntityClass: ix.class,
		})
	}
	return matches
}

// confidence saturates accumulated evidence into [0,1).
func confidence(weight float64) float64 {
	if weight <= 0 {
		return 0
	}
	return 1 - math.Exp(-weight)
}

func specificity(alias string) float64 {
	tokens := len(strings.Fields(alias))
	spec := math.Min(maxSpecificity, baseSpecificity+perTokenBonus*float64(tokens-1))
	if utf8.RuneCountInString(alias) < shortAliasRunes {
		spec *= shortAliasFactor
	}
	return spec
}

// wholeTokenCount counts occurrences of alias bounded by spaces in a Normalize'd text.
func wholeTokenCount(normalized, alias string) int {
	count := 0
	for start := 0; ; {
		idx := strings.Index(normalized[start:], alias)
		if idx < 0 {
			return count
		}
		pos := start + idx
		end := pos + len(alias)
		if pos > 0 && normalized[pos-1] == ' ' && end < len(normalized) && normalized[end] == ' ' {
			count++
		}
		start = pos + 1
	}
}
