// Package match scores listing/seeker compatibility with a fixed weighted
// rubric. The engine is pure and total: no I/O, no failures, identical inputs
// always produce identical scores.
package match

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"estatebot/internal/domain"
)

// Factor weights. Sub-scores are summed and the total clamped to [0,100].
const (
	sideWeight     = 30
	locationExact  = 25
	locationRegion = 15
	roomsWeight    = 20
	roomsPenalty   = 5 // per room of distance outside the wanted range
	priceWeight    = 15
	priceNearMiss  = 10
	pricePenalty   = 15
	sizeWeight     = 10
)

// Config carries the tunable matching constants. These are product knobs, not
// invariants, so they are injected rather than hard-coded.
type Config struct {
	GoodMatchThreshold    int                 `json:"goodMatchThreshold"`    // minimum score to keep a match
	PriceOverageTolerance float64             `json:"priceOverageTolerance"` // fraction over budget still worth partial credit
	TopMatches            int                 `json:"topMatches"`            // max matches reported per run
	Regions               map[string][]string `json:"-"`                     // region name -> member cities
}

// DefaultConfig returns the stock thresholds and region table.
func DefaultConfig() Config {
	return Config{
		GoodMatchThreshold:    65,
		PriceOverageTolerance: 0.10,
		TopMatches:            3,
		Regions:               DefaultRegions(),
	}
}

// Engine computes compatibility scores between listings and seekers.
type Engine struct {
	cfg        Config
	cityRegion map[string]string // normalized city -> region name
}

func NewEngine(cfg Config) *Engine {
	if cfg.GoodMatchThreshold <= 0 {
		cfg.GoodMatchThreshold = 65
	}
	if cfg.PriceOverageTolerance <= 0 {
		cfg.PriceOverageTolerance = 0.10
	}
	if cfg.TopMatches <= 0 {
		cfg.TopMatches = 3
	}

	idx := make(map[string]string)
	for region, cities := range cfg.Regions {
		for _, c := range cities {
			idx[normalizeCity(c)] = region
		}
	}
	return &Engine{cfg: cfg, cityRegion: idx}
}

// Threshold returns the configured good-match cutoff.
func (e *Engine) Threshold() int { return e.cfg.GoodMatchThreshold }

// TopMatches returns the configured per-run match cap.
func (e *Engine) TopMatches() int { return e.cfg.TopMatches }

// Score rates how well a listing fits a seeker, 0..100.
//
// A present-but-incompatible transaction side means the pair is categorically
// incompatible and scores 0 outright. Every other factor contributes
// independently; a factor with missing data on either side contributes 0.
// Sub-scores may drive the running total negative; only the final value is
// clamped.
func (e *Engine) Score(l domain.Listing, s domain.Seeker) int {
	if l.Side != "" && s.LookingFor != "" && !domain.SidesCompatible(l.Side, s.LookingFor) {
		return 0
	}

	var total float64

	if l.Side != "" && s.LookingFor != "" {
		total += sideWeight
	}

	if l.City != "" && s.City != "" {
		switch {
		case sameCity(l.City, s.City):
			total += locationExact
		case e.sameRegion(l.City, s.City):
			total += locationRegion
		}
	}

	if l.Rooms > 0 && s.MinRooms > 0 && s.MaxRooms > 0 {
		if l.Rooms >= s.MinRooms && l.Rooms <= s.MaxRooms {
			total += roomsWeight
		} else {
			diff := math.Min(math.Abs(l.Rooms-s.MinRooms), math.Abs(l.Rooms-s.MaxRooms))
			total += roomsWeight - roomsPenalty*diff
		}
	}

	if l.Price > 0 && s.MaxPrice > 0 {
		switch {
		case l.Price <= s.MaxPrice:
			total += priceWeight
		case float64(l.Price) <= float64(s.MaxPrice)*(1+e.cfg.PriceOverageTolerance):
			total += priceNearMiss
		default:
			total -= pricePenalty
		}
	}

	if l.Size > 0 && s.MinSize > 0 {
		if l.Size >= s.MinSize {
			total += sizeWeight
		} else {
			total += sizeWeight * float64(l.Size) / float64(s.MinSize)
		}
	}

	if total < 0 {
		total = 0
	}
	if total > 100 {
		total = 100
	}
	return int(math.Round(total))
}

// Explain renders per-factor verdicts for a scored pair, for reply text.
func (e *Engine) Explain(l domain.Listing, s domain.Seeker) []string {
	var reasons []string

	if l.City != "" && s.City != "" {
		switch {
		case sameCity(l.City, s.City):
			reasons = append(reasons, "exact city")
		case e.sameRegion(l.City, s.City):
			reasons = append(reasons, "same region")
		default:
			reasons = append(reasons, "different area")
		}
	}
	if l.Price > 0 && s.MaxPrice > 0 {
		if l.Price <= s.MaxPrice {
			reasons = append(reasons, "within budget")
		} else {
			overPct := float64(l.Price-s.MaxPrice) / float64(s.MaxPrice) * 100
			reasons = append(reasons, "over budget by "+formatPct(overPct))
		}
	}
	if l.Rooms > 0 && s.MinRooms > 0 && s.MaxRooms > 0 {
		if l.Rooms >= s.MinRooms && l.Rooms <= s.MaxRooms {
			reasons = append(reasons, "room count fits")
		} else {
			reasons = append(reasons, "room count differs")
		}
	}
	if l.Size > 0 && s.MinSize > 0 {
		if l.Size >= s.MinSize {
			reasons = append(reasons, "size fits")
		} else {
			reasons = append(reasons, "smaller than wanted")
		}
	}
	return reasons
}

func (e *Engine) sameRegion(city1, city2 string) bool {
	r1, ok1 := e.cityRegion[normalizeCity(city1)]
	r2, ok2 := e.cityRegion[normalizeCity(city2)]
	return ok1 && ok2 && r1 == r2
}

func sameCity(a, b string) bool {
	return normalizeCity(a) == normalizeCity(b)
}

func normalizeCity(c string) string {
	return strings.ToLower(strings.TrimSpace(c))
}

func formatPct(v float64) string {
	return strconv.FormatFloat(math.Round(v), 'f', -1, 64) + "%"
}

// SeekerMatch is a seeker scored against a specific listing.
type SeekerMatch struct {
	Seeker domain.Seeker
	Score  int
}

// ListingMatch is a listing scored against a specific seeker.
type ListingMatch struct {
	Listing domain.Listing
	Score   int
}

// RankSeekers scores every candidate against the listing, drops those below
// the engine threshold, and returns the top configured count, best first.
// Ties break on lower seeker ID so ordering is deterministic.
func (e *Engine) RankSeekers(l domain.Listing, candidates []domain.Seeker) []SeekerMatch {
	out := make([]SeekerMatch, 0, len(candidates))
	for _, s := range candidates {
		if score := e.Score(l, s); score >= e.cfg.GoodMatchThreshold {
			out = append(out, SeekerMatch{Seeker: s, Score: score})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Seeker.ID < out[j].Seeker.ID
	})
	if len(out) > e.cfg.TopMatches {
		out = out[:e.cfg.TopMatches]
	}
	return out
}

// RankListings is the mirror of RankSeekers for a seeker shopping across
// listings.
func (e *Engine) RankListings(s domain.Seeker, candidates []domain.Listing) []ListingMatch {
	out := make([]ListingMatch, 0, len(candidates))
	for _, l := range candidates {
		if score := e.Score(l, s); score >= e.cfg.GoodMatchThreshold {
			out = append(out, ListingMatch{Listing: l, Score: score})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Listing.ID < out[j].Listing.ID
	})
	if len(out) > e.cfg.TopMatches {
		out = out[:e.cfg.TopMatches]
	}
	return out
}
