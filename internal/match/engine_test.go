package match

import (
	"testing"

	"estatebot/internal/domain"
)

func testEngine() *Engine {
	return NewEngine(Config{
		GoodMatchThreshold:    65,
		PriceOverageTolerance: 0.10,
		TopMatches:            3,
		Regions: map[string][]string{
			"gush_dan": {"Tel Aviv", "Ramat Gan", "Givatayim"},
			"north":    {"Haifa", "Nahariya"},
		},
	})
}

func TestScoreFullMatch(t *testing.T) {
	e := testEngine()
	l := domain.Listing{
		City:  "Tel Aviv",
		Rooms: 3,
		Size:  80,
		Price: 5000,
		Side:  domain.SideRent,
	}
	s := domain.Seeker{
		City:       "Tel Aviv",
		LookingFor: domain.LookingRent,
		MinRooms:   2,
		MaxRooms:   3,
		MaxPrice:   6000,
		MinSize:    70,
	}

	got := e.Score(l, s)
	if got != 100 {
		t.Fatalf("Score = %d, want 100", got)
	}
}

func TestScoreSideMismatchIsZero(t *testing.T) {
	e := testEngine()
	// Perfect on every other factor; the side conflict must still zero it.
	l := domain.Listing{
		City:  "Tel Aviv",
		Rooms: 3,
		Size:  100,
		Price: 4000,
		Side:  domain.SideSale,
	}
	s := domain.Seeker{
		City:       "Tel Aviv",
		LookingFor: domain.LookingRent,
		MinRooms:   3,
		MaxRooms:   3,
		MaxPrice:   9000,
		MinSize:    50,
	}

	if got := e.Score(l, s); got != 0 {
		t.Fatalf("Score = %d, want 0 for incompatible sides", got)
	}
}

func TestScoreMissingFieldsContributeNothing(t *testing.T) {
	e := testEngine()
	// Only side is present on both: 30 points, nothing else.
	l := domain.Listing{Side: domain.SideRent}
	s := domain.Seeker{LookingFor: domain.LookingRent}

	if got := e.Score(l, s); got != 30 {
		t.Fatalf("Score = %d, want 30", got)
	}

	// Nothing present at all.
	if got := e.Score(domain.Listing{}, domain.Seeker{}); got != 0 {
		t.Fatalf("Score of empty pair = %d, want 0", got)
	}
}

func TestScorePriceBands(t *testing.T) {
	e := testEngine()
	base := domain.Seeker{
		City:       "Tel Aviv",
		LookingFor: domain.LookingRent,
		MinRooms:   3,
		MaxRooms:   3,
		MaxPrice:   5000,
	}

	tests := []struct {
		name  string
		price int
		want  int
	}{
		// 30 side + 25 city + 20 rooms = 75 before the price factor.
		{"within budget", 5000, 90},
		{"within tolerance", 5400, 85},
		{"over tolerance", 6000, 60},
	}
	for _, tt := range tests {
		l := domain.Listing{
			City:  "Tel Aviv",
			Rooms: 3,
			Price: tt.price,
			Side:  domain.SideRent,
		}
		if got := e.Score(l, base); got != tt.want {
			t.Errorf("%s: Score = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestScoreRegionCredit(t *testing.T) {
	e := testEngine()
	s := domain.Seeker{City: "Tel Aviv", LookingFor: domain.LookingRent, MaxPrice: 5000}

	sameRegion := domain.Listing{City: "Ramat Gan", Price: 4000, Side: domain.SideRent}
	otherRegion := domain.Listing{City: "Haifa", Price: 4000, Side: domain.SideRent}

	// 30 side + 15 region + 15 price vs 30 side + 0 + 15 price.
	if got := e.Score(sameRegion, s); got != 60 {
		t.Errorf("same region: Score = %d, want 60", got)
	}
	if got := e.Score(otherRegion, s); got != 45 {
		t.Errorf("other region: Score = %d, want 45", got)
	}
}

func TestScoreRoomsDistancePenalty(t *testing.T) {
	e := testEngine()
	s := domain.Seeker{LookingFor: domain.LookingRent, MinRooms: 2, MaxRooms: 3}

	in := domain.Listing{Rooms: 2.5, Side: domain.SideRent}
	offByOne := domain.Listing{Rooms: 4, Side: domain.SideRent}
	offByTwo := domain.Listing{Rooms: 5, Side: domain.SideRent}

	if got := e.Score(in, s); got != 50 { // 30 + 20
		t.Errorf("in range: Score = %d, want 50", got)
	}
	if got := e.Score(offByOne, s); got != 45 { // 30 + (20 - 5)
		t.Errorf("one room off: Score = %d, want 45", got)
	}
	if got := e.Score(offByTwo, s); got != 40 { // 30 + (20 - 10)
		t.Errorf("two rooms off: Score = %d, want 40", got)
	}
}

func TestScoreSizeProportionalCredit(t *testing.T) {
	e := testEngine()
	s := domain.Seeker{LookingFor: domain.LookingRent, MinSize: 100}

	half := domain.Listing{Size: 50, Side: domain.SideRent}
	full := domain.Listing{Size: 120, Side: domain.SideRent}

	if got := e.Score(half, s); got != 35 { // 30 + 10*50/100
		t.Errorf("half size: Score = %d, want 35", got)
	}
	if got := e.Score(full, s); got != 40 { // 30 + 10
		t.Errorf("full size: Score = %d, want 40", got)
	}
}

func TestScoreClampedToRange(t *testing.T) {
	e := testEngine()
	// Over-tolerance price alone would push the total negative.
	l := domain.Listing{Price: 20000, Side: domain.SideRent}
	s := domain.Seeker{LookingFor: domain.LookingRent, MaxPrice: 5000}

	got := e.Score(l, s) // 30 - 15 = 15, but verify no underflow on weaker pairs
	if got < 0 || got > 100 {
		t.Fatalf("Score = %d, out of [0,100]", got)
	}

	// No side credit, heavy price penalty: raw total is negative.
	l2 := domain.Listing{Price: 20000}
	s2 := domain.Seeker{MaxPrice: 5000}
	if got := e.Score(l2, s2); got != 0 {
		t.Fatalf("Score = %d, want clamp to 0", got)
	}
}

func TestScoreDeterministic(t *testing.T) {
	e := testEngine()
	l := domain.Listing{City: "Givatayim", Rooms: 3.5, Size: 90, Price: 5500, Side: domain.SideRent}
	s := domain.Seeker{City: "Tel Aviv", LookingFor: domain.LookingRent, MinRooms: 3, MaxRooms: 4, MaxPrice: 5200, MinSize: 80}

	first := e.Score(l, s)
	for i := 0; i < 100; i++ {
		if got := e.Score(l, s); got != first {
			t.Fatalf("Score changed between runs: %d then %d", first, got)
		}
	}
}

func TestRankSeekersOrderAndCap(t *testing.T) {
	e := testEngine()
	l := domain.Listing{City: "Tel Aviv", Rooms: 3, Price: 5000, Side: domain.SideRent}

	good := domain.Seeker{City: "Tel Aviv", LookingFor: domain.LookingRent, MinRooms: 2, MaxRooms: 3, MaxPrice: 6000}
	candidates := make([]domain.Seeker, 0, 6)
	for i := int64(1); i <= 5; i++ {
		s := good
		s.ID = i
		candidates = append(candidates, s)
	}
	// One below threshold.
	candidates = append(candidates, domain.Seeker{ID: 6, LookingFor: domain.LookingBuy, City: "Tel Aviv"})

	ranked := e.RankSeekers(l, candidates)
	if len(ranked) != 3 {
		t.Fatalf("len(ranked) = %d, want 3 (top-N cap)", len(ranked))
	}
	for i, m := range ranked {
		if m.Score < e.Threshold() {
			t.Errorf("ranked[%d].Score = %d, below threshold %d", i, m.Score, e.Threshold())
		}
	}
	// Equal scores break ties on lower ID.
	if ranked[0].Seeker.ID != 1 || ranked[1].Seeker.ID != 2 || ranked[2].Seeker.ID != 3 {
		t.Errorf("tie-break order = %d,%d,%d, want 1,2,3",
			ranked[0].Seeker.ID, ranked[1].Seeker.ID, ranked[2].Seeker.ID)
	}
}

func TestRankListingsFiltersBelowThreshold(t *testing.T) {
	e := testEngine()
	s := domain.Seeker{City: "Tel Aviv", LookingFor: domain.LookingRent, MinRooms: 2, MaxRooms: 3, MaxPrice: 6000}

	listings := []domain.Listing{
		{ID: 1, City: "Tel Aviv", Rooms: 3, Price: 5000, Side: domain.SideRent},  // strong
		{ID: 2, City: "Nahariya", Rooms: 3, Price: 12000, Side: domain.SideRent}, // weak
	}

	ranked := e.RankListings(s, listings)
	if len(ranked) != 1 {
		t.Fatalf("len(ranked) = %d, want 1", len(ranked))
	}
	if ranked[0].Listing.ID != 1 {
		t.Fatalf("ranked[0].ID = %d, want 1", ranked[0].Listing.ID)
	}
}

func TestExplainVerdicts(t *testing.T) {
	e := testEngine()
	l := domain.Listing{City: "Tel Aviv", Rooms: 4, Size: 60, Price: 6000, Side: domain.SideRent}
	s := domain.Seeker{City: "Tel Aviv", LookingFor: domain.LookingRent, MinRooms: 2, MaxRooms: 3, MaxPrice: 5000, MinSize: 80}

	reasons := e.Explain(l, s)
	want := []string{"exact city", "over budget by 20%", "room count differs", "smaller than wanted"}
	if len(reasons) != len(want) {
		t.Fatalf("Explain = %v, want %v", reasons, want)
	}
	for i := range want {
		if reasons[i] != want[i] {
			t.Errorf("Explain[%d] = %q, want %q", i, reasons[i], want[i])
		}
	}
}
