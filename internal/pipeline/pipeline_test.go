package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"estatebot/internal/domain"
	"estatebot/internal/match"
	"estatebot/internal/parse"
)

// --- fakes ---

type fakeParser struct {
	listing *domain.Listing
	seeker  *domain.Seeker
	target  parse.MatchTarget
	err     error
}

func (f *fakeParser) Listing(ctx context.Context, text string) (*domain.Listing, error) {
	if f.err != nil {
		return nil, f.err
	}
	l := *f.listing
	return &l, nil
}

func (f *fakeParser) Seeker(ctx context.Context, text string) (*domain.Seeker, error) {
	if f.err != nil {
		return nil, f.err
	}
	s := *f.seeker
	return &s, nil
}

func (f *fakeParser) ListingQuery(ctx context.Context, text string) (domain.ListingFilters, error) {
	if f.err != nil {
		return domain.ListingFilters{}, f.err
	}
	return domain.ListingFilters{City: "Tel Aviv"}, nil
}

func (f *fakeParser) SeekerQuery(ctx context.Context, text string) (domain.SeekerFilters, error) {
	if f.err != nil {
		return domain.SeekerFilters{}, f.err
	}
	return domain.SeekerFilters{Name: "Yaniv"}, nil
}

func (f *fakeParser) Target(ctx context.Context, text string) (parse.MatchTarget, error) {
	if f.err != nil {
		return parse.MatchTarget{}, f.err
	}
	return f.target, nil
}

type fakeStore struct {
	listings      map[int64]*domain.Listing
	seekers       map[int64]*domain.Seeker
	photos        []domain.Photo
	matches       []domain.Match
	conversations []domain.ConversationEntry
	nextID        int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		listings: make(map[int64]*domain.Listing),
		seekers:  make(map[int64]*domain.Seeker),
	}
}

func (f *fakeStore) CreateListing(ctx context.Context, l *domain.Listing) (int64, error) {
	f.nextID++
	l.ID = f.nextID
	cp := *l
	f.listings[l.ID] = &cp
	return l.ID, nil
}

func (f *fakeStore) GetListing(ctx context.Context, id int64) (*domain.Listing, error) {
	l, ok := f.listings[id]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (f *fakeStore) QueryListings(ctx context.Context, _ domain.ListingFilters) ([]domain.Listing, error) {
	var out []domain.Listing
	for _, l := range f.listings {
		out = append(out, *l)
	}
	return out, nil
}

func (f *fakeStore) AvailableListings(ctx context.Context, side domain.TransactionSide) ([]domain.Listing, error) {
	var out []domain.Listing
	for _, l := range f.listings {
		if l.Side == side && l.Status == domain.ListingAvailable {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateSeeker(ctx context.Context, s *domain.Seeker) (int64, error) {
	f.nextID++
	s.ID = f.nextID
	cp := *s
	f.seekers[s.ID] = &cp
	return s.ID, nil
}

func (f *fakeStore) GetSeeker(ctx context.Context, id int64) (*domain.Seeker, error) {
	s, ok := f.seekers[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStore) QuerySeekers(ctx context.Context, filters domain.SeekerFilters) ([]domain.Seeker, error) {
	var out []domain.Seeker
	for _, s := range f.seekers {
		if filters.Name != "" && !strings.Contains(strings.ToLower(s.Name), strings.ToLower(filters.Name)) {
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}

func (f *fakeStore) ActiveSeekers(ctx context.Context, want domain.LookingFor) ([]domain.Seeker, error) {
	var out []domain.Seeker
	for _, s := range f.seekers {
		if s.LookingFor == want && s.Status == domain.SeekerActive {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeStore) AddPhoto(ctx context.Context, p *domain.Photo) error {
	f.photos = append(f.photos, *p)
	return nil
}

func (f *fakeStore) PhotoCount(ctx context.Context, listingID int64) (int, error) {
	n := 0
	for _, p := range f.photos {
		if p.ListingID == listingID {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) CreateMatch(ctx context.Context, m *domain.Match) (bool, error) {
	for _, existing := range f.matches {
		if existing.ListingID == m.ListingID && existing.SeekerID == m.SeekerID {
			return false, nil
		}
	}
	f.matches = append(f.matches, *m)
	return true, nil
}

func (f *fakeStore) AppendConversation(ctx context.Context, e *domain.ConversationEntry) error {
	f.conversations = append(f.conversations, *e)
	return nil
}

func (f *fakeStore) RecentConversation(ctx context.Context, phone string, limit int) ([]domain.ConversationEntry, error) {
	return nil, nil
}

func (f *fakeStore) ClearConversation(ctx context.Context, phone string) error { return nil }

func (f *fakeStore) ConversationCount(ctx context.Context, phone string) (int, error) {
	return len(f.conversations), nil
}

func (f *fakeStore) Close() error { return nil }

type fakeFetcher struct {
	failFor string
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	if url == f.failFor {
		return nil, "", errors.New("fetch failed")
	}
	return []byte("image-bytes"), "image/jpeg", nil
}

type fakePhotos struct {
	stored int
}

func (f *fakePhotos) Store(ctx context.Context, data []byte, ownerPhone string, listingID int64, contentType string) (string, error) {
	f.stored++
	return "/photos/test.jpg", nil
}

type fakeProvider struct {
	reply string
	err   error
	calls int
}

func (f *fakeProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ChatResponse{Content: f.reply}, nil
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Healthy(ctx context.Context) error { return nil }

func testDeps(parser RecordParser, store domain.RecordStore, fetcher domain.MediaFetcher, photos domain.PhotoStore, prov domain.Provider) Deps {
	return Deps{
		Parser:   parser,
		Store:    store,
		Fetcher:  fetcher,
		Photos:   photos,
		Engine:   match.NewEngine(match.DefaultConfig()),
		Provider: prov,
		Model:    "test-model",
		Logger:   discardLogger(),
	}
}

// --- tests ---

func TestAddListingHappyPath(t *testing.T) {
	store := newFakeStore()
	// Seeker on file who fits the incoming listing.
	_, _ = store.CreateSeeker(context.Background(), &domain.Seeker{
		Name:       "Yaniv",
		LookingFor: domain.LookingRent,
		City:       "Tel Aviv",
		MinRooms:   2,
		MaxRooms:   3,
		MaxPrice:   6000,
		Status:     domain.SeekerActive,
	})

	parser := &fakeParser{listing: &domain.Listing{
		PropertyType: "apartment",
		City:         "Tel Aviv",
		Rooms:        3,
		Price:        5000,
		Side:         domain.SideRent,
		Status:       domain.ListingAvailable,
	}}
	photos := &fakePhotos{}
	p := New(testDeps(parser, store, &fakeFetcher{}, photos, &fakeProvider{}))

	msg := domain.InboundMessage{
		Channel:     "whatsapp",
		SenderID:    "+972501234567",
		Content:     "3 rooms in Tel Aviv, 5000 for rent",
		Attachments: []domain.Attachment{{URL: "https://example.com/a.jpg", ContentType: "image/jpeg"}},
	}

	_, last, failure := NewExecutor(discardLogger()).Run(context.Background(), p.AddListing(msg))
	if failure != nil {
		t.Fatalf("AddListing failed: %v", failure)
	}

	if len(store.listings) != 1 {
		t.Fatalf("listings persisted = %d, want 1", len(store.listings))
	}
	if photos.stored != 1 {
		t.Errorf("photos stored = %d, want 1", photos.stored)
	}
	if len(store.matches) != 1 {
		t.Fatalf("matches created = %d, want 1", len(store.matches))
	}
	if store.matches[0].Status != domain.MatchSuggested {
		t.Errorf("match status = %q, want suggested", store.matches[0].Status)
	}

	reply, ok := last.(string)
	if !ok || reply == "" {
		t.Fatalf("reply = %v, want non-empty string", last)
	}
	if !strings.Contains(reply, "Yaniv") {
		t.Errorf("reply does not mention the matched seeker: %q", reply)
	}
	if !strings.Contains(reply, "photo") {
		t.Errorf("reply does not mention photos: %q", reply)
	}
}

func TestAddListingParseFailureSkipsPersist(t *testing.T) {
	store := newFakeStore()
	parser := &fakeParser{err: &parse.Error{Record: "listing", Missing: []string{"city", "price"}}}
	p := New(testDeps(parser, store, &fakeFetcher{}, &fakePhotos{}, &fakeProvider{}))

	_, _, failure := NewExecutor(discardLogger()).Run(context.Background(),
		p.AddListing(domain.InboundMessage{Content: "something vague"}))

	if failure == nil {
		t.Fatal("pipeline succeeded on unparseable input")
	}
	var perr *parse.Error
	if !errors.As(failure.Err, &perr) {
		t.Fatalf("failure.Err = %v, want *parse.Error", failure.Err)
	}
	if len(store.listings) != 0 {
		t.Error("listing was persisted despite parse failure")
	}
}

func TestAddListingPhotoFailureIsNotFatal(t *testing.T) {
	store := newFakeStore()
	parser := &fakeParser{listing: &domain.Listing{
		City: "Tel Aviv", Price: 5000, Side: domain.SideRent, Status: domain.ListingAvailable,
	}}
	fetcher := &fakeFetcher{failFor: "https://example.com/broken.jpg"}
	photos := &fakePhotos{}
	p := New(testDeps(parser, store, fetcher, photos, &fakeProvider{}))

	msg := domain.InboundMessage{
		SenderID: "+972501234567",
		Content:  "listing",
		Attachments: []domain.Attachment{
			{URL: "https://example.com/broken.jpg"},
			{URL: "https://example.com/fine.jpg"},
		},
	}

	pc, _, failure := NewExecutor(discardLogger()).Run(context.Background(), p.AddListing(msg))
	if failure != nil {
		t.Fatalf("pipeline failed on photo error: %v", failure)
	}

	res, ok := output[PhotoResult](pc, StepPhotos)
	if !ok {
		t.Fatal("photos step output missing")
	}
	if res.Stored != 1 || res.Failed != 1 {
		t.Errorf("PhotoResult = %+v, want 1 stored, 1 failed", res)
	}
}

func TestAddSeekerCreatesMatches(t *testing.T) {
	store := newFakeStore()
	_, _ = store.CreateListing(context.Background(), &domain.Listing{
		City: "Tel Aviv", Rooms: 3, Price: 5000,
		Side: domain.SideRent, Status: domain.ListingAvailable,
	})

	parser := &fakeParser{seeker: &domain.Seeker{
		Name:       "Dana",
		LookingFor: domain.LookingRent,
		City:       "Tel Aviv",
		MinRooms:   2,
		MaxRooms:   3,
		MaxPrice:   6000,
		Status:     domain.SeekerActive,
	}}
	p := New(testDeps(parser, store, &fakeFetcher{}, &fakePhotos{}, &fakeProvider{}))

	_, last, failure := NewExecutor(discardLogger()).Run(context.Background(),
		p.AddSeeker(domain.InboundMessage{SenderID: "+972501234567", Content: "new client Dana"}))
	if failure != nil {
		t.Fatalf("AddSeeker failed: %v", failure)
	}
	if len(store.seekers) != 1 {
		t.Fatalf("seekers persisted = %d, want 1", len(store.seekers))
	}
	if len(store.matches) != 1 {
		t.Fatalf("matches created = %d, want 1", len(store.matches))
	}
	reply := last.(string)
	if !strings.Contains(reply, "Dana") {
		t.Errorf("reply does not mention the seeker: %q", reply)
	}
}

func TestFindMatchesUnknownListing(t *testing.T) {
	store := newFakeStore()
	parser := &fakeParser{target: parse.MatchTarget{ListingID: 42}}
	p := New(testDeps(parser, store, &fakeFetcher{}, &fakePhotos{}, &fakeProvider{}))

	_, _, failure := NewExecutor(discardLogger()).Run(context.Background(),
		p.FindMatches(domain.InboundMessage{Content: "who fits listing 42"}))
	if failure == nil {
		t.Fatal("FindMatches succeeded for a listing that does not exist")
	}
	var perr *parse.Error
	if !errors.As(failure.Err, &perr) {
		t.Fatalf("failure.Err = %v, want *parse.Error so the agent asks instead of apologizing", failure.Err)
	}
}

func TestFindMatchesByListingPersistsSuggestions(t *testing.T) {
	store := newFakeStore()
	lid, _ := store.CreateListing(context.Background(), &domain.Listing{
		City: "Tel Aviv", Rooms: 3, Price: 5000,
		Side: domain.SideRent, Status: domain.ListingAvailable,
	})
	_, _ = store.CreateSeeker(context.Background(), &domain.Seeker{
		Name: "Yaniv", LookingFor: domain.LookingRent, City: "Tel Aviv",
		MinRooms: 2, MaxRooms: 3, MaxPrice: 6000, Status: domain.SeekerActive,
	})

	parser := &fakeParser{target: parse.MatchTarget{ListingID: lid}}
	p := New(testDeps(parser, store, &fakeFetcher{}, &fakePhotos{}, &fakeProvider{}))

	_, last, failure := NewExecutor(discardLogger()).Run(context.Background(),
		p.FindMatches(domain.InboundMessage{Content: "matches for listing"}))
	if failure != nil {
		t.Fatalf("FindMatches failed: %v", failure)
	}
	if len(store.matches) != 1 {
		t.Fatalf("matches persisted = %d, want 1", len(store.matches))
	}
	if !strings.Contains(last.(string), "Yaniv") {
		t.Errorf("report does not name the matched seeker: %q", last)
	}
}

func TestGeneralCannedReplySkipsProvider(t *testing.T) {
	prov := &fakeProvider{reply: "should not be used"}
	p := New(testDeps(&fakeParser{}, newFakeStore(), &fakeFetcher{}, &fakePhotos{}, prov))

	_, last, failure := NewExecutor(discardLogger()).Run(context.Background(),
		p.General(domain.InboundMessage{Content: "thanks!"}))
	if failure != nil {
		t.Fatalf("General failed: %v", failure)
	}
	if prov.calls != 0 {
		t.Errorf("provider called %d times for a canned reply", prov.calls)
	}
	if last.(string) == "" {
		t.Error("canned reply is empty")
	}
}

func TestGeneralProviderFailureFallsBack(t *testing.T) {
	prov := &fakeProvider{err: errors.New("api down")}
	p := New(testDeps(&fakeParser{}, newFakeStore(), &fakeFetcher{}, &fakePhotos{}, prov))

	_, last, failure := NewExecutor(discardLogger()).Run(context.Background(),
		p.General(domain.InboundMessage{Content: "tell me about the market in Florentin"}))
	if failure != nil {
		t.Fatalf("General failed instead of falling back: %v", failure)
	}
	if last.(string) == "" {
		t.Error("fallback reply is empty")
	}
}
