package domain

import "context"

// ListingFilters narrows listing queries. Zero values are ignored.
type ListingFilters struct {
	City     string
	Street   string
	Side     TransactionSide
	Status   ListingStatus
	MinRooms float64
	MaxRooms float64
	MinPrice int
	MaxPrice int
	Limit    int
}

// SeekerFilters narrows seeker queries. Zero values are ignored.
type SeekerFilters struct {
	Name       string
	City       string
	LookingFor LookingFor
	Status     SeekerStatus
	Limit      int
}

// RecordStore is the persistence capability. Implementations own their
// concurrency safety; each call is atomic from the caller's point of view.
// Lookups return (nil, nil) when the record does not exist.
type RecordStore interface {
	CreateListing(ctx context.Context, l *Listing) (int64, error)
	GetListing(ctx context.Context, id int64) (*Listing, error)
	QueryListings(ctx context.Context, f ListingFilters) ([]Listing, error)
	AvailableListings(ctx context.Context, side TransactionSide) ([]Listing, error)

	CreateSeeker(ctx context.Context, s *Seeker) (int64, error)
	GetSeeker(ctx context.Context, id int64) (*Seeker, error)
	QuerySeekers(ctx context.Context, f SeekerFilters) ([]Seeker, error)
	ActiveSeekers(ctx context.Context, want LookingFor) ([]Seeker, error)

	AddPhoto(ctx context.Context, p *Photo) error
	PhotoCount(ctx context.Context, listingID int64) (int, error)

	// CreateMatch records a suggested match. It reports false without error
	// when a match for the same (listing, seeker) pair already exists.
	CreateMatch(ctx context.Context, m *Match) (bool, error)

	AppendConversation(ctx context.Context, e *ConversationEntry) error
	RecentConversation(ctx context.Context, phone string, limit int) ([]ConversationEntry, error)
	ClearConversation(ctx context.Context, phone string) error
	ConversationCount(ctx context.Context, phone string) (int, error)

	Close() error
}
