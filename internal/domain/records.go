package domain

import "time"

// TransactionSide is the side a listing is offered on.
type TransactionSide string

const (
	SideRent TransactionSide = "rent"
	SideSale TransactionSide = "sale"
)

// LookingFor is what a seeker wants to do.
type LookingFor string

const (
	LookingRent LookingFor = "rent"
	LookingBuy  LookingFor = "buy"
)

// SidesCompatible reports whether a listing side can serve a seeker's intent:
// rent pairs with rent, sale pairs with buy.
func SidesCompatible(side TransactionSide, want LookingFor) bool {
	return (side == SideRent && want == LookingRent) ||
		(side == SideSale && want == LookingBuy)
}

// ListingStatus tracks a listing's lifecycle.
type ListingStatus string

const (
	ListingAvailable ListingStatus = "available"
	ListingMatched   ListingStatus = "matched"
	ListingClosed    ListingStatus = "closed"
)

// SeekerStatus tracks a seeker's lifecycle.
type SeekerStatus string

const (
	SeekerActive SeekerStatus = "active"
	SeekerClosed SeekerStatus = "closed"
)

// Listing is an offered property. Zero values on optional numeric fields
// (Rooms, Size, Floor) mean the information was not provided.
type Listing struct {
	ID           int64           `db:"id"`
	PropertyType string          `db:"property_type"`
	City         string          `db:"city"`
	Street       string          `db:"street"`
	StreetNumber string          `db:"street_number"`
	Rooms        float64         `db:"rooms"` // halves allowed: 2.5, 3.5
	Size         int             `db:"size"`  // square meters
	Floor        int             `db:"floor"`
	Price        int             `db:"price"`
	Side         TransactionSide `db:"transaction_side"`
	OwnerName    string          `db:"owner_name"`
	OwnerPhone   string          `db:"owner_phone"`
	Description  string          `db:"description"`
	Status       ListingStatus   `db:"status"`
	SubmittedBy  string          `db:"submitted_by"` // phone of the agent who added it
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

// Address renders the human-readable street/city line.
func (l Listing) Address() string {
	addr := l.City
	if l.Street != "" {
		addr = l.Street
		if l.StreetNumber != "" {
			addr += " " + l.StreetNumber
		}
		addr += ", " + l.City
	}
	return addr
}

// Seeker is a party searching for a property. Zero values on the numeric
// criteria mean the criterion was not given.
type Seeker struct {
	ID           int64        `db:"id"`
	Name         string       `db:"name"`
	Phone        string       `db:"phone"`
	LookingFor   LookingFor   `db:"looking_for"`
	PropertyType string       `db:"property_type"`
	City         string       `db:"city"`
	MinRooms     float64      `db:"min_rooms"`
	MaxRooms     float64      `db:"max_rooms"`
	MinPrice     int          `db:"min_price"`
	MaxPrice     int          `db:"max_price"`
	MinSize      int          `db:"min_size"`
	Notes        string       `db:"notes"`
	Status       SeekerStatus `db:"status"`
	SubmittedBy  string       `db:"submitted_by"`
	CreatedAt    time.Time    `db:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at"`
}

// Photo is a stored media file linked to a listing.
type Photo struct {
	ID          int64     `db:"id"`
	ListingID   int64     `db:"listing_id"`
	Path        string    `db:"path"`       // where the bytes were stored
	SourceURL   string    `db:"source_url"` // original transport media URL
	ContentType string    `db:"content_type"`
	CreatedAt   time.Time `db:"created_at"`
}

// MatchStatus is the lifecycle of a suggested match. The bot only ever
// creates matches in StatusSuggested; later transitions belong to whoever
// works the match.
type MatchStatus string

const (
	MatchSuggested  MatchStatus = "suggested"
	MatchSent       MatchStatus = "sent"
	MatchInterested MatchStatus = "interested"
	MatchRejected   MatchStatus = "rejected"
	MatchClosed     MatchStatus = "closed"
)

// Match pairs a listing with a seeker at a given compatibility score.
type Match struct {
	ID        int64       `db:"id"`
	ListingID int64       `db:"listing_id"`
	SeekerID  int64       `db:"seeker_id"`
	Score     int         `db:"score"` // 0..100
	Status    MatchStatus `db:"status"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

// ConversationEntry is one line of per-phone chat history.
type ConversationEntry struct {
	ID        int64     `db:"id"`
	Phone     string    `db:"phone"`
	Role      string    `db:"role"` // "user" | "assistant"
	Content   string    `db:"content"`
	Timestamp time.Time `db:"timestamp"`
}
