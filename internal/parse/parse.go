// Package parse turns free-text messages into structured records by calling
// the language-model provider and validating what comes back. Extraction
// itself is the provider's job; this package owns the output contract:
// strict JSON, required fields present, sides normalized.
package parse

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"estatebot/internal/domain"
)

// Error reports that a message could not be turned into a usable record.
// Missing names the required fields the text did not provide; the
// orchestrator turns it into a clarifying question rather than an apology.
type Error struct {
	Record  string // "listing" | "seeker" | "query"
	Missing []string
	Reason  string
}

func (e *Error) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("parse: %s missing %s", e.Record, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("parse: %s: %s", e.Record, e.Reason)
}

// Parser extracts structured records from message text via the provider.
type Parser struct {
	provider domain.Provider
	model    string
	logger   *slog.Logger
}

func New(provider domain.Provider, model string, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{provider: provider, model: model, logger: logger}
}

const listingPrompt = `You extract real-estate listing details from an agent's chat message.
The message may be in Hebrew or English. Reply with ONE JSON object only, no
prose, no code fences, with these keys (omit keys you cannot determine):
property_type, city, street, street_number, rooms (number, halves allowed),
size (square meters, number), floor (number), price (number),
transaction_side ("rent" or "sale"), owner_name, owner_phone, description.`

type listingFields struct {
	PropertyType string  `json:"property_type"`
	City         string  `json:"city"`
	Street       string  `json:"street"`
	StreetNumber string  `json:"street_number"`
	Rooms        float64 `json:"rooms"`
	Size         int     `json:"size"`
	Floor        int     `json:"floor"`
	Price        int     `json:"price"`
	Side         string  `json:"transaction_side"`
	OwnerName    string  `json:"owner_name"`
	OwnerPhone   string  `json:"owner_phone"`
	Description  string  `json:"description"`
}

// Listing extracts a candidate listing. City, price, and transaction side are
// required; their absence is a *Error, not an infrastructure failure.
func (p *Parser) Listing(ctx context.Context, text string) (*domain.Listing, error) {
	var f listingFields
	if err := p.extract(ctx, listingPrompt, text, &f); err != nil {
		return nil, err
	}

	var missing []string
	if f.City == "" {
		missing = append(missing, "city")
	}
	if f.Price <= 0 {
		missing = append(missing, "price")
	}
	side, ok := normalizeSide(f.Side)
	if !ok {
		missing = append(missing, "rent or sale")
	}
	if len(missing) > 0 {
		return nil, &Error{Record: "listing", Missing: missing}
	}

	if f.PropertyType == "" {
		f.PropertyType = "apartment"
	}
	return &domain.Listing{
		PropertyType: f.PropertyType,
		City:         f.City,
		Street:       f.Street,
		StreetNumber: f.StreetNumber,
		Rooms:        f.Rooms,
		Size:         f.Size,
		Floor:        f.Floor,
		Price:        f.Price,
		Side:         side,
		OwnerName:    f.OwnerName,
		OwnerPhone:   f.OwnerPhone,
		Description:  f.Description,
		Status:       domain.ListingAvailable,
	}, nil
}

const seekerPrompt = `You extract a property seeker's details from an agent's chat message.
The message may be in Hebrew or English. Reply with ONE JSON object only, no
prose, no code fences, with these keys (omit keys you cannot determine):
name, phone, looking_for ("rent" or "buy"), property_type, city,
min_rooms (number), max_rooms (number), min_price (number),
max_price (number), min_size (square meters, number), notes.
If the message gives a single room count, set min_rooms and max_rooms to it.`

type seekerFields struct {
	Name         string  `json:"name"`
	Phone        string  `json:"phone"`
	LookingFor   string  `json:"looking_for"`
	PropertyType string  `json:"property_type"`
	City         string  `json:"city"`
	MinRooms     float64 `json:"min_rooms"`
	MaxRooms     float64 `json:"max_rooms"`
	MinPrice     int     `json:"min_price"`
	MaxPrice     int     `json:"max_price"`
	MinSize      int     `json:"min_size"`
	Notes        string  `json:"notes"`
}

// Seeker extracts a candidate seeker. Name and looking-for are required.
func (p *Parser) Seeker(ctx context.Context, text string) (*domain.Seeker, error) {
	var f seekerFields
	if err := p.extract(ctx, seekerPrompt, text, &f); err != nil {
		return nil, err
	}

	var missing []string
	if f.Name == "" {
		missing = append(missing, "name")
	}
	want, ok := normalizeLooking(f.LookingFor)
	if !ok {
		missing = append(missing, "rent or buy")
	}
	if len(missing) > 0 {
		return nil, &Error{Record: "seeker", Missing: missing}
	}

	// A single room count means an exact requirement.
	if f.MinRooms > 0 && f.MaxRooms == 0 {
		f.MaxRooms = f.MinRooms
	}
	if f.MaxRooms > 0 && f.MinRooms == 0 {
		f.MinRooms = f.MaxRooms
	}
	return &domain.Seeker{
		Name:         f.Name,
		Phone:        f.Phone,
		LookingFor:   want,
		PropertyType: f.PropertyType,
		City:         f.City,
		MinRooms:     f.MinRooms,
		MaxRooms:     f.MaxRooms,
		MinPrice:     f.MinPrice,
		MaxPrice:     f.MaxPrice,
		MinSize:      f.MinSize,
		Notes:        f.Notes,
		Status:       domain.SeekerActive,
	}, nil
}

const listingQueryPrompt = `You extract listing search criteria from an agent's chat message.
The message may be in Hebrew or English. Reply with ONE JSON object only, no
prose, with these keys (omit keys not mentioned): city, street,
min_rooms (number), max_rooms (number), min_price (number),
max_price (number), transaction_side ("rent" or "sale").`

type listingQueryFields struct {
	City     string  `json:"city"`
	Street   string  `json:"street"`
	MinRooms float64 `json:"min_rooms"`
	MaxRooms float64 `json:"max_rooms"`
	MinPrice int     `json:"min_price"`
	MaxPrice int     `json:"max_price"`
	Side     string  `json:"transaction_side"`
}

// ListingQuery extracts search filters. All criteria are optional; a query
// with no recognizable criterion at all is a *Error.
func (p *Parser) ListingQuery(ctx context.Context, text string) (domain.ListingFilters, error) {
	var f listingQueryFields
	if err := p.extract(ctx, listingQueryPrompt, text, &f); err != nil {
		return domain.ListingFilters{}, err
	}
	filters := domain.ListingFilters{
		City:     f.City,
		Street:   f.Street,
		MinRooms: f.MinRooms,
		MaxRooms: f.MaxRooms,
		MinPrice: f.MinPrice,
		MaxPrice: f.MaxPrice,
	}
	if side, ok := normalizeSide(f.Side); ok {
		filters.Side = side
	}
	if filters == (domain.ListingFilters{}) {
		return filters, &Error{Record: "query", Reason: "no search criteria recognized"}
	}
	return filters, nil
}

const seekerQueryPrompt = `You extract seeker search criteria from an agent's chat message.
The message may be in Hebrew or English. Reply with ONE JSON object only, no
prose, with these keys (omit keys not mentioned): name, city,
looking_for ("rent" or "buy").`

type seekerQueryFields struct {
	Name       string `json:"name"`
	City       string `json:"city"`
	LookingFor string `json:"looking_for"`
}

// SeekerQuery extracts seeker search filters.
func (p *Parser) SeekerQuery(ctx context.Context, text string) (domain.SeekerFilters, error) {
	var f seekerQueryFields
	if err := p.extract(ctx, seekerQueryPrompt, text, &f); err != nil {
		return domain.SeekerFilters{}, err
	}
	filters := domain.SeekerFilters{Name: f.Name, City: f.City}
	if want, ok := normalizeLooking(f.LookingFor); ok {
		filters.LookingFor = want
	}
	if filters == (domain.SeekerFilters{}) {
		return filters, &Error{Record: "query", Reason: "no search criteria recognized"}
	}
	return filters, nil
}

const matchTargetPrompt = `You determine whose matches an agent wants to see.
The message may be in Hebrew or English. Reply with ONE JSON object only, no
prose, with these keys (omit keys not mentioned):
listing_id (number, if the agent names a listing/property number),
seeker_name (string, if the agent names a person looking for a property).`

// MatchTarget identifies the record a find-matches request is about: either a
// listing by ID or a seeker by name. Exactly one must be recognized.
type MatchTarget struct {
	ListingID  int64  `json:"listing_id"`
	SeekerName string `json:"seeker_name"`
}

func (p *Parser) Target(ctx context.Context, text string) (MatchTarget, error) {
	var t MatchTarget
	if err := p.extract(ctx, matchTargetPrompt, text, &t); err != nil {
		return MatchTarget{}, err
	}
	if t.ListingID == 0 && t.SeekerName == "" {
		return MatchTarget{}, &Error{Record: "query", Reason: "no listing number or seeker name recognized"}
	}
	return t, nil
}

// extract runs one provider call and decodes its JSON reply into out.
// Provider failures surface as plain errors; undecodable replies are treated
// the same way since the provider broke its output contract.
func (p *Parser) extract(ctx context.Context, system, text string, out any) error {
	resp, err := p.provider.Chat(ctx, domain.ChatRequest{
		Messages: []domain.ChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: text},
		},
		Model:     p.model,
		MaxTokens: 512,
	})
	if err != nil {
		return fmt.Errorf("parse: provider: %w", err)
	}

	raw := extractJSON(resp.Content)
	if raw == "" {
		p.logger.Warn("parser got non-JSON reply", "content_len", len(resp.Content))
		return fmt.Errorf("parse: provider returned no JSON object")
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("parse: decode provider JSON: %w", err)
	}
	return nil
}

// extractJSON pulls the first top-level JSON object out of model output,
// tolerating code fences and surrounding prose.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		lines := strings.Split(content, "\n")
		if len(lines) >= 3 && strings.HasPrefix(lines[len(lines)-1], "```") {
			content = strings.TrimSpace(strings.Join(lines[1:len(lines)-1], "\n"))
		}
	}
	if json.Valid([]byte(content)) && strings.HasPrefix(content, "{") {
		return content
	}

	start := strings.IndexByte(content, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inStr := false
	for i := start; i < len(content); i++ {
		ch := content[i]
		if inStr {
			if ch == '\\' {
				i++
				continue
			}
			if ch == '"' {
				inStr = false
			}
			continue
		}
		switch ch {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				candidate := content[start : i+1]
				if json.Valid([]byte(candidate)) {
					return candidate
				}
				return ""
			}
		}
	}
	return ""
}

func normalizeSide(s string) (domain.TransactionSide, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rent", "rental":
		return domain.SideRent, true
	case "sale", "sell", "buy":
		return domain.SideSale, true
	}
	return "", false
}

func normalizeLooking(s string) (domain.LookingFor, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rent", "rental":
		return domain.LookingRent, true
	case "buy", "purchase", "sale":
		return domain.LookingBuy, true
	}
	return "", false
}
