package pipeline

import (
	"context"
	"log/slog"

	"estatebot/internal/domain"
	"estatebot/internal/match"
	"estatebot/internal/metrics"
	"estatebot/internal/parse"
)

// Step IDs, shared across pipelines so reply steps can read earlier slots.
const (
	StepParse   = "parse"
	StepPersist = "persist"
	StepPhotos  = "photos"
	StepMatch   = "match"
	StepSearch  = "search"
	StepReply   = "reply"
)

// RecordParser is the structured-extraction capability as the pipelines see
// it. Satisfied by *parse.Parser.
type RecordParser interface {
	Listing(ctx context.Context, text string) (*domain.Listing, error)
	Seeker(ctx context.Context, text string) (*domain.Seeker, error)
	ListingQuery(ctx context.Context, text string) (domain.ListingFilters, error)
	SeekerQuery(ctx context.Context, text string) (domain.SeekerFilters, error)
	Target(ctx context.Context, text string) (parse.MatchTarget, error)
}

// Deps are the external collaborators the pipelines compose. All of them are
// interfaces; the pipelines contain no I/O of their own beyond calling these.
type Deps struct {
	Parser   RecordParser
	Store    domain.RecordStore
	Fetcher  domain.MediaFetcher
	Photos   domain.PhotoStore
	Engine   *match.Engine
	Provider domain.Provider // conversational replies for the general pipeline
	Model    string
	Logger   *slog.Logger
}

// Pipelines builds the fixed step sequences for each intent.
type Pipelines struct {
	deps Deps
}

func New(deps Deps) *Pipelines {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Pipelines{deps: deps}
}

// wantFor maps a listing's side to the seeker intent it serves.
func wantFor(side domain.TransactionSide) domain.LookingFor {
	if side == domain.SideSale {
		return domain.LookingBuy
	}
	return domain.LookingRent
}

// sideFor maps a seeker's intent to the listing side that serves it.
func sideFor(want domain.LookingFor) domain.TransactionSide {
	if want == domain.LookingBuy {
		return domain.SideSale
	}
	return domain.SideRent
}

// persistMatch records a suggested match, counting only genuinely new pairs.
func persistMatch(ctx context.Context, d Deps, listingID, seekerID int64, score int) error {
	created, err := d.Store.CreateMatch(ctx, &domain.Match{
		ListingID: listingID,
		SeekerID:  seekerID,
		Score:     score,
		Status:    domain.MatchSuggested,
	})
	if err != nil {
		return err
	}
	if created {
		metrics.MatchesCreated.Inc()
	} else {
		d.Logger.Debug("duplicate match suppressed",
			"listing", listingID, "seeker", seekerID)
	}
	return nil
}
