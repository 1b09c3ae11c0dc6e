package pipeline

import (
	"context"
	"fmt"

	"estatebot/internal/domain"
	"estatebot/internal/match"
	"estatebot/internal/parse"
)

// QueryListings is the read-only listing search pipeline: extract criteria,
// search the store, compose results. Nothing is written.
func (p *Pipelines) QueryListings(msg domain.InboundMessage) []Step {
	d := p.deps
	return []Step{
		{
			ID: StepParse,
			Run: func(ctx context.Context, pc *Context) (any, error) {
				return d.Parser.ListingQuery(ctx, msg.Content)
			},
		},
		{
			ID: StepSearch,
			Run: func(ctx context.Context, pc *Context) (any, error) {
				f, ok := output[domain.ListingFilters](pc, StepParse)
				if !ok {
					return nil, fmt.Errorf("missing parse output")
				}
				return d.Store.QueryListings(ctx, f)
			},
		},
		{
			ID: StepReply,
			Run: func(ctx context.Context, pc *Context) (any, error) {
				listings, _ := output[[]domain.Listing](pc, StepSearch)
				return composeListingResults(listings), nil
			},
		},
	}
}

// QuerySeekers is the read-only seeker search pipeline.
func (p *Pipelines) QuerySeekers(msg domain.InboundMessage) []Step {
	d := p.deps
	return []Step{
		{
			ID: StepParse,
			Run: func(ctx context.Context, pc *Context) (any, error) {
				return d.Parser.SeekerQuery(ctx, msg.Content)
			},
		},
		{
			ID: StepSearch,
			Run: func(ctx context.Context, pc *Context) (any, error) {
				f, ok := output[domain.SeekerFilters](pc, StepParse)
				if !ok {
					return nil, fmt.Errorf("missing parse output")
				}
				return d.Store.QuerySeekers(ctx, f)
			},
		},
		{
			ID: StepReply,
			Run: func(ctx context.Context, pc *Context) (any, error) {
				seekers, _ := output[[]domain.Seeker](pc, StepSearch)
				return composeSeekerResults(seekers), nil
			},
		},
	}
}

// matchReport is the find-matches search output: the resolved record and its
// ranked counterparts.
type matchReport struct {
	Listing  *domain.Listing
	Seeker   *domain.Seeker
	Seekers  []match.SeekerMatch
	Listings []match.ListingMatch
}

// FindMatches resolves the record a request is about (listing by number or
// seeker by name), scores it against the other side, persists fresh
// suggestions, and reports the ranking.
func (p *Pipelines) FindMatches(msg domain.InboundMessage) []Step {
	d := p.deps
	return []Step{
		{
			ID: StepParse,
			Run: func(ctx context.Context, pc *Context) (any, error) {
				return d.Parser.Target(ctx, msg.Content)
			},
		},
		{
			ID: StepMatch,
			Run: func(ctx context.Context, pc *Context) (any, error) {
				target, ok := output[parse.MatchTarget](pc, StepParse)
				if !ok {
					return nil, fmt.Errorf("missing parse output")
				}
				if target.ListingID != 0 {
					return p.matchListing(ctx, target.ListingID)
				}
				return p.matchSeekerByName(ctx, target.SeekerName)
			},
		},
		{
			ID: StepReply,
			Run: func(ctx context.Context, pc *Context) (any, error) {
				report, ok := output[*matchReport](pc, StepMatch)
				if !ok {
					return nil, fmt.Errorf("missing match output")
				}
				return composeMatchReport(report), nil
			},
		},
	}
}

func (p *Pipelines) matchListing(ctx context.Context, id int64) (*matchReport, error) {
	d := p.deps
	l, err := d.Store.GetListing(ctx, id)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, &parse.Error{Record: "query", Reason: fmt.Sprintf("listing %d not found", id)}
	}
	seekers, err := d.Store.ActiveSeekers(ctx, wantFor(l.Side))
	if err != nil {
		return nil, err
	}
	ranked := d.Engine.RankSeekers(*l, seekers)
	for _, m := range ranked {
		if err := persistMatch(ctx, d, l.ID, m.Seeker.ID, m.Score); err != nil {
			return nil, err
		}
	}
	return &matchReport{Listing: l, Seekers: ranked}, nil
}

func (p *Pipelines) matchSeekerByName(ctx context.Context, name string) (*matchReport, error) {
	d := p.deps
	found, err := d.Store.QuerySeekers(ctx, domain.SeekerFilters{
		Name:   name,
		Status: domain.SeekerActive,
		Limit:  1,
	})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, &parse.Error{Record: "query", Reason: fmt.Sprintf("no active seeker named %q", name)}
	}
	s := found[0]
	listings, err := d.Store.AvailableListings(ctx, sideFor(s.LookingFor))
	if err != nil {
		return nil, err
	}
	ranked := d.Engine.RankListings(s, listings)
	for _, m := range ranked {
		if err := persistMatch(ctx, d, m.Listing.ID, s.ID, m.Score); err != nil {
			return nil, err
		}
	}
	return &matchReport{Seeker: &s, Listings: ranked}, nil
}
