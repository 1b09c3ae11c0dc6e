package pipeline

import (
	"context"
	"fmt"

	"estatebot/internal/domain"
	"estatebot/internal/match"
)

// AddSeeker is the 4-step pipeline for registering a seeker: parse, persist,
// match against available listings, compose the confirmation reply.
func (p *Pipelines) AddSeeker(msg domain.InboundMessage) []Step {
	d := p.deps
	return []Step{
		{
			ID: StepParse,
			Run: func(ctx context.Context, pc *Context) (any, error) {
				s, err := d.Parser.Seeker(ctx, msg.Content)
				if err != nil {
					return nil, err
				}
				s.SubmittedBy = msg.SenderID
				return s, nil
			},
		},
		{
			ID: StepPersist,
			Run: func(ctx context.Context, pc *Context) (any, error) {
				s, ok := output[*domain.Seeker](pc, StepParse)
				if !ok {
					return nil, fmt.Errorf("missing parse output")
				}
				if _, err := d.Store.CreateSeeker(ctx, s); err != nil {
					return nil, err
				}
				return s, nil
			},
		},
		{
			ID: StepMatch,
			Run: func(ctx context.Context, pc *Context) (any, error) {
				s, ok := output[*domain.Seeker](pc, StepPersist)
				if !ok {
					return nil, fmt.Errorf("missing persist output")
				}
				listings, err := d.Store.AvailableListings(ctx, sideFor(s.LookingFor))
				if err != nil {
					return nil, err
				}
				ranked := d.Engine.RankListings(*s, listings)
				for _, m := range ranked {
					if err := persistMatch(ctx, d, m.Listing.ID, s.ID, m.Score); err != nil {
						return nil, err
					}
				}
				return ranked, nil
			},
		},
		{
			ID: StepReply,
			Run: func(ctx context.Context, pc *Context) (any, error) {
				s, _ := output[*domain.Seeker](pc, StepPersist)
				ranked, _ := output[[]match.ListingMatch](pc, StepMatch)
				if s == nil {
					return nil, fmt.Errorf("missing persist output")
				}
				return composeSeekerSaved(d.Engine, *s, ranked), nil
			},
		},
	}
}
