package pipeline

import (
	"context"
	"fmt"

	"estatebot/internal/domain"
	"estatebot/internal/match"
)

// PhotoResult is the photos step output: how many attachments made it to
// storage and how many failed. Individual failures are logged, never fatal.
type PhotoResult struct {
	Stored int
	Failed int
}

// AddListing is the 5-step pipeline for a new listing: parse the text,
// persist the record, store any attached photos, match against active
// seekers, compose the confirmation reply.
func (p *Pipelines) AddListing(msg domain.InboundMessage) []Step {
	d := p.deps
	return []Step{
		{
			ID: StepParse,
			Run: func(ctx context.Context, pc *Context) (any, error) {
				l, err := d.Parser.Listing(ctx, msg.Content)
				if err != nil {
					return nil, err
				}
				l.SubmittedBy = msg.SenderID
				return l, nil
			},
		},
		{
			ID: StepPersist,
			Run: func(ctx context.Context, pc *Context) (any, error) {
				l, ok := output[*domain.Listing](pc, StepParse)
				if !ok {
					return nil, fmt.Errorf("missing parse output")
				}
				if _, err := d.Store.CreateListing(ctx, l); err != nil {
					return nil, err
				}
				return l, nil
			},
		},
		{
			ID: StepPhotos,
			Run: func(ctx context.Context, pc *Context) (any, error) {
				l, ok := output[*domain.Listing](pc, StepPersist)
				if !ok {
					return nil, fmt.Errorf("missing persist output")
				}
				var res PhotoResult
				for _, att := range msg.Attachments {
					if err := p.storePhoto(ctx, l, msg.SenderID, att); err != nil {
						d.Logger.Warn("photo store failed, continuing",
							"listing", l.ID, "url", att.URL, "err", err)
						res.Failed++
						continue
					}
					res.Stored++
				}
				return res, nil
			},
		},
		{
			ID: StepMatch,
			Run: func(ctx context.Context, pc *Context) (any, error) {
				l, ok := output[*domain.Listing](pc, StepPersist)
				if !ok {
					return nil, fmt.Errorf("missing persist output")
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
				return ranked, nil
			},
		},
		{
			ID: StepReply,
			Run: func(ctx context.Context, pc *Context) (any, error) {
				l, _ := output[*domain.Listing](pc, StepPersist)
				photos, _ := output[PhotoResult](pc, StepPhotos)
				ranked, _ := output[[]match.SeekerMatch](pc, StepMatch)
				if l == nil {
					return nil, fmt.Errorf("missing persist output")
				}
				return composeListingSaved(d.Engine, *l, photos, ranked), nil
			},
		},
	}
}

func (p *Pipelines) storePhoto(ctx context.Context, l *domain.Listing, sender string, att domain.Attachment) error {
	data, contentType, err := p.deps.Fetcher.Fetch(ctx, att.URL)
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = att.ContentType
	}
	path, err := p.deps.Photos.Store(ctx, data, sender, l.ID, contentType)
	if err != nil {
		return err
	}
	return p.deps.Store.AddPhoto(ctx, &domain.Photo{
		ListingID:   l.ID,
		Path:        path,
		SourceURL:   att.URL,
		ContentType: contentType,
	})
}
