package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"estatebot/internal/domain"
	"estatebot/internal/match"
)

// Reply composition. Everything here is plain string building; the only
// information used is what earlier steps put in the context.

func composeListingSaved(e *match.Engine, l domain.Listing, photos PhotoResult, ranked []match.SeekerMatch) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Saved! 🏠 Listing #%d\n", l.ID)
	fmt.Fprintf(&b, "%s, %s", l.PropertyType, l.Address())
	if l.Rooms > 0 {
		fmt.Fprintf(&b, " | %s rooms", formatRooms(l.Rooms))
	}
	if l.Size > 0 {
		fmt.Fprintf(&b, " | %dm²", l.Size)
	}
	fmt.Fprintf(&b, " | %d for %s\n", l.Price, sideWord(l.Side))

	switch {
	case photos.Stored > 0 && photos.Failed > 0:
		fmt.Fprintf(&b, "📸 %d photos saved (%d failed)\n", photos.Stored, photos.Failed)
	case photos.Stored > 0:
		fmt.Fprintf(&b, "📸 %d photos saved\n", photos.Stored)
	case photos.Failed > 0:
		fmt.Fprintf(&b, "📸 couldn't save the photos, the listing is in without them\n")
	}

	if len(ranked) == 0 {
		b.WriteString("\nNo matching seekers yet - I'll keep it in mind for new ones.")
		return b.String()
	}

	fmt.Fprintf(&b, "\n✨ %d matching seeker(s):\n", len(ranked))
	for i, m := range ranked {
		fmt.Fprintf(&b, "%d. %s (%d%%)", i+1, m.Seeker.Name, m.Score)
		if m.Seeker.Phone != "" {
			fmt.Fprintf(&b, " 📞 %s", m.Seeker.Phone)
		}
		if reasons := e.Explain(l, m.Seeker); len(reasons) > 0 {
			fmt.Fprintf(&b, "\n   %s", strings.Join(reasons, " | "))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func composeSeekerSaved(e *match.Engine, s domain.Seeker, ranked []match.ListingMatch) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Saved! 📝 Seeker #%d - %s, looking to %s", s.ID, s.Name, string(s.LookingFor))
	if s.City != "" {
		fmt.Fprintf(&b, " in %s", s.City)
	}
	b.WriteString("\n")
	if s.MinRooms > 0 {
		fmt.Fprintf(&b, "Rooms: %s–%s", formatRooms(s.MinRooms), formatRooms(s.MaxRooms))
	}
	if s.MaxPrice > 0 {
		if s.MinRooms > 0 {
			b.WriteString(" | ")
		}
		fmt.Fprintf(&b, "Budget: up to %d", s.MaxPrice)
	}
	b.WriteString("\n")

	if len(ranked) == 0 {
		b.WriteString("\nNo matching listings right now - I'll suggest new ones as they come in.")
		return b.String()
	}

	fmt.Fprintf(&b, "\n✨ %d matching listing(s):\n", len(ranked))
	for i, m := range ranked {
		fmt.Fprintf(&b, "%d. #%d %s (%d%%)\n", i+1, m.Listing.ID, m.Listing.Address(), m.Score)
		fmt.Fprintf(&b, "   %s rooms | %d | %s", formatRooms(m.Listing.Rooms), m.Listing.Price, sideWord(m.Listing.Side))
		if reasons := e.Explain(m.Listing, s); len(reasons) > 0 {
			fmt.Fprintf(&b, "\n   %s", strings.Join(reasons, " | "))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func composeListingResults(listings []domain.Listing) string {
	if len(listings) == 0 {
		return "No listings matched that search. 🔍 Try widening the criteria - different city, more rooms, higher budget."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d listing(s):\n", len(listings))
	for i, l := range listings {
		fmt.Fprintf(&b, "%d. #%d %s - %s", i+1, l.ID, l.Address(), l.PropertyType)
		if l.Rooms > 0 {
			fmt.Fprintf(&b, ", %s rooms", formatRooms(l.Rooms))
		}
		fmt.Fprintf(&b, ", %d for %s (%s)\n", l.Price, sideWord(l.Side), string(l.Status))
	}
	return strings.TrimRight(b.String(), "\n")
}

func composeSeekerResults(seekers []domain.Seeker) string {
	if len(seekers) == 0 {
		return "No seekers matched that search. 🔍"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d seeker(s):\n", len(seekers))
	for i, s := range seekers {
		fmt.Fprintf(&b, "%d. #%d %s - looking to %s", i+1, s.ID, s.Name, string(s.LookingFor))
		if s.City != "" {
			fmt.Fprintf(&b, " in %s", s.City)
		}
		if s.MinRooms > 0 {
			fmt.Fprintf(&b, ", %s–%s rooms", formatRooms(s.MinRooms), formatRooms(s.MaxRooms))
		}
		if s.MaxPrice > 0 {
			fmt.Fprintf(&b, ", up to %d", s.MaxPrice)
		}
		fmt.Fprintf(&b, " (%s)\n", string(s.Status))
	}
	return strings.TrimRight(b.String(), "\n")
}

func composeMatchReport(r *matchReport) string {
	var b strings.Builder
	switch {
	case r.Listing != nil:
		if len(r.Seekers) == 0 {
			return fmt.Sprintf("No good matches for listing #%d yet. Maybe widen the seekers' criteria.", r.Listing.ID)
		}
		fmt.Fprintf(&b, "✨ %d seeker(s) fit listing #%d (%s):\n", len(r.Seekers), r.Listing.ID, r.Listing.Address())
		for i, m := range r.Seekers {
			fmt.Fprintf(&b, "%d. %s (%d%%)", i+1, m.Seeker.Name, m.Score)
			if m.Seeker.Phone != "" {
				fmt.Fprintf(&b, " 📞 %s", m.Seeker.Phone)
			}
			b.WriteString("\n")
		}
	case r.Seeker != nil:
		if len(r.Listings) == 0 {
			return fmt.Sprintf("No good matches for %s yet. Maybe widen the criteria.", r.Seeker.Name)
		}
		fmt.Fprintf(&b, "✨ %d listing(s) fit %s:\n", len(r.Listings), r.Seeker.Name)
		for i, m := range r.Listings {
			fmt.Fprintf(&b, "%d. #%d %s (%d%%) - %s rooms, %d\n",
				i+1, m.Listing.ID, m.Listing.Address(), m.Score,
				formatRooms(m.Listing.Rooms), m.Listing.Price)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func sideWord(side domain.TransactionSide) string {
	if side == domain.SideSale {
		return "sale"
	}
	return "rent"
}

func formatRooms(r float64) string {
	return strconv.FormatFloat(r, 'f', -1, 64)
}
