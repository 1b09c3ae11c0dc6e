package domain

import "strings"

// Intent classifies what the sender wants from the bot. Exactly one intent is
// assigned per message and it lives only for that message's processing.
type Intent string

const (
	IntentAddListing   Intent = "ADD_LISTING"
	IntentAddSeeker    Intent = "ADD_SEEKER"
	IntentQueryListing Intent = "QUERY_LISTING"
	IntentQuerySeeker  Intent = "QUERY_SEEKER"
	IntentFindMatches  Intent = "FIND_MATCHES"
	IntentGeneral      Intent = "GENERAL"
)

// Intents is the closed set of valid intents, in prompt order.
var Intents = []Intent{
	IntentAddListing,
	IntentAddSeeker,
	IntentQueryListing,
	IntentQuerySeeker,
	IntentFindMatches,
	IntentGeneral,
}

// ParseIntent maps a raw label to an Intent. The second return is false when
// the label is not one of the known intents.
func ParseIntent(s string) (Intent, bool) {
	label := Intent(strings.ToUpper(strings.TrimSpace(s)))
	for _, it := range Intents {
		if label == it {
			return it, true
		}
	}
	return IntentGeneral, false
}
