package intent

import "strings"

// Tag is the coarse purpose of a user utterance.
type Tag string

const (
	Booking Tag = "booking"
	Pricing Tag = "pricing"
	General Tag = "general"
)

type bucket struct {
	tag      Tag
	keywords []string
}

// buckets are checked in priority order; the first match wins.
var buckets = []bucket{
	{
		tag: Booking,
		keywords: []string{
			"бронь", "брони", "бронир", "забронировать", "заброниру", "заселен", "номер на",
			"book", "reserve", "reservation",
		},
	},
	{
		tag: Pricing,
		keywords: []string{
			"цена", "цены", "стоимость", "сколько стоит", "прайс", "тариф",
			"price", "cost", "how much",
		},
	},
}

// Classify maps raw input to an intent tag. Matching is a case-insensitive
// substring search; anything unmatched, including empty input, is General.
func Classify(text string) Tag {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return General
	}

	for _, b := range buckets {
		for _, word := range b.keywords {
			if strings.Contains(normalized, word) {
				return b.tag
			}
		}
	}
	return General
}
