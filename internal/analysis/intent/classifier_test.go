package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		text string
		want Tag
	}{
		{name: "russian booking", text: "Хочу забронировать номер", want: Booking},
		{name: "short booking", text: "нужна БРОНЬ", want: Booking},
		{name: "english booking", text: "I want to Book a room", want: Booking},
		{name: "pricing", text: "Какая стоимость проживания?", want: Pricing},
		{name: "english pricing", text: "what is the PRICE", want: Pricing},
		{name: "general", text: "Привет", want: General},
		{name: "empty", text: "", want: General},
		{name: "whitespace", text: "   ", want: General},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.text))
		})
	}
}

func TestClassifyBookingWinsOverPricing(t *testing.T) {
	assert.Equal(t, Booking, Classify("какая цена, если забронировать на неделю"))
}
