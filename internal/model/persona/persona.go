package persona

import (
	"fmt"
	"strings"
)

// Persona describes the assistant character shown to guests.
type Persona struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Title       string            `json:"title"`
	Age         int               `json:"age,omitempty"`
	SpeechStyle string            `json:"speechStyle"`
	Formality   int               `json:"formality"` // 1..5
	Empathy     int               `json:"empathy"`   // 1..5
	Detail      int               `json:"detail"`    // 1..5
	Traits      []string          `json:"traits,omitempty"`
	Knowledge   map[string]string `json:"knowledge,omitempty"`
	Resort      string            `json:"resort"`
}

var greetings = map[int]string{
	1: "Привет!",
	2: "Здравствуйте!",
	3: "Добрый день!",
	4: "Рада вас приветствовать!",
	5: "Моё почтение!",
}

// Greeting opens a conversation in the persona's formality.
func (p Persona) Greeting() string {
	salutation, ok := greetings[p.Formality]
	if !ok {
		salutation = "Здравствуйте!"
	}
	return fmt.Sprintf("%s Я %s, ваш виртуальный помощник в санатории «%s». Чем могу помочь?", salutation, p.Name, p.Resort)
}

// PromptTraits renders the character for a system prompt.
func (p Persona) PromptTraits() string {
	var b strings.Builder
	b.WriteString("Характер:\n")
	for _, trait := range p.Traits {
		b.WriteString("- ")
		b.WriteString(trait)
		b.WriteString("\n")
	}
	b.WriteString("\nСтиль общения: ")
	b.WriteString(p.SpeechStyle)
	fmt.Fprintf(&b, " (формальность %d/5, эмпатия %d/5, подробность %d/5)", p.Formality, p.Empathy, p.Detail)
	return b.String()
}

// Seed provides the default assistant.
func Seed() []Persona {
	return []Persona{
		{
			ID:          "sasha",
			Name:        "Саша",
			Title:       "виртуальный помощник санатория",
			Age:         28,
			SpeechStyle: "дружелюбный профессиональный",
			Formality:   3,
			Empathy:     4,
			Detail:      3,
			Traits:      []string{"внимательный", "терпеливый", "знающий"},
			Knowledge: map[string]string{
				"санаторий": "эксперт",
				"медицина":  "средний",
				"туризм":    "высокий",
			},
			Resort: "Цель",
		},
	}
}
