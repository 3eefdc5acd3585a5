package dialog

import "strings"

// Vocabulary is the closed set of tokens that answer a yes/no question or
// resume a suspended booking.
type Vocabulary struct {
	confirm map[string]struct{}
	cancel  map[string]struct{}
	resume  map[string]struct{}

	confirmHint string
	cancelHint  string
}

// NewVocabulary builds a Vocabulary. The first confirm and cancel tokens are
// shown to the guest as the expected answers.
func NewVocabulary(confirm, cancel, resume []string) Vocabulary {
	v := Vocabulary{
		confirm: toSet(confirm),
		cancel:  toSet(cancel),
		resume:  toSet(resume),
	}
	if len(confirm) > 0 {
		v.confirmHint = normalizeToken(confirm[0])
	}
	if len(cancel) > 0 {
		v.cancelHint = normalizeToken(cancel[0])
	}
	return v
}

// DefaultVocabulary matches the defaults of the dialog configuration.
func DefaultVocabulary() Vocabulary {
	return NewVocabulary(
		[]string{"да", "подтверждаю", "confirm", "yes"},
		[]string{"нет", "отмена", "отменить", "cancel", "no"},
		[]string{"продолжить", "вернуться", "continue", "resume"},
	)
}

func (v Vocabulary) IsConfirm(text string) bool { return contains(v.confirm, text) }

func (v Vocabulary) IsCancel(text string) bool { return contains(v.cancel, text) }

func (v Vocabulary) IsResume(text string) bool { return contains(v.resume, text) }

// Hint renders the expected answers, e.g. "да/нет".
func (v Vocabulary) Hint() string {
	return v.confirmHint + "/" + v.cancelHint
}

func toSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if n := normalizeToken(t); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

func contains(set map[string]struct{}, text string) bool {
	_, ok := set[normalizeToken(text)]
	return ok
}

// normalizeToken lower-cases and drops surrounding spaces and punctuation so
// "Да!" matches "да".
func normalizeToken(text string) string {
	return strings.Trim(strings.ToLower(strings.TrimSpace(text)), " .,!?;:\"'«»")
}
