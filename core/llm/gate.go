package llm

import (
	"strings"
	"unicode/utf8"
)

// MinAnswerLength is the shortest answer accepted by Gate
const MinAnswerLength = 30

var refusalPhrases = []string{
	"no puedo responder",
	"no tengo información",
	"disculpa",
}

// Gate replaces short or refusing answers with the profile's referral.
// It returns the answer to send and whether the referral was used.
func Gate(answer string, profile Profile) (string, bool) {
	answer = strings.TrimSpace(answer)
	if utf8.RuneCountInString(answer) < MinAnswerLength {
		return profile.Referral, true
	}

	lower := strings.ToLower(answer)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return profile.Referral, true
		}
	}

	return answer, false
}
