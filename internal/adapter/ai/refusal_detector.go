package ai

import "strings"

var refusalIndicators = []string{
	"i'm sorry, but", "i cannot help", "i can't help", "i'm unable to", "i am unable to",
	"as an ai language model", "i can't assist", "i cannot assist", "i won't be able to",
	"üzgünüm, ancak", "bu konuda yardımcı olamam", "bu isteği yerine getiremem",
}

// IsRefusal reports whether a short generation is a model refusal instead of content.
// Long texts are never treated as refusals since articles may quote such phrases.
func IsRefusal(text string) bool {
	if len([]rune(text)) > 600 {
		return false
	}
	lower := strings.ToLower(text)
	for _, indicator := range refusalIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}
