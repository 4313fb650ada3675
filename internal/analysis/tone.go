package analysis

import (
	"strings"

	"github.com/roasbeef/clinbox/internal/mailsource"
)

var (
	formalMarkers = []string{
		"dear ", "sincerely", "kind regards", "best regards",
		"yours faithfully", "yours truly", "respectfully",
		"to whom it may concern", "estimado", "atentamente",
		"cordialmente", "un saludo",
	}
	casualMarkers = []string{
		"hey", "hi ", "thanks!", "cheers", "lol", "btw", "hola",
		"gracias!", ":)",
	}
)

// DetectTone guesses whether a message was written formally. Formal
// salutations and sign-offs outweigh casual ones; with no markers either
// way the reply is formal.
func DetectTone(content *mailsource.Content) Tone {
	body := strings.ToLower(content.Body)

	formal, casual := 0, 0
	for _, m := range formalMarkers {
		if strings.Contains(body, m) {
			formal++
		}
	}
	for _, m := range casualMarkers {
		if strings.Contains(body, m) {
			casual++
		}
	}

	if casual > formal {
		return ToneCasual
	}

	return ToneFormal
}
