package proxy

import (
	"fmt"
	"strings"

	"github.com/pluralchat/pluralchat-server/pkg/models"
)

// Suggest produces at most one hint at a likely intended proxy pattern when
// matching failed. It returns the empty string when it has nothing useful;
// callers treat that as "no suggestion".
func Suggest(rawText string, members []*models.Member) string {
	// Too short to be meaningful.
	if len(rawText) < 3 {
		return ""
	}

	fields := strings.Fields(rawText)
	firstWord := ""
	if len(fields) > 0 {
		firstWord = fields[0]
	}

	for _, member := range members {
		name := member.Name

		if len(rawText) >= len(name) && strings.EqualFold(rawText[:len(name)], name) {
			if len(rawText) > len(name) {
				switch rawText[len(name)] {
				case ' ':
					// Forgot the colon entirely.
					return fmt.Sprintf("Did you mean '%s:' instead of '%s'?", name, name)
				case ';':
					// Semicolon instead of colon.
					return fmt.Sprintf("Did you mean '%s:' instead of '%s;'?", name, name)
				}
			}
		} else if FuzzyMatch(firstWord, name) {
			return fmt.Sprintf("Did you mean '%s:' instead of '%s'?", name, firstWord)
		}
	}

	// A colon is present but the name before it didn't match anyone exactly.
	if before, _, found := strings.Cut(rawText, ":"); found {
		potential := strings.TrimSpace(before)
		for _, member := range members {
			if FuzzyMatch(potential, member.Name) {
				return fmt.Sprintf("Did you mean '%s:' instead of '%s:'?", member.Name, potential)
			}
		}
	}

	return ""
}
