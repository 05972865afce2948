package usecase

import (
	"strings"

	"portfolio-chat/internal/domain"
)

// maxGreetingTokens bounds how long a message may be and still count as a
// plain greeting.
const maxGreetingTokens = 5

var (
	greetingKeywords = []string{"hello", "hi", "hey", "greetings", "good morning", "good afternoon", "good evening"}
	projectKeywords  = []string{"project", "portfolio", "work", "built", "created", "developed"}
	resumeKeywords   = []string{"resume", "experience", "skill", "education", "qualification", "background"}
	aboutMeKeywords  = []string{"who are you", "about you", "tell me about yourself", "introduce yourself"}
	contactKeywords  = []string{"contact", "email", "reach", "connect", "linkedin", "get in touch"}
)

// Classify maps a visitor message to an intent. Rules are evaluated in order
// and the first match wins; keyword matching is case-insensitive substring
// matching.
func Classify(query string) domain.Intent {
	q := strings.ToLower(query)
	switch {
	case containsAny(q, greetingKeywords) && len(strings.Fields(q)) < maxGreetingTokens:
		return domain.IntentGreeting
	case containsAny(q, projectKeywords):
		return domain.IntentProjects
	case containsAny(q, resumeKeywords):
		return domain.IntentResume
	case containsAny(q, aboutMeKeywords):
		return domain.IntentAboutMe
	case containsAny(q, contactKeywords):
		return domain.IntentContact
	default:
		return domain.IntentGeneral
	}
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
