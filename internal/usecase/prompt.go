package usecase

import (
	"fmt"
	"sort"
	"strings"

	"portfolio-chat/internal/domain"
)

const (
	maxHistoryTurns    = 5
	maxSummaryProjects = 3

	noHistoryPlaceholder = "No previous conversation."
	defaultOwnerName     = "the portfolio owner"
)

// DefaultPromptTemplate is the system prompt used for every generated reply.
// {context}, {conversation_history} and {query} are substituted verbatim.
var DefaultPromptTemplate = strings.Join([]string{
	"You are a professional portfolio assistant for a software engineer.",
	"Use the provided resume context to answer questions about experience, skills, and projects.",
	"Be professional, knowledgeable, and helpful. Reference specific details from the resume when relevant.",
	"",
	"Resume Context: {context}",
	"Conversation History: {conversation_history}",
	"User Query: {query}",
	"",
	"Response:",
}, "\n")

// composePrompt fills the template placeholders in a single pass, so text
// inside the substituted values is never expanded again. User text is not
// escaped.
func composePrompt(template, context string, history []domain.ChatMessage, query string) string {
	r := strings.NewReplacer(
		"{context}", context,
		"{conversation_history}", formatHistory(history),
		"{query}", query,
	)
	return r.Replace(template)
}

// formatHistory renders at most the last maxHistoryTurns turns, one
// role-labelled line each.
func formatHistory(history []domain.ChatMessage) string {
	if len(history) == 0 {
		return noHistoryPlaceholder
	}
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	var b strings.Builder
	for _, m := range history {
		role := "Assistant"
		if m.Role == domain.RoleUser {
			role = "User"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, m.Content)
	}
	return b.String()
}

func projectSummary(projects []domain.ProjectRecord) string {
	if len(projects) == 0 {
		return "No project information is available at the moment.\n"
	}
	if len(projects) > maxSummaryProjects {
		projects = projects[:maxSummaryProjects]
	}
	var b strings.Builder
	b.WriteString("Here are some relevant projects:\n\n")
	for _, p := range projects {
		fmt.Fprintf(&b, "- %s: %s", orDefault(p.Name, "Unnamed Project"), orDefault(p.Description, "No description"))
		if len(p.Technologies) > 0 {
			fmt.Fprintf(&b, " (Technologies: %s)", strings.Join(p.Technologies, ", "))
		}
		b.WriteString("\n")
		if link := strings.TrimSpace(p.Link); link != "" {
			fmt.Fprintf(&b, "  GitHub: %s\n", link)
		}
		if len(p.Highlights) > 0 {
			b.WriteString("  Highlights:\n")
			for _, h := range p.Highlights {
				fmt.Fprintf(&b, "  - %s\n", h)
			}
		}
	}
	return b.String()
}

func greetingTemplates(name string) []string {
	name = orDefault(name, defaultOwnerName)
	return []string{
		fmt.Sprintf("Hello! I'm %s's portfolio assistant. How can I help you today?", name),
		fmt.Sprintf("Hi there! Welcome to %s's portfolio. What would you like to know?", name),
		fmt.Sprintf("Greetings! I'm here to tell you about %s's work and experience. What are you interested in?", name),
	}
}

func aboutMeReply(p domain.PersonalInfo) string {
	if p.IsEmpty() {
		return "I don't have profile information available at the moment."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s is a %s. %s",
		orDefault(p.Name, defaultOwnerName),
		orDefault(p.Title, "software engineer"),
		orDefault(p.Summary, "An experienced professional."),
	)
	if len(p.Skills) > 0 {
		b.WriteString("\n\nSkills:\n")
		for _, category := range sortedKeys(p.Skills) {
			fmt.Fprintf(&b, "- %s: %s\n", category, strings.Join(p.Skills[category], ", "))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// contactChannels lists the well-known channels in display order; any other
// channel follows in alphabetical order.
var contactChannels = []struct {
	key   string
	label string
}{
	{"email", "Email"},
	{"linkedin", "LinkedIn"},
	{"github", "GitHub"},
	{"twitter", "Twitter"},
}

func contactReply(p domain.PersonalInfo) string {
	lines := make([]string, 0, len(p.Contact))
	known := make(map[string]bool, len(contactChannels))
	for _, ch := range contactChannels {
		known[ch.key] = true
		if v := strings.TrimSpace(p.Contact[ch.key]); v != "" {
			lines = append(lines, ch.label+": "+v)
		}
	}
	for _, key := range sortedKeys(p.Contact) {
		if known[key] {
			continue
		}
		if v := strings.TrimSpace(p.Contact[key]); v != "" {
			lines = append(lines, channelLabel(key)+": "+v)
		}
	}
	if len(lines) == 0 {
		return "I don't have contact information available at the moment."
	}
	return "Here's how you can get in touch:\n\n" + strings.Join(lines, "\n")
}

func channelLabel(key string) string {
	if key == "" {
		return key
	}
	return strings.ToUpper(key[:1]) + key[1:]
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
