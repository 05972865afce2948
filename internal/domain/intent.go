package domain

// Intent is the classified purpose of a visitor message.
type Intent string

const (
	IntentGreeting Intent = "greeting"
	IntentAboutMe  Intent = "about_me"
	IntentProjects Intent = "projects"
	IntentResume   Intent = "resume"
	IntentContact  Intent = "contact"
	IntentGeneral  Intent = "general"
)

// Intents lists every intent in classification order.
var Intents = []Intent{
	IntentGreeting,
	IntentProjects,
	IntentResume,
	IntentAboutMe,
	IntentContact,
	IntentGeneral,
}

func (i Intent) String() string {
	return string(i)
}
