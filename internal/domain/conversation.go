package domain

// Message is a single persisted session turn as stored by the DynamoDB
// session repository.
type Message struct {
	PK        string
	SK        string
	SessionID string
	Role      string
	Content   string
	TTL       int64
}

// Turn converts the stored row back into a conversation turn.
func (m Message) Turn() ChatMessage {
	return ChatMessage{Role: m.Role, Content: m.Content}
}
