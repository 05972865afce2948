package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"portfolio-chat/internal/domain"
)

const (
	defaultTopK = 3

	// ApologyMessage replaces any reply that could not be produced.
	ApologyMessage = "I'm sorry, I encountered an error while processing your request."
)

// ContextRetriever returns the resume excerpts most relevant to a query.
type ContextRetriever interface {
	GetContext(ctx context.Context, query string, k int) (string, error)
}

// Generator produces natural-language text from a prompt or message list.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateMessages(ctx context.Context, messages []domain.ChatMessage) (string, error)
}

// Recorder receives flow events for instrumentation.
type Recorder interface {
	IntentClassified(intent domain.Intent)
	RetrievalFailed()
	GenerationFailed()
}

type nopRecorder struct{}

func (nopRecorder) IntentClassified(domain.Intent) {}
func (nopRecorder) RetrievalFailed()               {}
func (nopRecorder) GenerationFailed()              {}

// turnState is the transient record for one Respond call.
type turnState struct {
	query    string
	history  []domain.ChatMessage
	context  string
	intent   domain.Intent
	response string
}

type handlerFunc func(ctx context.Context, st *turnState) error

// Engine routes one visitor message to the handler for its intent and
// returns the reply text.
type Engine struct {
	knowledge domain.Knowledge
	retriever ContextRetriever
	generator Generator
	recorder  Recorder
	intn      func(n int) int
	topK      int
	template  string

	handlers map[domain.Intent]handlerFunc
}

type EngineOption func(*Engine)

// WithRandom sets the source used to pick greeting templates. intn must
// return a value in [0, n).
func WithRandom(intn func(n int) int) EngineOption {
	return func(e *Engine) {
		if intn != nil {
			e.intn = intn
		}
	}
}

func WithRecorder(r Recorder) EngineOption {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

func WithTopK(k int) EngineOption {
	return func(e *Engine) {
		if k > 0 {
			e.topK = k
		}
	}
}

func WithPromptTemplate(tmpl string) EngineOption {
	return func(e *Engine) {
		if tmpl != "" {
			e.template = tmpl
		}
	}
}

func NewEngine(k domain.Knowledge, retriever ContextRetriever, generator Generator, opts ...EngineOption) (*Engine, error) {
	if retriever == nil {
		return nil, errors.New("usecase: context retriever must not be nil")
	}
	if generator == nil {
		return nil, errors.New("usecase: generator must not be nil")
	}
	e := &Engine{
		knowledge: k,
		retriever: retriever,
		generator: generator,
		recorder:  nopRecorder{},
		intn:      rand.Intn,
		topK:      defaultTopK,
		template:  DefaultPromptTemplate,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.handlers = map[domain.Intent]handlerFunc{
		domain.IntentGreeting: e.handleGreeting,
		domain.IntentAboutMe:  e.handleAboutMe,
		domain.IntentProjects: e.handleProjects,
		domain.IntentResume:   e.handleResume,
		domain.IntentContact:  e.handleContact,
		domain.IntentGeneral:  e.handleGeneral,
	}
	return e, nil
}

// Respond classifies the query, runs the matching handler and returns its
// reply. It never fails: handler errors and panics become ApologyMessage.
// The history is read but never modified.
func (e *Engine) Respond(ctx context.Context, query string, history []domain.ChatMessage) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("chat flow panicked", "panic", fmt.Sprint(r))
			reply = ApologyMessage
		}
	}()

	st := &turnState{query: query, history: history}
	st.intent = Classify(query)
	e.recorder.IntentClassified(st.intent)
	slog.Debug("classified intent", "intent", st.intent)

	if st.intent == domain.IntentGeneral {
		st.context = e.retrieve(ctx, query)
	}

	handle, ok := e.handlers[st.intent]
	if !ok {
		slog.Error("no handler for intent", "intent", st.intent)
		return ApologyMessage
	}
	if err := handle(ctx, st); err != nil {
		slog.Error("chat flow failed", "intent", st.intent, "err", err)
		return ApologyMessage
	}
	return st.response
}

// retrieve returns the context for query, or "" when the retriever fails.
func (e *Engine) retrieve(ctx context.Context, query string) string {
	text, err := e.retriever.GetContext(ctx, query, e.topK)
	if err != nil {
		e.recorder.RetrievalFailed()
		slog.Warn("context retrieval failed", "err", err)
		return ""
	}
	return text
}

func (e *Engine) generate(ctx context.Context, st *turnState) error {
	prompt := composePrompt(e.template, st.context, st.history, st.query)
	out, err := e.generator.Generate(ctx, prompt)
	if err != nil {
		e.recorder.GenerationFailed()
		return fmt.Errorf("usecase: generate %s reply: %w", st.intent, err)
	}
	st.response = out
	return nil
}

func (e *Engine) handleGreeting(_ context.Context, st *turnState) error {
	templates := greetingTemplates(e.knowledge.Profile.Name)
	st.response = templates[e.intn(len(templates))]
	return nil
}

func (e *Engine) handleAboutMe(_ context.Context, st *turnState) error {
	st.response = aboutMeReply(e.knowledge.Profile)
	return nil
}

func (e *Engine) handleContact(_ context.Context, st *turnState) error {
	st.response = contactReply(e.knowledge.Profile)
	return nil
}

func (e *Engine) handleProjects(ctx context.Context, st *turnState) error {
	st.context = e.retrieve(ctx, st.query) + "\n" + projectSummary(e.knowledge.Projects)
	return e.generate(ctx, st)
}

func (e *Engine) handleResume(ctx context.Context, st *turnState) error {
	st.context = e.retrieve(ctx, st.query)
	return e.generate(ctx, st)
}

// handleGeneral expects st.context to have been filled before dispatch.
func (e *Engine) handleGeneral(ctx context.Context, st *turnState) error {
	return e.generate(ctx, st)
}
