// Package conversation runs book-grounded exchanges with a model and keeps
// their history.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/mrlokans/lectern/internal/entities"
	"github.com/mrlokans/lectern/internal/grounding"
	"github.com/mrlokans/lectern/internal/providers"
)

// NetworkErrorMessage is recorded as the assistant turn of a failed exchange.
const NetworkErrorMessage = "network error"

var ErrEmptyQuestion = errors.New("question is empty")

// QuickPrompt names a preset question.
type QuickPrompt string

const (
	PromptHighlights  QuickPrompt = "highlights"
	PromptBackground  QuickPrompt = "background"
	PromptKeyConcepts QuickPrompt = "key-concepts"
)

var quickPrompts = map[QuickPrompt]string{
	PromptHighlights:  "What are the highlights of this book? List the passages and ideas most worth remembering.",
	PromptBackground:  "Explain the background of this book: its author, when and why it was written, and the context it responds to.",
	PromptKeyConcepts: "List the key concepts of this book and explain each one briefly.",
}

// QuickPromptText returns the question behind a preset.
func QuickPromptText(p QuickPrompt) (string, bool) {
	text, ok := quickPrompts[p]
	return text, ok
}

// Completer resolves models and sends chat completions.
type Completer interface {
	Resolve(ctx context.Context, model string) (entities.ProviderConfig, error)
	Complete(ctx context.Context, cfg entities.ProviderConfig, messages []entities.Message) (providers.Completion, error)
}

// Grounder supplies the extracted text of a book.
type Grounder interface {
	GroundingText(ctx context.Context, id entities.BookID) (string, error)
}

// HistoryStore persists conversation histories.
type HistoryStore interface {
	Load(ctx context.Context, id entities.BookID) (entities.ConversationHistory, error)
	Save(ctx context.Context, id entities.BookID, history entities.ConversationHistory) error
	Delete(ctx context.Context, id entities.BookID) error
}

// Exchange is the outcome of one recorded turn.
type Exchange struct {
	Question entities.Message
	Reply    entities.Message
	Usage    entities.Usage
	History  entities.ConversationHistory
}

type Service struct {
	completer  Completer
	grounder   Grounder
	history    HistoryStore
	windowSize int

	mu    sync.Mutex
	locks map[entities.BookID]*sync.Mutex
}

func NewService(completer Completer, grounder Grounder, history HistoryStore, windowSize int) *Service {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &Service{
		completer:  completer,
		grounder:   grounder,
		history:    history,
		windowSize: windowSize,
		locks:      make(map[entities.BookID]*sync.Mutex),
	}
}

func (s *Service) bookLock(id entities.BookID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// Ask sends a question about a book and records the exchange.
//
// A configuration error is returned without touching the history. When the
// book cannot be grounded or the provider fails, the turn is recorded with
// NetworkErrorMessage as the reply and the cause is returned together with
// the recorded exchange. Turns for one book never interleave.
func (s *Service) Ask(ctx context.Context, id entities.BookID, model, question string) (Exchange, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Exchange{}, ErrEmptyQuestion
	}

	lock := s.bookLock(id)
	lock.Lock()
	defer lock.Unlock()

	cfg, err := s.completer.Resolve(ctx, model)
	if err != nil {
		return Exchange{}, err
	}

	history, err := s.history.Load(ctx, id)
	if err != nil {
		return Exchange{}, err
	}

	exchange := Exchange{Question: entities.Message{Role: entities.RoleUser, Content: question}}
	completion, askErr := s.complete(ctx, id, cfg, history, question)
	if askErr != nil {
		log.Printf("[CHAT] Exchange for book %s failed: %v", id, askErr)
		exchange.Reply = entities.Message{Role: entities.RoleAssistant, Content: NetworkErrorMessage}
	} else {
		exchange.Reply = entities.Message{Role: entities.RoleAssistant, Content: completion.Content}
		exchange.Usage = completion.Usage
	}

	updated := make(entities.ConversationHistory, 0, len(history)+2)
	updated = append(updated, history...)
	updated = append(updated, exchange.Question, exchange.Reply)
	if err := s.history.Save(ctx, id, updated); err != nil {
		return exchange, errors.Join(askErr, err)
	}
	exchange.History = updated
	return exchange, askErr
}

// AskPreset asks one of the quick prompts.
func (s *Service) AskPreset(ctx context.Context, id entities.BookID, model string, prompt QuickPrompt) (Exchange, error) {
	text, ok := QuickPromptText(prompt)
	if !ok {
		return Exchange{}, fmt.Errorf("unknown quick prompt %q", prompt)
	}
	return s.Ask(ctx, id, model, text)
}

// Query sends a grounded request about a book without recording it.
func (s *Service) Query(ctx context.Context, id entities.BookID, model, prompt string) (providers.Completion, error) {
	cfg, err := s.completer.Resolve(ctx, model)
	if err != nil {
		return providers.Completion{}, err
	}
	return s.complete(ctx, id, cfg, nil, prompt)
}

// Explain asks about a selected passage with neither history nor grounding.
func (s *Service) Explain(ctx context.Context, model, selection, question string) (providers.Completion, error) {
	selection = strings.TrimSpace(selection)
	if selection == "" {
		return providers.Completion{}, ErrEmptyQuestion
	}
	cfg, err := s.completer.Resolve(ctx, model)
	if err != nil {
		return providers.Completion{}, err
	}

	prompt := "Explain the following passage:\n\n" + selection
	if q := strings.TrimSpace(question); q != "" {
		prompt = q + "\n\n" + selection
	}
	return s.completer.Complete(ctx, cfg, Build(nil, "", prompt, s.windowSize))
}

// History returns the recorded turns of a book.
func (s *Service) History(ctx context.Context, id entities.BookID) (entities.ConversationHistory, error) {
	return s.history.Load(ctx, id)
}

// Clear removes the history of a book.
func (s *Service) Clear(ctx context.Context, id entities.BookID) error {
	lock := s.bookLock(id)
	lock.Lock()
	defer lock.Unlock()
	return s.history.Delete(ctx, id)
}

func (s *Service) complete(ctx context.Context, id entities.BookID, cfg entities.ProviderConfig, history entities.ConversationHistory, question string) (providers.Completion, error) {
	text, err := s.grounder.GroundingText(ctx, id)
	if err != nil {
		return providers.Completion{}, err
	}
	return s.completer.Complete(ctx, cfg, Build(history, text, question, s.windowSize))
}

// IsNetworkFailure reports whether err is shown to the user as a network
// error rather than a configuration problem.
func IsNetworkFailure(err error) bool {
	return errors.Is(err, grounding.ErrUnavailable) ||
		errors.Is(err, providers.ErrEmptyResponse) ||
		providers.IsTransportError(err)
}
