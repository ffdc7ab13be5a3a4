// Package relay routes a visitor prompt through the reply pipeline: the
// contact dialogue first, then the local dictionary, then the keyword
// short-circuit, and finally the model backend. The streaming path keeps the
// browser's incremental-rendering contract even for replies that never touch
// the model.
package relay

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JoseManaure/portfolio-server/internal/ai"
	"github.com/JoseManaure/portfolio-server/internal/contact"
	"github.com/JoseManaure/portfolio-server/internal/dictionary"
	"github.com/JoseManaure/portfolio-server/internal/notify"
	"github.com/JoseManaure/portfolio-server/internal/store"
	"github.com/JoseManaure/portfolio-server/internal/textutil"
)

// PersonaPreamble is the fixed system context sent ahead of every upstream
// generation.
const PersonaPreamble = `Eres un asistente IA. Responde siempre en español, con espacios correctos, puntuación y formato legible.
El usuario es José Manaure, desarrollador full stack con experiencia en React, Node.js y MongoDB, experto en UI/UX y testing de aplicaciones.
Siempre que respondas, da ejemplos o información sobre José y sus proyectos.`

// CannedBio replaces a model round-trip when an operator-alert keyword is
// detected.
const CannedBio = "Soy José Manaure, desarrollador full stack con más de 15 años de experiencia en React, Node.js y MongoDB. Me especializo en UI/UX y en testing de aplicaciones. Puedes escribirme desde este chat y te contactaré pronto."

// DefaultAlertKeywords flag prompts the operator wants to hear about
// immediately.
var DefaultAlertKeywords = []string{"urgente", "entrevista", "reclutador", "oferta laboral"}

// streamErrorNotice opens the in-band error sequence on the SSE path.
const streamErrorNotice = "⚠️ Error al conectar con el modelo local."

// Turn is one complete exchange on the non-streaming path.
type Turn struct {
	Reply  string `json:"reply"`
	Source string `json:"source"`
}

// Event is one element of a streamed reply. Exactly one terminal event (Done)
// closes every stream; Err events precede it when the upstream fails.
type Event struct {
	Text string
	Err  error
	Done bool
}

// Options tunes an Engine. Zero values pick the defaults.
type Options struct {
	// HistoryWindow is the number of past exchanges sent as upstream context.
	HistoryWindow int
	// AlertKeywords overrides DefaultAlertKeywords.
	AlertKeywords []string
	// WordDelay paces the simulated token stream.
	WordDelay time.Duration
}

type Engine struct {
	provider      ai.Provider
	dict          *dictionary.Matcher
	contact       *contact.Flow
	store         store.Store
	notifier      notify.Notifier
	log           *zap.SugaredLogger
	alertKeywords []string
	historyWindow int
	wordDelay     time.Duration
}

func NewEngine(provider ai.Provider, dict *dictionary.Matcher, flow *contact.Flow, st store.Store, notifier notify.Notifier, log *zap.SugaredLogger, opts Options) *Engine {
	if opts.HistoryWindow <= 0 || opts.HistoryWindow > 100 {
		opts.HistoryWindow = 10
	}
	if len(opts.AlertKeywords) == 0 {
		opts.AlertKeywords = DefaultAlertKeywords
	}
	if opts.WordDelay <= 0 {
		opts.WordDelay = 40 * time.Millisecond
	}
	return &Engine{
		provider:      provider,
		dict:          dict,
		contact:       flow,
		store:         st,
		notifier:      notifier,
		log:           log,
		alertKeywords: opts.AlertKeywords,
		historyWindow: opts.HistoryWindow,
		wordDelay:     opts.WordDelay,
	}
}

// Respond handles the non-streaming path.
func (e *Engine) Respond(ctx context.Context, sessionID, prompt string) (*Turn, error) {
	if turn, err := e.contact.HandleTurn(ctx, sessionID, prompt); err != nil {
		return nil, err
	} else if turn != nil {
		return &Turn{Reply: turn.Reply, Source: turn.Source}, nil
	}

	if answer, ok := e.dict.Match(prompt); ok {
		e.persist(ctx, sessionID, prompt, answer, store.SourceDictionary)
		return &Turn{Reply: answer, Source: store.SourceDictionary}, nil
	}

	if e.alerted(prompt) {
		e.alertSink(prompt)
		e.persist(ctx, sessionID, prompt, CannedBio, store.SourceModel)
		return &Turn{Reply: CannedBio, Source: store.SourceModel}, nil
	}

	messages, err := e.buildContext(ctx, sessionID, prompt)
	if err != nil {
		return nil, err
	}
	reply, err := e.provider.Chat(ctx, messages)
	if err != nil {
		return nil, err
	}
	reply = textutil.Clean(reply)
	e.persist(ctx, sessionID, prompt, reply, store.SourceModel)
	return &Turn{Reply: reply, Source: store.SourceModel}, nil
}

// Stream handles the incremental path. Events arrive in upstream order, each
// increment already cleaned; the concatenated reply is persisted before the
// terminal event is emitted. Upstream failures surface as an Err event
// followed by the terminal event; they never abort the channel early.
func (e *Engine) Stream(ctx context.Context, sessionID, prompt string) (<-chan Event, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("empty prompt")
	}

	out := make(chan Event, 16)
	go func() {
		defer close(out)
		e.stream(ctx, sessionID, prompt, out)
		emit(ctx, out, Event{Done: true})
	}()
	return out, nil
}

// emit delivers ev unless the client has gone away. A disconnected consumer
// stops reading, so an unguarded send would park this goroutine forever once
// the buffer fills.
func emit(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (e *Engine) stream(ctx context.Context, sessionID, prompt string, out chan<- Event) {
	turn, err := e.contact.HandleTurn(ctx, sessionID, prompt)
	if err != nil {
		e.failStream(ctx, sessionID, prompt, err, out)
		return
	}
	if turn != nil {
		emit(ctx, out, Event{Text: turn.Reply})
		return
	}

	if answer, ok := e.dict.Match(prompt); ok {
		if !emit(ctx, out, Event{Text: answer}) {
			return
		}
		e.persist(ctx, sessionID, prompt, answer, store.SourceDictionary)
		return
	}

	if e.alerted(prompt) {
		e.alertSink(prompt)
		e.streamWords(ctx, CannedBio, out)
		e.persist(ctx, sessionID, prompt, CannedBio, store.SourceModel)
		return
	}

	messages, err := e.buildContext(ctx, sessionID, prompt)
	if err != nil {
		e.failStream(ctx, sessionID, prompt, err, out)
		return
	}

	var full strings.Builder
	if sp, ok := e.provider.(ai.StreamProvider); ok {
		chunks, errs := sp.StreamChat(ctx, messages)
		for chunk := range chunks {
			cleaned := textutil.Clean(chunk)
			if cleaned == "" {
				continue
			}
			full.WriteString(cleaned)
			full.WriteString(" ")
			if !emit(ctx, out, Event{Text: cleaned + " "}) {
				return
			}
		}
		if err := <-errs; err != nil {
			e.failStream(ctx, sessionID, prompt, err, out)
			return
		}
	} else {
		reply, err := e.provider.Chat(ctx, messages)
		if err != nil {
			e.failStream(ctx, sessionID, prompt, err, out)
			return
		}
		reply = textutil.Clean(reply)
		e.streamWords(ctx, reply, out)
		full.WriteString(reply)
	}

	e.persist(ctx, sessionID, prompt, textutil.Clean(full.String()), store.SourceModel)
}

// streamWords simulates token streaming for replies produced in one piece.
func (e *Engine) streamWords(ctx context.Context, reply string, out chan<- Event) {
	for _, word := range strings.Fields(reply) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(e.wordDelay):
		}
		if !emit(ctx, out, Event{Text: word + " "}) {
			return
		}
	}
}

func (e *Engine) failStream(ctx context.Context, sessionID, prompt string, err error, out chan<- Event) {
	e.log.Errorw("stream failed", "session_id", sessionID, "error", err)
	e.persist(ctx, sessionID, prompt, err.Error(), store.SourceError)
	if !emit(ctx, out, Event{Text: streamErrorNotice}) {
		return
	}
	emit(ctx, out, Event{Err: err})
}

func (e *Engine) alerted(prompt string) bool {
	normalized := strings.ToLower(prompt)
	for _, kw := range e.alertKeywords {
		if strings.Contains(normalized, kw) {
			return true
		}
	}
	return false
}

func (e *Engine) alertSink(prompt string) {
	notify.Dispatch(e.log, e.notifier, "Palabra clave detectada", "Mensaje del visitante: "+prompt)
}

// buildContext assembles the upstream message list: persona preamble, the
// last HistoryWindow exchanges oldest first, then the current prompt.
func (e *Engine) buildContext(ctx context.Context, sessionID, prompt string) ([]ai.Message, error) {
	messages := []ai.Message{{Role: "system", Content: PersonaPreamble}}

	recent, err := e.store.ListTranscripts(ctx, store.Filter{SessionID: sessionID, Limit: e.historyWindow})
	if err != nil {
		return nil, err
	}
	for i := len(recent) - 1; i >= 0; i-- {
		t := recent[i]
		if t.Source == store.SourceError {
			continue
		}
		messages = append(messages,
			ai.Message{Role: "user", Content: t.Prompt},
			ai.Message{Role: "assistant", Content: t.Reply},
		)
	}

	return append(messages, ai.Message{Role: "user", Content: prompt}), nil
}

// persist records one exchange. Failures are logged; a write error must not
// cost the visitor their reply.
func (e *Engine) persist(ctx context.Context, sessionID, prompt, reply, source string) {
	err := e.store.CreateTranscript(ctx, &store.Transcript{
		SessionID: sessionID,
		Prompt:    prompt,
		Reply:     reply,
		Source:    source,
	})
	if err != nil {
		e.log.Warnw("transcript write failed", "session_id", sessionID, "source", source, "error", err)
	}
}
