// Package contact runs the scripted slot-filling dialogue that captures a
// visitor's contact details when their prompt signals hiring intent.
package contact

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JoseManaure/portfolio-server/internal/notify"
	"github.com/JoseManaure/portfolio-server/internal/session"
	"github.com/JoseManaure/portfolio-server/internal/store"
)

// Fields is the fixed collection order. Question text is keyed to position.
var Fields = []string{"nombre", "apellido", "email", "asunto"}

// Questions maps each field to the prompt shown to the visitor.
var Questions = map[string]string{
	"nombre":   "¿Cuál es tu nombre?",
	"apellido": "¿Cuál es tu apellido?",
	"email":    "¿Cuál es tu email?",
	"asunto":   "¿Cuál es el asunto o mensaje que quieres dejarme?",
}

// DefaultTriggers are the hiring-intent keywords that open a dialogue.
var DefaultTriggers = []string{
	"contratar", "servicio", "precio", "presupuesto", "trabajar contigo", "cotización",
}

// AckReply closes a completed dialogue.
const AckReply = "¡Gracias! Tu mensaje ha sido enviado. Te contactaré pronto."

// Turn is the outcome of one dialogue turn.
type Turn struct {
	Reply  string
	Source string
	// Done marks the turn that completed the form.
	Done bool
}

// Flow is the per-session state machine. Turns on the same session id are
// serialized through a keyed lock; distinct sessions proceed independently.
type Flow struct {
	sessions    session.Store
	locks       *session.KeyLock
	transcripts store.Store
	notifier    notify.Notifier
	triggers    []string
	log         *zap.SugaredLogger
}

// New wires the flow. A nil trigger list uses DefaultTriggers.
func New(sessions session.Store, transcripts store.Store, notifier notify.Notifier, triggers []string, log *zap.SugaredLogger) *Flow {
	if len(triggers) == 0 {
		triggers = DefaultTriggers
	}
	return &Flow{
		sessions:    sessions,
		locks:       session.NewKeyLock(),
		transcripts: transcripts,
		notifier:    notifier,
		triggers:    triggers,
		log:         log,
	}
}

// Triggered reports whether the prompt contains a trigger keyword.
func (f *Flow) Triggered(prompt string) bool {
	normalized := strings.ToLower(strings.TrimSpace(prompt))
	for _, kw := range f.triggers {
		if strings.Contains(normalized, kw) {
			return true
		}
	}
	return false
}

// HandleTurn advances the dialogue for sessionID. It returns nil when the
// prompt neither continues an open dialogue nor starts a new one, in which
// case the caller falls through to the next responder.
func (f *Flow) HandleTurn(ctx context.Context, sessionID, prompt string) (*Turn, error) {
	unlock := f.locks.Lock(sessionID)
	defer unlock()

	sess, err := f.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if sess == nil {
		if !f.Triggered(prompt) {
			return nil, nil
		}
		sess = &session.State{
			ID:     sessionID,
			Fields: make(map[string]string),
		}
		if err := f.sessions.Put(ctx, sess); err != nil {
			return nil, err
		}
		return &Turn{Reply: Questions[Fields[0]], Source: store.SourceContactForm}, nil
	}

	// Answers are stored verbatim, no validation. Whatever the visitor
	// typed is what lands in the notification.
	field := Fields[sess.CurrentField]
	if sess.Fields == nil {
		sess.Fields = make(map[string]string)
	}
	sess.Fields[field] = prompt
	sess.CurrentField++

	if sess.CurrentField < len(Fields) {
		if err := f.sessions.Put(ctx, sess); err != nil {
			return nil, err
		}
		return &Turn{Reply: Questions[Fields[sess.CurrentField]], Source: store.SourceContactForm}, nil
	}

	f.complete(ctx, sessionID, prompt, sess)
	return &Turn{Reply: AckReply, Source: store.SourceContactDone, Done: true}, nil
}

// complete fires the notification, records the transcript and removes the
// session. Neither side channel may block or fail the acknowledgement.
func (f *Flow) complete(ctx context.Context, sessionID, prompt string, sess *session.State) {
	message := fmt.Sprintf("Nuevo contacto desde el chat:\nNombre: %s\nApellido: %s\nEmail: %s\nAsunto: %s\nMensaje usuario: %s",
		sess.Fields["nombre"], sess.Fields["apellido"], sess.Fields["email"], sess.Fields["asunto"], prompt)
	notify.Dispatch(f.log, f.notifier, "Formulario completado", message)

	if err := f.transcripts.CreateTranscript(ctx, &store.Transcript{
		SessionID: sessionID,
		Prompt:    prompt,
		Reply:     AckReply,
		Source:    store.SourceContactDone,
	}); err != nil {
		f.log.Warnw("contact transcript write failed", "session_id", sessionID, "error", err)
	}

	if err := f.sessions.Delete(ctx, sessionID); err != nil {
		f.log.Warnw("contact session delete failed", "session_id", sessionID, "error", err)
	}
}
