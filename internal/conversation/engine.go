// Package conversation is the orchestration core: it owns the session state
// machine, the registry of actions the planner may propose, and the dispatch
// loop that turns planner suggestions into backend calls and user-facing
// messages. Identity and money-relevant fields are always resolved from the
// session, never from planner-proposed arguments.
package conversation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/saudeflow/agendabot/internal/llm"
	"github.com/saudeflow/agendabot/internal/observability/metrics"
	"github.com/saudeflow/agendabot/internal/oni"
	"github.com/saudeflow/agendabot/internal/session"
	"github.com/saudeflow/agendabot/pkg/logging"
)

// Backend is the slice of the scheduling API the handlers call.
type Backend interface {
	SearchMunicipalities(ctx context.Context, name, procCode string) ([]oni.Municipality, error)
	SearchOptions(ctx context.Context, name, municID, procCode string) (json.RawMessage, error)
	ListProfessionals(ctx context.Context, p oni.ListProfessionalsParams) (*oni.ProfessionalList, error)
	ListSlots(ctx context.Context, p oni.ListSlotsParams) (oni.SlotsByDate, error)
	Login(ctx context.Context, login, password string) (*oni.LoginResult, error)
	TokenInfo(ctx context.Context, token string) (*oni.TokenInfo, error)
	ListTerms(ctx context.Context, benefID, token string) ([]oni.Term, error)
	ListDependents(ctx context.Context, benefID, token string) (json.RawMessage, error)
	ValidateBooking(ctx context.Context, p oni.BookingParams, token string) (*oni.ValidationResult, error)
	ConfirmBooking(ctx context.Context, p oni.BookingParams, token string) (*oni.BookingResult, error)
	PaymentSummary(ctx context.Context, ospID, token string) (*oni.PaymentSummary, error)
	ListProcedures(ctx context.Context, name, municID string) (json.RawMessage, error)
	CreateExamOrder(ctx context.Context, benefID string, items []oni.ExamItem, token string) (*oni.OrderResult, error)
	RegisterPatient(ctx context.Context, r oni.Registration) (*oni.RegisterResult, error)
	LookupPostalCode(ctx context.Context, cep string) (*oni.PostalAddress, error)
	RequestPasswordReset(ctx context.Context, cpfEmail string) (json.RawMessage, error)
}

// Outbound delivers a message to the user's channel.
type Outbound interface {
	Send(ctx context.Context, identity, instance, text string) error
}

// Defaults are the tenant fallbacks applied when the session has not yet
// resolved a municipality or service type.
type Defaults struct {
	MunicipalityID       string
	MunicipalityName     string
	MunicipalityUF       string
	ConsultationProcCode string
}

// DefaultMaxHops bounds planner/handler round-trips within a single turn.
const DefaultMaxHops = 10

// EngineConfig wires the engine's collaborators.
type EngineConfig struct {
	Sessions *session.Store
	Locks    *session.Locks
	Backend  Backend
	Planner  llm.Planner
	Outbound Outbound
	Metrics  *metrics.ConversationMetrics
	Logger   *logging.Logger
	Defaults Defaults
	MaxHops  int
}

// Engine coordinates one conversation turn end to end.
type Engine struct {
	sessions *session.Store
	locks    *session.Locks
	backend  Backend
	planner  llm.Planner
	outbound Outbound
	metrics  *metrics.ConversationMetrics
	logger   *logging.Logger
	defaults Defaults
	maxHops  int
	handlers map[string]handlerSpec

	// now is swapped in tests to pin the slot-listing window.
	now func() time.Time
}

// NewEngine builds the engine. Sessions, locks, backend, planner and outbound
// are required.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Sessions == nil {
		panic("conversation: session store cannot be nil")
	}
	if cfg.Locks == nil {
		panic("conversation: session locks cannot be nil")
	}
	if cfg.Backend == nil {
		panic("conversation: backend cannot be nil")
	}
	if cfg.Planner == nil {
		panic("conversation: planner cannot be nil")
	}
	if cfg.Outbound == nil {
		panic("conversation: outbound cannot be nil")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	maxHops := cfg.MaxHops
	if maxHops <= 0 {
		maxHops = DefaultMaxHops
	}
	e := &Engine{
		sessions: cfg.Sessions,
		locks:    cfg.Locks,
		backend:  cfg.Backend,
		planner:  cfg.Planner,
		outbound: cfg.Outbound,
		metrics:  cfg.Metrics,
		logger:   logger,
		defaults: cfg.Defaults,
		maxHops:  maxHops,
		now:      time.Now,
	}
	e.handlers = e.registry()
	return e
}

// turn carries the per-turn state threaded through dispatch and handlers.
type turn struct {
	identity string
	instance string
	sess     *session.Session
	history  []llm.Message
	action   string
	log      *logging.Logger
}

// HandleTurn processes one inbound message for (identity, instance). Errors
// are logged and surfaced to the user as a generic apology; nothing is
// re-raised to the transport. The per-session lock is held for the whole turn
// so overlapping deliveries for the same conversation serialize.
func (e *Engine) HandleTurn(ctx context.Context, identity, instance, text, profileName string) {
	release := e.locks.Acquire(identity, instance)
	defer release()

	start := time.Now()
	log := e.logger.With("identity", identity, "instance", instance)

	sess, err := e.sessions.GetOrCreate(ctx, identity, instance)
	if err != nil {
		log.Error("load session", "error", err)
		e.sendApology(ctx, log, identity, instance)
		e.metrics.ObserveTurn(metrics.OutcomeError, time.Since(start).Seconds())
		return
	}

	// First contact: the triggering message is consumed by the welcome and
	// never appended to history.
	if sess.State == session.StateInitial && len(sess.History) == 0 {
		if err := e.outbound.Send(ctx, identity, instance, welcomeMessage(profileName)); err != nil {
			log.Error("send welcome", "error", err)
		}
		if err := e.sessions.SetState(ctx, identity, instance, session.StateIdentifyingService); err != nil {
			log.Error("advance state", "error", err)
		}
		e.metrics.ObserveTurn(metrics.OutcomeWelcome, time.Since(start).Seconds())
		return
	}

	if err := e.sessions.AppendHistory(ctx, identity, instance, session.RoleUser, text); err != nil {
		log.Error("append user turn", "error", err)
	}
	sess.AppendTurn(session.RoleUser, text)

	t := &turn{
		identity: identity,
		instance: instance,
		sess:     sess,
		history:  historyMessages(sess.History),
		log:      log,
	}
	outcome := e.dispatch(ctx, t)
	e.metrics.ObserveTurn(outcome, time.Since(start).Seconds())
}

// historyMessages converts the stored transcript into planner input.
func historyMessages(turns []session.Turn) []llm.Message {
	msgs := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, llm.Message{Role: t.Role, Content: t.Content})
	}
	return msgs
}

// propose asks the planner for the next step and records the call.
func (e *Engine) propose(ctx context.Context, t *turn) (llm.Step, error) {
	step, err := e.planner.Propose(ctx, t.history)
	e.metrics.ObserveLLMCall(err)
	return step, err
}

// deliver appends text to history as an assistant turn and sends it out. The
// append happens first so the transcript reflects the message even when the
// channel is flaky.
func (e *Engine) deliver(ctx context.Context, t *turn, text string) {
	if text == "" {
		return
	}
	if err := e.sessions.AppendHistory(ctx, t.identity, t.instance, session.RoleAssistant, text); err != nil {
		t.log.Error("append assistant turn", "error", err)
	}
	t.sess.AppendTurn(session.RoleAssistant, text)
	if err := e.outbound.Send(ctx, t.identity, t.instance, text); err != nil {
		t.log.Error("outbound send", "error", err)
	}
}

// sendApology tells the user something went wrong without touching history,
// so a failed turn leaves no partial assistant entry behind.
func (e *Engine) sendApology(ctx context.Context, log *logging.Logger, identity, instance string) {
	if err := e.outbound.Send(ctx, identity, instance, msgProcessingError); err != nil {
		log.Error("send apology", "error", err)
	}
}
