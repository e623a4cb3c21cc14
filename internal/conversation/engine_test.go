package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saudeflow/agendabot/internal/llm"
	"github.com/saudeflow/agendabot/internal/oni"
	"github.com/saudeflow/agendabot/internal/session"
)

// stubPlanner replays a fixed script of steps.
type stubPlanner struct {
	steps []llm.Step
	errs  []error
	calls [][]llm.Message
}

func (p *stubPlanner) Propose(_ context.Context, history []llm.Message) (llm.Step, error) {
	p.calls = append(p.calls, append([]llm.Message(nil), history...))
	i := len(p.calls) - 1
	if i < len(p.errs) && p.errs[i] != nil {
		return llm.Step{}, p.errs[i]
	}
	if i >= len(p.steps) {
		return llm.Step{Content: "ok"}, nil
	}
	return p.steps[i], nil
}

func plan(steps ...llm.Step) *stubPlanner { return &stubPlanner{steps: steps} }

func action(name string, args map[string]any) llm.Step {
	return llm.Step{Action: &llm.Action{Name: name, Arguments: args}}
}

func content(text string) llm.Step { return llm.Step{Content: text} }

// stubBackend records every call and delegates to optional per-op funcs.
type stubBackend struct {
	calls []string

	municipalities []oni.Municipality
	professionals  *oni.ProfessionalList
	slots          oni.SlotsByDate
	loginResult    *oni.LoginResult
	tokenInfo      *oni.TokenInfo
	terms          []oni.Term
	validation     *oni.ValidationResult
	booking        *oni.BookingResult
	bookingSeen    *oni.BookingParams
	summary        *oni.PaymentSummary
	procedures     json.RawMessage
	order          *oni.OrderResult
	registerResult *oni.RegisterResult
	registerSeen   *oni.Registration
	address        *oni.PostalAddress
	slotsSeen      *oni.ListSlotsParams
	err            error
}

func (b *stubBackend) record(name string) { b.calls = append(b.calls, name) }

func (b *stubBackend) called(name string) bool {
	for _, c := range b.calls {
		if c == name {
			return true
		}
	}
	return false
}

func (b *stubBackend) SearchMunicipalities(_ context.Context, _, _ string) ([]oni.Municipality, error) {
	b.record("SearchMunicipalities")
	return b.municipalities, b.err
}

func (b *stubBackend) SearchOptions(_ context.Context, _, _, _ string) (json.RawMessage, error) {
	b.record("SearchOptions")
	return json.RawMessage(`[]`), b.err
}

func (b *stubBackend) ListProfessionals(_ context.Context, _ oni.ListProfessionalsParams) (*oni.ProfessionalList, error) {
	b.record("ListProfessionals")
	return b.professionals, b.err
}

func (b *stubBackend) ListSlots(_ context.Context, p oni.ListSlotsParams) (oni.SlotsByDate, error) {
	b.record("ListSlots")
	b.slotsSeen = &p
	return b.slots, b.err
}

func (b *stubBackend) Login(_ context.Context, _, _ string) (*oni.LoginResult, error) {
	b.record("Login")
	if b.loginResult == nil {
		return &oni.LoginResult{}, b.err
	}
	return b.loginResult, b.err
}

func (b *stubBackend) TokenInfo(_ context.Context, _ string) (*oni.TokenInfo, error) {
	b.record("TokenInfo")
	if b.tokenInfo == nil {
		return &oni.TokenInfo{}, b.err
	}
	return b.tokenInfo, b.err
}

func (b *stubBackend) ListTerms(_ context.Context, _, _ string) ([]oni.Term, error) {
	b.record("ListTerms")
	return b.terms, b.err
}

func (b *stubBackend) ListDependents(_ context.Context, _, _ string) (json.RawMessage, error) {
	b.record("ListDependents")
	return json.RawMessage(`[]`), b.err
}

func (b *stubBackend) ValidateBooking(_ context.Context, p oni.BookingParams, _ string) (*oni.ValidationResult, error) {
	b.record("ValidateBooking")
	b.bookingSeen = &p
	if b.validation == nil {
		return &oni.ValidationResult{Valid: true}, b.err
	}
	return b.validation, b.err
}

func (b *stubBackend) ConfirmBooking(_ context.Context, p oni.BookingParams, _ string) (*oni.BookingResult, error) {
	b.record("ConfirmBooking")
	b.bookingSeen = &p
	if b.booking == nil {
		return &oni.BookingResult{}, b.err
	}
	return b.booking, b.err
}

func (b *stubBackend) PaymentSummary(_ context.Context, _, _ string) (*oni.PaymentSummary, error) {
	b.record("PaymentSummary")
	if b.summary == nil {
		return &oni.PaymentSummary{}, b.err
	}
	return b.summary, b.err
}

func (b *stubBackend) ListProcedures(_ context.Context, _, _ string) (json.RawMessage, error) {
	b.record("ListProcedures")
	if b.procedures == nil {
		return json.RawMessage(`[]`), b.err
	}
	return b.procedures, b.err
}

func (b *stubBackend) CreateExamOrder(_ context.Context, _ string, _ []oni.ExamItem, _ string) (*oni.OrderResult, error) {
	b.record("CreateExamOrder")
	if b.order == nil {
		return &oni.OrderResult{}, b.err
	}
	return b.order, b.err
}

func (b *stubBackend) RegisterPatient(_ context.Context, r oni.Registration) (*oni.RegisterResult, error) {
	b.record("RegisterPatient")
	b.registerSeen = &r
	if b.registerResult == nil {
		return &oni.RegisterResult{}, b.err
	}
	return b.registerResult, b.err
}

func (b *stubBackend) LookupPostalCode(_ context.Context, _ string) (*oni.PostalAddress, error) {
	b.record("LookupPostalCode")
	if b.address == nil {
		return &oni.PostalAddress{}, b.err
	}
	return b.address, b.err
}

func (b *stubBackend) RequestPasswordReset(_ context.Context, _ string) (json.RawMessage, error) {
	b.record("RequestPasswordReset")
	return json.RawMessage(`{"status":true}`), b.err
}

// stubOutbound records delivered messages.
type stubOutbound struct {
	sent []string
	fail bool
}

func (o *stubOutbound) Send(_ context.Context, _, _, text string) error {
	if o.fail {
		return errors.New("channel down")
	}
	o.sent = append(o.sent, text)
	return nil
}

func (o *stubOutbound) last() string {
	if len(o.sent) == 0 {
		return ""
	}
	return o.sent[len(o.sent)-1]
}

type testRig struct {
	engine   *Engine
	store    *session.Store
	backend  *stubBackend
	planner  *stubPlanner
	outbound *stubOutbound
}

func newRig(t *testing.T, planner *stubPlanner, backend *stubBackend) *testRig {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := session.NewStore(client, time.Hour)
	outbound := &stubOutbound{}

	engine := NewEngine(EngineConfig{
		Sessions: store,
		Locks:    session.NewLocks(),
		Backend:  backend,
		Planner:  planner,
		Outbound: outbound,
		Defaults: Defaults{
			MunicipalityID:       "941",
			MunicipalityName:     "Goiânia",
			MunicipalityUF:       "GO",
			ConsultationProcCode: "10101012",
		},
	})
	engine.now = func() time.Time {
		return time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)
	}
	return &testRig{engine: engine, store: store, backend: backend, planner: planner, outbound: outbound}
}

// seedActive creates a session past the welcome phase with the given data.
func (r *testRig) seedActive(t *testing.T, identity, instance string, data map[string]any) {
	t.Helper()
	ctx := context.Background()
	sess, err := r.store.GetOrCreate(ctx, identity, instance)
	require.NoError(t, err)
	sess.State = session.StateIdentifyingService
	sess.AppendTurn(session.RoleAssistant, "Como posso ajudar?")
	for k, v := range data {
		sess.Data[k] = v
	}
	require.NoError(t, r.store.Save(ctx, sess))
}

func (r *testRig) session(t *testing.T, identity, instance string) *session.Session {
	t.Helper()
	sess, err := r.store.Get(context.Background(), identity, instance)
	require.NoError(t, err)
	require.NotNil(t, sess)
	return sess
}

func TestFirstContactSendsWelcome(t *testing.T) {
	rig := newRig(t, plan(), &stubBackend{})

	rig.engine.HandleTurn(context.Background(), "P1", "I1", "oi", "Maria")

	require.Len(t, rig.outbound.sent, 1)
	assert.Contains(t, rig.outbound.sent[0], "Olá Maria!")
	assert.Contains(t, rig.outbound.sent[0], "OniSaúde")

	sess := rig.session(t, "P1", "I1")
	assert.Equal(t, session.StateIdentifyingService, sess.State)
	assert.Empty(t, sess.History, "welcome trigger is not appended to history")
	assert.Empty(t, rig.planner.calls, "welcome bypasses the planner")
}

func TestWelcomeHappensOncePerSession(t *testing.T) {
	rig := newRig(t, plan(content("Posso ajudar com consultas.")), &stubBackend{})
	ctx := context.Background()

	rig.engine.HandleTurn(ctx, "P1", "I1", "oi", "")
	rig.engine.HandleTurn(ctx, "P1", "I1", "quero uma consulta", "")

	sess := rig.session(t, "P1", "I1")
	require.Len(t, sess.History, 2)
	assert.Equal(t, session.RoleUser, sess.History[0].Role)
	assert.Equal(t, "quero uma consulta", sess.History[0].Content)
	assert.Equal(t, session.RoleAssistant, sess.History[1].Role)
	assert.Equal(t, "Posso ajudar com consultas.", rig.outbound.last())
}

func TestPlainContentIsDeliveredAndAppended(t *testing.T) {
	rig := newRig(t, plan(content("Em qual cidade você está?")), &stubBackend{})
	rig.seedActive(t, "P1", "I1", nil)

	rig.engine.HandleTurn(context.Background(), "P1", "I1", "quero marcar consulta", "")

	assert.Equal(t, "Em qual cidade você está?", rig.outbound.last())
	sess := rig.session(t, "P1", "I1")
	last := sess.History[len(sess.History)-1]
	assert.Equal(t, session.RoleAssistant, last.Role)
	assert.Equal(t, "Em qual cidade você está?", last.Content)
}

func TestUnknownActionYieldsNotUnderstood(t *testing.T) {
	rig := newRig(t, plan(action("acao_inexistente", nil)), &stubBackend{})
	rig.seedActive(t, "P1", "I1", nil)

	rig.engine.HandleTurn(context.Background(), "P1", "I1", "???", "")

	assert.Equal(t, msgNotUnderstood, rig.outbound.last())
	assert.Len(t, rig.planner.calls, 1, "unknown actions do not go back to the planner")
}

func TestPlannerFailureSendsApologyWithoutHistoryEntry(t *testing.T) {
	planner := &stubPlanner{errs: []error{errors.New("rate limited")}}
	rig := newRig(t, planner, &stubBackend{})
	rig.seedActive(t, "P1", "I1", nil)

	rig.engine.HandleTurn(context.Background(), "P1", "I1", "oi de novo", "")

	assert.Equal(t, msgProcessingError, rig.outbound.last())
	sess := rig.session(t, "P1", "I1")
	for _, turn := range sess.History {
		assert.NotEqual(t, msgProcessingError, turn.Content)
	}
}

func TestBackendFailureSendsApology(t *testing.T) {
	backend := &stubBackend{err: errors.New("oni down")}
	rig := newRig(t, plan(action(llm.ActionSearchMunicipalities, map[string]any{"nome": "Goiânia"})), backend)
	rig.seedActive(t, "P1", "I1", nil)

	rig.engine.HandleTurn(context.Background(), "P1", "I1", "Goiânia", "")

	assert.Equal(t, msgProcessingError, rig.outbound.last())
}

func TestHopLimitEndsTurnWithApology(t *testing.T) {
	// Planner proposes the same search forever.
	planner := &stubPlanner{}
	for i := 0; i < 30; i++ {
		planner.steps = append(planner.steps, action(llm.ActionSearchMunicipalities, map[string]any{"nome": "x"}))
	}
	rig := newRig(t, planner, &stubBackend{})
	rig.seedActive(t, "P1", "I1", nil)

	rig.engine.HandleTurn(context.Background(), "P1", "I1", "loop", "")

	assert.Equal(t, msgProcessingError, rig.outbound.last())
	assert.LessOrEqual(t, len(rig.planner.calls), DefaultMaxHops+1)
}

func TestFunctionResultFedBackToPlanner(t *testing.T) {
	backend := &stubBackend{municipalities: []oni.Municipality{{ID: "941", Name: "Goiânia", UF: "GO"}}}
	rig := newRig(t, plan(
		action(llm.ActionSearchMunicipalities, map[string]any{"nome": "Goiânia", "proc_codigo": "10101012"}),
		content("Encontrei Goiânia, GO. Podemos continuar?"),
	), backend)
	rig.seedActive(t, "P1", "I1", nil)

	rig.engine.HandleTurn(context.Background(), "P1", "I1", "Goiânia", "")

	require.Len(t, rig.planner.calls, 2)
	second := rig.planner.calls[1]
	fnCall := second[len(second)-2]
	fnResult := second[len(second)-1]
	require.NotNil(t, fnCall.FunctionCall)
	assert.Equal(t, llm.ActionSearchMunicipalities, fnCall.FunctionCall.Name)
	assert.Equal(t, llm.RoleFunction, fnResult.Role)
	assert.Contains(t, fnResult.Content, "Goiânia")

	sess := rig.session(t, "P1", "I1")
	assert.Equal(t, "941", sess.DataString("munic_id"))
	assert.Equal(t, "10101012", sess.DataString("proc_codigo"))
	assert.Equal(t, "Encontrei Goiânia, GO. Podemos continuar?", rig.outbound.last())
}

func TestPartialProgressKeptWhenLaterStepFails(t *testing.T) {
	backend := &stubBackend{municipalities: []oni.Municipality{{ID: "941", Name: "Goiânia", UF: "GO"}}}
	planner := &stubPlanner{
		steps: []llm.Step{action(llm.ActionSearchMunicipalities, map[string]any{"nome": "Goiânia", "proc_codigo": "10101012"})},
		errs:  []error{nil, errors.New("llm timeout")},
	}
	rig := newRig(t, planner, backend)
	rig.seedActive(t, "P1", "I1", nil)

	rig.engine.HandleTurn(context.Background(), "P1", "I1", "Goiânia", "")

	assert.Equal(t, msgProcessingError, rig.outbound.last())
	sess := rig.session(t, "P1", "I1")
	assert.Equal(t, "941", sess.DataString("munic_id"), "resolved municipality survives the failed continuation")
}
