package conversation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/saudeflow/agendabot/internal/llm"
	"github.com/saudeflow/agendabot/internal/session"
)

// Session data keys. The auth keys are written only by the login path.
const (
	dataToken     = "token"
	dataBenefID   = "benef_id"
	dataBenefNome = "benef_nome"
	dataAuth      = "autenticado"

	dataMunicID       = "munic_id"
	dataMunicNome     = "munic_nome"
	dataMunicUF       = "munic_uf"
	dataProcCodigo    = "proc_codigo"
	dataProviders     = "profissionais_disponiveis"
	dataFacilities    = "unidades_disponiveis"
	dataEspID         = "esp_id"
	dataSelProfID     = "prof_id_selecionado"
	dataSelProfNome   = "prof_nome_selecionado"
	dataSelEspID      = "esp_id_selecionado"
	dataSelCliID      = "cli_id_selecionado"
	dataProcVlr       = "proc_vlr"
	dataSlots         = "vagas_disponiveis"
	dataChosenSlot    = "horario_escolhido"
	dataChosenDate    = "data_escolhida"
	dataValidated     = "agendamento_validado"
	dataBookingID     = "ag_id"
	dataAttendanceID  = "atd_id"
	dataOrderID       = "osp_id"
	dataServiceKind   = "tipo_servico"
	dataExamCart      = "carrinhoExames"
)

const serviceKindExams = "exames"

// result is what a handler hands back to the dispatch loop. Exactly one of
// message, next or feed drives the next transition; patch is always applied
// first.
type result struct {
	success bool
	message string
	patch   map[string]any
	next    *llm.Action
	feed    any
}

type handlerFunc func(ctx context.Context, t *turn, args arguments) (result, error)

// handlerSpec pairs a handler with its session-overridable argument fields:
// argument key to session data key. The dispatch loop applies the overrides
// before the handler runs, so the rule holds even for handlers added later.
type handlerSpec struct {
	sessionFields map[string]string
	fn            handlerFunc
}

var bookingSessionFields = map[string]string{
	"cli_id":      dataSelCliID,
	"prof_id":     dataSelProfID,
	"esp_id":      dataSelEspID,
	"proc_codigo": dataProcCodigo,
	"benef_id":    dataBenefID,
}

func (e *Engine) registry() map[string]handlerSpec {
	return map[string]handlerSpec{
		llm.ActionSearchMunicipalities: {fn: e.searchMunicipalities},
		llm.ActionSearchOptions:        {fn: e.searchOptions},
		llm.ActionListProfessionals: {
			sessionFields: map[string]string{
				"munic_id":    dataMunicID,
				"proc_codigo": dataProcCodigo,
			},
			fn: e.listProfessionals,
		},
		llm.ActionSelectProfessional: {fn: e.selectProfessional},
		llm.ActionListSlots: {
			sessionFields: map[string]string{
				"prof_id":     dataSelProfID,
				"esp_id":      dataSelEspID,
				"cli_id":      dataSelCliID,
				"proc_codigo": dataProcCodigo,
			},
			fn: e.listSlots,
		},
		llm.ActionSelectSlot: {fn: e.selectSlot},
		llm.ActionLogin:      {fn: e.login},
		llm.ActionListDependents: {
			sessionFields: map[string]string{"benef_id": dataBenefID},
			fn:            e.listDependents,
		},
		llm.ActionValidateBooking: {sessionFields: bookingSessionFields, fn: e.validateBooking},
		llm.ActionConfirmBooking:  {sessionFields: bookingSessionFields, fn: e.confirmBooking},
		llm.ActionSearchProcedures: {
			sessionFields: map[string]string{"munic_id": dataMunicID},
			fn:            e.searchProcedures,
		},
		llm.ActionCreateExamOrder: {
			sessionFields: map[string]string{"benef_id": dataBenefID},
			fn:            e.createExamOrder,
		},
		llm.ActionRegisterPatient: {fn: e.registerPatient},
		llm.ActionPasswordReset:   {fn: e.passwordReset},
	}
}

// localFailure is a validation outcome resolved without a backend call.
func localFailure(message string) result {
	return result{success: false, message: message}
}

// decodeData re-types a session data value through JSON. Values stored by a
// handler survive the Redis round-trip as generic maps; this recovers the
// concrete shape.
func decodeData(v any, out any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("conversation: encode session value: %w", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("conversation: decode session value: %w", err)
	}
	return nil
}

// municipalityOrDefault resolves the working municipality id for a session.
func (e *Engine) municipalityOrDefault(sess *session.Session) string {
	if id := sess.DataString(dataMunicID); id != "" {
		return id
	}
	return e.defaults.MunicipalityID
}

// procCodeOrDefault resolves the working service-type code for a session.
func (e *Engine) procCodeOrDefault(sess *session.Session, arg string) string {
	if arg != "" {
		return arg
	}
	if code := sess.DataString(dataProcCodigo); code != "" {
		return code
	}
	return e.defaults.ConsultationProcCode
}
