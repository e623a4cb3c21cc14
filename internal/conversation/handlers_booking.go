package conversation

import (
	"context"
	"strings"

	"github.com/saudeflow/agendabot/internal/llm"
	"github.com/saudeflow/agendabot/internal/oni"
)

func (e *Engine) selectSlot(ctx context.Context, t *turn, args arguments) (result, error) {
	raw, ok := t.sess.Data[dataSlots]
	if !ok {
		return localFailure(msgSlotsMissing), nil
	}
	var slots oni.SlotsByDate
	if err := decodeData(raw, &slots); err != nil || len(slots) == 0 {
		return localFailure(msgSlotsMissing), nil
	}

	date := args.String("data_escolhida")
	daySlots := slots[date]
	if len(daySlots) == 0 {
		return localFailure(msgDateNotFound), nil
	}

	idx := args.Int("numero_horario") - 1
	if idx < 0 || idx >= len(daySlots) {
		return localFailure(invalidSlotNumber(len(daySlots))), nil
	}
	chosen := daySlots[idx]

	t.log.Info("slot selected", "data_hora", chosen.DataHora)

	patch := map[string]any{
		dataChosenSlot: chosen.DataHora,
		dataChosenDate: date,
	}

	// Not logged in yet: keep the choice and ask for credentials. The login
	// handler picks the pending slot up and validates it automatically.
	if !t.sess.Authenticated() {
		return result{
			success: true,
			patch:   patch,
			message: slotSelectedNeedLogin(chosen.DataHora),
		}, nil
	}

	return result{
		success: true,
		patch:   patch,
		next: &llm.Action{
			Name:      llm.ActionValidateBooking,
			Arguments: map[string]any{"data_hora": chosen.DataHora},
		},
	}, nil
}

// bookingParams assembles a validation/confirmation request from the session
// plus the caller-chosen date-time. The session overrides in the handler spec
// have already replaced cli_id/prof_id/esp_id/proc_codigo/benef_id with
// session values where present.
func (e *Engine) bookingParams(t *turn, args arguments) oni.BookingParams {
	tblprocedID := args.String("tblproced_id")
	if tblprocedID == "" {
		tblprocedID = "1"
	}
	tpaID := args.String("tpa_id")
	if tpaID == "" {
		tpaID = "1"
	}
	return oni.BookingParams{
		CliID:       args.String("cli_id"),
		ProfID:      args.String("prof_id"),
		EspID:       args.String("esp_id"),
		ProcCodigo:  e.procCodeOrDefault(t.sess, args.String("proc_codigo")),
		TblprocedID: tblprocedID,
		DataHora:    args.String("data_hora"),
		TpaID:       tpaID,
		BenefID:     t.sess.DataString(dataBenefID),
	}
}

func (e *Engine) validateBooking(ctx context.Context, t *turn, args arguments) (result, error) {
	if t.sess.DataString(dataBenefID) == "" {
		return localFailure(msgLoginRequiredBooking), nil
	}

	params := e.bookingParams(t, args)
	token := t.sess.DataString(dataToken)

	t.log.Info("validating booking", "benef_id", params.BenefID, "data_hora", params.DataHora)

	validation, err := e.backend.ValidateBooking(ctx, params, token)
	if err != nil {
		t.log.Error("booking validation call", "error", err)
		return localFailure(msgValidateError), nil
	}
	if !validation.Valid {
		return localFailure(bookingInvalid(validation.Message)), nil
	}

	return result{
		success: true,
		patch: map[string]any{
			dataValidated: map[string]any{
				"cli_id":       params.CliID,
				"prof_id":      params.ProfID,
				"esp_id":       params.EspID,
				"proc_codigo":  params.ProcCodigo,
				"tblproced_id": params.TblprocedID,
				"data_hora":    params.DataHora,
				"tpa_id":       params.TpaID,
			},
		},
		message: msgBookingValidated,
	}, nil
}

func (e *Engine) confirmBooking(ctx context.Context, t *turn, args arguments) (result, error) {
	if t.sess.DataString(dataBenefID) == "" {
		return localFailure(msgLoginRequiredBooking), nil
	}

	params := e.bookingParams(t, args)
	token := t.sess.DataString(dataToken)

	t.log.Info("confirming booking", "benef_id", params.BenefID, "data_hora", params.DataHora)

	booking, err := e.backend.ConfirmBooking(ctx, params, token)
	if err != nil {
		t.log.Error("booking confirmation call", "error", err)
		return localFailure(msgConfirmError), nil
	}
	if booking.AgID == "" {
		return localFailure(msgConfirmError), nil
	}

	patch := map[string]any{
		dataBookingID:    booking.AgID,
		dataAttendanceID: booking.AtdID,
		dataOrderID:      booking.OspID,
	}

	// The booking exists at this point; a payment-summary failure must not
	// discard it, so the confirmation renders with placeholders instead.
	valor, data, horario, profissional, unidade := "N/A", "N/A", "N/A", "N/A", "N/A"
	summary, err := e.backend.PaymentSummary(ctx, booking.OspID, token)
	if err != nil {
		t.log.Warn("payment summary call", "osp_id", booking.OspID, "error", err)
	} else {
		if ag := summary.Data.Agendamento; ag != nil {
			valor = orNA(ag.Valor)
			data = orNA(ag.Data)
			horario = orNA(ag.Inicio)
		}
		if p := summary.Data.Profissional; p != nil {
			profissional = orNA(p.Nome)
		}
		if u := summary.Data.Unidade; u != nil {
			unidade = orNA(u.Nome)
		}
	}

	return result{
		success: true,
		patch:   patch,
		message: bookingConfirmed(data, horario, profissional, unidade, valor),
	}, nil
}

func (e *Engine) createExamOrder(ctx context.Context, t *turn, args arguments) (result, error) {
	benefID := t.sess.DataString(dataBenefID)
	if benefID == "" {
		return localFailure(msgLoginRequiredOrder), nil
	}

	cart := e.examCart(t)
	if len(cart) == 0 {
		return localFailure(msgCartEmpty), nil
	}

	token := t.sess.DataString(dataToken)

	t.log.Info("creating exam order", "benef_id", benefID, "items", len(cart))

	order, err := e.backend.CreateExamOrder(ctx, benefID, cart, token)
	if err != nil {
		t.log.Error("exam order call", "error", err)
		return localFailure(msgOrderError), nil
	}
	if order.OspID == "" {
		return localFailure(msgOrderError), nil
	}

	total, lines := "N/A", ""
	summary, err := e.backend.PaymentSummary(ctx, order.OspID, token)
	if err != nil {
		t.log.Warn("payment summary call", "osp_id", order.OspID, "error", err)
	} else {
		total = orNA(summary.Data.Valor)
		rendered := make([]string, 0, len(summary.Data.Exams))
		for _, ex := range summary.Data.Exams {
			rendered = append(rendered, "• "+ex.Descricao+" - R$ "+ex.Valor)
		}
		lines = strings.Join(rendered, "\n")
	}

	return result{
		success: true,
		patch:   map[string]any{dataOrderID: order.OspID},
		message: orderCreated(lines, total),
	}, nil
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
