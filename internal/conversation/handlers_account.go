package conversation

import (
	"context"

	"github.com/saudeflow/agendabot/internal/llm"
	"github.com/saudeflow/agendabot/internal/oni"
	"github.com/saudeflow/agendabot/internal/validate"
)

func (e *Engine) login(ctx context.Context, t *turn, args arguments) (result, error) {
	return e.performLogin(ctx, t, args.String("login"), args.String("senha")), nil
}

// performLogin authenticates against the backend and is the only code path
// that writes the session's auth fields. Registration reuses it for the
// automatic post-signup login.
func (e *Engine) performLogin(ctx context.Context, t *turn, login, password string) result {
	auth, err := e.backend.Login(ctx, login, password)
	if err != nil {
		t.log.Error("login call", "error", err)
		return localFailure(msgLoginError)
	}
	if !auth.Status || auth.Token == "" {
		return localFailure(msgBadCredentials)
	}

	info, err := e.backend.TokenInfo(ctx, auth.Token)
	if err != nil {
		t.log.Error("token info call", "error", err)
		return localFailure(msgLoginError)
	}
	if !info.Status || info.Data == nil {
		return localFailure(msgTokenInfoError)
	}
	benef := info.Data

	t.log.Info("patient authenticated", "benef_id", benef.BenefID)

	patch := map[string]any{
		dataToken:     auth.Token,
		dataBenefID:   benef.BenefID,
		dataBenefNome: benef.BenefNome,
		dataAuth:      true,
	}

	terms, err := e.backend.ListTerms(ctx, benef.BenefID, auth.Token)
	if err != nil {
		t.log.Error("terms call", "error", err)
		return localFailure(msgLoginError)
	}
	for _, term := range terms {
		if term.Outstanding() {
			return result{success: true, patch: patch, message: termsRequired(benef.BenefNome)}
		}
	}

	// A slot chosen before login is validated right away, no extra planner
	// round-trip.
	if pending := t.sess.DataString(dataChosenSlot); pending != "" {
		t.log.Info("pending slot found, validating booking", "data_hora", pending)
		return result{
			success: true,
			patch:   patch,
			next: &llm.Action{
				Name:      llm.ActionValidateBooking,
				Arguments: map[string]any{"data_hora": pending},
			},
		}
	}

	return result{success: true, patch: patch, message: loginSuccess(benef.BenefNome)}
}

func (e *Engine) listDependents(ctx context.Context, t *turn, args arguments) (result, error) {
	benefID := t.sess.DataString(dataBenefID)
	if benefID == "" {
		return localFailure(msgLoginRequiredDependents), nil
	}

	deps, err := e.backend.ListDependents(ctx, benefID, t.sess.DataString(dataToken))
	if err != nil {
		return result{}, err
	}
	return result{success: true, feed: deps}, nil
}

func (e *Engine) registerPatient(ctx context.Context, t *turn, args arguments) (result, error) {
	cpf := validate.Digits(args.String("cpf"))
	if !validate.CPF(cpf) {
		return localFailure(msgInvalidCPF), nil
	}
	email := args.String("email")
	if !validate.Email(email) {
		return localFailure(msgInvalidEmail), nil
	}

	reg := oni.Registration{
		Nome:           args.String("nome"),
		CPF:            cpf,
		DataNascimento: args.String("data_nascimento"),
		Email:          email,
		Senha:          args.String("senha"),
		CEP:            validate.Digits(args.String("cep")),
		Numero:         args.String("numero"),
		Complemento:    args.String("complemento"),
	}
	if phone := validate.Digits(args.String("telefone")); len(phone) > 2 {
		reg.DDDCelular = phone[:2]
		reg.Celular = phone[2:]
	}

	// Address enrichment is best effort; a failed lookup never blocks signup.
	if reg.CEP != "" {
		addr, err := e.backend.LookupPostalCode(ctx, reg.CEP)
		if err != nil {
			t.log.Warn("postal code lookup", "cep", reg.CEP, "error", err)
		} else {
			reg.UF = addr.UF
			reg.MunicID = addr.MunicID
			reg.Bairro = addr.Bairro
			reg.Logradouro = addr.Logradouro
		}
	}

	created, err := e.backend.RegisterPatient(ctx, reg)
	if err != nil {
		t.log.Error("register call", "error", err)
		return localFailure(msgRegisterError), nil
	}
	if created.Tipo != "sucesso" {
		msg := created.Msg
		if msg == "" {
			msg = msgRegisterError
		}
		return localFailure(msg), nil
	}

	t.log.Info("patient registered", "cpf", validate.FormatCPF(cpf))

	loginRes := e.performLogin(ctx, t, cpf, args.String("senha"))
	if loginRes.next != nil {
		// A pre-signup slot choice goes straight to validation; its message
		// supersedes the signup wrap.
		return loginRes, nil
	}
	return result{
		success: true,
		patch:   loginRes.patch,
		message: registerSuccess(loginRes.message),
	}, nil
}

func (e *Engine) passwordReset(ctx context.Context, t *turn, args arguments) (result, error) {
	res, err := e.backend.RequestPasswordReset(ctx, args.String("cpf_email"))
	if err != nil {
		return result{}, err
	}
	return result{success: true, feed: res}, nil
}
