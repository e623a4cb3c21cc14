package conversation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/saudeflow/agendabot/internal/llm"
	"github.com/saudeflow/agendabot/internal/oni"
)

func (e *Engine) searchMunicipalities(ctx context.Context, t *turn, args arguments) (result, error) {
	found, err := e.backend.SearchMunicipalities(ctx, args.String("nome"), args.String("proc_codigo"))
	if err != nil {
		return result{}, err
	}

	res := result{success: true, feed: found}
	if len(found) > 0 {
		res.patch = map[string]any{
			dataMunicID:    found[0].ID,
			dataMunicNome:  found[0].Name,
			dataMunicUF:    found[0].UF,
			dataProcCodigo: args.String("proc_codigo"),
		}
		t.log.Info("municipality resolved", "municipality", found[0].Name, "uf", found[0].UF)
	}
	return res, nil
}

func (e *Engine) searchOptions(ctx context.Context, t *turn, args arguments) (result, error) {
	// The municipality always comes from the session, never from the planner.
	municID := e.municipalityOrDefault(t.sess)

	found, err := e.backend.SearchOptions(ctx, args.String("nome"), municID, args.String("proc_codigo"))
	if err != nil {
		return result{}, err
	}
	return result{success: true, feed: found}, nil
}

func (e *Engine) listProfessionals(ctx context.Context, t *turn, args arguments) (result, error) {
	municNome := t.sess.DataString(dataMunicNome)
	if municNome == "" {
		municNome = e.defaults.MunicipalityName
	}
	municUF := t.sess.DataString(dataMunicUF)
	if municUF == "" {
		municUF = e.defaults.MunicipalityUF
	}
	municID := args.String("munic_id")
	if municID == "" {
		municID = e.defaults.MunicipalityID
	}

	list, err := e.backend.ListProfessionals(ctx, oni.ListProfessionalsParams{
		EspID:       args.String("esp_id"),
		CliID:       args.String("cli_id"),
		ProfID:      args.String("prof_id"),
		Nome:        args.String("nome"),
		MunicID:     municID,
		Localizacao: fmt.Sprintf("%s, %s", municNome, municUF),
		ProcCodigo:  args.String("proc_codigo"),
	})
	if err != nil {
		return result{}, err
	}

	res := result{success: true, feed: list}
	if list != nil && len(list.Profs) > 0 {
		t.log.Info("professionals found", "count", len(list.Profs))
		res.patch = map[string]any{
			dataProviders:  list.Profs,
			dataFacilities: list.Unidades,
			dataEspID:      args.String("esp_id"),
		}
	}
	return res, nil
}

func (e *Engine) selectProfessional(ctx context.Context, t *turn, args arguments) (result, error) {
	raw, ok := t.sess.Data[dataProviders]
	if !ok {
		return localFailure(msgProviderListMissing), nil
	}
	var profs map[string]oni.Professional
	if err := decodeData(raw, &profs); err != nil || len(profs) == 0 {
		return localFailure(msgProviderListMissing), nil
	}

	// The user picks by the number shown in the listing, which follows the
	// JSON key order of the feed (sorted by id).
	ordered := sortedKeys(profs)
	idx := args.Int("numero_escolhido") - 1
	if idx < 0 || idx >= len(ordered) {
		return localFailure(invalidProviderNumber(len(ordered))), nil
	}

	chosen := profs[ordered[idx]]
	facilityID := firstKey(chosen.Unidades)
	windowStart, windowEnd := slotWindow(e.now())

	t.log.Info("professional selected", "professional", chosen.ProfNome)

	return result{
		success: true,
		patch: map[string]any{
			dataSelProfID:   chosen.ProfID,
			dataSelProfNome: chosen.ProfNome,
			dataSelEspID:    chosen.EspID,
			dataSelCliID:    facilityID,
			dataProcVlr:     chosen.ProcVlr,
		},
		next: &llm.Action{
			Name: llm.ActionListSlots,
			Arguments: map[string]any{
				"prof_id":      chosen.ProfID,
				"esp_id":       chosen.EspID,
				"cli_id":       facilityID,
				"proc_codigo":  e.procCodeOrDefault(t.sess, ""),
				"data_inicial": windowStart,
				"data_final":   windowEnd,
			},
		},
	}, nil
}

func (e *Engine) listSlots(ctx context.Context, t *turn, args arguments) (result, error) {
	procCodigo := e.procCodeOrDefault(t.sess, args.String("proc_codigo"))
	tblprocedID := args.String("tblproced_id")
	if tblprocedID == "" {
		tblprocedID = "1"
	}
	dataInicial := args.String("data_inicial")
	dataFinal := args.String("data_final")
	if dataInicial == "" || dataFinal == "" {
		windowStart, windowEnd := slotWindow(e.now())
		if dataInicial == "" {
			dataInicial = windowStart
		}
		if dataFinal == "" {
			dataFinal = windowEnd
		}
	}

	slots, err := e.backend.ListSlots(ctx, oni.ListSlotsParams{
		ProfID:      args.String("prof_id"),
		EspID:       args.String("esp_id"),
		CliID:       args.String("cli_id"),
		ProcCodigo:  procCodigo,
		TblprocedID: tblprocedID,
		DataInicial: dataInicial,
		DataFinal:   dataFinal,
	})
	if err != nil {
		return result{}, err
	}
	if len(slots) > 0 {
		t.log.Info("slots found", "dates", len(slots))
	}

	return result{
		success: true,
		patch: map[string]any{
			"prof_id":      args.String("prof_id"),
			"esp_id":       args.String("esp_id"),
			"cli_id":       args.String("cli_id"),
			dataProcCodigo: procCodigo,
			"tblproced_id": tblprocedID,
			dataSlots:      slots,
		},
		feed: slots,
	}, nil
}

func (e *Engine) searchProcedures(ctx context.Context, t *turn, args arguments) (result, error) {
	municID := args.String("munic_id")
	if municID == "" {
		municID = e.defaults.MunicipalityID
	}

	found, err := e.backend.ListProcedures(ctx, args.String("nome"), municID)
	if err != nil {
		return result{}, err
	}

	patch := map[string]any{dataServiceKind: serviceKindExams}

	// Cart additions always use backend-priced items, never planner values.
	if args.Bool("adicionar_ao_carrinho") {
		var items []oni.ExamItem
		if err := decodeData(found, &items); err == nil && len(items) > 0 {
			cart := e.examCart(t)
			cart = append(cart, items[0])
			patch[dataExamCart] = cart
			t.log.Info("exam added to cart", "procedure", items[0].ProcDescricao, "cart_size", len(cart))
		}
	}

	return result{success: true, patch: patch, feed: found}, nil
}

// examCart loads the session's exam cart, tolerating the post-Redis shape.
func (e *Engine) examCart(t *turn) []oni.ExamItem {
	raw, ok := t.sess.Data[dataExamCart]
	if !ok {
		return nil
	}
	var cart []oni.ExamItem
	if err := decodeData(raw, &cart); err != nil {
		return nil
	}
	return cart
}

// slotWindow is the fixed forward window offered after selecting a
// professional: tomorrow through fourteen days out.
func slotWindow(now time.Time) (string, string) {
	return now.AddDate(0, 0, 1).Format("2006-01-02"), now.AddDate(0, 0, 14).Format("2006-01-02")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func firstKey[V any](m map[string]V) string {
	keys := sortedKeys(m)
	if len(keys) == 0 {
		return ""
	}
	return keys[0]
}
