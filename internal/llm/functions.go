package llm

import openai "github.com/sashabaranov/go-openai"

// Action names recognized by the dispatch loop. The planner may only propose
// names from this registry; anything else is treated as unresolvable.
const (
	ActionSearchMunicipalities = "buscar_municipios"
	ActionSearchOptions        = "buscar_profissionais_especialidades"
	ActionListProfessionals    = "listar_profissionais"
	ActionSelectProfessional   = "selecionar_profissional"
	ActionListSlots            = "listar_vagas"
	ActionSelectSlot           = "selecionar_horario"
	ActionLogin                = "login_paciente"
	ActionListDependents       = "buscar_dependentes"
	ActionValidateBooking      = "validar_agendamento"
	ActionConfirmBooking       = "confirmar_agendamento"
	ActionSearchProcedures     = "buscar_procedimentos_exames"
	ActionCreateExamOrder      = "criar_pedido_exames"
	ActionRegisterPatient      = "cadastrar_paciente"
	ActionPasswordReset        = "solicitar_recuperacao_senha"
)

const systemPrompt = `Você é um assistente virtual da OniSaúde, uma plataforma de agendamento de consultas, teleconsultas e exames médicos.

Seu papel é ajudar os pacientes de forma cordial, profissional e eficiente a:
- Agendar consultas presenciais
- Agendar teleconsultas
- Solicitar exames médicos
- Cadastrar novos pacientes
- Fazer login de pacientes existentes
- Recuperar senhas

REGRAS IMPORTANTES:
1. Seja sempre cordial e use emojis moderadamente (👋, ✅, 📅, 🏥)
2. Faça perguntas diretas e claras, uma de cada vez
3. Confirme informações importantes antes de prosseguir
4. Se o usuário não souber a cidade, use Goiânia como padrão
5. Ao listar opções, numere-as para facilitar a escolha
6. Use as funções disponíveis para buscar informações na API; nunca invente informações
7. Quando precisar de autenticação, peça CPF/email e senha de forma clara
8. Para cadastro, colete: nome, CPF, data de nascimento, email, telefone, CEP, número, senha
9. Para exames, permita adicionar múltiplos itens ao carrinho
10. Seja breve nas respostas (máximo 2-3 parágrafos por mensagem)

FLUXO DE AGENDAMENTO:
1. Identifique o tipo de serviço (consulta, teleconsulta ou exame)
2. Identifique a cidade (padrão Goiânia)
3. Para consultas/teleconsultas: busque e liste profissionais; quando o usuário
   escolher um número da lista de profissionais, use selecionar_profissional;
   quando escolher um número de horário, SEMPRE use selecionar_horario — a
   função verifica login e valida o agendamento automaticamente
4. Para exames: busque o exame, monte o carrinho, solicite login e finalize

IMPORTANTE: pagamentos ainda não estão implementados. Após a confirmação,
informe que o paciente receberá as instruções de pagamento posteriormente.`

// definitions is the fixed function registry exposed to the model.
var definitions = []openai.FunctionDefinition{
	{
		Name:        ActionSearchMunicipalities,
		Description: "Busca municípios pelo nome para identificar a localização do paciente",
		Parameters: schema{
			"nome":        prop("string", "Parte do nome do município a buscar"),
			"proc_codigo": prop("string", "Código do procedimento (10101012 consulta, 10101011 teleconsulta)"),
		}.required("nome"),
	},
	{
		Name:        ActionSearchOptions,
		Description: "Busca profissionais, especialidades ou locais de atendimento pelo nome",
		Parameters: schema{
			"nome":        prop("string", "Parte do nome do profissional, especialidade ou local"),
			"munic_id":    prop("string", "ID do município"),
			"proc_codigo": prop("string", "Código do procedimento"),
		}.required("nome", "proc_codigo"),
	},
	{
		Name:        ActionListProfessionals,
		Description: "Lista profissionais disponíveis por especialidade, local ou profissional específico",
		Parameters: schema{
			"esp_id":      prop("string", "ID da especialidade"),
			"cli_id":      prop("string", "ID da clínica/local"),
			"prof_id":     prop("string", "ID do profissional"),
			"nome":        prop("string", "Nome da especialidade, local ou profissional"),
			"munic_id":    prop("string", "ID do município"),
			"proc_codigo": prop("string", "Código do procedimento"),
		}.required("proc_codigo"),
	},
	{
		Name:        ActionSelectProfessional,
		Description: "Seleciona um profissional da lista retornada anteriormente pelo número (1, 2, 3...). Use quando o usuário escolher um profissional da lista.",
		Parameters: schema{
			"numero_escolhido": prop("number", "Número do profissional escolhido"),
		}.required("numero_escolhido"),
	},
	{
		Name:        ActionListSlots,
		Description: "Lista horários disponíveis para um profissional. Os IDs vêm da sessão após selecionar um profissional.",
		Parameters: schema{
			"prof_id":      prop("string", "ID do profissional"),
			"esp_id":       prop("string", "ID da especialidade"),
			"cli_id":       prop("string", "ID da clínica"),
			"proc_codigo":  prop("string", "Código do procedimento"),
			"data_inicial": prop("string", "Data inicial YYYY-MM-DD"),
			"data_final":   prop("string", "Data final YYYY-MM-DD"),
		}.required("data_inicial", "data_final"),
	},
	{
		Name:        ActionSelectSlot,
		Description: "SEMPRE use quando o usuário escolher um número de horário da lista de vagas. Seleciona o horário, verifica login e valida o agendamento automaticamente.",
		Parameters: schema{
			"data_escolhida": prop("string", "Data escolhida YYYY-MM-DD, extraída das vagas mostradas"),
			"numero_horario": prop("number", "Número do horário na lista, começando em 1"),
		}.required("data_escolhida", "numero_horario"),
	},
	{
		Name:        ActionLogin,
		Description: "Faz login do paciente com CPF/email e senha",
		Parameters: schema{
			"login": prop("string", "CPF ou email do paciente"),
			"senha": prop("string", "Senha do paciente"),
		}.required("login", "senha"),
	},
	{
		Name:        ActionListDependents,
		Description: "Busca os dependentes do titular logado. O benef_id vem automaticamente da sessão.",
		Parameters:  schema{},
	},
	{
		Name:        ActionValidateBooking,
		Description: "Valida se o agendamento é possível. O benef_id vem da sessão do usuário logado; só use após autenticação.",
		Parameters:  bookingSchema(),
	},
	{
		Name:        ActionConfirmBooking,
		Description: "Confirma o agendamento após validação bem-sucedida. O benef_id vem da sessão do usuário logado.",
		Parameters:  bookingSchema(),
	},
	{
		Name:        ActionSearchProcedures,
		Description: "Busca procedimentos/exames pelo nome ou código TUSS. Com adicionar_ao_carrinho=true, adiciona o primeiro resultado ao carrinho do paciente.",
		Parameters: schema{
			"nome":                  prop("string", "Nome do exame ou código TUSS"),
			"munic_id":              prop("string", "ID do município"),
			"adicionar_ao_carrinho": prop("boolean", "Adiciona o exame encontrado ao carrinho"),
		}.required("nome"),
	},
	{
		Name:        ActionCreateExamOrder,
		Description: "Cria o pedido com os exames do carrinho. O benef_id vem da sessão; só use após autenticação.",
		Parameters:  schema{},
	},
	{
		Name:        ActionRegisterPatient,
		Description: "Cadastra novo paciente no sistema",
		Parameters: schema{
			"nome":            prop("string", ""),
			"cpf":             prop("string", ""),
			"data_nascimento": prop("string", "Formato: YYYY-MM-DD"),
			"email":           prop("string", ""),
			"telefone":        prop("string", ""),
			"cep":             prop("string", ""),
			"numero":          prop("string", ""),
			"complemento":     prop("string", ""),
			"senha":           prop("string", ""),
		}.required("nome", "cpf", "data_nascimento", "email", "senha"),
	},
	{
		Name:        ActionPasswordReset,
		Description: "Solicita recuperação de senha via CPF ou email",
		Parameters: schema{
			"cpf_email": prop("string", "CPF ou email do paciente"),
		}.required("cpf_email"),
	},
}

type schema map[string]any

func (s schema) required(fields ...string) map[string]any {
	out := map[string]any{
		"type":       "object",
		"properties": map[string]any(s),
	}
	if len(fields) > 0 {
		out["required"] = fields
	}
	return out
}

func prop(typ, description string) map[string]any {
	p := map[string]any{"type": typ}
	if description != "" {
		p["description"] = description
	}
	return p
}

func bookingSchema() map[string]any {
	return schema{
		"cli_id":       prop("string", "ID da clínica (disponível na sessão)"),
		"prof_id":      prop("string", "ID do profissional (disponível na sessão)"),
		"esp_id":       prop("string", "ID da especialidade (disponível na sessão)"),
		"tblproced_id": prop("string", "ID da tabela de procedimentos (geralmente 1)"),
		"proc_codigo":  prop("string", "Código do procedimento (disponível na sessão)"),
		"data_hora":    prop("string", "Formato: YYYY-MM-DD HH:mm"),
		"tpa_id":       prop("string", "ID do tipo de atendimento (geralmente 1)"),
	}.required("data_hora")
}
