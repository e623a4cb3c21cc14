// Package oni wraps the OniSaúde scheduling REST API consumed by the
// conversation engine. Every operation takes a context and, where the
// upstream requires it, a bearer token obtained by the login flow.
package oni

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/saudeflow/agendabot/pkg/logging"
)

// Config controls how the API client behaves.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	ConvANS    string
	PlanID     string
	SuperID    string
	HTTPClient *http.Client
	Logger     *logging.Logger
}

// Client talks to the OniSaúde portal API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	convANS    string
	planID     string
	superID    string
	logger     *logging.Logger
}

// New creates a configured Client with sane defaults.
func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("oni: base URL is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		convANS:    cfg.ConvANS,
		planID:     cfg.PlanID,
		superID:    cfg.SuperID,
		logger:     logger,
	}, nil
}

// SearchMunicipalities resolves a partial city name into municipality rows.
func (c *Client) SearchMunicipalities(ctx context.Context, name, procCode string) ([]Municipality, error) {
	q := url.Values{}
	q.Set("munic_nome", name)
	q.Set("proc_codigo", procCode)
	q.Set("conv_ans", c.convANS)
	q.Set("super_id", c.superID)

	var out []Municipality
	if err := c.getJSON(ctx, "/endereco/listar-municipios", q, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SearchOptions looks up professionals, specialties or facilities by name.
// The raw result is handed back to the planner untouched.
func (c *Client) SearchOptions(ctx context.Context, name, municID, procCode string) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("nome", name)
	q.Set("munic_id", municID)
	q.Set("proc_codigo", procCode)
	q.Set("conv_ans", c.convANS)
	q.Set("super_id", c.superID)

	var out json.RawMessage
	if err := c.getJSON(ctx, "/agendaportal/listar-profissional-especialidade-servico", q, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListProfessionals returns the paged provider listing for a specialty,
// facility or single provider.
func (c *Client) ListProfessionals(ctx context.Context, p ListProfessionalsParams) (*ProfessionalList, error) {
	q := url.Values{}
	q.Set("munic_id", p.MunicID)
	q.Set("localizacao", p.Localizacao)
	q.Set("conv_ans", c.convANS)
	q.Set("plano_id", c.planID)
	q.Set("proc_codigo", p.ProcCodigo)
	q.Set("tblproced_id", defaultString(p.TblprocedID, "1"))
	q.Set("page", strconv.Itoa(defaultInt(p.Page, 1)))
	q.Set("per_page", strconv.Itoa(defaultInt(p.PerPage, 20)))
	switch {
	case p.EspID != "":
		q.Set("esp_id", p.EspID)
	case p.CliID != "":
		q.Set("cli_id", p.CliID)
	case p.ProfID != "":
		q.Set("prof_id", p.ProfID)
	}
	if p.Nome != "" {
		q.Set("nome", p.Nome)
	}

	var out ProfessionalList
	if err := c.getJSON(ctx, "/agendaportal/listar-profissionais", q, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListSlots returns the open times for a provider inside a date window,
// grouped by date.
func (c *Client) ListSlots(ctx context.Context, p ListSlotsParams) (SlotsByDate, error) {
	q := url.Values{}
	q.Set("prof_id", p.ProfID)
	q.Set("esp_id", p.EspID)
	q.Set("cli_id", p.CliID)
	q.Set("proc_codigo", p.ProcCodigo)
	q.Set("tblproced_id", defaultString(p.TblprocedID, "1"))
	q.Set("conv_ans", c.convANS)
	q.Add("super_id[]", c.superID)
	q.Set("data_inicial", p.DataInicial)
	q.Set("data_final", p.DataFinal)

	var out SlotsByDate
	if err := c.getJSON(ctx, "/agendaportal/listar-vagas", q, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Login authenticates a patient by CPF/email and password.
func (c *Client) Login(ctx context.Context, login, password string) (*LoginResult, error) {
	form := url.Values{}
	form.Set("login", login)
	form.Set("senha", password)

	var out LoginResult
	if err := c.postForm(ctx, "/auth/login-paciente", form, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TokenInfo resolves the beneficiary behind a bearer token.
func (c *Client) TokenInfo(ctx context.Context, token string) (*TokenInfo, error) {
	var out TokenInfo
	if err := c.postForm(ctx, "/auth/token-info", url.Values{}, token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListTerms fetches the terms-of-service records for a beneficiary.
func (c *Client) ListTerms(ctx context.Context, benefID, token string) ([]Term, error) {
	q := url.Values{}
	q.Set("benef_id", benefID)

	var out []Term
	if err := c.getJSON(ctx, "/termo/buscar-termos-beneficiario", q, token, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListDependents returns the dependents of the authenticated titular.
func (c *Client) ListDependents(ctx context.Context, benefID, token string) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("benef_id", benefID)

	var out json.RawMessage
	if err := c.getJSON(ctx, "/beneficiario/listar-dependente", q, token, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ValidateBooking checks whether the appointment can be made.
func (c *Client) ValidateBooking(ctx context.Context, p BookingParams, token string) (*ValidationResult, error) {
	var out ValidationResult
	if err := c.postForm(ctx, "/agendaportal/validar", bookingForm(p), token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConfirmBooking books the appointment after a successful validation.
func (c *Client) ConfirmBooking(ctx context.Context, p BookingParams, token string) (*BookingResult, error) {
	form := bookingForm(p)
	form.Set("conv_ans", c.convANS)
	form.Set("plano_id", c.planID)
	form.Set("super_id", c.superID)
	form.Set("origem", "7")
	form.Set("tipo_agenda", "O")
	form.Set("tipo_agendamento", "P")

	var out BookingResult
	if err := c.postForm(ctx, "/agendaportal/agendar", form, token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PaymentSummary fetches the payment instructions for a confirmed order.
func (c *Client) PaymentSummary(ctx context.Context, ospID, token string) (*PaymentSummary, error) {
	form := url.Values{}
	form.Set("osp_id", ospID)

	var out PaymentSummary
	if err := c.postForm(ctx, "/pagamentorede/dados-pagamento", form, token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListProcedures searches exam procedures by name or TUSS code.
func (c *Client) ListProcedures(ctx context.Context, name, municID string) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("nome", name)
	q.Set("munic_id", municID)
	q.Set("conv_ans", c.convANS)

	var out json.RawMessage
	if err := c.getJSON(ctx, "/procedimento/listar-procedimentos", q, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateExamOrder submits the exam cart for a beneficiary.
func (c *Client) CreateExamOrder(ctx context.Context, benefID string, items []ExamItem, token string) (*OrderResult, error) {
	form := url.Values{}
	form.Set("benef_id", benefID)
	for i, item := range items {
		form.Set(fmt.Sprintf("procedimentos[%d][proc_codigo]", i), item.ProcCodigo)
		form.Set(fmt.Sprintf("procedimentos[%d][proc_descricao]", i), item.ProcDescricao)
		form.Set(fmt.Sprintf("procedimentos[%d][proc_vlr]", i), item.ProcVlr)
	}

	var out OrderResult
	if err := c.postForm(ctx, "/agendaportal/criar-pedido", form, token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RegisterPatient creates a new beneficiary record.
func (c *Client) RegisterPatient(ctx context.Context, r Registration) (*RegisterResult, error) {
	form := url.Values{}
	form.Set("benef_nome", r.Nome)
	form.Set("benef_cpf", r.CPF)
	form.Set("benef_dtnasc", r.DataNascimento)
	form.Set("benef_email", r.Email)
	form.Set("benef_senha", r.Senha)
	form.Set("benef_dddcelular", r.DDDCelular)
	form.Set("benef_celular", r.Celular)
	form.Set("benef_endcep", r.CEP)
	form.Set("benef_endnum", r.Numero)
	form.Set("benef_endcomplemento", r.Complemento)
	form.Set("super_id", c.superID)
	if r.UF != "" {
		form.Set("benef_uf", r.UF)
	}
	if r.MunicID != "" {
		form.Set("munic_id", r.MunicID)
	}
	if r.Bairro != "" {
		form.Set("bar_nome", r.Bairro)
	}
	if r.Logradouro != "" {
		form.Set("benef_endlogradouro", r.Logradouro)
	}

	var out RegisterResult
	if err := c.postForm(ctx, "/beneficiario/alterar-beneficiario", form, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LookupPostalCode resolves a CEP into an address.
func (c *Client) LookupPostalCode(ctx context.Context, cep string) (*PostalAddress, error) {
	q := url.Values{}
	q.Set("cep", cep)

	var out PostalAddress
	if err := c.getJSON(ctx, "/endereco/buscar-dados-cep", q, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RequestPasswordReset starts password recovery for a CPF or email.
func (c *Client) RequestPasswordReset(ctx context.Context, cpfEmail string) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("cpf_email", cpfEmail)

	var out json.RawMessage
	if err := c.getJSON(ctx, "/beneficiario/solicitar-alteracao-senha", q, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func bookingForm(p BookingParams) url.Values {
	form := url.Values{}
	form.Set("cli_id", p.CliID)
	form.Set("prof_id", p.ProfID)
	form.Set("esp_id", p.EspID)
	form.Set("proc_codigo", p.ProcCodigo)
	form.Set("tblproced_id", defaultString(p.TblprocedID, "1"))
	form.Set("data_hora", p.DataHora)
	form.Set("tpa_id", defaultString(p.TpaID, "1"))
	form.Set("benef_id", p.BenefID)
	return form
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, token string, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("oni: failed to build request: %w", err)
	}
	return c.do(req, token, out)
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("oni: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, token, out)
}

func (c *Client) do(req *http.Request, token string, out any) error {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("oni: %s %s failed: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("oni: failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("oni API error",
			"path", req.URL.Path,
			"status", resp.StatusCode,
		)
		return fmt.Errorf("oni: %s returned status %d", req.URL.Path, resp.StatusCode)
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("oni: failed to decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func defaultInt(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}
