package oni

// Municipality is one row of the city search.
type Municipality struct {
	ID   string `json:"munic_id"`
	Name string `json:"munic_nome"`
	UF   string `json:"munic_uf"`
}

// Facility is a clinic/service location.
type Facility struct {
	ID   string `json:"cli_id"`
	Name string `json:"cli_nome"`
}

// Professional is one provider row of the professional listing. Unidades is
// keyed by facility id.
type Professional struct {
	ProfID   string              `json:"prof_id"`
	ProfNome string              `json:"prof_nome"`
	EspID    string              `json:"esp_id"`
	ProcVlr  string              `json:"proc_vlr"`
	Unidades map[string]Facility `json:"unidades"`
}

// ProfessionalList is the paged provider listing. Both maps are keyed by id
// and kept verbatim in the session so the user can pick by number later.
type ProfessionalList struct {
	Profs    map[string]Professional `json:"profs"`
	Unidades map[string]Facility     `json:"unidades"`
}

// Slot is one bookable time for a provider.
type Slot struct {
	DataHora string `json:"data_hora"`
}

// SlotsByDate maps ISO dates (YYYY-MM-DD) to the slots offered on that day.
type SlotsByDate map[string][]Slot

// LoginResult is the authentication response.
type LoginResult struct {
	Status bool   `json:"status"`
	Token  string `json:"token"`
}

// Beneficiary identifies the authenticated patient.
type Beneficiary struct {
	BenefID   string `json:"benef_id"`
	BenefNome string `json:"benef_nome"`
}

// TokenInfo resolves a bearer token into the patient it belongs to.
type TokenInfo struct {
	Status bool         `json:"status"`
	Data   *Beneficiary `json:"data"`
}

// Term is a terms-of-service record for a beneficiary. A term is outstanding
// when it is mandatory (term_aceite == "1") and not yet accepted
// (act_aceitou != "1").
type Term struct {
	TermID     string `json:"term_id"`
	TermAceite string `json:"term_aceite"`
	ActAceitou string `json:"act_aceitou"`
}

// Outstanding reports whether the term still blocks scheduling.
func (t Term) Outstanding() bool {
	return t.TermAceite == "1" && t.ActAceitou != "1"
}

// BookingParams carries everything a validation or confirmation call needs.
// BenefID always comes from the authenticated session, never from the LLM.
type BookingParams struct {
	CliID       string
	ProfID      string
	EspID       string
	ProcCodigo  string
	TblprocedID string
	DataHora    string
	TpaID       string
	BenefID     string
}

// ValidationResult is the outcome of a booking validation.
type ValidationResult struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// BookingResult is returned when a booking is confirmed.
type BookingResult struct {
	AgID  string `json:"ag_id"`
	AtdID string `json:"atd_id"`
	OspID string `json:"osp_id"`
}

// ExamItem is one procedure in the exam cart.
type ExamItem struct {
	ProcCodigo    string `json:"proc_codigo"`
	ProcDescricao string `json:"proc_descricao"`
	ProcVlr       string `json:"proc_vlr"`
}

// OrderResult is returned when an exam order is created.
type OrderResult struct {
	OspID string `json:"osp_id"`
}

// PaymentParty names the professional or facility on a payment summary.
type PaymentParty struct {
	Nome string `json:"nome"`
}

// PaymentBooking is the appointment block of a payment summary.
type PaymentBooking struct {
	Valor  string `json:"valor"`
	Data   string `json:"data"`
	Inicio string `json:"inicio"`
}

// ExamLine is one priced exam on an order's payment summary.
type ExamLine struct {
	Descricao string `json:"descricao"`
	Valor     string `json:"valor"`
}

// PaymentData covers both summary shapes: appointments carry Agendamento/
// Profissional/Unidade, exam orders carry Valor/Exams.
type PaymentData struct {
	Agendamento  *PaymentBooking `json:"agendamento,omitempty"`
	Profissional *PaymentParty   `json:"profissional,omitempty"`
	Unidade      *PaymentParty   `json:"unidade,omitempty"`
	Valor        string          `json:"valor,omitempty"`
	Exams        []ExamLine      `json:"exams,omitempty"`
}

// PaymentSummary is the payment-instruction payload for an order.
type PaymentSummary struct {
	Data PaymentData `json:"data"`
}

// PostalAddress is the address resolved from a CEP lookup.
type PostalAddress struct {
	UF         string `json:"uf"`
	MunicID    string `json:"munic_id"`
	Bairro     string `json:"bairro"`
	Logradouro string `json:"logradouro"`
}

// Registration is the new-patient record sent to the backend.
type Registration struct {
	Nome           string
	CPF            string
	DataNascimento string
	Email          string
	Senha          string
	DDDCelular     string
	Celular        string
	CEP            string
	Numero         string
	Complemento    string
	UF             string
	MunicID        string
	Bairro         string
	Logradouro     string
}

// RegisterResult is the backend's registration outcome.
type RegisterResult struct {
	Tipo string `json:"tipo"`
	Msg  string `json:"msg"`
}

// ListProfessionalsParams narrows the provider listing. Exactly one of EspID,
// CliID or ProfID is normally set, mirroring how the portal queries.
type ListProfessionalsParams struct {
	EspID       string
	CliID       string
	ProfID      string
	Nome        string
	MunicID     string
	Localizacao string
	ProcCodigo  string
	TblprocedID string
	Page        int
	PerPage     int
}

// ListSlotsParams bounds the availability listing to a provider and window.
type ListSlotsParams struct {
	ProfID      string
	EspID       string
	CliID       string
	ProcCodigo  string
	TblprocedID string
	DataInicial string
	DataFinal   string
}
