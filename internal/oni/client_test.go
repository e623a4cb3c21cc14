package oni

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New(Config{
		BaseURL: srv.URL,
		ConvANS: "422037",
		PlanID:  "1",
		SuperID: "2",
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return client
}

func TestSearchMunicipalities(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/endereco/listar-municipios" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("munic_nome") != "goiania" || q.Get("proc_codigo") != "10101012" {
			t.Errorf("unexpected query %v", q)
		}
		if q.Get("conv_ans") != "422037" || q.Get("super_id") != "2" {
			t.Errorf("tenant constants missing from query %v", q)
		}
		json.NewEncoder(w).Encode([]Municipality{{ID: "941", Name: "Goiânia", UF: "GO"}})
	})

	got, err := client.SearchMunicipalities(context.Background(), "goiania", "10101012")
	if err != nil {
		t.Fatalf("SearchMunicipalities failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "941" || got[0].UF != "GO" {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestLoginSendsForm(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("unexpected content type %s", ct)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.PostForm.Get("login") != "52998224725" || r.PostForm.Get("senha") != "secret" {
			t.Errorf("unexpected form %v", r.PostForm)
		}
		json.NewEncoder(w).Encode(LoginResult{Status: true, Token: "tok-123"})
	})

	got, err := client.Login(context.Background(), "52998224725", "secret")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if !got.Status || got.Token != "tok-123" {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestValidateBookingCarriesBearerToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer tok-123" {
			t.Errorf("expected bearer token, got %q", auth)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.PostForm.Get("cli_id") != "9" || r.PostForm.Get("prof_id") != "5" {
			t.Errorf("unexpected booking form %v", r.PostForm)
		}
		if r.PostForm.Get("tblproced_id") != "1" || r.PostForm.Get("tpa_id") != "1" {
			t.Errorf("expected defaults applied, got %v", r.PostForm)
		}
		json.NewEncoder(w).Encode(ValidationResult{Valid: true})
	})

	got, err := client.ValidateBooking(context.Background(), BookingParams{
		CliID:    "9",
		ProfID:   "5",
		EspID:    "12",
		DataHora: "2025-11-10 09:00",
		BenefID:  "77",
	}, "tok-123")
	if err != nil {
		t.Fatalf("ValidateBooking failed: %v", err)
	}
	if !got.Valid {
		t.Fatal("expected valid booking")
	}
}

func TestConfirmBookingAddsTenantFields(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		for key, want := range map[string]string{
			"conv_ans": "422037", "plano_id": "1", "super_id": "2",
			"origem": "7", "tipo_agenda": "O", "tipo_agendamento": "P",
		} {
			if got := r.PostForm.Get(key); got != want {
				t.Errorf("form[%s] = %q, want %q", key, got, want)
			}
		}
		json.NewEncoder(w).Encode(BookingResult{AgID: "100", AtdID: "200", OspID: "300"})
	})

	got, err := client.ConfirmBooking(context.Background(), BookingParams{BenefID: "77", DataHora: "2025-11-10 09:00"}, "tok")
	if err != nil {
		t.Fatalf("ConfirmBooking failed: %v", err)
	}
	if got.AgID != "100" || got.OspID != "300" {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestListSlotsDecodesDateMap(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("data_inicial") == "" || q.Get("data_final") == "" {
			t.Errorf("expected window bounds, got %v", q)
		}
		if q.Get("super_id[]") != "2" {
			t.Errorf("expected super_id[] param, got %v", q)
		}
		json.NewEncoder(w).Encode(map[string][]Slot{
			"2025-11-10": {{DataHora: "2025-11-10 09:00"}, {DataHora: "2025-11-10 10:00"}},
		})
	})

	got, err := client.ListSlots(context.Background(), ListSlotsParams{
		ProfID:      "5",
		EspID:       "12",
		CliID:       "9",
		ProcCodigo:  "10101012",
		DataInicial: "2025-11-10",
		DataFinal:   "2025-11-24",
	})
	if err != nil {
		t.Fatalf("ListSlots failed: %v", err)
	}
	if len(got["2025-11-10"]) != 2 {
		t.Fatalf("unexpected slots %+v", got)
	}
}

func TestCreateExamOrderIndexesItems(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.PostForm.Get("procedimentos[0][proc_codigo]") != "40301012" {
			t.Errorf("missing first item: %v", r.PostForm)
		}
		if r.PostForm.Get("procedimentos[1][proc_descricao]") != "Glicemia" {
			t.Errorf("missing second item: %v", r.PostForm)
		}
		json.NewEncoder(w).Encode(OrderResult{OspID: "900"})
	})

	got, err := client.CreateExamOrder(context.Background(), "77", []ExamItem{
		{ProcCodigo: "40301012", ProcDescricao: "Hemograma", ProcVlr: "15.00"},
		{ProcCodigo: "40302040", ProcDescricao: "Glicemia", ProcVlr: "10.00"},
	}, "tok")
	if err != nil {
		t.Fatalf("CreateExamOrder failed: %v", err)
	}
	if got.OspID != "900" {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestNon2xxIsError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	if _, err := client.SearchMunicipalities(context.Background(), "goiania", "10101012"); err == nil {
		t.Fatal("expected error on 502")
	}
}

func TestTermOutstanding(t *testing.T) {
	if !(Term{TermAceite: "1", ActAceitou: "0"}).Outstanding() {
		t.Error("mandatory unaccepted term should be outstanding")
	}
	if (Term{TermAceite: "1", ActAceitou: "1"}).Outstanding() {
		t.Error("accepted term should not be outstanding")
	}
	if (Term{TermAceite: "0", ActAceitou: "0"}).Outstanding() {
		t.Error("optional term should not be outstanding")
	}
}

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error without base URL")
	}
}
