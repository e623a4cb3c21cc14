package validate

import "testing"

func TestCPF(t *testing.T) {
	tests := []struct {
		name string
		cpf  string
		want bool
	}{
		{"valid plain", "52998224725", true},
		{"valid formatted", "529.982.247-25", true},
		{"wrong first check digit", "52998224735", false},
		{"wrong second check digit", "52998224726", false},
		{"all same digits", "11111111111", false},
		{"too short", "5299822472", false},
		{"too long", "529982247250", false},
		{"empty", "", false},
		{"letters only", "abcdefghijk", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CPF(tt.cpf); got != tt.want {
				t.Errorf("CPF(%q) = %v, want %v", tt.cpf, got, tt.want)
			}
		})
	}
}

func TestEmail(t *testing.T) {
	valid := []string{"a@b.co", "paciente.teste@clinica.com.br", "x+tag@dominio.org"}
	invalid := []string{"", "semarroba", "a@b", "a b@c.com", "@dominio.com"}

	for _, e := range valid {
		if !Email(e) {
			t.Errorf("Email(%q) = false, want true", e)
		}
	}
	for _, e := range invalid {
		if Email(e) {
			t.Errorf("Email(%q) = true, want false", e)
		}
	}
}

func TestBRDate(t *testing.T) {
	tests := []struct {
		date string
		want bool
	}{
		{"10/11/1990", true},
		{"29/02/2024", true},
		{"29/02/2023", false},
		{"31/04/2020", false},
		{"1990-11-10", false},
		{"10/13/1990", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := BRDate(tt.date); got != tt.want {
			t.Errorf("BRDate(%q) = %v, want %v", tt.date, got, tt.want)
		}
	}
}

func TestBRDateToISO(t *testing.T) {
	if got := BRDateToISO("10/11/1990"); got != "1990-11-10" {
		t.Errorf("BRDateToISO = %q", got)
	}
}

func TestPhone(t *testing.T) {
	if !Phone("(62) 99999-1234") {
		t.Error("expected 11-digit mobile to validate")
	}
	if !Phone("6233331234") {
		t.Error("expected 10-digit landline to validate")
	}
	if Phone("999") {
		t.Error("expected short number to fail")
	}
}

func TestCEPAndFormats(t *testing.T) {
	if !CEP("74000-000") {
		t.Error("expected formatted CEP to validate")
	}
	if CEP("1234") {
		t.Error("expected short CEP to fail")
	}
	if got := FormatCPF("52998224725"); got != "529.982.247-25" {
		t.Errorf("FormatCPF = %q", got)
	}
	if got := FormatCEP("74000000"); got != "74000-000" {
		t.Errorf("FormatCEP = %q", got)
	}
	if got := FormatCEP("xx"); got != "xx" {
		t.Errorf("FormatCEP should pass through invalid input, got %q", got)
	}
}

func TestPassword(t *testing.T) {
	if Password("12345") {
		t.Error("five chars should fail")
	}
	if !Password("123456") {
		t.Error("six chars should pass")
	}
}
