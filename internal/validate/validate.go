// Package validate holds the local input checks performed before any
// registration or login call reaches the scheduling backend.
package validate

import (
	"regexp"
	"strings"
	"time"
)

var (
	emailPattern  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	brDatePattern = regexp.MustCompile(`^(\d{2})/(\d{2})/(\d{4})$`)
	// Go's regexp (RE2) has no backreferences, so the "same digit 11
	// times" check is spelled out as an alternation.
	repeatedDigits  = regexp.MustCompile(`^(0{11}|1{11}|2{11}|3{11}|4{11}|5{11}|6{11}|7{11}|8{11}|9{11})$`)
	nonDigitPattern = regexp.MustCompile(`[^\d]`)
)

// Digits strips everything that is not a decimal digit.
func Digits(s string) string {
	return nonDigitPattern.ReplaceAllString(s, "")
}

// CPF validates a Brazilian CPF, including both check digits.
func CPF(cpf string) bool {
	cpf = Digits(cpf)

	if len(cpf) != 11 {
		return false
	}
	if repeatedDigits.MatchString(cpf) {
		return false
	}

	sum := 0
	for i := 1; i <= 9; i++ {
		sum += int(cpf[i-1]-'0') * (11 - i)
	}
	rest := (sum * 10) % 11
	if rest == 10 || rest == 11 {
		rest = 0
	}
	if rest != int(cpf[9]-'0') {
		return false
	}

	sum = 0
	for i := 1; i <= 10; i++ {
		sum += int(cpf[i-1]-'0') * (12 - i)
	}
	rest = (sum * 10) % 11
	if rest == 10 || rest == 11 {
		rest = 0
	}
	return rest == int(cpf[10]-'0')
}

// Email checks the basic shape of an email address.
func Email(email string) bool {
	return emailPattern.MatchString(email)
}

// BRDate validates a date in DD/MM/AAAA form, rejecting impossible days.
func BRDate(date string) bool {
	m := brDatePattern.FindStringSubmatch(date)
	if m == nil {
		return false
	}
	parsed, err := time.Parse("02/01/2006", date)
	if err != nil {
		return false
	}
	return parsed.Format("02/01/2006") == date
}

// BRDateToISO converts DD/MM/AAAA to AAAA-MM-DD. The input is assumed valid.
func BRDateToISO(date string) string {
	parts := strings.Split(date, "/")
	if len(parts) != 3 {
		return date
	}
	return parts[2] + "-" + parts[1] + "-" + parts[0]
}

// Phone accepts Brazilian landline and mobile numbers (10 or 11 digits).
func Phone(phone string) bool {
	d := Digits(phone)
	return len(d) >= 10 && len(d) <= 11
}

// CEP checks a Brazilian postal code (8 digits).
func CEP(cep string) bool {
	return len(Digits(cep)) == 8
}

// Password enforces the minimum length accepted by the backend.
func Password(password string) bool {
	return len(password) >= 6
}

// FormatCPF renders 11 digits as 000.000.000-00.
func FormatCPF(cpf string) string {
	d := Digits(cpf)
	if len(d) != 11 {
		return cpf
	}
	return d[0:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:11]
}

// FormatCEP renders 8 digits as 00000-000.
func FormatCEP(cep string) string {
	d := Digits(cep)
	if len(d) != 8 {
		return cep
	}
	return d[0:5] + "-" + d[5:8]
}
