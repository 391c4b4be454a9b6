package validation

import (
	"strings"
)

// StrengthPolicy valida la fortaleza de un valor secreto (clave de firma, API
// key, seed). Es una función pura, independiente del storage: se aplica igual a
// secretos generados que a secretos provistos por un operador.
type StrengthPolicy struct {
	// MinLength en bytes. Default razonable: 16.
	MinLength int

	// MinLengthPerAlg exige un mínimo mayor para secretos atados a un
	// algoritmo (ej: "HS256" => 32).
	MinLengthPerAlg map[string]int
}

// DefaultStrengthPolicy cubre los secretos que gestiona el core.
func DefaultStrengthPolicy() StrengthPolicy {
	return StrengthPolicy{
		MinLength: 16,
		MinLengthPerAlg: map[string]int{
			"HS256": 32,
			"HS384": 48,
			"HS512": 64,
		},
	}
}

// Valores placeholder conocidos que jamás deben aceptarse como secreto.
// Comparación case-insensitive.
var placeholderValues = map[string]struct{}{
	"password":         {},
	"changeme":         {},
	"change-me":        {},
	"secret":           {},
	"secretkey":        {},
	"secret-key":       {},
	"supersecret":      {},
	"super-secret-key": {},
	"default":          {},
	"test":             {},
	"testing":          {},
	"example":          {},
	"admin":            {},
	"letmein":          {},
	"qwerty":           {},
	"123456":           {},
	"12345678":         {},
	"your-secret-here": {},
	"insert-key-here":  {},
}

// Check valida un valor secreto. alg puede ser "" para secretos no atados a un
// algoritmo. Retorna ok y la lista de razones de rechazo (estables, para logs).
func (p StrengthPolicy) Check(value, alg string) (ok bool, reasons []string) {
	min := p.MinLength
	if min <= 0 {
		min = 16
	}
	if alg != "" {
		if m, found := p.MinLengthPerAlg[strings.ToUpper(alg)]; found && m > min {
			min = m
		}
	}

	if len(value) < min {
		reasons = append(reasons, "too_short")
	}
	if _, found := placeholderValues[strings.ToLower(strings.TrimSpace(value))]; found {
		reasons = append(reasons, "placeholder")
	}
	if isRepeated(value) {
		reasons = append(reasons, "repeated_chars")
	}
	if isSequential(value) {
		reasons = append(reasons, "sequential")
	}
	return len(reasons) == 0, reasons
}

// isRepeated detecta valores de un solo carácter repetido ("aaaa...").
func isRepeated(s string) bool {
	if len(s) < 2 {
		return false
	}
	first := s[0]
	for i := 1; i < len(s); i++ {
		if s[i] != first {
			return false
		}
	}
	return true
}

// isSequential detecta runs ascendentes o descendentes de bytes contiguos
// ("abcdef...", "987654..."). Sólo se rechaza si el run cubre todo el valor.
func isSequential(s string) bool {
	if len(s) < 4 {
		return false
	}
	asc, desc := true, true
	for i := 1; i < len(s); i++ {
		if s[i] != s[i-1]+1 {
			asc = false
		}
		if s[i] != s[i-1]-1 {
			desc = false
		}
		if !asc && !desc {
			return false
		}
	}
	return asc || desc
}
