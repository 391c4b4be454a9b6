package validation_test

import (
	"strings"
	"testing"

	"github.com/dropDatabas3/trustcore/internal/validation"
)

func TestCheck_AcceptsStrongValues(t *testing.T) {
	p := validation.DefaultStrengthPolicy()

	valids := []string{
		"kJ8#mP2$vN9@qR5!wX7zL0&bT4^yH6*d",
		strings.Repeat("x9Qf", 8),
	}
	for _, v := range valids {
		if ok, reasons := p.Check(v, ""); !ok {
			t.Fatalf("expected valid %q, rejected: %v", v, reasons)
		}
	}
}

func TestCheck_RejectsWithStableReasons(t *testing.T) {
	p := validation.DefaultStrengthPolicy()

	cases := []struct {
		value  string
		alg    string
		reason string
	}{
		{"short", "", "too_short"},
		{"changeme", "", "placeholder"},
		{"ChangeMe", "", "placeholder"}, // case-insensitive
		{strings.Repeat("a", 20), "", "repeated_chars"},
		{"abcdefghijklmnopqrst", "", "sequential"},
		{"tsrqponmlkjihgfedcba", "", "sequential"}, // descendente
	}
	for _, c := range cases {
		ok, reasons := p.Check(c.value, c.alg)
		if ok {
			t.Fatalf("expected reject for %q", c.value)
		}
		found := false
		for _, r := range reasons {
			if r == c.reason {
				found = true
			}
		}
		if !found {
			t.Fatalf("value %q: expected reason %q, got %v", c.value, c.reason, reasons)
		}
	}
}

func TestCheck_PerAlgorithmMinimum(t *testing.T) {
	p := validation.DefaultStrengthPolicy()

	// 20 chars: suficiente sin alg, corto para HS256 (32)
	v := "x7Qf9mK2pL5wN8bT4yH1"
	if ok, _ := p.Check(v, ""); !ok {
		t.Fatalf("expected %q valid without alg", v)
	}
	if ok, reasons := p.Check(v, "HS256"); ok {
		t.Fatal("expected reject for HS256")
	} else if reasons[0] != "too_short" {
		t.Fatalf("expected too_short, got %v", reasons)
	}

	// alg en minúscula se normaliza
	if ok, _ := p.Check(v, "hs256"); ok {
		t.Fatal("expected alg match to be case-insensitive")
	}

	// HS512 exige 64
	v64 := strings.Repeat("k9Fq", 16)
	if ok, reasons := p.Check(v64, "HS512"); !ok {
		t.Fatalf("expected 64-char value valid for HS512, got %v", reasons)
	}
	if ok, _ := p.Check(v64[:48], "HS512"); ok {
		t.Fatal("expected 48-char value rejected for HS512")
	}
}

func TestCheck_MultipleReasonsAccumulate(t *testing.T) {
	p := validation.DefaultStrengthPolicy()

	// corto Y placeholder
	ok, reasons := p.Check("test", "")
	if ok {
		t.Fatal("expected reject")
	}
	if len(reasons) < 2 {
		t.Fatalf("expected at least two reasons, got %v", reasons)
	}
}

func TestValidSecretName(t *testing.T) {
	valids := []string{"jwt-signing-key", "api.key", "totp_seed", "k1"}
	for _, v := range valids {
		if !validation.ValidSecretName(v) {
			t.Fatalf("expected valid: %q", v)
		}
	}
	invalids := []string{"", "UPPER", "with space", "-lead", "trail-", strings.Repeat("a", 65)}
	for _, v := range invalids {
		if validation.ValidSecretName(v) {
			t.Fatalf("expected invalid: %q", v)
		}
	}
}
