package stylemap

import (
	"testing"

	yaml "gopkg.in/yaml.v3"
)

func TestRules_Register(t *testing.T) {
	r := NewRules()
	r.Register(KindParagraphs, "Callout", func(in RuleInput) (string, error) {
		return "<aside>" + in.Text + "</aside>", nil
	})

	rule, ok := r.For(KindParagraphs, "Callout")
	if !ok {
		t.Fatal("rule not found")
	}
	out, err := rule(RuleInput{Text: "x"})
	if err != nil || out != "<aside>x</aside>" {
		t.Errorf("rule() = %q, %v", out, err)
	}
	if _, ok := r.For(KindTables, "Callout"); ok {
		t.Error("rule must be bound to its kind")
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestRules_RegisterTemplate(t *testing.T) {
	r := NewRules()
	if err := r.RegisterTemplate(KindParagraphs, "Warning", `<div class="{{ .StyleID | lower }}">{{ .HTML }} {{ .Text }}</div>`); err != nil {
		t.Fatalf("RegisterTemplate() error = %v", err)
	}
	rule, ok := r.For(KindParagraphs, "Warning")
	if !ok {
		t.Fatal("rule not found")
	}
	out, err := rule(RuleInput{StyleID: "Warning", Text: "a < b", HTML: "<strong>a</strong>"})
	if err != nil {
		t.Fatalf("rule() error = %v", err)
	}
	want := `<div class="warning"><strong>a</strong> a &lt; b</div>`
	if out != want {
		t.Errorf("rule() = %q, want %q", out, want)
	}
}

func TestRules_RegisterTemplate_Invalid(t *testing.T) {
	if err := NewRules().RegisterTemplate(KindParagraphs, "X", "{{ .Text "); err == nil {
		t.Error("expected template parse error")
	}
}

func TestRules_Nil(t *testing.T) {
	var r *Rules
	if _, ok := r.For(KindParagraphs, "x"); ok {
		t.Error("nil rules must not return rule")
	}
}

func TestKind_Unmarshal(t *testing.T) {
	var rules map[Kind]map[string]string
	if err := yaml.Unmarshal([]byte("paragraphs:\n  A: x\n"), &rules); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if rules[KindParagraphs]["A"] != "x" {
		t.Errorf("unexpected result %v", rules)
	}
	if err := yaml.Unmarshal([]byte("images:\n  A: x\n"), &rules); err == nil {
		t.Error("expected error for unknown kind")
	}
}
