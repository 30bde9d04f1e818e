package core

import "testing"

func TestBuiltinArguments(t *testing.T) {
	tests := []struct {
		name      string
		arg       Argument
		input     string
		want      any
		ok        bool
		remaining string
	}{
		{"word", Word("w", "word"), "hello world", "hello", true, " world"},
		{"word empty", Word("w", "word"), "", nil, false, ""},
		{"rest", Rest("r", "rest"), "a b  c  ", "a b  c", true, ""},
		{"rest blank", Rest("r", "rest"), "   ", nil, false, "   "},
		{"int", Int("n", "number"), "42 more", 42, true, " more"},
		{"int invalid", Int("n", "number"), "4x2", nil, false, "4x2"},
		{"bool yes", Bool("b", "flag"), "yes", true, true, ""},
		{"bool off", Bool("b", "flag"), "OFF x", false, true, " x"},
		{"bool invalid", Bool("b", "flag"), "maybe", nil, false, "maybe"},
		{"choice", Choice("c", "action", "set", "reset"), "RESET x", "reset", true, " x"},
		{"choice miss", Choice("c", "action", "set"), "get", nil, false, "get"},
		{"mention", Mention("u", "user"), "<@!123> hi", "123", true, " hi"},
		{"mention plain", Mention("u", "user"), "<@456>", "456", true, ""},
		{"mention bare id", Mention("u", "user"), "789", "789", true, ""},
		{"mention role", Mention("u", "user"), "<@&1>", nil, false, "<@&1>"},
		{"channel", Channel("c", "channel"), "<#55>", "55", true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := ParseState{Remaining: tt.input}
			got, next, ok := tt.arg.Parse(st)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("value = %#v, want %#v", got, tt.want)
			}
			if next.Remaining != tt.remaining {
				t.Errorf("remaining = %q, want %q", next.Remaining, tt.remaining)
			}
		})
	}
}

func TestParseDoesNotMutateState(t *testing.T) {
	st := ParseState{Remaining: "a b", Consumed: []string{"x"}}
	_, next, ok := Word("w", "w").Parse(st)
	if !ok {
		t.Fatal("expected parse")
	}
	if len(st.Consumed) != 1 || st.Remaining != "a b" {
		t.Errorf("input state changed: %+v", st)
	}
	if len(next.Consumed) != 2 || next.Consumed[1] != "a" {
		t.Errorf("next.Consumed = %v", next.Consumed)
	}
}

func TestParseArguments(t *testing.T) {
	defs := []Argument{
		Word("module", "module"),
		Int("count", "count").Optional(),
		Rest("text", "text").Optional(),
	}

	t.Run("all present", func(t *testing.T) {
		parsed, missing := ParseArguments(defs, "fun 3 hello  there")
		if missing != nil {
			t.Fatalf("missing = %s", missing.Name())
		}
		if v, _ := parsed.String("module"); v != "fun" {
			t.Errorf("module = %q", v)
		}
		if v, _ := parsed.Int("count"); v != 3 {
			t.Errorf("count = %d", v)
		}
		if v, _ := parsed.String("text"); v != "hello  there" {
			t.Errorf("text = %q", v)
		}
	})

	t.Run("optional failure leaves cursor", func(t *testing.T) {
		parsed, missing := ParseArguments(defs, "fun hello")
		if missing != nil {
			t.Fatal("unexpected missing argument")
		}
		if parsed.Has("count") {
			t.Error("count should be absent")
		}
		if v, _ := parsed.String("text"); v != "hello" {
			t.Errorf("text = %q", v)
		}
	})

	t.Run("required missing", func(t *testing.T) {
		_, missing := ParseArguments(defs, "   ")
		if missing == nil || missing.Identifier() != "module" {
			t.Fatalf("missing = %v", missing)
		}
	})
}

func TestArgsAccessors(t *testing.T) {
	a := Args{"s": "x", "n": 1, "b": true}
	if _, ok := a.Int("s"); ok {
		t.Error("Int on string should fail")
	}
	if v, ok := a.Bool("b"); !ok || !v {
		t.Error("Bool failed")
	}
	if a.Has("missing") {
		t.Error("Has(missing) = true")
	}
}
