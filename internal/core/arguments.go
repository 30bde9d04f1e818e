package core

import (
	"slices"
	"strconv"
	"strings"
	"unicode"
)

// ParseState is the argument cursor: the text still to parse and the pieces
// consumed so far.
type ParseState struct {
	Remaining string
	Consumed  []string
}

// Argument is a declared command argument. Parse tries to take a value from the
// front of st.Remaining. It must not modify st; on failure the returned state is
// ignored.
type Argument interface {
	Identifier() string
	Name() string
	Required() bool
	Parse(st ParseState) (any, ParseState, bool)
}

// Args are parsed argument values keyed by argument identifier.
type Args map[string]any

// String returns a string value.
func (a Args) String(id string) (string, bool) {
	s, ok := a[id].(string)
	return s, ok
}

// Int returns an int value.
func (a Args) Int(id string) (int, bool) {
	n, ok := a[id].(int)
	return n, ok
}

// Bool returns a bool value.
func (a Args) Bool(id string) (bool, bool) {
	b, ok := a[id].(bool)
	return b, ok
}

// Has reports whether id produced a value.
func (a Args) Has(id string) bool {
	_, ok := a[id]
	return ok
}

// ParseArguments threads one cursor through defs in order. A definition that
// produces no value leaves the cursor untouched. The first required definition
// without a value stops parsing and is returned.
func ParseArguments(defs []Argument, text string) (Args, Argument) {
	parsed := make(Args, len(defs))
	st := ParseState{Remaining: text}
	for _, def := range defs {
		st.Remaining = strings.TrimLeftFunc(st.Remaining, unicode.IsSpace)
		value, next, ok := def.Parse(st)
		if !ok {
			if def.Required() {
				return parsed, def
			}
			continue
		}
		parsed[def.Identifier()] = value
		st = next
	}
	return parsed, nil
}

// consumeFunc returns the value found at the start of text and how many bytes
// it used.
type consumeFunc func(text string) (value any, n int, ok bool)

// Arg is an Argument built from a consume function. Built-in constructors return
// required arguments; call Optional to relax that.
type Arg struct {
	id       string
	name     string
	required bool
	consume  consumeFunc
}

func newArg(id, name string, consume consumeFunc) *Arg {
	return &Arg{id: id, name: name, required: true, consume: consume}
}

// Optional returns a copy of the argument that may be absent.
func (a *Arg) Optional() *Arg {
	c := *a
	c.required = false
	return &c
}

func (a *Arg) Identifier() string { return a.id }
func (a *Arg) Name() string       { return a.name }
func (a *Arg) Required() bool     { return a.required }

func (a *Arg) Parse(st ParseState) (any, ParseState, bool) {
	value, n, ok := a.consume(st.Remaining)
	if !ok || n <= 0 || n > len(st.Remaining) {
		return nil, st, false
	}
	return value, ParseState{
		Remaining: st.Remaining[n:],
		Consumed:  append(slices.Clone(st.Consumed), st.Remaining[:n]),
	}, true
}

// firstToken returns the run of non-space characters at the start of text.
func firstToken(text string) string {
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		return text[:i]
	}
	return text
}

func tokenArg(id, name string, convert func(tok string) (any, bool)) *Arg {
	return newArg(id, name, func(text string) (any, int, bool) {
		tok := firstToken(text)
		if tok == "" {
			return nil, 0, false
		}
		v, ok := convert(tok)
		return v, len(tok), ok
	})
}

// Word takes a single token.
func Word(id, name string) *Arg {
	return tokenArg(id, name, func(tok string) (any, bool) { return tok, true })
}

// Rest takes all remaining text, trailing space trimmed.
func Rest(id, name string) *Arg {
	return newArg(id, name, func(text string) (any, int, bool) {
		trimmed := strings.TrimRightFunc(text, unicode.IsSpace)
		if trimmed == "" {
			return nil, 0, false
		}
		return trimmed, len(text), true
	})
}

// Int takes a base-10 integer token.
func Int(id, name string) *Arg {
	return tokenArg(id, name, func(tok string) (any, bool) {
		n, err := strconv.Atoi(tok)
		return n, err == nil
	})
}

// Bool takes true/false, yes/no, on/off or 1/0.
func Bool(id, name string) *Arg {
	return tokenArg(id, name, func(tok string) (any, bool) {
		switch strings.ToLower(tok) {
		case "true", "yes", "on", "1":
			return true, true
		case "false", "no", "off", "0":
			return false, true
		}
		return nil, false
	})
}

// Choice takes one of options, case-insensitively, and yields the option as declared.
func Choice(id, name string, options ...string) *Arg {
	return tokenArg(id, name, func(tok string) (any, bool) {
		for _, opt := range options {
			if strings.EqualFold(tok, opt) {
				return opt, true
			}
		}
		return nil, false
	})
}

// Mention takes a user mention (<@id> or <@!id>) or a bare numeric ID and
// yields the ID.
func Mention(id, name string) *Arg {
	return tokenArg(id, name, func(tok string) (any, bool) {
		return snowflake(tok, "<@!", "<@")
	})
}

// Channel takes a channel mention (<#id>) or a bare numeric ID and yields the ID.
func Channel(id, name string) *Arg {
	return tokenArg(id, name, func(tok string) (any, bool) {
		return snowflake(tok, "<#")
	})
}

func snowflake(tok string, prefixes ...string) (any, bool) {
	inner := tok
	for _, p := range prefixes {
		if strings.HasPrefix(tok, p) && strings.HasSuffix(tok, ">") {
			inner = tok[len(p) : len(tok)-1]
			break
		}
	}
	if inner == "" {
		return nil, false
	}
	for _, r := range inner {
		if r < '0' || r > '9' {
			return nil, false
		}
	}
	return inner, true
}
