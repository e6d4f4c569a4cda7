package normalize

import (
	"fmt"
	"strings"
	"unicode"
)

// ParseLiteral parses a JSON or Python style literal made of lists, tuples, sets, dicts,
// quoted strings, numbers, booleans and None/null.
func ParseLiteral(s string) (Value, error) {
	p := &literalParser{src: []rune(s)}
	v, err := p.value()
	if err != nil {
		return Value{}, err
	}
	p.skipSpace()
	if !p.eof() {
		return Value{}, fmt.Errorf("unexpected %q at offset %d", p.src[p.pos], p.pos)
	}
	return v, nil
}

type literalParser struct {
	src []rune
	pos int
}

func (p *literalParser) eof() bool { return p.pos >= len(p.src) }

func (p *literalParser) peek() rune {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *literalParser) skipSpace() {
	for !p.eof() && unicode.IsSpace(p.src[p.pos]) {
		p.pos++
	}
}

func (p *literalParser) value() (Value, error) {
	p.skipSpace()
	if p.eof() {
		return Value{}, fmt.Errorf("unexpected end of literal")
	}

	switch r := p.peek(); {
	case r == '[':
		return p.sequence('[', ']')
	case r == '(':
		return p.sequence('(', ')')
	case r == '{':
		return p.braces()
	case r == '\'' || r == '"':
		s, err := p.quoted()
		if err != nil {
			return Value{}, err
		}
		return Scalar(s), nil
	default:
		return p.bare()
	}
}

func (p *literalParser) sequence(open, closing rune) (Value, error) {
	p.pos++ // open
	var items []Value
	trailingComma := false
	for {
		p.skipSpace()
		if p.peek() == closing {
			p.pos++
			break
		}
		item, err := p.value()
		if err != nil {
			return Value{}, err
		}
		items = append(items, item)

		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
			trailingComma = true
			continue
		case closing:
			trailingComma = false
			continue
		default:
			return Value{}, fmt.Errorf("expected ',' or %q at offset %d", closing, p.pos)
		}
	}

	// A parenthesized single item without a comma is a grouped expression, not a tuple.
	if open == '(' && len(items) == 1 && !trailingComma {
		return items[0], nil
	}
	return List(items...), nil
}

func (p *literalParser) braces() (Value, error) {
	p.pos++ // {
	p.skipSpace()
	if p.peek() == '}' {
		p.pos++
		return Record(), nil
	}

	var (
		fields []Field
		items  []Value
		isDict bool
		first  = true
	)
	for {
		p.skipSpace()
		if p.peek() == '}' {
			p.pos++
			break
		}
		key, err := p.value()
		if err != nil {
			return Value{}, err
		}
		p.skipSpace()

		if first {
			isDict = p.peek() == ':'
			first = false
		}

		if isDict {
			if p.peek() != ':' {
				return Value{}, fmt.Errorf("expected ':' at offset %d", p.pos)
			}
			p.pos++
			val, err := p.value()
			if err != nil {
				return Value{}, err
			}
			fields = append(fields, Field{Key: key.String(), Value: val})
		} else {
			items = append(items, key)
		}

		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case '}':
		default:
			return Value{}, fmt.Errorf("expected ',' or '}' at offset %d", p.pos)
		}
	}

	if isDict {
		return Record(fields...), nil
	}
	return List(items...), nil
}

func (p *literalParser) quoted() (string, error) {
	quote := p.src[p.pos]
	p.pos++
	var b strings.Builder
	for !p.eof() {
		r := p.src[p.pos]
		p.pos++
		switch r {
		case quote:
			return b.String(), nil
		case '\\':
			if p.eof() {
				return "", fmt.Errorf("unterminated escape")
			}
			esc := p.src[p.pos]
			p.pos++
			switch esc {
			case 'n':
				b.WriteRune('\n')
			case 't':
				b.WriteRune('\t')
			default:
				b.WriteRune(esc)
			}
		default:
			b.WriteRune(r)
		}
	}
	return "", fmt.Errorf("unterminated string")
}

func (p *literalParser) bare() (Value, error) {
	start := p.pos
	for !p.eof() {
		r := p.src[p.pos]
		if r == ',' || r == ']' || r == ')' || r == '}' || r == ':' || unicode.IsSpace(r) {
			break
		}
		p.pos++
	}
	word := string(p.src[start:p.pos])

	switch word {
	case "None", "null":
		return Value{}, nil
	case "True", "true":
		return Scalar("true"), nil
	case "False", "false":
		return Scalar("false"), nil
	}

	if word == "" || !isNumber(word) {
		return Value{}, fmt.Errorf("unexpected token %q at offset %d", word, start)
	}
	return Scalar(word), nil
}

func isNumber(s string) bool {
	digits := 0
	for i, r := range s {
		switch {
		case unicode.IsDigit(r):
			digits++
		case (r == '-' || r == '+') && i == 0:
		case r == '.' || r == 'e' || r == 'E':
		default:
			return false
		}
	}
	return digits > 0
}
