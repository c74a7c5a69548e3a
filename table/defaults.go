// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package table

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/apache/evolve-go"
)

// Evaluator folds a default value expression into a literal of the
// column type. The result is SQL literal text, or NULL.
type Evaluator interface {
	Evaluate(expr string, typ evolve.Type) (string, error)
}

// LiteralEvaluator accepts constant expressions only: NULL, TRUE and
// FALSE, numbers with an optional type suffix (Y, S, L, F, D or BD),
// quoted strings, typed literals such as DATE '2024-01-31' or X'CAFE',
// unary signs, parentheses and CAST(expr AS type).
//
// A literal is coerced to the column type only within its family, so
// 1 is a valid default for a long or decimal column but '1' is not.
// Strings convert to other types through an explicit CAST.
type LiteralEvaluator struct{}

func (LiteralEvaluator) Evaluate(expr string, typ evolve.Type) (string, error) {
	lit, err := ParseLiteral(expr)
	if err != nil {
		return "", err
	}

	if lit == nil {
		return "NULL", nil
	}

	if family(lit.Type()) != family(typ) {
		return "", fmt.Errorf("%w: %s of type %s cannot be used as a default for %s",
			evolve.ErrInvalidDefault, expr, lit.Type(), typ)
	}

	out, err := lit.To(typ)
	if err != nil {
		return "", fmt.Errorf("%w: %w", evolve.ErrInvalidDefault, err)
	}

	return evolve.FormatSQL(out), nil
}

type typeFamily int

const (
	familyOther typeFamily = iota
	familyNumeric
	familyBoolean
	familyString
	familyDatetime
	familyTime
	familyBinary
	familyUUID
)

func family(t evolve.Type) typeFamily {
	switch t.(type) {
	case evolve.Int8Type, evolve.Int16Type, evolve.Int32Type, evolve.Int64Type,
		evolve.Float32Type, evolve.Float64Type, evolve.DecimalType:
		return familyNumeric
	case evolve.BooleanType:
		return familyBoolean
	case evolve.StringType:
		return familyString
	case evolve.DateType, evolve.TimestampType, evolve.TimestampTzType,
		evolve.TimestampNsType, evolve.TimestampTzNsType:
		return familyDatetime
	case evolve.TimeType:
		return familyTime
	case evolve.BinaryType, evolve.FixedType:
		return familyBinary
	case evolve.UUIDType:
		return familyUUID
	}

	return familyOther
}

// withDefault validates expr against f and stores it together with its
// folded value. Both defaults are always set together.
func (p Planner) withDefault(path evolve.FieldPath, f evolve.NestedField, expr string) (evolve.NestedField, error) {
	if _, ok := f.Type.(evolve.PrimitiveType); !ok {
		return f, fmt.Errorf("%w: column %s has type %s, only primitive columns can have a default",
			evolve.ErrInvalidDefault, path, f.Type.Type())
	}

	if strings.TrimSpace(expr) == "" {
		return f, fmt.Errorf("%w: empty default for column %s", evolve.ErrInvalidDefault, path)
	}

	folded, err := p.evaluator.Evaluate(expr, f.Type)
	if err != nil {
		if errors.Is(err, evolve.ErrInvalidDefault) {
			return f, fmt.Errorf("column %s: %w", path, err)
		}

		return f, fmt.Errorf("%w: column %s: %w", evolve.ErrInvalidDefault, path, err)
	}

	if f.Required && strings.EqualFold(folded, "NULL") {
		return f, fmt.Errorf("%w: column %s is NOT NULL and cannot default to NULL",
			evolve.ErrInvalidDefault, path)
	}

	f.CurrentDefault, f.ExistenceDefault = evolve.Ptr(expr), evolve.Ptr(folded)

	return f, nil
}

// ParseLiteral evaluates a constant expression. A nil literal stands for
// NULL.
func ParseLiteral(expr string) (evolve.Literal, error) {
	p := &literalParser{src: []rune(expr)}
	lit, err := p.expr()
	if err != nil {
		return nil, err
	}

	p.skipSpace()
	if !p.done() {
		return nil, p.errorf("unexpected %q", string(p.src[p.pos:]))
	}

	return lit, nil
}

type literalParser struct {
	src []rune
	pos int
}

func (p *literalParser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s at offset %d in %q", evolve.ErrInvalidDefault,
		fmt.Sprintf(format, args...), p.pos, string(p.src))
}

func (p *literalParser) done() bool { return p.pos >= len(p.src) }

func (p *literalParser) skipSpace() {
	for !p.done() && unicode.IsSpace(p.src[p.pos]) {
		p.pos++
	}
}

func (p *literalParser) peek() rune {
	if p.done() {
		return 0
	}

	return p.src[p.pos]
}

func (p *literalParser) consume(r rune) bool {
	p.skipSpace()
	if p.peek() == r {
		p.pos++

		return true
	}

	return false
}

func (p *literalParser) word() string {
	p.skipSpace()

	return p.ident()
}

func (p *literalParser) ident() string {
	start := p.pos
	for !p.done() && (p.src[p.pos] == '_' || unicode.IsLetter(p.src[p.pos]) || unicode.IsDigit(p.src[p.pos])) {
		p.pos++
	}

	return string(p.src[start:p.pos])
}

func (p *literalParser) expr() (evolve.Literal, error) {
	p.skipSpace()
	switch {
	case p.done():
		return nil, p.errorf("expected an expression")
	case p.peek() == '-' || p.peek() == '+':
		neg := p.peek() == '-'
		p.pos++
		p.skipSpace()
		if isDigit(p.peek()) || p.peek() == '.' {
			return p.number(neg)
		}

		lit, err := p.expr()
		if err != nil || !neg {
			return lit, err
		}

		return negate(lit)
	case p.peek() == '(':
		p.pos++
		lit, err := p.expr()
		if err != nil {
			return nil, err
		}

		if !p.consume(')') {
			return nil, p.errorf("expected )")
		}

		return lit, nil
	case isDigit(p.peek()) || p.peek() == '.':
		return p.number(false)
	case p.peek() == '\'' || p.peek() == '"':
		s, err := p.quoted()
		if err != nil {
			return nil, err
		}

		return evolve.StringLiteral(s), nil
	}

	start := p.pos
	kw := strings.ToUpper(p.word())
	switch kw {
	case "NULL":
		return nil, nil
	case "TRUE":
		return evolve.BoolLiteral(true), nil
	case "FALSE":
		return evolve.BoolLiteral(false), nil
	case "CAST":
		return p.cast()
	case "DATE":
		return p.typed(evolve.PrimitiveTypes.Date)
	case "TIME":
		return p.typed(evolve.PrimitiveTypes.Time)
	case "TIMESTAMP", "TIMESTAMP_NTZ":
		return p.typed(evolve.PrimitiveTypes.Timestamp)
	case "TIMESTAMP_LTZ":
		return p.typed(evolve.PrimitiveTypes.TimestampTz)
	case "X":
		return p.hexBytes()
	}

	p.pos = start

	return nil, p.errorf("not a constant expression")
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func (p *literalParser) quoted() (string, error) {
	quote := p.src[p.pos]
	p.pos++

	var b strings.Builder
	for !p.done() {
		r := p.src[p.pos]
		p.pos++
		switch {
		case r == quote && p.peek() == quote:
			b.WriteRune(quote)
			p.pos++
		case r == quote:
			return b.String(), nil
		case r == '\\' && !p.done():
			b.WriteRune(p.src[p.pos])
			p.pos++
		default:
			b.WriteRune(r)
		}
	}

	return "", p.errorf("unterminated string")
}

func (p *literalParser) typed(typ evolve.Type) (evolve.Literal, error) {
	p.skipSpace()
	if p.peek() != '\'' && p.peek() != '"' {
		return nil, p.errorf("expected a quoted %s value", typ)
	}

	s, err := p.quoted()
	if err != nil {
		return nil, err
	}

	lit, err := evolve.StringLiteral(s).To(typ)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", evolve.ErrInvalidDefault, err)
	}

	return lit, nil
}

func (p *literalParser) hexBytes() (evolve.Literal, error) {
	if p.peek() != '\'' && p.peek() != '"' {
		return nil, p.errorf("expected a quoted hex string")
	}

	s, err := p.quoted()
	if err != nil {
		return nil, err
	}

	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid hex literal %q: %w", evolve.ErrInvalidDefault, s, err)
	}

	return evolve.BinaryLiteral(b), nil
}

func (p *literalParser) cast() (evolve.Literal, error) {
	if !p.consume('(') {
		return nil, p.errorf("expected ( after CAST")
	}

	lit, err := p.expr()
	if err != nil {
		return nil, err
	}

	if kw := strings.ToUpper(p.word()); kw != "AS" {
		return nil, p.errorf("expected AS in CAST")
	}

	// the target type runs up to the closing paren at depth zero
	start, depth := p.pos, 0
	for ; !p.done(); p.pos++ {
		switch p.src[p.pos] {
		case '(':
			depth++
		case ')':
			depth--
		}

		if depth < 0 {
			break
		}
	}

	if p.done() {
		return nil, p.errorf("expected ) to close CAST")
	}

	typ, err := evolve.ParseType(string(p.src[start:p.pos]))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", evolve.ErrInvalidDefault, err)
	}
	p.pos++

	if lit == nil {
		return nil, nil
	}

	out, err := lit.To(typ)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", evolve.ErrInvalidDefault, err)
	}

	return out, nil
}

func (p *literalParser) number(neg bool) (evolve.Literal, error) {
	start := p.pos
	for !p.done() && (isDigit(p.peek()) || p.peek() == '.') {
		p.pos++
	}

	exponent := false
	if r := p.peek(); r == 'e' || r == 'E' {
		exponent = true
		p.pos++
		if r := p.peek(); r == '+' || r == '-' {
			p.pos++
		}

		for !p.done() && isDigit(p.peek()) {
			p.pos++
		}
	}

	text := string(p.src[start:p.pos])
	suffix := strings.ToUpper(p.ident())
	if neg {
		text = "-" + text
	}

	if strings.Count(text, ".") > 1 || strings.Trim(text, "-.") == "" {
		return nil, p.errorf("invalid number %q", text)
	}

	integral := !exponent && !strings.Contains(text, ".")
	parseInt := func(bits int) (int64, error) {
		if !integral {
			return 0, p.errorf("%s%s must be an integer", text, suffix)
		}

		v, err := strconv.ParseInt(text, 10, bits)
		if err != nil {
			return 0, p.errorf("%s%s out of range", text, suffix)
		}

		return v, nil
	}

	switch suffix {
	case "Y":
		v, err := parseInt(8)

		return evolve.Int8Literal(v), err
	case "S":
		v, err := parseInt(16)

		return evolve.Int16Literal(v), err
	case "L":
		v, err := parseInt(64)

		return evolve.Int64Literal(v), err
	case "F", "D":
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, p.errorf("invalid number %q", text)
		}

		if suffix == "F" {
			if math.Abs(v) > math.MaxFloat32 {
				return nil, p.errorf("%sF out of range for float", text)
			}

			return evolve.Float32Literal(v), nil
		}

		return evolve.Float64Literal(v), nil
	case "BD":
		if exponent {
			return nil, p.errorf("exponents are not allowed in a decimal literal")
		}

		d, err := evolve.ParseDecimal(text)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", evolve.ErrInvalidDefault, err)
		}

		return d, nil
	case "":
	default:
		return nil, p.errorf("unknown numeric suffix %q", suffix)
	}

	switch {
	case exponent:
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, p.errorf("invalid number %q", text)
		}

		return evolve.Float64Literal(v), nil
	case integral:
		if v, err := strconv.ParseInt(text, 10, 32); err == nil {
			return evolve.Int32Literal(v), nil
		}

		if v, err := strconv.ParseInt(text, 10, 64); err == nil {
			return evolve.Int64Literal(v), nil
		}
	}

	d, err := evolve.ParseDecimal(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", evolve.ErrInvalidDefault, err)
	}

	return d, nil
}

func negate(lit evolve.Literal) (evolve.Literal, error) {
	switch v := lit.(type) {
	case nil:
		return nil, nil
	case evolve.Int8Literal:
		if v == math.MinInt8 {
			return nil, fmt.Errorf("%w: -(%d) overflows byte", evolve.ErrInvalidDefault, v)
		}

		return -v, nil
	case evolve.Int16Literal:
		if v == math.MinInt16 {
			return nil, fmt.Errorf("%w: -(%d) overflows short", evolve.ErrInvalidDefault, v)
		}

		return -v, nil
	case evolve.Int32Literal:
		if v == math.MinInt32 {
			return evolve.Int64Literal(-int64(v)), nil
		}

		return -v, nil
	case evolve.Int64Literal:
		if v == math.MinInt64 {
			return nil, fmt.Errorf("%w: -(%d) overflows long", evolve.ErrInvalidDefault, v)
		}

		return -v, nil
	case evolve.Float32Literal:
		return -v, nil
	case evolve.Float64Literal:
		return -v, nil
	case evolve.DecimalLiteral:
		return evolve.DecimalLiteral{Val: v.Val.Negate(), Scale: v.Scale}, nil
	}

	return nil, fmt.Errorf("%w: cannot negate %s value %s", evolve.ErrInvalidDefault, lit.Type(), lit)
}
