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

package evolve

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ParseType parses a type in DDL form, for example
//
//	long
//	decimal(10, 2)
//	array<struct<x: double, y: double NOT NULL COMMENT 'y axis'>>
//	map<string, array<int>>
//
// Keywords and primitive names are case insensitive. Struct field names
// may be quoted with backticks.
func ParseType(s string) (Type, error) {
	p := &typeParser{src: s}
	if err := p.tokenize(); err != nil {
		return nil, err
	}

	t, err := p.parseType()
	if err != nil {
		return nil, err
	}

	if !p.done() {
		return nil, p.errorf("unexpected %q after type", p.peek().text)
	}

	return t, nil
}

// MustParseType is like ParseType but panics on error. It is intended for
// tests and package level variables.
func MustParseType(s string) Type {
	t, err := ParseType(s)
	if err != nil {
		panic(err)
	}

	return t
}

type tokenKind int

const (
	tokWord tokenKind = iota
	tokQuotedIdent
	tokString
	tokNumber
	tokPunct
)

type token struct {
	kind tokenKind
	text string
}

type typeParser struct {
	src  string
	toks []token
	pos  int
}

func (p *typeParser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidTypeString, fmt.Sprintf(format, args...), p.src)
}

func (p *typeParser) tokenize() error {
	rs := []rune(p.src)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case strings.ContainsRune("<>()[],:", r):
			p.toks = append(p.toks, token{tokPunct, string(r)})
			i++
		case r == '`' || r == '\'':
			var b strings.Builder
			j := i + 1
			for ; j < len(rs); j++ {
				if rs[j] == r {
					if j+1 < len(rs) && rs[j+1] == r {
						b.WriteRune(r)
						j++

						continue
					}

					break
				}
				b.WriteRune(rs[j])
			}
			if j >= len(rs) {
				return p.errorf("unterminated quote")
			}

			kind := tokString
			if r == '`' {
				kind = tokQuotedIdent
			}
			p.toks = append(p.toks, token{kind, b.String()})
			i = j + 1
		case unicode.IsDigit(r):
			j := i
			for j < len(rs) && unicode.IsDigit(rs[j]) {
				j++
			}
			p.toks = append(p.toks, token{tokNumber, string(rs[i:j])})
			i = j
		case r == '_' || unicode.IsLetter(r):
			j := i
			for j < len(rs) && (rs[j] == '_' || unicode.IsLetter(rs[j]) || unicode.IsDigit(rs[j])) {
				j++
			}
			p.toks = append(p.toks, token{tokWord, string(rs[i:j])})
			i = j
		default:
			return p.errorf("unexpected character %q", r)
		}
	}

	return nil
}

func (p *typeParser) done() bool { return p.pos >= len(p.toks) }

func (p *typeParser) peek() token {
	if p.done() {
		return token{kind: tokPunct}
	}

	return p.toks[p.pos]
}

func (p *typeParser) next() token {
	t := p.peek()
	p.pos++

	return t
}

func (p *typeParser) isPunct(s string) bool {
	t := p.peek()

	return !p.done() && t.kind == tokPunct && t.text == s
}

func (p *typeParser) isKeyword(kw string) bool {
	t := p.peek()

	return !p.done() && t.kind == tokWord && strings.EqualFold(t.text, kw)
}

func (p *typeParser) expect(s string) error {
	if !p.isPunct(s) {
		if p.done() {
			return p.errorf("expected %q at end of input", s)
		}

		return p.errorf("expected %q, got %q", s, p.peek().text)
	}
	p.pos++

	return nil
}

func (p *typeParser) expectKeyword(kw string) error {
	if !p.isKeyword(kw) {
		return p.errorf("expected %s", strings.ToUpper(kw))
	}
	p.pos++

	return nil
}

func (p *typeParser) number() (int, error) {
	t := p.next()
	if t.kind != tokNumber {
		return 0, p.errorf("expected number, got %q", t.text)
	}

	n, err := strconv.Atoi(t.text)
	if err != nil {
		return 0, p.errorf("invalid number %q", t.text)
	}

	return n, nil
}

func (p *typeParser) parseType() (Type, error) {
	t := p.next()
	if t.kind != tokWord {
		return nil, p.errorf("expected type name, got %q", t.text)
	}

	switch name := strings.ToLower(t.text); name {
	case "boolean", "bool":
		return BooleanType{}, nil
	case "byte", "tinyint":
		return Int8Type{}, nil
	case "short", "smallint":
		return Int16Type{}, nil
	case "int", "integer":
		return Int32Type{}, nil
	case "long", "bigint":
		return Int64Type{}, nil
	case "float", "real":
		return Float32Type{}, nil
	case "double":
		return Float64Type{}, nil
	case "date":
		return DateType{}, nil
	case "time":
		return TimeType{}, nil
	case "timestamp", "timestamp_ntz":
		return TimestampType{}, nil
	case "timestamptz", "timestamp_ltz":
		return TimestampTzType{}, nil
	case "timestamp_ns":
		return TimestampNsType{}, nil
	case "timestamptz_ns":
		return TimestampTzNsType{}, nil
	case "string", "varchar", "char":
		if name != "string" && p.isPunct("(") {
			p.pos++
			if _, err := p.number(); err != nil {
				return nil, err
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
		}

		return StringType{}, nil
	case "binary":
		return BinaryType{}, nil
	case "uuid":
		return UUIDType{}, nil
	case "unknown", "void":
		return UnknownType{}, nil
	case "fixed":
		if err := p.expect("["); err != nil {
			return nil, err
		}
		n, err := p.number()
		if err != nil {
			return nil, err
		}
		if n < 1 {
			return nil, p.errorf("fixed length must be positive, got %d", n)
		}

		return FixedTypeOf(n), p.expect("]")
	case "decimal", "dec", "numeric":
		if !p.isPunct("(") {
			return DecimalTypeOf(10, 0), nil
		}
		p.pos++
		prec, err := p.number()
		if err != nil {
			return nil, err
		}
		scale := 0
		if p.isPunct(",") {
			p.pos++
			if scale, err = p.number(); err != nil {
				return nil, err
			}
		}
		if prec < 1 || prec > MaxDecimalPrecision {
			return nil, p.errorf("decimal precision %d is outside 1..%d", prec, MaxDecimalPrecision)
		}
		if scale > prec {
			return nil, p.errorf("decimal scale %d exceeds precision %d", scale, prec)
		}

		return DecimalTypeOf(prec, scale), p.expect(")")
	case "interval":
		return p.parseInterval()
	case "array", "list":
		if err := p.expect("<"); err != nil {
			return nil, err
		}
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}

		return &ListType{Element: elem}, p.expect(">")
	case "map":
		if err := p.expect("<"); err != nil {
			return nil, err
		}
		key, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if err := p.expect(","); err != nil {
			return nil, err
		}
		val, err := p.parseType()
		if err != nil {
			return nil, err
		}

		return &MapType{KeyType: key, ValueType: val}, p.expect(">")
	case "struct":
		return p.parseStruct()
	default:
		return nil, p.errorf("unknown type %q", t.text)
	}
}

var (
	yearMonthUnits = map[string]bool{"year": true, "month": true}
	dayTimeUnits   = map[string]bool{"day": true, "hour": true, "minute": true, "second": true}
)

func (p *typeParser) parseInterval() (Type, error) {
	if p.done() || p.peek().kind != tokWord {
		return DayTimeIntervalType{}, nil
	}

	start := strings.ToLower(p.peek().text)
	if !yearMonthUnits[start] && !dayTimeUnits[start] {
		return DayTimeIntervalType{}, nil
	}
	p.pos++

	end := start
	if p.isKeyword("to") {
		p.pos++
		end = strings.ToLower(p.next().text)
	}

	switch {
	case yearMonthUnits[start] && yearMonthUnits[end]:
		return YearMonthIntervalType{}, nil
	case dayTimeUnits[start] && dayTimeUnits[end]:
		return DayTimeIntervalType{}, nil
	}

	return nil, p.errorf("invalid interval qualifier %s to %s", start, end)
}

func (p *typeParser) parseStruct() (Type, error) {
	if err := p.expect("<"); err != nil {
		return nil, err
	}

	st := &StructType{FieldList: []NestedField{}}
	if p.isPunct(">") {
		p.pos++

		return st, nil
	}

	for {
		f, err := p.parseField()
		if err != nil {
			return nil, err
		}
		st.FieldList = append(st.FieldList, f)

		if p.isPunct(",") {
			p.pos++

			continue
		}

		return st, p.expect(">")
	}
}

func (p *typeParser) parseField() (NestedField, error) {
	t := p.next()
	if t.kind != tokWord && t.kind != tokQuotedIdent {
		return NestedField{}, p.errorf("expected field name, got %q", t.text)
	}

	if p.isPunct(":") {
		p.pos++
	}

	typ, err := p.parseType()
	if err != nil {
		return NestedField{}, err
	}

	f := NestedField{Name: t.text, Type: typ}
	if p.isKeyword("not") {
		p.pos++
		if err := p.expectKeyword("null"); err != nil {
			return NestedField{}, err
		}
		f.Required = true
	}

	if p.isKeyword("comment") {
		p.pos++
		c := p.next()
		if c.kind != tokString {
			return NestedField{}, p.errorf("expected comment string")
		}
		f.Doc = c.text
	}

	return f, nil
}

func quoteIdent(name string) string {
	if name == "" {
		return "``"
	}

	for i, r := range name {
		if r != '_' && !unicode.IsLetter(r) && (i == 0 || !unicode.IsDigit(r)) {
			return "`" + strings.ReplaceAll(name, "`", "``") + "`"
		}
	}

	return name
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
