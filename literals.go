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
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/decimal128"
	"github.com/google/uuid"
)

// Literal is a non-null constant value of a primitive type. Literals are
// what default expressions fold to. They can be cast using To and be
// checked for equality against other literals.
type Literal interface {
	fmt.Stringer

	Any() any
	Type() Type
	To(Type) (Literal, error)
	Equals(Literal) bool
}

// Date is the number of days since the unix epoch.
type Date int32

func (d Date) ToTime() time.Time {
	return epochTM.AddDate(0, 0, int(d))
}

// Time is the number of microseconds since midnight.
type Time int64

func (t Time) ToTime() time.Time {
	return time.UnixMicro(int64(t)).UTC()
}

// Timestamp is the number of microseconds since the unix epoch.
type Timestamp int64

func (t Timestamp) ToTime() time.Time {
	return time.UnixMicro(int64(t)).UTC()
}

func (t Timestamp) ToNanos() TimestampNano {
	return TimestampNano(int64(t) * 1000)
}

// TimestampNano is the number of nanoseconds since the unix epoch.
type TimestampNano int64

func (t TimestampNano) ToTime() time.Time {
	return time.Unix(0, int64(t)).UTC()
}

type Decimal struct {
	Val   decimal128.Num
	Scale int
}

func (d Decimal) String() string {
	return d.Val.ToString(int32(d.Scale))
}

var epochTM = time.Unix(0, 0).UTC()

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02 15:04:05.999999999"
)

var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	dateLayout,
}

var timestampTzLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999 Z07:00",
}

func parseTimestamp(s string, withZone bool) (time.Time, error) {
	layouts := timestampLayouts
	if withZone {
		layouts = append(timestampTzLayouts, timestampLayouts...)
	}

	var errs []error
	for _, layout := range layouts {
		tm, err := time.Parse(layout, s)
		if err == nil {
			return tm.UTC(), nil
		}
		errs = append(errs, err)
	}

	return time.Time{}, errors.Join(errs...)
}

func badCast(from Literal, to Type) error {
	return fmt.Errorf("%w: %s %s to %s", ErrBadCast, from.Type(), from, to)
}

func castInteger(src Literal, v int64, t Type) (Literal, error) {
	outOfRange := func(lo, hi int64) error {
		if v < lo || v > hi {
			return fmt.Errorf("%w: %d out of range for %s", ErrBadCast, v, t)
		}

		return nil
	}

	switch t := t.(type) {
	case Int8Type:
		if err := outOfRange(math.MinInt8, math.MaxInt8); err != nil {
			return nil, err
		}

		return Int8Literal(v), nil
	case Int16Type:
		if err := outOfRange(math.MinInt16, math.MaxInt16); err != nil {
			return nil, err
		}

		return Int16Literal(v), nil
	case Int32Type:
		if err := outOfRange(math.MinInt32, math.MaxInt32); err != nil {
			return nil, err
		}

		return Int32Literal(v), nil
	case Int64Type:
		return Int64Literal(v), nil
	case Float32Type:
		return Float32Literal(v), nil
	case Float64Type:
		return Float64Literal(v), nil
	case DecimalType:
		out, err := decimal128.FromI64(v).Rescale(0, int32(t.scale))
		if err != nil || !out.FitsInPrecision(int32(t.precision)) {
			return nil, fmt.Errorf("%w: %d does not fit in %s", ErrBadCast, v, t)
		}

		return DecimalLiteral{Val: out, Scale: t.scale}, nil
	case StringType:
		return StringLiteral(strconv.FormatInt(v, 10)), nil
	}

	return nil, badCast(src, t)
}

type BoolLiteral bool

func (b BoolLiteral) Any() any       { return bool(b) }
func (b BoolLiteral) Type() Type     { return PrimitiveTypes.Bool }
func (b BoolLiteral) String() string { return strconv.FormatBool(bool(b)) }
func (b BoolLiteral) To(t Type) (Literal, error) {
	switch t.(type) {
	case BooleanType:
		return b, nil
	case StringType:
		return StringLiteral(b.String()), nil
	}

	return nil, badCast(b, t)
}

func (b BoolLiteral) Equals(l Literal) bool {
	rhs, ok := l.(BoolLiteral)

	return ok && b == rhs
}

type Int8Literal int8

func (i Int8Literal) Any() any                   { return int8(i) }
func (i Int8Literal) Type() Type                 { return PrimitiveTypes.Int8 }
func (i Int8Literal) String() string             { return strconv.FormatInt(int64(i), 10) }
func (i Int8Literal) To(t Type) (Literal, error) { return castInteger(i, int64(i), t) }
func (i Int8Literal) Equals(other Literal) bool {
	rhs, ok := other.(Int8Literal)

	return ok && i == rhs
}

type Int16Literal int16

func (i Int16Literal) Any() any                   { return int16(i) }
func (i Int16Literal) Type() Type                 { return PrimitiveTypes.Int16 }
func (i Int16Literal) String() string             { return strconv.FormatInt(int64(i), 10) }
func (i Int16Literal) To(t Type) (Literal, error) { return castInteger(i, int64(i), t) }
func (i Int16Literal) Equals(other Literal) bool {
	rhs, ok := other.(Int16Literal)

	return ok && i == rhs
}

type Int32Literal int32

func (i Int32Literal) Any() any                   { return int32(i) }
func (i Int32Literal) Type() Type                 { return PrimitiveTypes.Int32 }
func (i Int32Literal) String() string             { return strconv.FormatInt(int64(i), 10) }
func (i Int32Literal) To(t Type) (Literal, error) { return castInteger(i, int64(i), t) }
func (i Int32Literal) Equals(other Literal) bool {
	rhs, ok := other.(Int32Literal)

	return ok && i == rhs
}

type Int64Literal int64

func (i Int64Literal) Any() any                   { return int64(i) }
func (i Int64Literal) Type() Type                 { return PrimitiveTypes.Int64 }
func (i Int64Literal) String() string             { return strconv.FormatInt(int64(i), 10) }
func (i Int64Literal) To(t Type) (Literal, error) { return castInteger(i, int64(i), t) }
func (i Int64Literal) Equals(other Literal) bool {
	rhs, ok := other.(Int64Literal)

	return ok && i == rhs
}

func castFloat(src Literal, v float64, t Type) (Literal, error) {
	switch t := t.(type) {
	case Float32Type:
		if !math.IsInf(v, 0) && !math.IsNaN(v) && math.Abs(v) > math.MaxFloat32 {
			return nil, fmt.Errorf("%w: %g out of range for %s", ErrBadCast, v, t)
		}

		return Float32Literal(v), nil
	case Float64Type:
		return Float64Literal(v), nil
	case DecimalType:
		n, err := decimal128.FromFloat64(v, int32(t.precision), int32(t.scale))
		if err != nil {
			return nil, fmt.Errorf("%w: %g to %s: %s", ErrBadCast, v, t, err)
		}

		return DecimalLiteral{Val: n, Scale: t.scale}, nil
	case StringType:
		return StringLiteral(src.String()), nil
	}

	return nil, badCast(src, t)
}

type Float32Literal float32

func (f Float32Literal) Any() any                   { return float32(f) }
func (f Float32Literal) Type() Type                 { return PrimitiveTypes.Float32 }
func (f Float32Literal) String() string             { return strconv.FormatFloat(float64(f), 'g', -1, 32) }
func (f Float32Literal) To(t Type) (Literal, error) { return castFloat(f, float64(f), t) }
func (f Float32Literal) Equals(other Literal) bool {
	rhs, ok := other.(Float32Literal)

	return ok && (f == rhs || (math.IsNaN(float64(f)) && math.IsNaN(float64(rhs))))
}

type Float64Literal float64

func (f Float64Literal) Any() any                   { return float64(f) }
func (f Float64Literal) Type() Type                 { return PrimitiveTypes.Float64 }
func (f Float64Literal) String() string             { return strconv.FormatFloat(float64(f), 'g', -1, 64) }
func (f Float64Literal) To(t Type) (Literal, error) { return castFloat(f, float64(f), t) }
func (f Float64Literal) Equals(other Literal) bool {
	rhs, ok := other.(Float64Literal)

	return ok && (f == rhs || (math.IsNaN(float64(f)) && math.IsNaN(float64(rhs))))
}

type DecimalLiteral Decimal

func (d DecimalLiteral) Type() Type {
	return DecimalTypeOf(max(len(d.Val.Abs().ToString(0)), d.Scale, 1), d.Scale)
}
func (d DecimalLiteral) Any() any       { return Decimal(d) }
func (d DecimalLiteral) String() string { return d.Val.ToString(int32(d.Scale)) }

func (d DecimalLiteral) To(t Type) (Literal, error) {
	switch t := t.(type) {
	case DecimalType:
		out, err := d.Val.Rescale(int32(d.Scale), int32(t.scale))
		if err != nil || !out.FitsInPrecision(int32(t.precision)) {
			return nil, fmt.Errorf("%w: %s does not fit in %s", ErrBadCast, d, t)
		}

		return DecimalLiteral{Val: out, Scale: t.scale}, nil
	case Int8Type, Int16Type, Int32Type, Int64Type:
		whole, err := d.Val.Rescale(int32(d.Scale), 0)
		if err != nil {
			return nil, fmt.Errorf("%w: %s to %s: %s", ErrBadCast, d, t, err)
		}

		v := whole.BigInt()
		if !v.IsInt64() {
			return nil, fmt.Errorf("%w: %s out of range for %s", ErrBadCast, d, t)
		}

		return castInteger(d, v.Int64(), t)
	case Float32Type, Float64Type:
		return castFloat(d, d.Val.ToFloat64(int32(d.Scale)), t)
	case StringType:
		return StringLiteral(d.String()), nil
	}

	return nil, badCast(d, t)
}

func (d DecimalLiteral) Equals(other Literal) bool {
	rhs, ok := other.(DecimalLiteral)
	if !ok {
		return false
	}

	rescaled, err := rhs.Val.Rescale(int32(rhs.Scale), int32(d.Scale))
	if err != nil {
		return false
	}

	return d.Val == rescaled
}

// ParseDecimal parses a decimal number, keeping all of its digits. The
// scale is the number of digits after the decimal point.
func ParseDecimal(s string) (DecimalLiteral, error) {
	digits := strings.TrimLeft(s, "+-")
	scale := 0
	if i := strings.IndexByte(digits, '.'); i >= 0 {
		scale = len(digits) - i - 1
	}

	prec := len(strings.Replace(digits, ".", "", 1))
	if prec > int(decimal128.MaxPrecision) {
		return DecimalLiteral{}, fmt.Errorf("%w: decimal %s exceeds maximum precision %d",
			ErrBadCast, s, decimal128.MaxPrecision)
	}

	n, err := decimal128.FromString(s, int32(max(prec, 1)), int32(scale))
	if err != nil {
		return DecimalLiteral{}, fmt.Errorf("%w: parsing decimal %q: %s", ErrBadCast, s, err)
	}

	return DecimalLiteral{Val: n, Scale: scale}, nil
}

type DateLiteral Date

func (d DateLiteral) Any() any       { return Date(d) }
func (d DateLiteral) Type() Type     { return PrimitiveTypes.Date }
func (d DateLiteral) String() string { return Date(d).ToTime().Format(dateLayout) }
func (d DateLiteral) To(t Type) (Literal, error) {
	switch t.(type) {
	case DateType:
		return d, nil
	case TimestampType, TimestampTzType:
		return TimestampLiteral(Date(d).ToTime().UnixMicro()), nil
	case TimestampNsType, TimestampTzNsType:
		return TimestampNsLiteral(Date(d).ToTime().UnixNano()), nil
	case StringType:
		return StringLiteral(d.String()), nil
	}

	return nil, badCast(d, t)
}

func (d DateLiteral) Equals(other Literal) bool {
	rhs, ok := other.(DateLiteral)

	return ok && d == rhs
}

type TimeLiteral Time

func (t TimeLiteral) Any() any   { return Time(t) }
func (t TimeLiteral) Type() Type { return PrimitiveTypes.Time }
func (t TimeLiteral) String() string {
	return arrow.Time64(t).FormattedString(arrow.Microsecond)
}

func (t TimeLiteral) To(typ Type) (Literal, error) {
	switch typ.(type) {
	case TimeType:
		return t, nil
	case StringType:
		return StringLiteral(t.String()), nil
	}

	return nil, badCast(t, typ)
}

func (t TimeLiteral) Equals(other Literal) bool {
	rhs, ok := other.(TimeLiteral)

	return ok && t == rhs
}

type TimestampLiteral Timestamp

func (t TimestampLiteral) Any() any       { return Timestamp(t) }
func (t TimestampLiteral) Type() Type     { return PrimitiveTypes.Timestamp }
func (t TimestampLiteral) String() string { return Timestamp(t).ToTime().Format(timestampLayout) }
func (t TimestampLiteral) To(typ Type) (Literal, error) {
	switch typ.(type) {
	case TimestampType, TimestampTzType:
		return t, nil
	case TimestampNsType, TimestampTzNsType:
		return TimestampNsLiteral(Timestamp(t).ToNanos()), nil
	case DateType:
		tm := Timestamp(t).ToTime()

		return DateLiteral(tm.Truncate(24*time.Hour).Unix() / int64((time.Hour * 24).Seconds())), nil
	case StringType:
		return StringLiteral(t.String()), nil
	}

	return nil, badCast(t, typ)
}

func (t TimestampLiteral) Equals(other Literal) bool {
	rhs, ok := other.(TimestampLiteral)

	return ok && t == rhs
}

type TimestampNsLiteral TimestampNano

func (t TimestampNsLiteral) Any() any       { return TimestampNano(t) }
func (t TimestampNsLiteral) Type() Type     { return PrimitiveTypes.TimestampNs }
func (t TimestampNsLiteral) String() string { return TimestampNano(t).ToTime().Format(timestampLayout) }
func (t TimestampNsLiteral) To(typ Type) (Literal, error) {
	switch typ.(type) {
	case TimestampNsType, TimestampTzNsType:
		return t, nil
	case TimestampType, TimestampTzType:
		return TimestampLiteral(int64(t) / 1000), nil
	case StringType:
		return StringLiteral(t.String()), nil
	}

	return nil, badCast(t, typ)
}

func (t TimestampNsLiteral) Equals(other Literal) bool {
	rhs, ok := other.(TimestampNsLiteral)

	return ok && t == rhs
}

type StringLiteral string

func (s StringLiteral) Any() any       { return string(s) }
func (s StringLiteral) Type() Type     { return PrimitiveTypes.String }
func (s StringLiteral) String() string { return string(s) }
func (s StringLiteral) To(typ Type) (Literal, error) {
	str := strings.TrimSpace(string(s))
	switch t := typ.(type) {
	case StringType:
		return s, nil
	case Int8Type, Int16Type, Int32Type, Int64Type:
		n, err := strconv.ParseInt(str, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: casting '%s' to %s",
				errors.Join(ErrBadCast, err), s, typ)
		}

		return castInteger(s, n, typ)
	case Float32Type, Float64Type:
		n, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: casting '%s' to %s",
				errors.Join(ErrBadCast, err), s, typ)
		}

		return castFloat(s, n, typ)
	case DecimalType:
		d, err := ParseDecimal(str)
		if err != nil {
			return nil, err
		}

		return d.To(t)
	case BooleanType:
		val, err := strconv.ParseBool(str)
		if err != nil {
			return nil, fmt.Errorf("%w: casting '%s' to %s - %s",
				ErrBadCast, s, typ, err.Error())
		}

		return BoolLiteral(val), nil
	case DateType:
		tm, err := time.Parse(dateLayout, str)
		if err != nil {
			return nil, fmt.Errorf("%w: casting '%s' to %s - %s",
				ErrBadCast, s, typ, err.Error())
		}

		return DateLiteral(tm.Truncate(24*time.Hour).Unix() / int64((time.Hour * 24).Seconds())), nil
	case TimeType:
		val, err := arrow.Time64FromString(str, arrow.Microsecond)
		if err != nil {
			return nil, fmt.Errorf("%w: casting '%s' to %s - %s",
				ErrBadCast, s, typ, err.Error())
		}

		return TimeLiteral(val), nil
	case TimestampType, TimestampNsType, TimestampTzType, TimestampTzNsType:
		_, isTz := typ.(TimestampTzType)
		_, isTzNs := typ.(TimestampTzNsType)
		tm, err := parseTimestamp(str, isTz || isTzNs)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid timestamp format for casting from string '%s': %s",
				ErrBadCast, s, err.Error())
		}

		switch typ.(type) {
		case TimestampNsType, TimestampTzNsType:
			return TimestampNsLiteral(tm.UnixNano()), nil
		}

		return TimestampLiteral(tm.UnixMicro()), nil
	case UUIDType:
		val, err := uuid.Parse(str)
		if err != nil {
			return nil, fmt.Errorf("%w: casting '%s' to %s - %s",
				ErrBadCast, s, typ, err.Error())
		}

		return UUIDLiteral(val), nil
	case BinaryType:
		return BinaryLiteral(s), nil
	case FixedType:
		if len(s) != t.len {
			return nil, fmt.Errorf("%w: cast '%s' to %s - wrong length",
				ErrBadCast, s, t)
		}

		return FixedLiteral(s), nil
	}

	return nil, badCast(s, typ)
}

func (s StringLiteral) Equals(other Literal) bool {
	rhs, ok := other.(StringLiteral)

	return ok && s == rhs
}

type BinaryLiteral []byte

func (b BinaryLiteral) Any() any       { return []byte(b) }
func (b BinaryLiteral) Type() Type     { return PrimitiveTypes.Binary }
func (b BinaryLiteral) String() string { return string(b) }
func (b BinaryLiteral) To(typ Type) (Literal, error) {
	switch t := typ.(type) {
	case BinaryType:
		return b, nil
	case FixedType:
		if len(b) == t.len {
			return FixedLiteral(b), nil
		}

		return nil, fmt.Errorf("%w: cannot convert BinaryLiteral to %s, different length - %d <> %d",
			ErrBadCast, typ, len(b), t.len)
	case UUIDType:
		val, err := uuid.FromBytes(b)
		if err != nil {
			return nil, fmt.Errorf("%w: cannot convert BinaryLiteral to UUID",
				errors.Join(ErrBadCast, err))
		}

		return UUIDLiteral(val), nil
	}

	return nil, badCast(b, typ)
}

func (b BinaryLiteral) Equals(other Literal) bool {
	rhs, ok := other.(BinaryLiteral)

	return ok && bytes.Equal(b, rhs)
}

type FixedLiteral []byte

func (f FixedLiteral) Any() any       { return []byte(f) }
func (f FixedLiteral) Type() Type     { return FixedTypeOf(len(f)) }
func (f FixedLiteral) String() string { return string(f) }
func (f FixedLiteral) To(typ Type) (Literal, error) {
	switch t := typ.(type) {
	case FixedType:
		if len(f) == t.len {
			return f, nil
		}

		return nil, fmt.Errorf("%w: cannot convert FixedLiteral to %s, different length - %d <> %d",
			ErrBadCast, typ, len(f), t.len)
	case BinaryType:
		return BinaryLiteral(f), nil
	}

	return nil, badCast(f, typ)
}

func (f FixedLiteral) Equals(other Literal) bool {
	rhs, ok := other.(FixedLiteral)

	return ok && bytes.Equal(f, rhs)
}

type UUIDLiteral uuid.UUID

func (UUIDLiteral) Type() Type       { return PrimitiveTypes.UUID }
func (u UUIDLiteral) Any() any       { return uuid.UUID(u) }
func (u UUIDLiteral) String() string { return uuid.UUID(u).String() }
func (u UUIDLiteral) To(typ Type) (Literal, error) {
	switch typ.(type) {
	case UUIDType:
		return u, nil
	case BinaryType:
		return BinaryLiteral(u[:]), nil
	case FixedType:
		if typ.(FixedType).len == len(u) {
			return FixedLiteral(u[:]), nil
		}
	case StringType:
		return StringLiteral(u.String()), nil
	}

	return nil, badCast(u, typ)
}

func (u UUIDLiteral) Equals(other Literal) bool {
	rhs, ok := other.(UUIDLiteral)

	return ok && u == rhs
}

// FormatSQL renders a literal as SQL text that reads back to the same
// value, e.g. 'it''s', DATE '2024-01-31' or X'CAFE'.
func FormatSQL(l Literal) string {
	switch l := l.(type) {
	case nil:
		return "NULL"
	case StringLiteral:
		return quoteString(string(l))
	case DateLiteral:
		return "DATE " + quoteString(l.String())
	case TimeLiteral:
		return "TIME " + quoteString(l.String())
	case TimestampLiteral, TimestampNsLiteral:
		return "TIMESTAMP " + quoteString(l.String())
	case BinaryLiteral:
		return "X'" + strings.ToUpper(hex.EncodeToString(l)) + "'"
	case FixedLiteral:
		return "X'" + strings.ToUpper(hex.EncodeToString(l)) + "'"
	case UUIDLiteral:
		return quoteString(l.String())
	case Float32Literal:
		if f := float64(l); math.IsNaN(f) || math.IsInf(f, 0) {
			return "CAST(" + quoteString(l.String()) + " AS FLOAT)"
		}
	case Float64Literal:
		if f := float64(l); math.IsNaN(f) || math.IsInf(f, 0) {
			return "CAST(" + quoteString(l.String()) + " AS DOUBLE)"
		}
	}

	return l.String()
}
