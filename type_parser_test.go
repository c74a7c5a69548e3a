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

package evolve_test

import (
	"testing"

	"github.com/apache/evolve-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		input    string
		expected evolve.Type
	}{
		{"int", evolve.PrimitiveTypes.Int32},
		{"INTEGER", evolve.PrimitiveTypes.Int32},
		{"tinyint", evolve.PrimitiveTypes.Int8},
		{"SmallInt", evolve.PrimitiveTypes.Int16},
		{"bigint", evolve.PrimitiveTypes.Int64},
		{"real", evolve.PrimitiveTypes.Float32},
		{"bool", evolve.PrimitiveTypes.Bool},
		{"varchar(20)", evolve.PrimitiveTypes.String},
		{"char(1)", evolve.PrimitiveTypes.String},
		{"timestamp_ntz", evolve.PrimitiveTypes.Timestamp},
		{"timestamp_ltz", evolve.PrimitiveTypes.TimestampTz},
		{"void", evolve.PrimitiveTypes.Unknown},
		{"decimal", evolve.DecimalTypeOf(10, 0)},
		{"decimal(5)", evolve.DecimalTypeOf(5, 0)},
		{"numeric(38, 10)", evolve.DecimalTypeOf(38, 10)},
		{"decimal(1)", evolve.DecimalTypeOf(1, 0)},
		{"fixed[16]", evolve.FixedTypeOf(16)},
		{"fixed[1]", evolve.FixedTypeOf(1)},
		{"interval", evolve.PrimitiveTypes.DayTimeInterval},
		{"interval year", evolve.PrimitiveTypes.YearMonthInterval},
		{"interval hour to second", evolve.PrimitiveTypes.DayTimeInterval},
		{"array<string>", &evolve.ListType{Element: evolve.PrimitiveTypes.String}},
		{"list<long>", &evolve.ListType{Element: evolve.PrimitiveTypes.Int64}},
		{"map<string, array<int>>", &evolve.MapType{
			KeyType:   evolve.PrimitiveTypes.String,
			ValueType: &evolve.ListType{Element: evolve.PrimitiveTypes.Int32},
		}},
		{"struct<>", &evolve.StructType{FieldList: []evolve.NestedField{}}},
		{"struct<x double, `y axis`: double NOT NULL COMMENT 'it''s y'>", &evolve.StructType{
			FieldList: []evolve.NestedField{
				{Name: "x", Type: evolve.PrimitiveTypes.Float64},
				{Name: "y axis", Type: evolve.PrimitiveTypes.Float64, Required: true, Doc: "it's y"},
			},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			typ, err := evolve.ParseType(tt.input)
			require.NoError(t, err)
			assert.Truef(t, tt.expected.Equals(typ), "expected %s, got %s", tt.expected, typ)
		})
	}
}

func TestParseTypeErrors(t *testing.T) {
	tests := []struct {
		input string
		msg   string
	}{
		{"", "expected type name"},
		{"integr", "unknown type"},
		{"array<int", "expected \">\" at end of input"},
		{"map<string>", "expected \",\""},
		{"decimal(2, 5)", "decimal scale 5 exceeds precision 2"},
		{"decimal(100, 2)", "decimal precision 100 is outside 1..38"},
		{"decimal(0, 0)", "decimal precision 0 is outside 1..38"},
		{"decimal(39)", "decimal precision 39 is outside 1..38"},
		{"fixed[0]", "fixed length must be positive"},
		{"fixed[99999999999999999999]", "invalid number"},
		{"fixed[x]", "expected number"},
		{"struct<`a: int>", "unterminated quote"},
		{"struct<a: int COMMENT x>", "expected comment string"},
		{"struct<a: int NOT x>", "expected NULL"},
		{"interval year to second", "invalid interval qualifier"},
		{"int int", "after type"},
		{"int;", "unexpected character"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := evolve.ParseType(tt.input)
			assert.ErrorIs(t, err, evolve.ErrInvalidTypeString)
			assert.ErrorContains(t, err, tt.msg)
		})
	}
}

func TestParseTypeRoundTrip(t *testing.T) {
	types := []string{
		"decimal(12, 4)",
		"array<map<string, timestamptz>>",
		"struct<a: int NOT NULL, `b.c`: array<struct<d: binary COMMENT 'raw'>>>",
		"map<uuid, struct<`select`: string>>",
	}

	for _, s := range types {
		typ := evolve.MustParseType(s)
		again, err := evolve.ParseType(typ.String())
		require.NoError(t, err, typ.String())
		assert.True(t, typ.Equals(again), "%s != %s", typ, again)
	}
}

func TestMustParseTypePanics(t *testing.T) {
	assert.Panics(t, func() { evolve.MustParseType("nope<") })
}
