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

package internal

import (
	"fmt"

	"github.com/hamba/avro/v2"
)

func NullableSchema(schema avro.Schema) avro.Schema {
	return Must(avro.NewUnionSchema([]avro.Schema{
		NullSchema, schema,
	}))
}

var requiredLength = [...]int{
	1, 1, 1, 2, 2, 3, 3, 4, 4, 4, 5, 5,
	6, 6, 6, 7, 7, 8, 8, 9, 9, 9, 10, 10, 11, 11, 11, 12, 12,
	13, 13, 13, 14, 14, 15, 15, 16, 16, 16, 17,
}

// DecimalRequiredBytes returns the required number of bytes to store a
// decimal value of the given precision. If the precision is outside
// the range (0, 40], this returns -1 as it is invalid.
func DecimalRequiredBytes(precision int) int {
	if precision <= 0 || precision >= 40 {
		return -1
	}

	return requiredLength[precision]
}

// DecimalSchema returns a fixed schema with a decimal logical type. Named
// avro types must be unique within a schema, so the name carries the
// precision and scale.
func DecimalSchema(precision, scale int) (avro.Schema, error) {
	size := DecimalRequiredBytes(precision)
	if size < 0 {
		return nil, fmt.Errorf("decimal precision %d cannot be stored in avro", precision)
	}

	return avro.NewFixedSchema(fmt.Sprintf("decimal_%d_%d", precision, scale), "",
		size, avro.NewDecimalLogicalSchema(precision, scale))
}

// FixedSchema returns a plain fixed schema of the given length.
func FixedSchema(size int) (avro.Schema, error) {
	return avro.NewFixedSchema(fmt.Sprintf("fixed_%d", size), "", size, nil)
}

var (
	NullSchema        = avro.NewNullSchema()
	BoolSchema        = avro.NewPrimitiveSchema(avro.Boolean, nil)
	BinarySchema      = avro.NewPrimitiveSchema(avro.Bytes, nil)
	StringSchema      = avro.NewPrimitiveSchema(avro.String, nil)
	IntSchema         = avro.NewPrimitiveSchema(avro.Int, nil)
	LongSchema        = avro.NewPrimitiveSchema(avro.Long, nil)
	FloatSchema       = avro.NewPrimitiveSchema(avro.Float, nil)
	DoubleSchema      = avro.NewPrimitiveSchema(avro.Double, nil)
	DateSchema        = avro.NewPrimitiveSchema(avro.Int, avro.NewPrimitiveLogicalSchema(avro.Date))
	TimeSchema        = avro.NewPrimitiveSchema(avro.Long, avro.NewPrimitiveLogicalSchema(avro.TimeMicros))
	TimestampSchema   = avro.NewPrimitiveSchema(avro.Long, avro.NewPrimitiveLogicalSchema(avro.TimestampMicros),
		avro.WithProps(map[string]any{"adjust-to-utc": false}))
	TimestampTzSchema = avro.NewPrimitiveSchema(avro.Long, avro.NewPrimitiveLogicalSchema(avro.TimestampMicros),
		avro.WithProps(map[string]any{"adjust-to-utc": true}))
	TimestampNsSchema = avro.NewPrimitiveSchema(avro.Long, nil,
		avro.WithProps(map[string]any{"adjust-to-utc": false, "timestamp-unit": "ns"}))
	TimestampTzNsSchema = avro.NewPrimitiveSchema(avro.Long, nil,
		avro.WithProps(map[string]any{"adjust-to-utc": true, "timestamp-unit": "ns"}))
	UUIDSchema = Must(avro.NewFixedSchema("uuid", "", 16, avro.NewPrimitiveLogicalSchema(avro.UUID)))
)

// NewMapSchema returns the avro encoding of a map. String keyed maps use
// the native avro map, all others an array of key/value records.
func NewMapSchema(name string, keySchema, valueSchema avro.Schema) (avro.Schema, error) {
	if keySchema.Type() == avro.String {
		return avro.NewMapSchema(valueSchema), nil
	}

	entry, err := avro.NewRecordSchema(name, "", []*avro.Field{
		Must(avro.NewField("key", keySchema)),
		Must(avro.NewField("value", valueSchema)),
	})
	if err != nil {
		return nil, err
	}

	return avro.NewArraySchema(entry, avro.WithProps(map[string]any{"logicalType": "map"})), nil
}
