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
	"fmt"

	"github.com/apache/evolve-go"
)

const (
	// PropertyProvider names the table format. It is set when the table
	// is created and cannot be changed or removed by a schema update.
	PropertyProvider = "provider"
)

var reservedProperties = map[string]struct{}{
	PropertyProvider: {},
}

// IsReservedProperty reports whether key may not be set or removed
// through property updates.
func IsReservedProperty(key string) bool {
	_, ok := reservedProperties[key]

	return ok
}

func checkReserved(op string, keys ...string) error {
	for _, k := range keys {
		if IsReservedProperty(k) {
			return fmt.Errorf("%w: cannot %s %q", evolve.ErrReservedProperty, op, k)
		}
	}

	return nil
}
