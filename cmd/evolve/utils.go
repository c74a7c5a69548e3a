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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/apache/evolve-go"
	evolveio "github.com/apache/evolve-go/io"
	_ "github.com/apache/evolve-go/io/gocloud"

	"gopkg.in/yaml.v3"
)

func parseProperties(propStr string) (evolve.Properties, error) {
	if propStr == "" {
		return evolve.Properties{}, nil
	}
	props := make(evolve.Properties)
	pairs := strings.Split(propStr, ",")

	for _, pair := range pairs {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid property pair: %s (expected key=value)", pair)
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			return nil, fmt.Errorf("property key cannot be empty in: %s", pair)
		}
		props[key] = value
	}

	return props, nil
}

// decodeFile reads the document at location, which may be a local path
// or any location with a registered scheme, and decodes it into v.
func decodeFile(ctx context.Context, props map[string]string, location string, v any) error {
	data, err := evolveio.ReadFile(ctx, props, location)
	if err != nil {
		return err
	}

	return decode(data, v)
}

// decode reads JSON or YAML into v. YAML documents are converted to JSON
// first so both forms go through the same JSON codecs.
func decode(data []byte, v any) error {
	if json.Valid(data) {
		return json.Unmarshal(data, v)
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}

	asJSON, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	return json.Unmarshal(asJSON, v)
}
