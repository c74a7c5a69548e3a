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


package io

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"
	"sync"
)

var ErrIONotFound = errors.New("io scheme not registered")

// Storage holds object store settings such as credentials, regions and
// endpoints. The CLI fills it from the storage section of a profile.
type Storage map[string]string

// IO reads and writes whole documents addressed by location.
type IO interface {
	ReadFile(ctx context.Context, name string) ([]byte, error)
	WriteFile(ctx context.Context, name string, data []byte) error
}

// Opener returns the IO serving the store that loc points into.
type Opener func(ctx context.Context, loc *url.URL, storage Storage) (IO, error)

var (
	schemeMx sync.RWMutex
	schemes  = map[string]Opener{}
)

// Register makes open serve every location with the given scheme,
// replacing the opener registered before it.
func Register(scheme string, open Opener) {
	if open == nil {
		panic("io: Register opener is nil")
	}

	schemeMx.Lock()
	defer schemeMx.Unlock()
	schemes[strings.ToLower(scheme)] = open
}

func Unregister(scheme string) {
	schemeMx.Lock()
	defer schemeMx.Unlock()
	delete(schemes, strings.ToLower(scheme))
}

// Schemes returns the registered schemes in sorted order. Local paths
// and file:// locations are always served and are not listed.
func Schemes() []string {
	schemeMx.RLock()
	defer schemeMx.RUnlock()

	return slices.Sorted(maps.Keys(schemes))
}

func lookup(scheme string) (Opener, bool) {
	schemeMx.RLock()
	defer schemeMx.RUnlock()
	open, ok := schemes[scheme]

	return open, ok
}

// isLocal reports whether location is a plain path or a file:// URL.
// Plain paths are never parsed as URLs so names containing % or ? work.
func isLocal(location string) bool {
	scheme, _, found := strings.Cut(location, "://")

	return !found || scheme == "" || strings.ContainsAny(scheme, `/\`) ||
		strings.EqualFold(scheme, "file")
}

// Load returns the IO for location. storage is handed to the scheme's
// opener as is.
func Load(ctx context.Context, storage Storage, location string) (IO, error) {
	if isLocal(location) {
		return LocalFS{}, nil
	}

	loc, err := url.Parse(location)
	if err != nil {
		return nil, err
	}

	open, ok := lookup(loc.Scheme)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIONotFound, loc.Scheme)
	}

	return open(ctx, loc, storage)
}

// ReadFile loads the IO for location and reads the document stored there.
func ReadFile(ctx context.Context, storage Storage, location string) ([]byte, error) {
	fs, err := Load(ctx, storage, location)
	if err != nil {
		return nil, err
	}
	defer closeIO(fs)

	return fs.ReadFile(ctx, location)
}

// WriteFile loads the IO for location and replaces the document stored
// there with data.
func WriteFile(ctx context.Context, storage Storage, location string, data []byte) error {
	fs, err := Load(ctx, storage, location)
	if err != nil {
		return err
	}
	defer closeIO(fs)

	return fs.WriteFile(ctx, location, data)
}

// closeIO releases IOs that hold a connection per Load.
func closeIO(fs IO) {
	if c, ok := fs.(interface{ Close() error }); ok {
		_ = c.Close()
	}
}
