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


package gocloud

import (
	"context"
	"fmt"
	"net/url"
	"os"

	"cloud.google.com/go/storage"
	evolveio "github.com/apache/evolve-go/io"
	"gocloud.dev/blob"
	"gocloud.dev/blob/gcsblob"
	"gocloud.dev/gcp"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

// Storage keys read by the gs scheme.
const (
	GCSEndpoint   = "gcs.endpoint"
	GCSKeyPath    = "gcs.keypath"
	GCSJSONKey    = "gcs.jsonkey"
	GCSUseJsonAPI = "gcs.usejsonapi" // any value enables JSON API reads
)

func gcsClientOptions(st evolveio.Storage) []option.ClientOption {
	var opts []option.ClientOption
	if endpoint := st[GCSEndpoint]; endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	if _, ok := st[GCSUseJsonAPI]; ok {
		opts = append(opts, storage.WithJSONReads())
	}

	return opts
}

// gcsKey returns the credentials JSON given inline or by path, or nil.
func gcsKey(st evolveio.Storage) ([]byte, error) {
	if key := st[GCSJSONKey]; key != "" {
		return []byte(key), nil
	}

	path := st[GCSKeyPath]
	if path == "" {
		return nil, nil
	}

	key, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", GCSKeyPath, err)
	}

	return key, nil
}

// gcsCredentials prefers a key from storage over the application default
// credentials. It returns nil when neither exists.
func gcsCredentials(ctx context.Context, st evolveio.Storage) (*google.Credentials, error) {
	key, err := gcsKey(st)
	if err != nil {
		return nil, err
	}

	if key != nil {
		creds, err := google.CredentialsFromJSON(ctx, key, storage.ScopeReadWrite)
		if err != nil {
			return nil, fmt.Errorf("parse gcs credentials: %w", err)
		}

		return creds, nil
	}

	if creds, err := gcp.DefaultCredentials(ctx); err == nil {
		return creds, nil
	}

	return nil, nil
}

// openGCSBucket falls back to anonymous access, which serves public
// buckets and local emulators.
func openGCSBucket(ctx context.Context, loc *url.URL, st evolveio.Storage) (*blob.Bucket, error) {
	creds, err := gcsCredentials(ctx, st)
	if err != nil {
		return nil, err
	}

	client := gcp.NewAnonymousHTTPClient(gcp.DefaultTransport())
	if creds != nil {
		client, err = gcp.NewHTTPClient(gcp.DefaultTransport(), gcp.CredentialsTokenSource(creds))
		if err != nil {
			return nil, err
		}
	}

	return gcsblob.OpenBucket(ctx, client, loc.Host, &gcsblob.Options{
		ClientOptions: gcsClientOptions(st),
	})
}
