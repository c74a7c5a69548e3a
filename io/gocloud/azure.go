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
	"errors"
	"net/url"
	"strings"

	evolveio "github.com/apache/evolve-go/io"
	"gocloud.dev/blob"
	"gocloud.dev/blob/azureblob"
)

// Constants for Azure configuration options
const (
	AdlsAccountName = "adls.account-name"
	AdlsSasToken    = "adls.sas-token"
	AdlsEndpoint    = "adls.endpoint"
	AdlsProtocol    = "adls.protocol"
)

var errMissingContainer = errors.New("azure: container name is required")

// azureLocation extracts the container and account of a location. The
// abfs and wasb forms carry both as container@account.<domain>; the
// azblob form names the container as host and takes the account from
// props or the environment.
func azureLocation(parsed *url.URL, props map[string]string) (container, account string, err error) {
	switch parsed.Scheme {
	case "azblob":
		container, account = parsed.Host, props[AdlsAccountName]
	default:
		if parsed.User != nil {
			container = parsed.User.Username()
		}
		account, _, _ = strings.Cut(parsed.Host, ".")
	}

	if container == "" {
		return "", "", errMissingContainer
	}

	return container, account, nil
}

func parseAzureOptions(account string, props map[string]string) *azureblob.ServiceURLOptions {
	opts := azureblob.NewDefaultServiceURLOptions()
	if account != "" {
		opts.AccountName = account
	}
	if token := props[AdlsSasToken]; token != "" {
		opts.SASToken = token
	}
	if domain := props[AdlsEndpoint]; domain != "" {
		opts.StorageDomain = domain
	}
	if protocol := props[AdlsProtocol]; protocol != "" {
		opts.Protocol = protocol
	}

	return opts
}

func openAzureBucket(ctx context.Context, loc *url.URL, props evolveio.Storage) (*blob.Bucket, error) {
	container, account, err := azureLocation(loc, props)
	if err != nil {
		return nil, err
	}

	serviceURL, err := azureblob.NewServiceURL(parseAzureOptions(account, props))
	if err != nil {
		return nil, err
	}

	client, err := azureblob.NewDefaultClient(serviceURL, azureblob.ContainerName(container))
	if err != nil {
		return nil, err
	}

	return azureblob.OpenBucket(ctx, client, nil)
}
