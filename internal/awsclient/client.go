// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package awsclient builds S3 clients for settings buckets from the shared
// AWS configuration, reusing credentials per region and assumed role.
package awsclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// S3Client pairs a client with the tracer used around its calls.
type S3Client struct {
	Client *s3.Client
	Tracer trace.Tracer
}

// BucketConfig describes where a settings bucket lives and how to reach it.
type BucketConfig struct {
	Region       string `mapstructure:"region"`
	Role         string `mapstructure:"role"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	InsecureTLS  bool   `mapstructure:"insecure_tls"`
	// ChecksumWhenRequired limits request and response checksums to the
	// operations that require them, for S3-compatible stores that reject
	// the newer checksum headers.
	ChecksumWhenRequired bool `mapstructure:"checksum_when_required"`
}

type credentialKey struct {
	region string
	role   string
}

type Manager struct {
	base        aws.Config
	sts         *sts.Client
	sessionName string
	tracer      trace.Tracer

	mu    sync.Mutex
	creds map[credentialKey]aws.CredentialsProvider
}

type ManagerOption func(*Manager)

func WithAssumeRoleSessionName(name string) ManagerOption {
	return func(m *Manager) { m.sessionName = name }
}

// NewManager loads the default AWS configuration chain.
func NewManager(ctx context.Context, opts ...ManagerOption) (*Manager, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return NewManagerFromConfig(cfg, opts...), nil
}

func NewManagerFromConfig(cfg aws.Config, opts ...ManagerOption) *Manager {
	otelaws.AppendMiddlewares(&cfg.APIOptions)
	m := &Manager{
		base:        cfg,
		sts:         sts.NewFromConfig(cfg),
		sessionName: "settingsgateway",
		tracer:      otel.Tracer("github.com/cardinalhq/settingsgateway/internal/awsclient"),
		creds:       make(map[credentialKey]aws.CredentialsProvider),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// credentials returns the cached provider for region and role. An empty role
// uses the base credentials.
func (m *Manager) credentials(region, role string) aws.CredentialsProvider {
	key := credentialKey{region: region, role: role}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.creds[key]; ok {
		return p
	}
	p := m.base.Credentials
	if role != "" {
		p = aws.NewCredentialsCache(stscreds.NewAssumeRoleProvider(m.sts, role, func(o *stscreds.AssumeRoleOptions) {
			o.RoleSessionName = m.sessionName
		}))
	}
	m.creds[key] = p
	return p
}

// ClientFor returns an S3 client configured for the bucket.
func (m *Manager) ClientFor(_ context.Context, b BucketConfig) (*S3Client, error) {
	cfg := m.base.Copy()
	if b.Region != "" {
		cfg.Region = b.Region
	}
	cfg.Credentials = m.credentials(cfg.Region, b.Role)
	if b.InsecureTLS {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		cfg.HTTPClient = &http.Client{Transport: tr}
	}
	if b.ChecksumWhenRequired {
		cfg.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		cfg.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if b.Endpoint != "" {
			o.BaseEndpoint = aws.String(b.Endpoint)
		}
		o.UsePathStyle = b.UsePathStyle
	})
	return &S3Client{Client: client, Tracer: m.tracer}, nil
}
