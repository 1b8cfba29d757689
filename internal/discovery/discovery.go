// Copyright 2025 Alexander Alten (novatechflow), NovaTechflow (novatechflow.com).
// This project is supported and financed by Scalytics, Inc. (www.scalytics.io).
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package discovery looks up PAL server endpoints published in etcd.
package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// ErrNotFound is returned when no endpoint is published under the key.
var ErrNotFound = errors.New("discovery: endpoint not published")

// Endpoint is the address and negotiated parameters of a PAL server.
type Endpoint struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	PalVersion int    `json:"pal_version,omitempty"`
	NdvType    int    `json:"ndv_type,omitempty"`
}

func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Config defines how we connect to etcd.
type Config struct {
	Endpoints   []string
	Username    string
	Password    string
	DialTimeout time.Duration
}

type kv interface {
	Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error)
	Put(ctx context.Context, key, val string, opts ...clientv3.OpOption) (*clientv3.PutResponse, error)
}

// Resolver reads and publishes endpoints under etcd keys.
type Resolver struct {
	kv    kv
	close func() error
}

// New connects to etcd.
func New(cfg Config) (*Resolver, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, errors.New("etcd endpoints required")
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		Username:    cfg.Username,
		Password:    cfg.Password,
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("connect etcd: %w", err)
	}
	return &Resolver{kv: cli, close: cli.Close}, nil
}

func newWithKV(store kv) *Resolver {
	return &Resolver{kv: store, close: func() error { return nil }}
}

// Resolve returns the endpoint stored under key.
func (r *Resolver) Resolve(ctx context.Context, key string) (Endpoint, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	resp, err := r.kv.Get(ctx, key)
	if err != nil {
		return Endpoint{}, fmt.Errorf("get %s: %w", key, err)
	}
	if len(resp.Kvs) == 0 {
		return Endpoint{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	ep, err := ParseEndpoint(resp.Kvs[0].Value)
	if err != nil {
		return Endpoint{}, fmt.Errorf("parse %s: %w", key, err)
	}
	return ep, nil
}

// Publish stores ep under key as JSON.
func (r *Resolver) Publish(ctx context.Context, key string, ep Endpoint) error {
	payload, err := json.Marshal(ep)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if _, err := r.kv.Put(ctx, key, string(payload)); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Close releases the etcd client.
func (r *Resolver) Close() error {
	return r.close()
}

// ParseEndpoint accepts either a JSON Endpoint or a plain host:port.
func ParseEndpoint(value []byte) (Endpoint, error) {
	text := strings.TrimSpace(string(value))
	if text == "" {
		return Endpoint{}, errors.New("empty endpoint")
	}
	if strings.HasPrefix(text, "{") {
		var ep Endpoint
		if err := json.Unmarshal([]byte(text), &ep); err != nil {
			return Endpoint{}, err
		}
		if ep.Host == "" || ep.Port <= 0 {
			return Endpoint{}, fmt.Errorf("endpoint %q lacks host or port", text)
		}
		return ep, nil
	}
	host, portText, err := net.SplitHostPort(text)
	if err != nil {
		return Endpoint{}, err
	}
	port, err := strconv.Atoi(portText)
	if err != nil || port <= 0 {
		return Endpoint{}, fmt.Errorf("invalid port in %q", text)
	}
	return Endpoint{Host: host, Port: port}, nil
}
