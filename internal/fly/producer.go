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

// Package fly publishes settings events to Kafka.
package fly

import (
	"context"
	"crypto/tls"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
)

// Message is one record to publish. Key selects the partition.
type Message struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// Producer publishes messages to Kafka topics.
type Producer interface {
	Send(ctx context.Context, topic string, message Message) error
	BatchSend(ctx context.Context, topic string, messages []Message) error
	Close() error
}

// ProducerConfig is the resolved writer configuration.
type ProducerConfig struct {
	Brokers           []string
	BatchSize         int
	BatchTimeout      time.Duration
	RequiredAcks      kafka.RequiredAcks
	Compression       kafka.Compression
	ConnectionTimeout time.Duration
	SASLMechanism     sasl.Mechanism
	TLSConfig         *tls.Config
}

// kafkaProducer keeps one writer per topic, created on first use.
type kafkaProducer struct {
	config    ProducerConfig
	transport *kafka.Transport

	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

func NewProducer(config ProducerConfig) Producer {
	return &kafkaProducer{
		config: config,
		transport: &kafka.Transport{
			SASL:        config.SASLMechanism,
			TLS:         config.TLSConfig,
			DialTimeout: config.ConnectionTimeout,
		},
		writers: make(map[string]*kafka.Writer),
	}
}

func (p *kafkaProducer) writer(topic string) *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()
	if w, ok := p.writers[topic]; ok {
		return w
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(p.config.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    p.config.BatchSize,
		BatchTimeout: p.config.BatchTimeout,
		RequiredAcks: p.config.RequiredAcks,
		Compression:  p.config.Compression,
		Transport:    p.transport,
	}
	p.writers[topic] = w
	return w
}

func (p *kafkaProducer) Send(ctx context.Context, topic string, message Message) error {
	return p.BatchSend(ctx, topic, []Message{message})
}

func (p *kafkaProducer) BatchSend(ctx context.Context, topic string, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}
	err := p.writer(topic).WriteMessages(ctx, toKafka(messages)...)
	recordPublish(ctx, topic, messages, err)
	return err
}

// Close flushes and closes every writer. The producer can be reused after.
func (p *kafkaProducer) Close() error {
	p.mu.Lock()
	writers := p.writers
	p.writers = make(map[string]*kafka.Writer)
	p.mu.Unlock()

	var errs []error
	for _, w := range writers {
		errs = append(errs, w.Close())
	}
	return errors.Join(errs...)
}

// toKafka converts messages, emitting headers in key order.
func toKafka(messages []Message) []kafka.Message {
	out := make([]kafka.Message, len(messages))
	for i, m := range messages {
		headers := make([]kafka.Header, 0, len(m.Headers))
		for _, k := range slices.Sorted(maps.Keys(m.Headers)) {
			headers = append(headers, kafka.Header{Key: k, Value: []byte(m.Headers[k])})
		}
		out[i] = kafka.Message{Key: m.Key, Value: m.Value, Headers: headers}
	}
	return out
}
