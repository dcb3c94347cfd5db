// Package protomsg decodes protobuf payloads against descriptors obtained
// from a schema registry, without generated code.
package protomsg

import (
	"sync"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/ajitpratap0/nebula-sink/pkg/errors"
	"github.com/ajitpratap0/nebula-sink/pkg/message"
	"github.com/ajitpratap0/nebula-sink/pkg/schema"
)

// Resolver looks up a message descriptor by its full name.
type Resolver interface {
	FindMessage(fullName string) (protoreflect.MessageDescriptor, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(fullName string) (protoreflect.MessageDescriptor, error)

func (f ResolverFunc) FindMessage(fullName string) (protoreflect.MessageDescriptor, error) {
	return f(fullName)
}

// Config controls protobuf parsing.
type Config struct {
	// Strict makes Validate reject payloads with fields missing from the
	// descriptor.
	Strict bool `yaml:"strict"`
}

// Parser decodes protobuf payloads. The derived schema of each message type is
// computed once and shared by every message of that type.
type Parser struct {
	resolver Resolver
	cfg      Config

	mu      sync.RWMutex
	schemas map[protoreflect.FullName]*schema.Schema
}

// NewParser creates a parser over one registry snapshot.
func NewParser(resolver Resolver, cfg Config) *Parser {
	return &Parser{
		resolver: resolver,
		cfg:      cfg,
		schemas:  make(map[protoreflect.FullName]*schema.Schema),
	}
}

// Parse decodes the selected payload as schemaRef.
func (p *Parser) Parse(msg *message.Message, mode message.Mode, schemaRef string) (message.ParsedMessage, error) {
	payload, err := msg.Payload(mode)
	if err != nil {
		return nil, err
	}
	md, err := p.resolver.FindMessage(schemaRef)
	if err != nil {
		return nil, err
	}
	dm := dynamicpb.NewMessage(md)
	if err := proto.Unmarshal(payload, dm); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeDeserialization, "failed to decode protobuf payload").
			WithDetail("schema", schemaRef)
	}
	return &ParsedMessage{msg: dm, schema: p.Schema(md), strict: p.cfg.Strict}, nil
}

// Schema returns the cached schema tree of md.
func (p *Parser) Schema(md protoreflect.MessageDescriptor) *schema.Schema {
	p.mu.RLock()
	s, ok := p.schemas[md.FullName()]
	p.mu.RUnlock()
	if ok {
		return s
	}

	s = schema.FromDescriptor(md)
	p.mu.Lock()
	if existing, ok := p.schemas[md.FullName()]; ok {
		s = existing
	} else {
		p.schemas[md.FullName()] = s
	}
	p.mu.Unlock()
	return s
}
