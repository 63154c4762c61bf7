package event

import (
	"fmt"
	"sync"
)

// Schema describes an event type for validation at the publish boundary.
type Schema struct {
	// Type is the event type this schema covers.
	Type Type

	// Description explains the event's purpose.
	Description string

	// Validator is an optional payload validation function.
	Validator func(Envelope) error
}

// Validate checks if an envelope conforms to this schema.
func (s *Schema) Validate(evt Envelope) error {
	if evt.Type() != s.Type {
		return fmt.Errorf("event type mismatch: expected %s, got %s", s.Type, evt.Type())
	}
	if s.Validator != nil {
		if err := s.Validator(evt); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
	}
	return nil
}

// Registry manages event type schemas. The bus consults it before dispatch
// when ValidateEvents is enabled, so malformed payloads are rejected at the
// publish boundary instead of failing inside handlers.
type Registry struct {
	mu      sync.RWMutex
	schemas map[Type]*Schema
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[Type]*Schema)}
}

// Register adds or replaces the schema for a type.
func (r *Registry) Register(schema *Schema) error {
	if schema == nil || schema.Type == "" {
		return fmt.Errorf("schema must have a type")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[schema.Type] = schema
	return nil
}

// Get returns the schema for a type, or nil if unregistered.
func (r *Registry) Get(eventType Type) *Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.schemas[eventType]
}

// Types returns all registered event types.
func (r *Registry) Types() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]Type, 0, len(r.schemas))
	for t := range r.schemas {
		types = append(types, t)
	}
	return types
}

// Validate checks an envelope against its type's schema.
// Unregistered types pass: validation is opt-in per type.
func (r *Registry) Validate(evt Envelope) error {
	schema := r.Get(evt.Type())
	if schema == nil {
		return nil
	}
	return schema.Validate(evt)
}
