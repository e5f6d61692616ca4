// SPDX-License-Identifier: Apache-2.0

// Package storeerrors defines the error taxonomy shared by every layer of
// the store: document-store DAO, filesystem DAO, in-memory DAO, domain-model
// registry, data repository, in-memory repository and unit of work. Every
// layer raises the types below and records itself in their LayerName
// field; every type reports a Kind() drawn from the fixed set below and a
// Layer(), so callers can match on the concrete type, on Kind()
// (cross-layer) or on Layer().
package storeerrors

import (
	"errors"
	"fmt"
)

// Kind is the cross-layer classification of a failure.
type Kind string

const (
	KindNotFound      Kind = "not_found"
	KindAlreadyExists Kind = "already_exists"
	KindRange         Kind = "range"
	KindArgumentType  Kind = "argument_type"
	KindArgumentName  Kind = "argument_name"
	KindArgumentValue Kind = "argument_value"
	KindValidation    Kind = "validation"
	KindConfig        Kind = "config"
	KindUncaught      Kind = "uncaught"
)

// Layered is implemented by every error type in this package, so callers
// can ask "what layer, what kind"
// without a type switch over every concrete type.
type Layered interface {
	error
	Kind() Kind
	Layer() string
}

// NotFoundError reports that an identity has no live row.
type NotFoundError struct {
	LayerName string
	Collection string
	Identity   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s %s: not found", e.LayerName, e.Collection, e.Identity)
}
func (e *NotFoundError) Kind() Kind    { return KindNotFound }
func (e *NotFoundError) Layer() string { return e.LayerName }

// AlreadyExistsError reports a conflicting live row or registered identity.
type AlreadyExistsError struct {
	LayerName  string
	Collection string
	Identity   string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s: %s %s: already exists", e.LayerName, e.Collection, e.Identity)
}
func (e *AlreadyExistsError) Kind() Kind    { return KindAlreadyExists }
func (e *AlreadyExistsError) Layer() string { return e.LayerName }

// RangeError reports a pagination/index argument that is out of bounds
// (e.g. nth_most_recent greater than the number of available tombstones).
type RangeError struct {
	LayerName string
	Message   string
}

func (e *RangeError) Error() string    { return fmt.Sprintf("%s: %s", e.LayerName, e.Message) }
func (e *RangeError) Kind() Kind       { return KindRange }
func (e *RangeError) Layer() string    { return e.LayerName }

// ArgumentTypeError reports a call argument of the wrong Go type.
type ArgumentTypeError struct {
	LayerName string
	Name      string
	Want      string
	Got       string
}

func (e *ArgumentTypeError) Error() string {
	return fmt.Sprintf("%s: argument %q: want %s, got %s", e.LayerName, e.Name, e.Want, e.Got)
}
func (e *ArgumentTypeError) Kind() Kind    { return KindArgumentType }
func (e *ArgumentTypeError) Layer() string { return e.LayerName }

// ArgumentNameError reports an unrecognized keyword/field name, e.g. an
// index keyword argument the DAO does not know about.
type ArgumentNameError struct {
	LayerName string
	Name      string
}

func (e *ArgumentNameError) Error() string {
	return fmt.Sprintf("%s: unrecognized argument %q", e.LayerName, e.Name)
}
func (e *ArgumentNameError) Kind() Kind    { return KindArgumentName }
func (e *ArgumentNameError) Layer() string { return e.LayerName }

// ArgumentValueError reports a structurally valid but semantically invalid
// argument value (e.g. an empty project name).
type ArgumentValueError struct {
	LayerName string
	Name      string
	Message   string
}

func (e *ArgumentValueError) Error() string {
	return fmt.Sprintf("%s: argument %q: %s", e.LayerName, e.Name, e.Message)
}
func (e *ArgumentValueError) Kind() Kind    { return KindArgumentValue }
func (e *ArgumentValueError) Layer() string { return e.LayerName }

// ValidationError carries a rich diagnostic for a schema validation failure:
// the JSON-Schema path at which validation failed, the offending instance
// value, the name of the property that failed (if the failure is scoped to
// one top-level record field), and the schema name being validated against.
type ValidationError struct {
	LayerName  string
	SchemaName string
	Property   string
	SchemaPath string
	Instance   string
	Reason     string
}

func (e *ValidationError) Error() string {
	if e.Property != "" {
		return fmt.Sprintf("%s: validation of %q against schema %q failed at %s: %s (instance: %s)",
			e.LayerName, e.Property, e.SchemaName, e.SchemaPath, e.Reason, e.Instance)
	}
	return fmt.Sprintf("%s: validation against schema %q failed at %s: %s (instance: %s)",
		e.LayerName, e.SchemaName, e.SchemaPath, e.Reason, e.Instance)
}
func (e *ValidationError) Kind() Kind    { return KindValidation }
func (e *ValidationError) Layer() string { return e.LayerName }

// ConfigError reports a malformed or missing configuration value.
type ConfigError struct {
	LayerName string
	Message   string
}

func (e *ConfigError) Error() string    { return fmt.Sprintf("%s: config: %s", e.LayerName, e.Message) }
func (e *ConfigError) Kind() Kind       { return KindConfig }
func (e *ConfigError) Layer() string    { return e.LayerName }

// UncaughtError wraps an unexpected backend failure (I/O error, driver
// panic recovered as an error, etc.), preserving both the original error and
// a snapshot of the call that triggered it.
type UncaughtError struct {
	LayerName string
	Op        string
	Err       error
}

func (e *UncaughtError) Error() string {
	return fmt.Sprintf("%s: uncaught error during %s: %s", e.LayerName, e.Op, e.Err)
}
func (e *UncaughtError) Kind() Kind    { return KindUncaught }
func (e *UncaughtError) Layer() string { return e.LayerName }
func (e *UncaughtError) Unwrap() error { return e.Err }

// KindOf extracts the Kind of err if it (or something it wraps) implements
// Layered, and ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var layered Layered
	if errors.As(err, &layered) {
		return layered.Kind(), true
	}
	return "", false
}
