// Package models contains the error record model shared by the stores, the HTTP API and the reporter.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
)

// ErrorRecord is an operationally significant failure reported by a running service.
// Unresolved records with the same Description and HostName describe the same problem;
// stores count repeated occurrences on one row instead of adding rows.
//
// A struct literal is the unvalidated way to build one. NewUnresolved and NewResolved
// validate their input.
type ErrorRecord struct {
	ID                    int64     `db:"id"                      json:"id"`
	CreatedAt             time.Time `db:"created_at"              json:"created_at"`
	UpdatedAt             time.Time `db:"updated_at"              json:"updated_at"`
	NumTimesOccurred      int       `db:"num_times_occurred"      json:"num_times_occurred"`
	Description           string    `db:"description"             json:"description"`
	ExceptionType         *string   `db:"exception_type"          json:"exception_type,omitempty"`
	ExceptionMessage      *string   `db:"exception_message"       json:"exception_message,omitempty"`
	ExceptionCauseType    *string   `db:"exception_cause_type"    json:"exception_cause_type,omitempty"`
	ExceptionCauseMessage *string   `db:"exception_cause_message" json:"exception_cause_message,omitempty"`
	StackTrace            *string   `db:"stack_trace"             json:"stack_trace,omitempty"`
	Resolved              bool      `db:"resolved"                json:"resolved"`
	HostName              string    `db:"host_name"               json:"host_name"`
	IPAddress             string    `db:"ip_address"              json:"ip_address"`
	Port                  int       `db:"port"                    json:"port"`
}

// HasID reports whether the record has been persisted.
func (r *ErrorRecord) HasID() bool {
	return r.ID != 0
}

// Clone returns a deep copy.
func (r *ErrorRecord) Clone() *ErrorRecord {
	c := *r
	c.ExceptionType = cloneString(r.ExceptionType)
	c.ExceptionMessage = cloneString(r.ExceptionMessage)
	c.ExceptionCauseType = cloneString(r.ExceptionCauseType)
	c.ExceptionCauseMessage = cloneString(r.ExceptionCauseMessage)
	c.StackTrace = cloneString(r.StackTrace)
	return &c
}

// NewUnresolved builds a validated, unresolved record stamped with host.
// cause may be nil; when present its type, message and stack are captured along
// with the type and message of its direct cause.
func NewUnresolved(host HostIdentity, description string, cause error) (*ErrorRecord, error) {
	return newRecord(host, description, cause, false)
}

// NewResolved is NewUnresolved for a problem that is already resolved when reported.
func NewResolved(host HostIdentity, description string, cause error) (*ErrorRecord, error) {
	return newRecord(host, description, cause, true)
}

func newRecord(host HostIdentity, description string, cause error, resolved bool) (*ErrorRecord, error) {
	if host.IsZero() {
		return nil, ErrHostNotConfigured
	}
	if strings.TrimSpace(description) == "" {
		return nil, fmt.Errorf("%w: description must not be blank", ErrInvalidArgument)
	}
	if err := host.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	r := &ErrorRecord{
		CreatedAt:        now,
		UpdatedAt:        now,
		NumTimesOccurred: 1,
		Description:      description,
		Resolved:         resolved,
		HostName:         host.HostName,
		IPAddress:        host.IPAddress,
		Port:             host.Port,
	}
	if cause != nil {
		r.ExceptionType, r.ExceptionMessage = describe(cause)
		if direct := directCause(cause); direct != nil {
			r.ExceptionCauseType, r.ExceptionCauseMessage = describe(direct)
		}
		trace := renderStackTrace(cause)
		r.StackTrace = &trace
	}
	return r, nil
}

func describe(err error) (*string, *string) {
	typ := fmt.Sprintf("%T", err)
	msg := err.Error()
	return &typ, &msg
}

// directCause unwraps exactly one level.
func directCause(err error) error {
	switch u := err.(type) {
	case interface{ Unwrap() error }:
		return u.Unwrap()
	case interface{ Unwrap() []error }:
		if errs := u.Unwrap(); len(errs) > 0 {
			return errs[0]
		}
	}
	return nil
}

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// renderStackTrace prints the error with the stack it carries, or with the
// current stack when it carries none.
func renderStackTrace(err error) string {
	var st stackTracer
	if errors.As(err, &st) {
		return fmt.Sprintf("%+v", err)
	}
	return fmt.Sprintf("%+v", pkgerrors.WithStack(err))
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
