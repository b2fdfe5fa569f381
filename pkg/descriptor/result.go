package descriptor

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// ErrorRecord replaces the descriptor when a run fails.
type ErrorRecord struct {
	Error string `json:"error" yaml:"error"`
}

// ArgumentError is returned when no input path is supplied.
type ArgumentError struct{}

func (ArgumentError) Error() string { return "No audio file path provided" }

// ErrNoPath is the ArgumentError value.
var ErrNoPath error = ArgumentError{}

// Format names a serialization format.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Serializer writes one record.
type Serializer interface {
	Encode(w io.Writer, v any) error
	ContentType() string
}

// JSON writes one compact object per line with non-ASCII text kept as is.
type JSON struct {
	Indent string
}

func (j JSON) Encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if j.Indent != "" {
		enc.SetIndent("", j.Indent)
	}
	return enc.Encode(v)
}

func (JSON) ContentType() string { return "application/json; charset=utf-8" }

// YAML writes one document.
type YAML struct{}

func (YAML) Encode(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func (YAML) ContentType() string { return "application/yaml; charset=utf-8" }

// SerializerFor returns the serializer for a format name. An empty name
// means JSON.
func SerializerFor(format string) (Serializer, error) {
	switch Format(format) {
	case "", FormatJSON:
		return JSON{}, nil
	case FormatYAML:
		return YAML{}, nil
	}
	return nil, fmt.Errorf("unknown format %q (want json or yaml)", format)
}

// WriteResult writes exactly one record: the descriptor when err is nil,
// otherwise an ErrorRecord carrying only err's message. It returns err so
// callers can set their exit status from it.
func WriteResult(w io.Writer, s Serializer, d *AudioDescriptor, err error) error {
	if err == nil && d == nil {
		err = errors.New("no descriptor produced")
	}
	if err != nil {
		if werr := s.Encode(w, ErrorRecord{Error: err.Error()}); werr != nil {
			return errors.Join(err, werr)
		}
		return err
	}
	return s.Encode(w, d)
}
