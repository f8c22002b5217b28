// SPDX-License-Identifier: MPL-2.0

package output

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"slices"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

const (
	// FormatText prints strings as-is and everything else as indented JSON.
	FormatText Format = "text"
	// FormatJSON prints indented JSON.
	FormatJSON Format = "json"
	// FormatYAML prints YAML.
	FormatYAML Format = "yaml"
	// FormatCBOR writes deterministic CBOR.
	FormatCBOR Format = "cbor"
)

// ErrInvalidFormat is the sentinel error wrapped by InvalidFormatError.
var ErrInvalidFormat = errors.New("invalid output format")

var cborEnc cbor.EncMode

type (
	// Format selects an output encoding.
	Format string

	// InvalidFormatError is returned for an unrecognized Format.
	InvalidFormatError struct {
		Value Format
	}

	// Encoder writes values in one Format.
	Encoder struct {
		format Format
		w      io.Writer
	}
)

func init() {
	var err error
	opts := cbor.CoreDetEncOptions()
	opts.TextMarshaler = cbor.TextMarshalerTextString
	cborEnc, err = opts.EncMode()
	if err != nil {
		panic("output: CBOR encoder initialization failed: " + err.Error())
	}
}

// Error implements the error interface.
func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("invalid output format %q (valid: %s)", e.Value, strings.Join(FormatNames(), ", "))
}

// Unwrap returns ErrInvalidFormat for errors.Is() compatibility.
func (e *InvalidFormatError) Unwrap() error { return ErrInvalidFormat }

// Validate returns nil if the format is known.
func (f Format) Validate() error {
	if slices.Contains(FormatNames(), string(f)) {
		return nil
	}
	return &InvalidFormatError{Value: f}
}

// FormatNames lists the accepted format names.
func FormatNames() []string {
	return []string{string(FormatText), string(FormatJSON), string(FormatYAML), string(FormatCBOR)}
}

// NewEncoder returns an Encoder writing format to w.
func NewEncoder(w io.Writer, format Format) (*Encoder, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	return &Encoder{format: format, w: w}, nil
}

// Encode writes v. A nil value writes nothing in text mode and null otherwise.
func (e *Encoder) Encode(v any) error {
	v = normalize(v)
	switch e.format {
	case FormatJSON:
		return e.encodeJSON(v)
	case FormatYAML:
		enc := yaml.NewEncoder(e.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case FormatCBOR:
		data, err := cborEnc.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode cbor: %w", err)
		}
		_, err = e.w.Write(data)
		return err
	default:
		return e.encodeText(v)
	}
}

func (e *Encoder) encodeJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	_, err = fmt.Fprintf(e.w, "%s\n", data)
	return err
}

func (e *Encoder) encodeText(v any) error {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		if val == "" {
			return nil
		}
		_, err := io.WriteString(e.w, strings.TrimSuffix(val, "\n")+"\n")
		return err
	case []byte:
		_, err := e.w.Write(val)
		return err
	case []string:
		for _, s := range val {
			if _, err := fmt.Fprintln(e.w, s); err != nil {
				return err
			}
		}
		return nil
	case map[string]any:
		for _, k := range sortedKeys(val) {
			if _, err := fmt.Fprintf(e.w, "== %s ==\n", k); err != nil {
				return err
			}
			if err := e.encodeText(val[k]); err != nil {
				return err
			}
		}
		return nil
	default:
		return e.encodeJSON(val)
	}
}

// normalize turns string-keyed maps with named key types, such as
// borg.Outputs, into map[string]any so every encoder sees the same shape.
func normalize(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return v
	}
	if _, ok := v.(map[string]any); ok {
		return v
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = normalize(iter.Value().Interface())
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
