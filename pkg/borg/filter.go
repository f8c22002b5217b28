// SPDX-License-Identifier: MPL-2.0

package borg

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

const flagTag = "flag"

var commonOptionsType = reflect.TypeOf(CommonOptions{})

// normalizeOptionName maps dry_run, dry-run and Dry-Run to one spelling.
func normalizeOptionName(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "_", "-"))
}

func newOptionDecoder(target any, md *mapstructure.Metadata) (*mapstructure.Decoder, error) {
	return mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          flagTag,
		Squash:           true,
		WeaklyTypedInput: true,
		Metadata:         md,
		Result:           target,
		MatchName: func(mapKey, fieldName string) bool {
			return normalizeOptionName(mapKey) == normalizeOptionName(fieldName)
		},
	})
}

// DecodeOptions decodes values strictly into target, a pointer to an options
// struct. Keys are matched with '_' and '-' treated alike. Unknown keys are
// reported in an InvalidOptionError.
func DecodeOptions(command string, values map[string]any, target Options) error {
	if len(values) == 0 {
		return nil
	}

	var md mapstructure.Metadata
	dec, err := newOptionDecoder(target, &md)
	if err != nil {
		return &InvalidOptionError{Command: command, Cause: err}
	}
	if err := dec.Decode(values); err != nil {
		return &InvalidOptionError{Command: command, Cause: err}
	}
	if len(md.Unused) > 0 {
		sort.Strings(md.Unused)
		return &InvalidOptionError{Command: command, Keys: md.Unused}
	}
	return nil
}

// applySharedOptions decodes values leniently into every option category
// embedded in target. Command-specific fields are left alone and unknown
// keys are ignored, so one shared map can serve every command.
func applySharedOptions(command string, values map[string]any, target Options) error {
	if len(values) == 0 {
		return nil
	}

	v := reflect.ValueOf(target).Elem()
	if v.Type() == commonOptionsType {
		return decodeLenient(command, values, target)
	}
	for i := 0; i < v.NumField(); i++ {
		f := v.Type().Field(i)
		if !f.Anonymous || f.Type.Kind() != reflect.Struct {
			continue
		}
		if err := decodeLenient(command, values, v.Field(i).Addr().Interface()); err != nil {
			return err
		}
	}
	return nil
}

func decodeLenient(command string, values map[string]any, target any) error {
	dec, err := newOptionDecoder(target, nil)
	if err != nil {
		return &InvalidOptionError{Command: command, Cause: err}
	}
	if err := dec.Decode(values); err != nil {
		return &InvalidOptionError{Command: command, Cause: err}
	}
	return nil
}

// overlayOptions copies every non-zero field of src onto dst. Both must be
// pointers to the same struct type. A false bool cannot clear a true value.
func overlayOptions(dst, src Options) {
	overlayValue(reflect.ValueOf(dst).Elem(), reflect.ValueOf(src).Elem())
}

func overlayValue(dst, src reflect.Value) {
	for i := 0; i < src.NumField(); i++ {
		sf := src.Field(i)
		if src.Type().Field(i).Anonymous && sf.Kind() == reflect.Struct {
			overlayValue(dst.Field(i), sf)
			continue
		}
		if !sf.IsZero() {
			dst.Field(i).Set(sf)
		}
	}
}

// EncodeOptions converts an options struct into option values. Common options
// come first, then the command's own fields, then the embedded categories,
// each in declaration order.
func EncodeOptions(opts Options) []OptionValue {
	v := reflect.ValueOf(opts).Elem()
	if v.Type() == commonOptionsType {
		return encodeFields(v, nil)
	}

	var common, own, categories []OptionValue
	for i := 0; i < v.NumField(); i++ {
		f := v.Type().Field(i)
		fv := v.Field(i)
		switch {
		case f.Anonymous && f.Type == commonOptionsType:
			common = encodeFields(fv, common)
		case f.Anonymous && f.Type.Kind() == reflect.Struct:
			categories = encodeFields(fv, categories)
		default:
			own = appendField(own, f, fv)
		}
	}

	out := make([]OptionValue, 0, len(common)+len(own)+len(categories))
	out = append(out, common...)
	out = append(out, own...)
	return append(out, categories...)
}

func encodeFields(v reflect.Value, out []OptionValue) []OptionValue {
	for i := 0; i < v.NumField(); i++ {
		f := v.Type().Field(i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			out = encodeFields(v.Field(i), out)
			continue
		}
		out = appendField(out, f, v.Field(i))
	}
	return out
}

func appendField(out []OptionValue, f reflect.StructField, v reflect.Value) []OptionValue {
	name := f.Tag.Get(flagTag)
	if name == "" || name == "-" || v.IsZero() {
		return out
	}

	switch v.Kind() {
	case reflect.Bool:
		return append(out, Flag(name))
	case reflect.String:
		return append(out, Scalar(name, v.String()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return append(out, Scalar(name, strconv.FormatInt(v.Int(), 10)))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return append(out, Scalar(name, strconv.FormatUint(v.Uint(), 10)))
	case reflect.Slice:
		values := make([]string, v.Len())
		for i := range values {
			values[i] = fmt.Sprint(v.Index(i).Interface())
		}
		return append(out, List(name, values...))
	default:
		panic(fmt.Sprintf("borg: unsupported option type %s for %q", v.Type(), name))
	}
}

// optionFields returns the flag names an options struct accepts, in encoding order.
func optionFields(opts Options) []string {
	var names []string
	var walk func(t reflect.Type)
	walk = func(t reflect.Type) {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if f.Anonymous && f.Type.Kind() == reflect.Struct {
				walk(f.Type)
				continue
			}
			if name := f.Tag.Get(flagTag); name != "" && name != "-" {
				names = append(names, name)
			}
		}
	}
	walk(reflect.TypeOf(opts).Elem())
	return names
}
