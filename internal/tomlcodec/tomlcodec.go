// Package tomlcodec implements a hand-rolled, minimal TOML encoder and
// decoder: flat tables, array tables, and scalar/string/float/slice
// fields, driven by `toml` struct tags. No TOML library appears
// anywhere in the retrieval pack backing this module (SPEC_FULL.md
// §B), so this is the one standard-library-only component, shared by
// the stats snapshot and the declarative checks file, both of which
// need TOML as an alternative to JSON.
//
// It is not a general-purpose TOML parser: no inline tables, no
// multi-line strings, no datetimes.
package tomlcodec

import (
	"bufio"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
)

// Encode renders v (a struct or struct pointer) using `toml` struct
// tags, one top-level key per scalar field, nested structs as
// [section] tables and slices-of-struct as [[section]] array tables.
func Encode(w io.Writer, v any) error {
	bw := bufio.NewWriter(w)
	rv := reflect.Indirect(reflect.ValueOf(v))
	if rv.Kind() != reflect.Struct {
		return fmt.Errorf("tomlcodec: encode target must be a struct, got %s", rv.Kind())
	}
	if err := encodeStructFields(bw, rv); err != nil {
		return err
	}
	return bw.Flush()
}

func encodeStructFields(w *bufio.Writer, rv reflect.Value) error {
	rt := rv.Type()
	var nested []int
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		tag := tomlName(f)
		if tag == "-" {
			continue
		}
		fv := rv.Field(i)
		switch fv.Kind() {
		case reflect.Struct:
			nested = append(nested, i)
			continue
		case reflect.Ptr:
			if fv.Type().Elem().Kind() == reflect.Struct {
				nested = append(nested, i)
				continue
			}
			// pointer to scalar: an optional value, falls through to
			// scalarLine below once dereferenced.
			if fv.IsNil() {
				continue
			}
			fv = fv.Elem()
		case reflect.Slice:
			if fv.Type().Elem().Kind() == reflect.Struct {
				nested = append(nested, i)
				continue
			}
		}
		if isEmptyOmit(f, fv) {
			continue
		}
		line, err := scalarLine(tag, fv)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, line)
	}
	for _, i := range nested {
		f := rt.Field(i)
		tag := tomlName(f)
		fv := rv.Field(i)
		if fv.Kind() == reflect.Ptr {
			if fv.IsNil() {
				continue
			}
			fmt.Fprintf(w, "\n[%s]\n", tag)
			if err := encodeStructFields(w, fv.Elem()); err != nil {
				return err
			}
			continue
		}
		if fv.Kind() == reflect.Struct {
			fmt.Fprintf(w, "\n[%s]\n", tag)
			if err := encodeStructFields(w, fv); err != nil {
				return err
			}
			continue
		}
		if isEmptyOmit(f, fv) {
			continue
		}
		for j := 0; j < fv.Len(); j++ {
			fmt.Fprintf(w, "\n[[%s]]\n", tag)
			if err := encodeStructFields(w, fv.Index(j)); err != nil {
				return err
			}
		}
	}
	return nil
}

func tomlName(f reflect.StructField) string {
	tag := f.Tag.Get("toml")
	if tag == "" {
		return f.Name
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return f.Name
	}
	return name
}

func isEmptyOmit(f reflect.StructField, fv reflect.Value) bool {
	tag := f.Tag.Get("toml")
	if !strings.Contains(tag, "omitempty") {
		return false
	}
	return fv.IsZero()
}

func scalarLine(key string, fv reflect.Value) (string, error) {
	switch fv.Kind() {
	case reflect.String:
		return fmt.Sprintf("%s = %q", key, fv.String()), nil
	case reflect.Bool:
		return fmt.Sprintf("%s = %t", key, fv.Bool()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return fmt.Sprintf("%s = %d", key, fv.Uint()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fmt.Sprintf("%s = %d", key, fv.Int()), nil
	case reflect.Float32, reflect.Float64:
		return fmt.Sprintf("%s = %s", key, strconv.FormatFloat(fv.Float(), 'g', -1, 64)), nil
	case reflect.Array, reflect.Slice:
		parts := make([]string, fv.Len())
		for i := 0; i < fv.Len(); i++ {
			s, err := scalarValue(fv.Index(i))
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return fmt.Sprintf("%s = [%s]", key, strings.Join(parts, ", ")), nil
	default:
		return "", fmt.Errorf("tomlcodec: unsupported scalar kind %s for key %s", fv.Kind(), key)
	}
}

func scalarValue(fv reflect.Value) (string, error) {
	switch fv.Kind() {
	case reflect.String:
		return strconv.Quote(fv.String()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(fv.Uint(), 10), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(fv.Int(), 10), nil
	default:
		return "", fmt.Errorf("tomlcodec: unsupported array element kind %s", fv.Kind())
	}
}

// Decode parses the minimal subset Encode writes into v (a pointer to
// struct). Unknown keys are a hard error.
func Decode(r io.Reader, v any) error {
	rv := reflect.Indirect(reflect.ValueOf(v))
	if rv.Kind() != reflect.Struct {
		return fmt.Errorf("tomlcodec: decode target must be a struct pointer")
	}

	sc := bufio.NewScanner(r)
	cur := rv
	curPath := ""
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[[") && strings.HasSuffix(line, "]]") {
			name := strings.TrimSuffix(strings.TrimPrefix(line, "[["), "]]")
			fv, err := findField(rv, name)
			if err != nil {
				return err
			}
			elem := reflect.New(fv.Type().Elem()).Elem()
			fv.Set(reflect.Append(fv, elem))
			cur = fv.Index(fv.Len() - 1)
			curPath = name
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			name := strings.TrimSuffix(strings.TrimPrefix(line, "["), "]")
			fv, err := findField(rv, name)
			if err != nil {
				return err
			}
			if fv.Kind() == reflect.Ptr {
				if fv.IsNil() {
					fv.Set(reflect.New(fv.Type().Elem()))
				}
				fv = fv.Elem()
			}
			cur = fv
			curPath = name
			continue
		}
		key, rest, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("tomlcodec: malformed line %q", line)
		}
		key = strings.TrimSpace(key)
		rest = strings.TrimSpace(rest)
		fv, err := findField(cur, key)
		if err != nil {
			return fmt.Errorf("tomlcodec: in table %q: %w", curPath, err)
		}
		if err := setScalar(fv, rest); err != nil {
			return fmt.Errorf("tomlcodec: key %q: %w", key, err)
		}
	}
	return sc.Err()
}

func findField(rv reflect.Value, name string) (reflect.Value, error) {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if tomlName(f) == name {
			return rv.Field(i), nil
		}
	}
	return reflect.Value{}, fmt.Errorf("tomlcodec: unknown key %q", name)
}

func setScalar(fv reflect.Value, raw string) error {
	if fv.Kind() == reflect.Ptr {
		if fv.IsNil() {
			fv.Set(reflect.New(fv.Type().Elem()))
		}
		return setScalar(fv.Elem(), raw)
	}
	switch fv.Kind() {
	case reflect.String:
		s, err := strconv.Unquote(raw)
		if err != nil {
			return err
		}
		fv.SetString(s)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		fv.SetBool(b)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return err
		}
		fv.SetUint(n)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		fv.SetInt(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		fv.SetFloat(f)
	case reflect.Array, reflect.Slice:
		raw = strings.TrimSpace(raw)
		raw = strings.TrimPrefix(raw, "[")
		raw = strings.TrimSuffix(raw, "]")
		if strings.TrimSpace(raw) == "" {
			if fv.Kind() == reflect.Slice {
				fv.Set(reflect.MakeSlice(fv.Type(), 0, 0))
			}
			return nil
		}
		parts := splitTopLevel(raw)
		if fv.Kind() == reflect.Array {
			if len(parts) != fv.Len() {
				return fmt.Errorf("array length %d does not match %d elements", fv.Len(), len(parts))
			}
			for i, p := range parts {
				if err := setScalar(fv.Index(i), strings.TrimSpace(p)); err != nil {
					return err
				}
			}
			return nil
		}
		out := reflect.MakeSlice(fv.Type(), len(parts), len(parts))
		for i, p := range parts {
			if err := setScalar(out.Index(i), strings.TrimSpace(p)); err != nil {
				return err
			}
		}
		fv.Set(out)
	default:
		return fmt.Errorf("tomlcodec: unsupported kind %s", fv.Kind())
	}
	return nil
}

func splitTopLevel(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '[':
			depth++
		case ']':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}
