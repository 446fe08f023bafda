// Package render writes command results as json, yaml or an aligned table.
//
// Without --format, a terminal gets a table and a pipe gets json.
// --no-color only affects tables.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

// Format is an output format.
type Format string

// Supported formats.
const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a --format value. Empty means "pick a default".
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatTable, FormatYAML, "":
		return f, nil
	}
	return "", fmt.Errorf("invalid format: %q (must be json, table, or yaml)", s)
}

// Renderer writes values in one format.
type Renderer struct {
	format  Format
	noColor bool
	out     io.Writer
}

// NewRenderer reads --format and --no-color from c and writes to stdout.
func NewRenderer(c *cli.Context) (*Renderer, error) {
	format, err := ParseFormat(c.String("format"))
	if err != nil {
		return nil, err
	}
	if format == "" {
		format = FormatJSON
		if isTTY(os.Stdout) {
			format = FormatTable
		}
	}
	return NewRendererWithWriter(format, c.Bool("no-color"), os.Stdout), nil
}

// NewRendererWithWriter creates a renderer writing to out.
func NewRendererWithWriter(format Format, noColor bool, out io.Writer) *Renderer {
	return &Renderer{format: format, noColor: noColor, out: out}
}

// Render writes data.
func (r *Renderer) Render(data any) error {
	switch r.format {
	case FormatJSON:
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatYAML:
		enc := yaml.NewEncoder(r.out)
		enc.SetIndent(2)
		return enc.Encode(data)
	case FormatTable:
		return r.table(data)
	}
	return fmt.Errorf("unknown format: %s", r.format)
}

var headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))

func (r *Renderer) header(s string) string {
	if r.noColor {
		return s
	}
	return headerStyle.Render(s)
}

func (r *Renderer) table(data any) error {
	v := indirect(reflect.ValueOf(data))
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			_, err := fmt.Fprintln(r.out, "(no results)")
			return err
		}
		return r.grid(v)
	case reflect.Struct, reflect.Map:
		return r.labels(v)
	}
	_, err := fmt.Fprintf(r.out, "%v\n", data)
	return err
}

// grid renders one row per element under a header taken from the first.
func (r *Renderer) grid(v reflect.Value) error {
	names, pick := columns(indirect(v.Index(0)))
	rows := [][]string{names}
	for i := 0; i < v.Len(); i++ {
		rows = append(rows, pick(indirect(v.Index(i))))
	}

	text, err := align(rows)
	if err != nil {
		return err
	}
	// style after alignment so escapes do not skew column widths
	head, rest, _ := strings.Cut(text, "\n")
	_, err = fmt.Fprintf(r.out, "%s\n%s", r.header(head), rest)
	return err
}

// labels renders a struct or map as "name:  value" lines.
func (r *Renderer) labels(v reflect.Value) error {
	names, pick := columns(v)
	values := pick(v)
	rows := make([][]string, len(names))
	for i, name := range names {
		rows[i] = []string{name + ":", values[i]}
	}
	text, err := align(rows)
	if err != nil {
		return err
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}
		label, rest, _ := strings.Cut(line, ":")
		if _, err := fmt.Fprint(r.out, r.header(label+":")+rest); err != nil {
			return err
		}
	}
	return nil
}

// columns returns column names for v and a function extracting the cells
// of a value shaped like v.
func columns(v reflect.Value) ([]string, func(reflect.Value) []string) {
	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		var names []string
		var idx []int
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			name := fieldName(f)
			if name == "-" {
				continue
			}
			names = append(names, name)
			idx = append(idx, i)
		}
		return names, func(row reflect.Value) []string {
			cells := make([]string, len(idx))
			for i, fi := range idx {
				cells[i] = cell(row.Field(fi))
			}
			return cells
		}
	case reflect.Map:
		var names []string
		for _, k := range v.MapKeys() {
			names = append(names, fmt.Sprint(k.Interface()))
		}
		sort.Strings(names)
		return names, func(row reflect.Value) []string {
			cells := make([]string, len(names))
			for i, name := range names {
				cells[i] = cell(row.MapIndex(reflect.ValueOf(name)))
			}
			return cells
		}
	}
	return []string{"value"}, func(row reflect.Value) []string { return []string{cell(row)} }
}

func fieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" {
		return strings.ToLower(f.Name)
	}
	return name
}

var timeType = reflect.TypeOf(time.Time{})

// cell formats one value for a table. Short string lists are shown in
// full, longer collections as a count.
func cell(v reflect.Value) string {
	v = indirect(v)
	if !v.IsValid() {
		return ""
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			return "[]"
		}
		if v.Type().Elem().Kind() == reflect.String && v.Len() <= 3 {
			parts := make([]string, v.Len())
			for i := range parts {
				parts[i] = v.Index(i).String()
			}
			return strings.Join(parts, ",")
		}
		return fmt.Sprintf("[%d items]", v.Len())
	case reflect.Map:
		if v.Len() == 0 {
			return "{}"
		}
		return fmt.Sprintf("{%d keys}", v.Len())
	case reflect.Struct:
		if v.Type() == timeType {
			return v.Interface().(time.Time).Format(time.RFC3339)
		}
		return "{...}"
	}
	return fmt.Sprint(v.Interface())
}

func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func align(rows [][]string) (string, error) {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	if err := w.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func isTTY(f *os.File) bool {
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}
