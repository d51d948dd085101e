package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/ryandielhenn/auditor/pkg/registry"
	"github.com/ryandielhenn/auditor/pkg/roster"
)

type formatter interface {
	Musicians(w io.Writer, ms []roster.Summary) error
	Auditors(w io.Writer, as []registry.Auditor) error
}

func newFormatter(name string) (formatter, error) {
	switch strings.ToLower(name) {
	case "", "table":
		return tableFormatter{}, nil
	case "json":
		return jsonFormatter{}, nil
	case "yaml", "yml":
		return yamlFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", name)
	}
}

// musicianView decodes activeSince so yaml and tables show the value rather
// than raw JSON bytes.
type musicianView struct {
	ID          string `json:"id" yaml:"id"`
	Instrument  string `json:"instrument" yaml:"instrument"`
	ActiveSince any    `json:"activeSince" yaml:"activeSince"`
}

func views(ms []roster.Summary) []musicianView {
	out := make([]musicianView, 0, len(ms))
	for _, m := range ms {
		v := musicianView{ID: m.ID, Instrument: m.Instrument}
		if len(m.ActiveSince) > 0 {
			if err := json.Unmarshal(m.ActiveSince, &v.ActiveSince); err != nil {
				v.ActiveSince = string(m.ActiveSince)
			}
		}
		out = append(out, v)
	}
	return out
}

type jsonFormatter struct{}

func (jsonFormatter) Musicians(w io.Writer, ms []roster.Summary) error {
	return writeJSON(w, ms)
}

func (jsonFormatter) Auditors(w io.Writer, as []registry.Auditor) error {
	return writeJSON(w, as)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type yamlFormatter struct{}

func (yamlFormatter) Musicians(w io.Writer, ms []roster.Summary) error {
	return writeYAML(w, views(ms))
}

func (yamlFormatter) Auditors(w io.Writer, as []registry.Auditor) error {
	return writeYAML(w, as)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

type tableFormatter struct{}

func (tableFormatter) Musicians(w io.Writer, ms []roster.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tINSTRUMENT\tACTIVE SINCE")
	for _, v := range views(ms) {
		since := ""
		if v.ActiveSince != nil {
			since = fmt.Sprint(v.ActiveSince)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", v.ID, v.Instrument, since)
	}
	return tw.Flush()
}

func (tableFormatter) Auditors(w io.Writer, as []registry.Auditor) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tADDR")
	for _, a := range as {
		fmt.Fprintf(tw, "%s\t%s\n", a.ID, a.Addr)
	}
	return tw.Flush()
}
