package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ryandielhenn/auditor/pkg/registry"
	"github.com/ryandielhenn/auditor/pkg/responder"
	"github.com/ryandielhenn/auditor/pkg/roster"
)

var sample = []roster.Summary{
	{ID: "m1", Instrument: "piano", ActiveSince: json.RawMessage(`"2024-03-01T10:00:00Z"`)},
	{ID: "m2", Instrument: "drum", ActiveSince: json.RawMessage(`1700000000`)},
}

func TestTableFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, tableFormatter{}.Musicians(&buf, sample))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "2024-03-01T10:00:00Z")
	assert.NotContains(t, lines[1], `"`)
	assert.Contains(t, lines[2], "1.7e+09")
}

func TestYAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, yamlFormatter{}.Musicians(&buf, sample))

	var got []map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "m1", got[0]["id"])
	assert.Equal(t, "piano", got[0]["instrument"])
	assert.Equal(t, "2024-03-01T10:00:00Z", got[0]["activeSince"])
}

func TestJSONFormatterAuditors(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jsonFormatter{}.Auditors(&buf, []registry.Auditor{{ID: "a1", Addr: "h:2205"}}))
	assert.JSONEq(t, `[{"id":"a1","addr":"h:2205"}]`, buf.String())
}

func TestNewFormatterUnknown(t *testing.T) {
	_, err := newFormatter("xml")
	assert.Error(t, err)
}

func TestQueryCommand(t *testing.T) {
	tr := roster.New()
	tr.Upsert(roster.Musician{ID: "m1", Instrument: "violin", ActiveSince: json.RawMessage(`"10:00"`)}, time.Now())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go responder.NewServer(tr, nil).Serve(ctx, ln)

	var out bytes.Buffer
	app := App()
	app.Writer = &out
	require.NoError(t, app.Run([]string{"auditorctl", "-o", "json", "query", "--addr", ln.Addr().String()}))

	var got []map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "violin", got[0]["instrument"])
}

func TestQueryCommandNormalizesAddr(t *testing.T) {
	tr := roster.New()
	tr.Upsert(roster.Musician{ID: "m2", Instrument: "drum"}, time.Now())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go responder.NewServer(tr, nil).Serve(ctx, ln)

	var out bytes.Buffer
	app := App()
	app.Writer = &out
	require.NoError(t, app.Run([]string{"auditorctl", "-o", "json", "query", "--addr", "http://" + ln.Addr().String()}))

	var got []map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "m2", got[0]["id"])
}

func TestQueryCommandNeedsAddress(t *testing.T) {
	t.Setenv("AUDITOR_ADDR", "")
	t.Setenv("AUDITOR_ETCD_ENDPOINTS", "")
	app := App()
	app.Writer = &bytes.Buffer{}
	err := app.Run([]string{"auditorctl", "query"})
	assert.ErrorIs(t, err, errNoAuditor)
}
