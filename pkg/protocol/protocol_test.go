package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryandielhenn/auditor/pkg/roster"
)

func TestDecodeAnnouncement(t *testing.T) {
	m, err := DecodeAnnouncement([]byte(`{"id":"m1","sound":"c4","instrument":"piano","activeSince":"10:00"}`))
	require.NoError(t, err)
	assert.Equal(t, "m1", m.ID)
	assert.Equal(t, "piano", m.Instrument)
	assert.JSONEq(t, `"c4"`, string(m.Sound))
	assert.Equal(t, `"10:00"`, string(m.ActiveSince))
}

func TestDecodeAnnouncementLegacyUUID(t *testing.T) {
	m, err := DecodeAnnouncement([]byte(`{"uuid":"0f1e","sound":"pouet","instrument":"trumpet","activeSince":1700000000}`))
	require.NoError(t, err)
	assert.Equal(t, "0f1e", m.ID)
	assert.Equal(t, "1700000000", string(m.ActiveSince))

	// id wins when both are present
	m, err = DecodeAnnouncement([]byte(`{"id":"a","uuid":"b"}`))
	require.NoError(t, err)
	assert.Equal(t, "a", m.ID)
}

func TestDecodeAnnouncementKeepsOpaqueValues(t *testing.T) {
	in := `{"id":"m1","sound":{"notes":["c4","e4"],"bpm":120},"instrument":"piano","activeSince":1.5e9}`
	m, err := DecodeAnnouncement([]byte(in))
	require.NoError(t, err)
	assert.Equal(t, `{"notes":["c4","e4"],"bpm":120}`, string(m.Sound))
	assert.Equal(t, `1.5e9`, string(m.ActiveSince))
}

func TestDecodeAnnouncementRejects(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want error
	}{
		{"not json", `ti-ta-ti`, ErrMalformed},
		{"truncated", `{"id":"m1"`, ErrMalformed},
		{"array", `[1,2]`, ErrMalformed},
		{"empty object", `{}`, ErrMissingID},
		{"blank id", `{"id":"   ","instrument":"piano"}`, ErrMissingID},
		{"null id", `{"id":null}`, ErrMissingID},
		{"numeric id", `{"id":42}`, ErrBadField},
		{"numeric instrument", `{"id":"m1","instrument":7}`, ErrBadField},
		{"object activeSince", `{"id":"m1","activeSince":{"t":1}}`, ErrBadField},
	}
	for _, c := range cases {
		_, err := DecodeAnnouncement([]byte(c.in))
		if !errors.Is(err, c.want) {
			t.Fatalf("%s: DecodeAnnouncement(%q) err = %v, want %v", c.name, c.in, err, c.want)
		}
	}
}

func TestDecodeAnnouncementKeepsIDVerbatim(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	tr := roster.New()
	for _, in := range []string{
		`{"id":"m1","instrument":"piano"}`,
		`{"id":" m1 ","instrument":"flute"}`,
	} {
		m, err := DecodeAnnouncement([]byte(in))
		require.NoError(t, err)
		tr.Upsert(m, now)
	}

	got := tr.Snapshot(now)
	require.Len(t, got, 2)
	assert.Equal(t, "m1", got[0].ID)
	assert.Equal(t, " m1 ", got[1].ID)
	assert.Equal(t, "flute", got[1].Instrument)
}

func TestDecodeAnnouncementNoLengthLimit(t *testing.T) {
	id := strings.Repeat("x", 4096)
	instrument := strings.Repeat("y", 1024)
	m, err := DecodeAnnouncement([]byte(`{"id":"` + id + `","instrument":"` + instrument + `"}`))
	require.NoError(t, err)
	assert.Equal(t, id, m.ID)
	assert.Equal(t, instrument, m.Instrument)
}

func TestEncodeAnnouncementDecodes(t *testing.T) {
	want := roster.Musician{
		ID:          "m1",
		Sound:       json.RawMessage(`"gzi-gzi"`),
		Instrument:  "violin",
		ActiveSince: json.RawMessage(`"2024-03-01T10:00:00Z"`),
	}
	b, err := EncodeAnnouncement(want)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "uuid")

	got, err := DecodeAnnouncement(b)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = EncodeAnnouncement(roster.Musician{Instrument: "violin"})
	assert.ErrorIs(t, err, ErrMissingID)
}

func TestWriteRoster(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRoster(&buf, []roster.Summary{
		{ID: "m1", Instrument: "piano", ActiveSince: json.RawMessage(`"10:00"`)},
	}))
	assert.Equal(t, `[{"id":"m1","instrument":"piano","activeSince":"10:00"}]`+"\r\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteRoster(&buf, nil))
	assert.Equal(t, "[]\r\n", buf.String())
}

func TestDecodeRoster(t *testing.T) {
	got, err := DecodeRoster([]byte(`[{"id":"m2","instrument":"flute","activeSince":"10:01"}]` + "\r\n"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "m2", got[0].ID)
	assert.Equal(t, "flute", got[0].Instrument)

	got, err = DecodeRoster([]byte("[]\r\n"))
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	_, err = DecodeRoster([]byte("nope"))
	assert.Error(t, err)
}
