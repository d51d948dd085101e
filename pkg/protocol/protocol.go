package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ryandielhenn/auditor/pkg/roster"
)

// Delimiter terminates every query response.
const Delimiter = "\r\n"

var (
	ErrMalformed = errors.New("malformed announcement")
	ErrMissingID = errors.New("announcement has no id")
	ErrBadField  = errors.New("announcement field has the wrong type")
)

var validate = validator.New()

// Announcement is the datagram payload a musician sends.
type Announcement struct {
	ID          string          `json:"id,omitempty" validate:"required"`
	UUID        string          `json:"uuid,omitempty"`
	Sound       json.RawMessage `json:"sound,omitempty"`
	Instrument  string          `json:"instrument"`
	ActiveSince json.RawMessage `json:"activeSince,omitempty"`
}

// DecodeAnnouncement parses one datagram. Any error wraps ErrMalformed,
// ErrMissingID or ErrBadField.
func DecodeAnnouncement(b []byte) (roster.Musician, error) {
	var a Announcement
	if err := json.Unmarshal(b, &a); err != nil {
		var ute *json.UnmarshalTypeError
		if errors.As(err, &ute) && ute.Field != "" {
			return roster.Musician{}, fmt.Errorf("%w: %s", ErrBadField, ute.Field)
		}
		return roster.Musician{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if a.ID == "" {
		a.ID = a.UUID
	}
	// The id is kept byte for byte; whitespace only counts as missing.
	if strings.TrimSpace(a.ID) == "" {
		return roster.Musician{}, ErrMissingID
	}
	if err := validate.Struct(&a); err != nil {
		return roster.Musician{}, fmt.Errorf("%w: %s", ErrBadField, formatValidationError(err))
	}
	if !isScalar(a.ActiveSince) {
		return roster.Musician{}, fmt.Errorf("%w: activeSince must be a string or number", ErrBadField)
	}
	return roster.Musician{
		ID:          a.ID,
		Sound:       a.Sound,
		Instrument:  a.Instrument,
		ActiveSince: a.ActiveSince,
	}, nil
}

// EncodeAnnouncement is the inverse of DecodeAnnouncement, used by emitters.
func EncodeAnnouncement(m roster.Musician) ([]byte, error) {
	if m.ID == "" {
		return nil, ErrMissingID
	}
	return json.Marshal(Announcement{
		ID:          m.ID,
		Sound:       m.Sound,
		Instrument:  m.Instrument,
		ActiveSince: m.ActiveSince,
	})
}

// WriteRoster writes the query response for s, delimiter included.
func WriteRoster(w io.Writer, s []roster.Summary) error {
	if s == nil {
		s = []roster.Summary{}
	}
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode roster: %w", err)
	}
	b = append(b, Delimiter...)
	_, err = w.Write(b)
	return err
}

// DecodeRoster parses a query response. Trailing whitespace, including the
// delimiter, is ignored.
func DecodeRoster(b []byte) ([]roster.Summary, error) {
	b = bytes.TrimSpace(b)
	var out []roster.Summary
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode roster: %w", err)
	}
	if out == nil {
		out = []roster.Summary{}
	}
	return out, nil
}

// isScalar accepts an absent value, null, a JSON string, or a JSON number.
func isScalar(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	if len(v) == 0 {
		return true
	}
	switch c := v[0]; {
	case c == '"', c == '-', c >= '0' && c <= '9':
		return true
	case bytes.Equal(v, []byte("null")):
		return true
	}
	return false
}

func formatValidationError(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", fe.Field()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
