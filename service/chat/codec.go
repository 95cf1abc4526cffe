package chat

import (
	"encoding/json"
	"strings"

	"ArgbRelay/tools/decode"
	"ArgbRelay/tools/errs"
)

const (
	// ModeColor carries R, G, B and W; every other mode carries A.
	ModeColor = "0"

	colorWidth = 3
	argsWidth  = 5
)

// Update is one inbound state update.
type Update struct {
	Mode      string `json:"M"`
	Red       string `json:"R"`
	Green     string `json:"G"`
	Blue      string `json:"B"`
	White     string `json:"W"`
	Arguments string `json:"A"`
}

// Decode parses a frame and returns its fixed-width wire form.
func Decode(raw []byte) ([]byte, error) {
	u, err := ParseUpdate(raw)
	if err != nil {
		return nil, err
	}
	return u.Encode()
}

// ParseUpdate accepts a JSON object. Field values may be strings or JSON numbers.
func ParseUpdate(raw []byte) (*Update, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errs.ErrMalformedMessage.WrapMsg("invalid json", "err", err)
	}
	m, ok := doc.(map[string]any)
	if !ok {
		return nil, errs.ErrMalformedMessage.WrapMsg("not an object")
	}
	u, err := decode.DecodeMap[Update](m)
	if err != nil {
		return nil, errs.ErrMalformedMessage.WrapMsg("bad field", "err", err)
	}
	return u, nil
}

// Encode pads each field to its width and concatenates them behind the mode.
func (u *Update) Encode() ([]byte, error) {
	if len(u.Mode) != 1 {
		return nil, errs.ErrMalformedMessage.WrapMsg("mode must be one character", "M", u.Mode)
	}

	var sb strings.Builder
	sb.WriteString(u.Mode)

	if u.Mode == ModeColor {
		sb.Grow(4 * colorWidth)
		for _, f := range []struct{ name, v string }{
			{"R", u.Red}, {"G", u.Green}, {"B", u.Blue}, {"W", u.White},
		} {
			if err := writePadded(&sb, f.name, f.v, colorWidth); err != nil {
				return nil, err
			}
		}
		return []byte(sb.String()), nil
	}

	if err := writePadded(&sb, "A", u.Arguments, argsWidth); err != nil {
		return nil, err
	}
	return []byte(sb.String()), nil
}

func writePadded(sb *strings.Builder, name, v string, width int) error {
	if len(v) > width {
		return errs.ErrMalformedMessage.WrapMsg("field too long", name, v, "width", width)
	}
	for i := 0; i < len(v); i++ {
		if v[i] < '0' || v[i] > '9' {
			return errs.ErrMalformedMessage.WrapMsg("field is not decimal", name, v)
		}
	}
	sb.WriteString(strings.Repeat("0", width-len(v)))
	sb.WriteString(v)
	return nil
}
