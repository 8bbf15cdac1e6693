package layout

import (
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/windowmesh/mesh/pkg/mesh/types"
)

// ErrMalformedDescriptor is returned by Decode when the string does not
// carry the expected prefix or does not parse into a valid Layout.
var ErrMalformedDescriptor = errors.New("layout: malformed descriptor")

const descriptorPrefix = "vfl1."

type descriptorRect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

type descriptorScreen struct {
	ID    string  `json:"id"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	W     float64 `json:"w"`
	H     float64 `json:"h"`
	Scale float64 `json:"scale,omitempty"`
}

type descriptor struct {
	V       int                `json:"v"`
	Frame   descriptorRect     `json:"frame"`
	Screens []descriptorScreen `json:"screens"`
}

// Encode renders l as the §6 layout descriptor string:
// "vfl1.<urlencoded-JSON>".
func Encode(l types.Layout) (string, error) {
	d := descriptor{
		V:     1,
		Frame: descriptorRect(l.Frame),
	}
	for _, s := range l.Screens {
		d.Screens = append(d.Screens, descriptorScreen{
			ID: s.ID, X: s.X, Y: s.Y, W: s.W, H: s.H, Scale: s.Scale,
		})
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return descriptorPrefix + url.QueryEscape(string(raw)), nil
}

// Decode parses a §6 layout descriptor string. Decode is strict: a wrong
// prefix or a schema validation failure both yield ErrMalformedDescriptor.
func Decode(s string) (types.Layout, error) {
	if !strings.HasPrefix(s, descriptorPrefix) {
		return types.Layout{}, ErrMalformedDescriptor
	}
	raw, err := url.QueryUnescape(strings.TrimPrefix(s, descriptorPrefix))
	if err != nil {
		return types.Layout{}, ErrMalformedDescriptor
	}
	var d descriptor
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return types.Layout{}, ErrMalformedDescriptor
	}
	if d.V != 1 {
		return types.Layout{}, ErrMalformedDescriptor
	}
	l := types.Layout{Version: d.V, Frame: types.Rect(d.Frame)}
	for _, ds := range d.Screens {
		l.Screens = append(l.Screens, types.Screen{ID: ds.ID, X: ds.X, Y: ds.Y, W: ds.W, H: ds.H, Scale: ds.Scale})
	}
	if err := l.Validate(); err != nil {
		return types.Layout{}, ErrMalformedDescriptor
	}
	return l, nil
}

const positionPrefix = "pos1."

// DecodeScreenPosition parses a boot-override screen position in any of
// the three encodings spec §6 accepts: the prefixed "pos1.<urlencoded-JSON>"
// form, bare JSON, or an "x,y" comma-separated numeric pair.
func DecodeScreenPosition(s string) (types.Point, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return types.Point{}, false
	}

	if strings.HasPrefix(s, positionPrefix) {
		raw, err := url.QueryUnescape(strings.TrimPrefix(s, positionPrefix))
		if err != nil {
			return types.Point{}, false
		}
		return decodePositionJSON(raw)
	}

	if strings.HasPrefix(s, "{") {
		return decodePositionJSON(s)
	}

	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return types.Point{}, false
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return types.Point{}, false
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return types.Point{}, false
	}
	return types.Point{X: x, Y: y}, true
}

func decodePositionJSON(raw string) (types.Point, bool) {
	var p types.Point
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return types.Point{}, false
	}
	return p, true
}
