// Package types holds the data model shared by every windowmesh package:
// the geometry primitives, the peer/engine snapshots, and the wire messages
// exchanged over a Transport.
package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

var (
	ErrNoScreens         = errors.New("layout has no screens")
	ErrInvalidScreenSize = errors.New("screen must have positive width and height")
	ErrDuplicateScreenID = errors.New("duplicate screen id in layout")
	ErrFrameMismatch     = errors.New("frame is not the union of its screens")
)

// Rect is an axis-aligned rectangle. Width and height must be positive for
// the rectangle to be considered a valid screen contributor.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Valid reports whether r has a positive area.
func (r Rect) Valid() bool {
	return r.W > 0 && r.H > 0
}

// Origin returns the rectangle's top-left point.
func (r Rect) Origin() Point {
	return Point{X: r.X, Y: r.Y}
}

// UnionRect returns the smallest rectangle containing every rect in rects.
// The zero Rect is returned for an empty slice.
func UnionRect(rects []Rect) Rect {
	if len(rects) == 0 {
		return Rect{}
	}
	minX, minY := rects[0].X, rects[0].Y
	maxX, maxY := rects[0].X+rects[0].W, rects[0].Y+rects[0].H
	for _, r := range rects[1:] {
		if r.X < minX {
			minX = r.X
		}
		if r.Y < minY {
			minY = r.Y
		}
		if r.X+r.W > maxX {
			maxX = r.X + r.W
		}
		if r.Y+r.H > maxY {
			maxY = r.Y + r.H
		}
	}
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// Point is a 2D coordinate, used for viewport offsets and relative positions.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sub returns p - o.
func (p Point) Sub(o Point) Point {
	return Point{X: p.X - o.X, Y: p.Y - o.Y}
}

// Add returns p + o.
func (p Point) Add(o Point) Point {
	return Point{X: p.X + o.X, Y: p.Y + o.Y}
}

// Screen is one physical display mapped into the virtual canvas, owned by
// exactly one peer.
type Screen struct {
	ID    string  `json:"id"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	W     float64 `json:"w"`
	H     float64 `json:"h"`
	Scale float64 `json:"scale,omitempty"`
}

// Rect returns the screen's rectangle.
func (s Screen) Rect() Rect {
	return Rect{X: s.X, Y: s.Y, W: s.W, H: s.H}
}

// Layout is the global virtual canvas: the union bounding box of every
// screen, plus the ordered list of screens themselves.
type Layout struct {
	Version int      `json:"v"`
	Frame   Rect     `json:"frame"`
	Screens []Screen `json:"screens"`
}

// Validate enforces the §3 invariants: non-empty screens, unique ids,
// positive sizes, and frame == union(screens).
func (l Layout) Validate() error {
	if len(l.Screens) == 0 {
		return ErrNoScreens
	}
	seen := make(map[string]struct{}, len(l.Screens))
	rects := make([]Rect, 0, len(l.Screens))
	for _, s := range l.Screens {
		if s.W <= 0 || s.H <= 0 {
			return fmt.Errorf("%w: screen %q is %gx%g", ErrInvalidScreenSize, s.ID, s.W, s.H)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateScreenID, s.ID)
		}
		seen[s.ID] = struct{}{}
		rects = append(rects, s.Rect())
	}
	if union := UnionRect(rects); union != l.Frame {
		return fmt.Errorf("%w: got %+v want %+v", ErrFrameMismatch, l.Frame, union)
	}
	return nil
}

// SortScreens orders screens by id, giving a deterministic, reproducible
// ordering for layouts built from an unordered peer set.
func SortScreens(screens []Screen) {
	sort.Slice(screens, func(i, j int) bool { return screens[i].ID < screens[j].ID })
}

// PeerSnapshot is the latest known state of one peer in the mesh.
type PeerSnapshot struct {
	ID               string          `json:"id"`
	CreatedAt        int64           `json:"createdAt"`
	LastSeen         int64           `json:"lastSeen"`
	Rect             Rect            `json:"rect"`
	AssignedScreenID string          `json:"assignedScreenId,omitempty"`
	VirtualRect      *Rect           `json:"virtualRect,omitempty"`
	Timestamp        int64           `json:"timestamp"`
}

// EngineState is the full content of one peer's Store.
type EngineState struct {
	WindowID         string
	WinRect          Rect
	Peers            map[string]PeerSnapshot
	Layout           *Layout
	AssignedScreenID string
	ViewportOffset   Point
	VirtualRect      Rect
	IsLeader         bool
	LeaderID         string
	SharedData       map[string]json.RawMessage
	StaticLayout     *Layout
}

// Clone returns a shallow copy of s with freshly allocated Peers and
// SharedData maps, so mutating the copy never aliases the original.
func (s EngineState) Clone() EngineState {
	out := s
	out.Peers = make(map[string]PeerSnapshot, len(s.Peers))
	for k, v := range s.Peers {
		out.Peers[k] = v
	}
	out.SharedData = make(map[string]json.RawMessage, len(s.SharedData))
	for k, v := range s.SharedData {
		out.SharedData[k] = v
	}
	return out
}
