// Package layout implements the pure computation of spec §4.5 (the layout
// engine) and §4.6 (session derivation): building a world layout from a set
// of peer rectangles, assigning a peer to a screen and projecting it into
// the frame, and deriving a session channel name from a layout descriptor.
// Nothing here performs I/O; core.Engine is the imperative shell that wires
// these functions to the Store and Transport.
package layout

import (
	"hash/fnv"

	"github.com/windowmesh/mesh/pkg/mesh/types"
)

// BuildWorld projects every peer with a valid rect into a screen and
// derives the frame as their union, per spec §4.5 recomputeWorld. Peers are
// sorted by id so the result is deterministic regardless of map iteration
// order. An error is returned (and no layout) if no peer contributes a
// valid screen.
func BuildWorld(peers []types.PeerSnapshot) (types.Layout, error) {
	screens := make([]types.Screen, 0, len(peers))
	for _, p := range peers {
		origin, size := p.Rect.Origin(), types.Point{X: p.Rect.W, Y: p.Rect.H}
		if p.VirtualRect != nil {
			origin = p.VirtualRect.Origin()
			size = types.Point{X: p.VirtualRect.W, Y: p.VirtualRect.H}
		}
		if size.X <= 0 || size.Y <= 0 {
			continue
		}
		screens = append(screens, types.Screen{
			ID: p.ID,
			X:  origin.X,
			Y:  origin.Y,
			W:  size.X,
			H:  size.Y,
		})
	}
	if len(screens) == 0 {
		return types.Layout{}, types.ErrNoScreens
	}
	types.SortScreens(screens)

	rects := make([]types.Rect, len(screens))
	for i, s := range screens {
		rects[i] = s.Rect()
	}
	l := types.Layout{Version: 1, Frame: types.UnionRect(rects), Screens: screens}
	if err := l.Validate(); err != nil {
		return types.Layout{}, err
	}
	return l, nil
}

// AssignScreen chooses self's screen within l, per spec §4.5 step 1:
// an external override if present and valid, else the highest
// dimension-similarity match (ties broken by a stable hash of windowId and
// screenId), else the layout's first screen.
func AssignScreen(windowID string, targetSize types.Point, overrideScreenID string, l types.Layout) (types.Screen, error) {
	if err := l.Validate(); err != nil {
		return types.Screen{}, err
	}
	if overrideScreenID != "" {
		for _, s := range l.Screens {
			if s.ID == overrideScreenID {
				return s, nil
			}
		}
	}

	best := l.Screens[0]
	bestScore := similarity(targetSize, best)
	bestHash := tieBreakHash(windowID, best.ID)
	for _, s := range l.Screens[1:] {
		score := similarity(targetSize, s)
		switch {
		case score > bestScore:
			best, bestScore, bestHash = s, score, tieBreakHash(windowID, s.ID)
		case score == bestScore:
			if h := tieBreakHash(windowID, s.ID); h > bestHash {
				best, bestHash = s, h
			}
		}
	}
	return best, nil
}

// similarity implements spec §4.5's
// similarity = 1 - (Δw/max(w) + Δh/max(h)) / 2.
func similarity(target types.Point, s types.Screen) float64 {
	dw := ratio(target.X, s.W)
	dh := ratio(target.Y, s.H)
	return 1 - (dw+dh)/2
}

func ratio(a, b float64) float64 {
	m := a
	if b > m {
		m = b
	}
	if m == 0 {
		return 0
	}
	d := a - b
	if d < 0 {
		d = -d
	}
	return d / m
}

// tieBreakHash is the "stable hash of (windowId, screenId)" spec §4.5 asks
// for to keep assignments deterministic across recomputes when two screens
// score equally.
func tieBreakHash(windowID, screenID string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(windowID))
	h.Write([]byte{0})
	h.Write([]byte(screenID))
	return h.Sum64()
}

// RelativePosition implements spec §4.5 step 2: the external override if
// supplied, else the peer's window origin relative to its assigned screen.
func RelativePosition(winRect types.Rect, assigned types.Screen, override *types.Point) types.Point {
	if override != nil {
		return *override
	}
	return winRect.Origin().Sub(assigned.Rect().Origin())
}

// VirtualRect implements spec §4.5 step 3.
func VirtualRect(assigned types.Screen, relativePos types.Point, winRect types.Rect) types.Rect {
	origin := assigned.Rect().Origin().Add(relativePos)
	return types.Rect{X: origin.X, Y: origin.Y, W: winRect.W, H: winRect.H}
}

// ViewportOffset implements spec §4.5 step 4 / invariant I3.
func ViewportOffset(virtualRect, frame types.Rect) types.Point {
	return virtualRect.Origin().Sub(frame.Origin())
}
