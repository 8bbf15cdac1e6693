package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windowmesh/mesh/pkg/mesh/types"
)

func peer(id string, x, y, w, h float64, createdAt int64) types.PeerSnapshot {
	return types.PeerSnapshot{ID: id, CreatedAt: createdAt, Rect: types.Rect{X: x, Y: y, W: w, H: h}}
}

func TestBuildWorld_UnionAndOrdering(t *testing.T) {
	peers := []types.PeerSnapshot{
		peer("B", 800, 0, 400, 300, 100),
		peer("A", 0, 0, 800, 600, 0),
	}
	l, err := BuildWorld(peers)
	require.NoError(t, err)

	require.NoError(t, l.Validate())
	assert.Equal(t, types.Rect{X: 0, Y: 0, W: 1200, H: 600}, l.Frame)
	require.Len(t, l.Screens, 2)
	assert.Equal(t, "A", l.Screens[0].ID, "screens are ordered by id regardless of input order")
	assert.Equal(t, "B", l.Screens[1].ID)
}

func TestBuildWorld_IgnoresInvalidRects(t *testing.T) {
	peers := []types.PeerSnapshot{
		peer("A", 0, 0, 800, 600, 0),
		peer("ghost", 0, 0, 0, 0, 1),
	}
	l, err := BuildWorld(peers)
	require.NoError(t, err)
	require.Len(t, l.Screens, 1)
	assert.Equal(t, "A", l.Screens[0].ID)
}

func TestBuildWorld_NoValidScreens(t *testing.T) {
	_, err := BuildWorld([]types.PeerSnapshot{peer("a", 0, 0, 0, 0, 0)})
	assert.ErrorIs(t, err, types.ErrNoScreens)
}

func TestBuildWorld_Idempotent(t *testing.T) {
	peers := []types.PeerSnapshot{peer("A", 0, 0, 800, 600, 0), peer("B", 800, 0, 400, 300, 1)}
	first, err := BuildWorld(peers)
	require.NoError(t, err)
	second, err := BuildWorld(peers)
	require.NoError(t, err)
	assert.Equal(t, first, second, "recomputing with the same inputs yields an identical layout")
}

func TestAssignScreen_ExternalOverrideWins(t *testing.T) {
	l := types.Layout{Version: 1, Frame: types.Rect{W: 1200, H: 600}, Screens: []types.Screen{
		{ID: "left", X: 0, Y: 0, W: 800, H: 600},
		{ID: "right", X: 800, Y: 0, W: 400, H: 600},
	}}
	s, err := AssignScreen("self", types.Point{X: 800, Y: 600}, "right", l)
	require.NoError(t, err)
	assert.Equal(t, "right", s.ID)
}

func TestAssignScreen_SimilarityPicksClosestSize(t *testing.T) {
	l := types.Layout{Version: 1, Frame: types.Rect{W: 1200, H: 600}, Screens: []types.Screen{
		{ID: "small", X: 0, Y: 0, W: 400, H: 300},
		{ID: "big", X: 400, Y: 0, W: 800, H: 600},
	}}
	s, err := AssignScreen("self", types.Point{X: 820, Y: 610}, "", l)
	require.NoError(t, err)
	assert.Equal(t, "big", s.ID)
}

func TestAssignScreen_TieBreakIsStableAcrossCalls(t *testing.T) {
	l := types.Layout{Version: 1, Frame: types.Rect{W: 800, H: 300}, Screens: []types.Screen{
		{ID: "left", X: 0, Y: 0, W: 400, H: 300},
		{ID: "right", X: 400, Y: 0, W: 400, H: 300},
	}}
	target := types.Point{X: 400, Y: 300}
	first, err := AssignScreen("self-window", target, "", l)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := AssignScreen("self-window", target, "", l)
		require.NoError(t, err)
		assert.Equal(t, first.ID, again.ID, "equal-score ties must resolve the same way every time")
	}
}

func TestViewportOffsetInvariant(t *testing.T) {
	screen := types.Screen{ID: "s", X: 100, Y: 50, W: 800, H: 600}
	winRect := types.Rect{X: 10, Y: 20, W: 800, H: 600}
	relPos := RelativePosition(winRect, screen, nil)
	vRect := VirtualRect(screen, relPos, winRect)
	frame := types.Rect{X: 0, Y: 0, W: 1200, H: 600}
	offset := ViewportOffset(vRect, frame)

	assert.Equal(t, vRect.Origin().Sub(frame.Origin()), offset)
	assert.Equal(t, types.Point{X: 10, Y: 20}, vRect.Origin())
}

func TestRelativePosition_OverrideWins(t *testing.T) {
	screen := types.Screen{ID: "s", X: 0, Y: 0, W: 800, H: 600}
	winRect := types.Rect{X: 999, Y: 999, W: 800, H: 600}
	override := types.Point{X: 5, Y: 5}
	got := RelativePosition(winRect, screen, &override)
	assert.Equal(t, override, got)
}
