package layout

import (
	"os"
	"path/filepath"
	"testing"

	"solax-flow/internal/inverter"
	"solax-flow/internal/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleInput places a 400x800 container at (100, 50) with the solar and
// grid tiles on the left of the middle slot and load and battery on the right.
func sampleInput() Input {
	return Input{
		Container: Rect{X: 100, Y: 50, W: 400, H: 800},
		Nodes: map[Node]Rect{
			NodeSolar:     {X: 120, Y: 90, W: 120, H: 80},
			NodeGrid:      {X: 120, Y: 410, W: 120, H: 80},
			NodeLoad:      {X: 360, Y: 420, W: 120, H: 80},
			NodeBattery:   {X: 360, Y: 690, W: 120, H: 80},
			NodeMiddleRow: {X: 100, Y: 400, W: 400, H: 100},
		},
	}
}

func assertRect(t *testing.T, want, got Rect, msgAndArgs ...any) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, 1e-9, msgAndArgs...)
	assert.InDelta(t, want.Y, got.Y, 1e-9, msgAndArgs...)
	assert.InDelta(t, want.W, got.W, 1e-9, msgAndArgs...)
	assert.InDelta(t, want.H, got.H, 1e-9, msgAndArgs...)
}

func TestComputeSample(t *testing.T) {
	g, err := Compute(sampleInput(), DefaultParams)
	require.NoError(t, err)

	assertRect(t, Rect{X: 198, Y: 18, W: 4, H: 758}, g.Trunk, "trunk")
	assertRect(t, Rect{X: 193, Y: 398, W: 14, H: 14}, g.Hub, "hub")
	assertRect(t, Rect{X: 154, Y: 78, W: 46, H: 4}, g.Wire(state.RoleSolar), "solar wire")
	assertRect(t, Rect{X: 200, Y: 678, W: 46, H: 4}, g.Wire(state.RoleBattery), "battery wire")
	assertRect(t, Rect{X: 154, Y: 403, W: 46, H: 4}, g.Wire(state.RoleGrid), "grid wire")
	assertRect(t, Rect{X: 200, Y: 403, W: 46, H: 4}, g.Wire(state.RoleLoad), "load wire")
}

func TestComputeIsIdempotent(t *testing.T) {
	in := sampleInput()
	first, err := Compute(in, DefaultParams)
	require.NoError(t, err)
	second, err := Compute(in, DefaultParams)
	require.NoError(t, err)

	assert.True(t, first == second, "identical boxes must give identical geometry")
}

func TestComputeClampsTrunkToSafePad(t *testing.T) {
	in := sampleInput()
	in.Nodes[NodeMiddleRow] = Rect{X: 100, Y: 400, W: 20, H: 100}

	g, err := Compute(in, DefaultParams)
	require.NoError(t, err)
	assert.InDelta(t, 24-2, g.Trunk.X, 1e-9)
	assert.InDelta(t, 24-7, g.Hub.X, 1e-9)

	in.Nodes[NodeMiddleRow] = Rect{X: 480, Y: 400, W: 20, H: 100}
	g, err = Compute(in, DefaultParams)
	require.NoError(t, err)
	assert.InDelta(t, 376-2, g.Trunk.X, 1e-9)
}

func TestComputeUsesClientSize(t *testing.T) {
	in := sampleInput()
	in.ClientWidth = 300
	in.ClientHeight = 700
	in.Nodes[NodeMiddleRow] = Rect{X: 100, Y: 400, W: 600, H: 100}

	g, err := Compute(in, DefaultParams)
	require.NoError(t, err)
	// centre 300 clamps to 300-24
	assert.InDelta(t, 276-2, g.Trunk.X, 1e-9)
	// margin = max(80, 84); bottom = min(682, 680+84)
	assert.InDelta(t, 682-18, g.Trunk.H, 1e-9)
}

func TestComputeMinimumWireLength(t *testing.T) {
	in := sampleInput()
	// centre right of the trunk, left edge 4px past it once padded
	in.Nodes[NodeLoad] = Rect{X: 310, Y: 420, W: 100, H: 80}

	g, err := Compute(in, DefaultParams)
	require.NoError(t, err)
	assertRect(t, Rect{X: 196, Y: 403, W: 6, H: 4}, g.Wire(state.RoleLoad))
}

func TestComputeMinimumTrunkHeight(t *testing.T) {
	in := Input{
		Container: Rect{W: 100, H: 30},
		Nodes: map[Node]Rect{
			NodeSolar:     {X: 0, Y: 0, W: 10, H: 10},
			NodeGrid:      {X: 0, Y: 0, W: 10, H: 10},
			NodeLoad:      {X: 80, Y: 0, W: 10, H: 10},
			NodeBattery:   {X: 80, Y: 0, W: 10, H: 10},
			NodeMiddleRow: {X: 0, Y: 0, W: 100, H: 10},
		},
	}

	g, err := Compute(in, DefaultParams)
	require.NoError(t, err)
	assert.Equal(t, 18.0, g.Trunk.Y)
	assert.Equal(t, DefaultParams.MinTrunkHeight, g.Trunk.H)
}

func TestComputeMissingNode(t *testing.T) {
	for _, node := range RequiredNodes {
		t.Run(string(node), func(t *testing.T) {
			in := sampleInput()
			delete(in.Nodes, node)

			_, err := Compute(in, DefaultParams)
			assert.ErrorIs(t, err, ErrMissingNode)
			assert.Contains(t, err.Error(), string(node))
		})
	}
}

func TestRectRound(t *testing.T) {
	got := Rect{X: 1.5, Y: -0.5, W: 2.49, H: 3.5}.Round()
	assert.Equal(t, Rect{X: 2, Y: 0, W: 2, H: 4}, got)
}

func TestTileNode(t *testing.T) {
	assert.Equal(t, NodeSolar, TileNode(state.RoleSolar))
	assert.Equal(t, NodeGrid, TileNode(state.RoleGrid))
	assert.Equal(t, NodeLoad, TileNode(state.RoleLoad))
	assert.Equal(t, NodeBattery, TileNode(state.RoleBattery))
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Boxes(inverter.SideLeft)
	assert.ErrorIs(t, err, ErrNoBoxes)

	in := sampleInput()
	reg.Set(inverter.SideLeft, in)
	in.Nodes[NodeSolar] = Rect{}

	got, err := reg.Boxes(inverter.SideLeft)
	require.NoError(t, err)
	assert.Equal(t, sampleInput().Nodes[NodeSolar], got.Nodes[NodeSolar], "registry keeps its own copy")
}

func TestLoadFixture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boxes.yaml")
	fixture := `
left:
  container: {x: 100, y: 50, w: 400, h: 800}
  nodes:
    solar: {x: 120, y: 90, w: 120, h: 80}
    grid: {x: 120, y: 410, w: 120, h: 80}
    load: {x: 360, y: 420, w: 120, h: 80}
    battery: {x: 360, y: 690, w: 120, h: 80}
    middle_row: {x: 100, y: 400, w: 400, h: 100}
`
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0o644))

	reg, err := LoadFixture(path)
	require.NoError(t, err)

	in, err := reg.Boxes(inverter.SideLeft)
	require.NoError(t, err)
	assert.Equal(t, sampleInput(), in)

	_, err = reg.Boxes(inverter.SideRight)
	assert.ErrorIs(t, err, ErrNoBoxes)
}

func TestLoadFixtureUnknownSide(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boxes.yaml")
	require.NoError(t, os.WriteFile(path, []byte("middle:\n  container: {x: 0, y: 0, w: 1, h: 1}\n"), 0o644))

	_, err := LoadFixture(path)
	assert.Error(t, err)
}
