package blueprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func positioned(id int, x, y float64) *Module {
	m := &Module{ID: id, Type: "util:SetVariable2", Version: 1}
	m.SetPosition(Point{X: x, Y: y})

	return m
}

func TestDetectAxis(t *testing.T) {
	horizontal := []*Module{positioned(1, 0, 0), positioned(2, 300, 0)}
	vertical := []*Module{positioned(1, 0, 0), positioned(2, 0, 300)}
	lonely := []*Module{positioned(1, 0, 0)}

	assert.Equal(t, AxisX, DetectAxis(horizontal, 0))
	assert.Equal(t, AxisY, DetectAxis(vertical, 0))
	assert.Equal(t, AxisY, DetectAxis(vertical, 1))
	assert.Equal(t, AxisX, DetectAxis(lonely, 0))
}

func TestMakeRoom_ShiftsWholeTree(t *testing.T) {
	router := positioned(3, 600, 0)
	router.Routes = []*Route{
		{Flow: []*Module{positioned(4, 900, -150)}},
		{Flow: []*Module{positioned(5, 900, 150)}},
	}

	bp := &Blueprint{Flow: []*Module{positioned(1, 0, 0), positioned(2, 300, 0), router}}

	points := bp.MakeRoom(2, 2, DefaultSpacing)
	require.Len(t, points, 2)
	assert.Equal(t, Point{X: 600, Y: 0}, points[0])
	assert.Equal(t, Point{X: 900, Y: 0}, points[1])

	x := func(id int) float64 {
		p, ok := bp.Find(id).Position()
		require.True(t, ok)

		return p.X
	}

	assert.InDelta(t, 0, x(1), 0)
	assert.InDelta(t, 300, x(2), 0)
	assert.InDelta(t, 1200, x(3), 0)
	assert.InDelta(t, 1500, x(4), 0)
	assert.InDelta(t, 1500, x(5), 0)
}

func TestPosition_Missing(t *testing.T) {
	m := &Module{ID: 1}

	_, ok := m.Position()
	assert.False(t, ok)

	m.SetName("Helper")
	assert.Equal(t, "Helper", m.Name())
}

func TestMakeRoomAtHead(t *testing.T) {
	bp := &Blueprint{Flow: []*Module{positioned(1, 0, 0), positioned(2, 300, 0)}}

	points := bp.MakeRoomAtHead(2, DefaultSpacing)
	require.Len(t, points, 2)
	assert.Equal(t, Point{X: 0, Y: 0}, points[0])
	assert.Equal(t, Point{X: 300, Y: 0}, points[1])

	first, _ := bp.Find(1).Position()
	second, _ := bp.Find(2).Position()

	assert.InDelta(t, 600, first.X, 0)
	assert.InDelta(t, 900, second.X, 0)

	empty := &Blueprint{}
	assert.Equal(t, []Point{{}}, empty.MakeRoomAtHead(1, DefaultSpacing))
}
