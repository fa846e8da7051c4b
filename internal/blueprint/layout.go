package blueprint

import "math"

// DefaultSpacing is the distance between neighbouring modules in the designer.
const DefaultSpacing = 300

// Axis is the direction a flow is laid out along.
type Axis int

const (
	// AxisX lays modules out left to right.
	AxisX Axis = iota
	// AxisY lays modules out top to bottom.
	AxisY
)

// Point is a designer coordinate.
type Point struct {
	X float64
	Y float64
}

// On returns the coordinate along the axis.
func (p Point) On(a Axis) float64 {
	if a == AxisY {
		return p.Y
	}

	return p.X
}

// Moved returns p moved by delta along the axis.
func (p Point) Moved(a Axis, delta float64) Point {
	if a == AxisY {
		p.Y += delta
	} else {
		p.X += delta
	}

	return p
}

// Position returns the designer coordinate of the module.
func (m *Module) Position() (Point, bool) {
	v, _ := Path(m.Metadata, "designer")

	designer, ok := Object(v)
	if !ok {
		return Point{}, false
	}

	x, okX := Float(designer["x"])
	y, okY := Float(designer["y"])

	if !okX && !okY {
		return Point{}, false
	}

	return Point{X: x, Y: y}, true
}

// SetPosition writes the designer coordinate, creating metadata as needed.
func (m *Module) SetPosition(p Point) {
	designer := m.designer()
	designer["x"] = number(p.X)
	designer["y"] = number(p.Y)
}

// Name returns the designer display name.
func (m *Module) Name() string {
	v, _ := Path(m.Metadata, "designer", "name")
	s, _ := v.(string)

	return s
}

// SetName sets the designer display name.
func (m *Module) SetName(name string) {
	m.designer()["name"] = name
}

func (m *Module) designer() map[string]any {
	if m.Metadata == nil {
		m.Metadata = map[string]any{}
	}

	designer, ok := m.Metadata["designer"].(map[string]any)
	if !ok {
		designer = map[string]any{}
		m.Metadata["designer"] = designer
	}

	return designer
}

func number(f float64) any {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int(f)
	}

	return f
}

// DetectAxis reports which axis the flow around the module at index runs along,
// comparing the module with its nearest positioned sibling.
func DetectAxis(flow []*Module, index int) Axis {
	anchor, ok := flow[index].Position()
	if !ok {
		return AxisX
	}

	for _, j := range []int{index + 1, index - 1} {
		if j < 0 || j >= len(flow) {
			continue
		}

		other, ok := flow[j].Position()
		if !ok {
			continue
		}

		if math.Abs(other.Y-anchor.Y) > math.Abs(other.X-anchor.X) {
			return AxisY
		}

		return AxisX
	}

	return AxisX
}

// ShiftBeyond moves every positioned module in the tree whose coordinate
// along the axis is strictly greater than from by delta.
func (b *Blueprint) ShiftBeyond(axis Axis, from, delta float64) int {
	return b.shift(axis, delta, func(c float64) bool { return c > from })
}

// ShiftFrom is ShiftBeyond including modules positioned exactly at from.
func (b *Blueprint) ShiftFrom(axis Axis, from, delta float64) int {
	return b.shift(axis, delta, func(c float64) bool { return c >= from })
}

func (b *Blueprint) shift(axis Axis, delta float64, moves func(c float64) bool) int {
	shifted := 0

	for _, m := range b.Modules() {
		p, ok := m.Position()
		if !ok || !moves(p.On(axis)) {
			continue
		}

		m.SetPosition(p.Moved(axis, delta))
		shifted++
	}

	return shifted
}

// MakeRoom prepares the layout for count modules placed after the anchor and
// returns the coordinates they should take, in order.
func (b *Blueprint) MakeRoom(anchorID, count int, spacing float64) []Point {
	slot, ok := b.Locate(anchorID)
	if !ok || count == 0 {
		return nil
	}

	anchor, ok := slot.Module().Position()
	if !ok {
		anchor = Point{}
	}

	axis := DetectAxis(slot.Siblings(), slot.Index)
	b.ShiftBeyond(axis, anchor.On(axis), spacing*float64(count))

	points := make([]Point, count)
	for i := range points {
		points[i] = anchor.Moved(axis, spacing*float64(i+1))
	}

	return points
}

// MakeRoomAtHead prepares the layout for count modules prepended to the
// top-level flow and returns their coordinates, in order.
func (b *Blueprint) MakeRoomAtHead(count int, spacing float64) []Point {
	if count == 0 {
		return nil
	}

	var (
		head Point
		axis = AxisX
	)

	if len(b.Flow) > 0 {
		if p, ok := b.Flow[0].Position(); ok {
			head = p
			axis = DetectAxis(b.Flow, 0)
			b.ShiftFrom(axis, head.On(axis), spacing*float64(count))
		}
	}

	points := make([]Point, count)
	for i := range points {
		points[i] = head.Moved(axis, spacing*float64(i))
	}

	return points
}
