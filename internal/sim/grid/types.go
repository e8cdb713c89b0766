package grid

import "gridworld.ai/internal/sim/palette"

// Grid dimensions, indexed [y][x][z].
const (
	SizeY = 9
	SizeX = 11
	SizeZ = 11

	Volume = SizeY * SizeX * SizeZ
)

// Offset converts agent-relative coordinates to array indices.
var Offset = Vec3i{X: 5, Y: 1, Z: 5}

type Vec3i struct{ X, Y, Z int }

func (v Vec3i) Add(o Vec3i) Vec3i { return Vec3i{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z} }
func (v Vec3i) Sub(o Vec3i) Vec3i { return Vec3i{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z} }
func (v Vec3i) ToArray() [3]int  { return [3]int{v.X, v.Y, v.Z} }

// Block is a colored voxel in agent-relative coordinates.
type Block struct {
	X, Y, Z int
	Color   palette.Color
}

func (b Block) Pos() Vec3i { return Vec3i{X: b.X, Y: b.Y, Z: b.Z} }

type EditKind uint8

const (
	EditAdd EditKind = iota + 1
	EditRemove
)

func (k EditKind) String() string {
	switch k {
	case EditAdd:
		return "ADD"
	case EditRemove:
		return "REMOVE"
	default:
		return "UNKNOWN"
	}
}

// Edit is one block mutation reported by the physics layer. BuildZone=false
// edits happened outside the scorable region.
type Edit struct {
	Kind      EditKind
	Pos       Vec3i
	Color     palette.Color
	BuildZone bool
}

// Mutation is the result of applying a batch of edits.
type Mutation struct {
	Changed []Vec3i // agent-relative, in application order, deduplicated
	Outside int
}
