package grid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"gridworld.ai/internal/sim/encoding"
	"gridworld.ai/internal/sim/palette"
)

// Cells is the dense voxel array. Its zero value is an all-air grid; arrays
// compare and copy by value.
type Cells [SizeY][SizeX][SizeZ]palette.Color

// Index maps an agent-relative position to array indices.
func Index(p Vec3i) (Vec3i, bool) {
	i := p.Add(Offset)
	if i.Y < 0 || i.Y >= SizeY || i.X < 0 || i.X >= SizeX || i.Z < 0 || i.Z >= SizeZ {
		return i, false
	}
	return i, true
}

// InBounds reports whether an agent-relative position lies inside the grid.
func InBounds(p Vec3i) bool {
	_, ok := Index(p)
	return ok
}

// At returns the color at an agent-relative position; out of bounds reads as air.
func (c *Cells) At(p Vec3i) palette.Color {
	i, ok := Index(p)
	if !ok {
		return palette.Air
	}
	return c[i.Y][i.X][i.Z]
}

func (c *Cells) set(p Vec3i, col palette.Color) {
	i, _ := Index(p)
	c[i.Y][i.X][i.Z] = col
}

// Count returns the number of non-air cells.
func (c *Cells) Count() int {
	n := 0
	c.each(func(_ Vec3i, col palette.Color) {
		if col != palette.Air {
			n++
		}
	})
	return n
}

// NonAir lists the array indices (y,x,z order in the struct fields) of every
// non-air cell.
func (c *Cells) NonAir() []Vec3i {
	var out []Vec3i
	for y := 0; y < SizeY; y++ {
		for x := 0; x < SizeX; x++ {
			for z := 0; z < SizeZ; z++ {
				if c[y][x][z] != palette.Air {
					out = append(out, Vec3i{X: x, Y: y, Z: z})
				}
			}
		}
	}
	return out
}

// Blocks lists non-air cells as agent-relative blocks, in y,x,z order.
func (c *Cells) Blocks() []Block {
	var out []Block
	c.each(func(p Vec3i, col palette.Color) {
		if col != palette.Air {
			out = append(out, Block{X: p.X, Y: p.Y, Z: p.Z, Color: col})
		}
	})
	return out
}

// each visits every cell with its agent-relative position.
func (c *Cells) each(fn func(p Vec3i, col palette.Color)) {
	for y := 0; y < SizeY; y++ {
		for x := 0; x < SizeX; x++ {
			for z := 0; z < SizeZ; z++ {
				fn(Vec3i{X: x, Y: y, Z: z}.Sub(Offset), c[y][x][z])
			}
		}
	}
}

// Flatten returns cells in [y][x][z] row-major order.
func (c *Cells) Flatten() []palette.Color {
	out := make([]palette.Color, 0, Volume)
	for y := 0; y < SizeY; y++ {
		for x := 0; x < SizeX; x++ {
			out = append(out, c[y][x][:]...)
		}
	}
	return out
}

// Unflatten is the inverse of Flatten.
func Unflatten(flat []palette.Color) (Cells, bool) {
	var c Cells
	if len(flat) != Volume {
		return c, false
	}
	i := 0
	for y := 0; y < SizeY; y++ {
		for x := 0; x < SizeX; x++ {
			for z := 0; z < SizeZ; z++ {
				c[y][x][z] = flat[i]
				i++
			}
		}
	}
	return c, true
}

// Fill sets every cell to col.
func (c *Cells) Fill(col palette.Color) {
	for y := 0; y < SizeY; y++ {
		for x := 0; x < SizeX; x++ {
			for z := 0; z < SizeZ; z++ {
				c[y][x][z] = col
			}
		}
	}
}

// Digest is a stable hash of the cell contents.
func (c *Cells) Digest() string {
	h := sha256.New()
	flat := c.Flatten()
	buf := make([]byte, len(flat))
	for i, v := range flat {
		buf[i] = byte(v)
	}
	h.Write(buf)
	return hex.EncodeToString(h.Sum(nil))
}

// FromBlocks rasterizes blocks into a cell array. Blocks outside the grid are
// returned separately. Later blocks overwrite earlier ones at the same cell.
func FromBlocks(blocks []Block) (Cells, []Block) {
	var c Cells
	var outside []Block
	for _, b := range blocks {
		if !InBounds(b.Pos()) {
			outside = append(outside, b)
			continue
		}
		c.set(b.Pos(), b.Color)
	}
	return c, outside
}

// EncodeRLE packs the cells for logs and snapshots.
func (c *Cells) EncodeRLE() string { return encoding.EncodeRLE(c.Flatten()) }

// DecodeCells unpacks cells produced by Cells.EncodeRLE.
func DecodeCells(s string) (Cells, error) {
	flat, err := encoding.DecodeRLE[palette.Color](s, Volume)
	if err != nil {
		return Cells{}, err
	}
	c, ok := Unflatten(flat)
	if !ok {
		return Cells{}, fmt.Errorf("decoded %d cells, want %d", len(flat), Volume)
	}
	return c, nil
}
