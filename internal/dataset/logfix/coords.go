package logfix

// Bounding box the faulty recorder linearized against.
const (
	XMax = 11
	YMax = 9
	ZMax = 11
)

// Shift moves recorded world coordinates into the recorder's box.
var Shift = [3]int{5, -63, 5}

// FixXYZ remaps a recorded coordinate whose linear index was produced with the
// y stride where the z stride belonged. The shifted triple is linearized as
// z + y*YMax + x*YMax*ZMax, then decomposed with the correct x,y,z strides and
// shifted back. Out-of-box inputs give out-of-box outputs; never feed the
// result back through FixXYZ.
func FixXYZ(x, y, z int) (int, int, int) {
	x += Shift[0]
	y += Shift[1]
	z += Shift[2]

	index := z + y*YMax + x*YMax*ZMax
	nx := floorDiv(index, YMax*ZMax)
	index = floorMod(index, YMax*ZMax)
	ny := floorDiv(index, ZMax)
	index = floorMod(index, ZMax)
	nz := floorMod(index, ZMax)

	return nx - Shift[0], ny - Shift[1], nz - Shift[2]
}

// floorDiv and floorMod round toward negative infinity so out-of-box inputs
// land where the recorder's tooling put them.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	m := a % b
	if m != 0 && ((m < 0) != (b < 0)) {
		m += b
	}
	return m
}
