package logfix

import (
	"bytes"
	"errors"
	"math/rand"
	"strings"
	"testing"
)

func TestFixXYZ_KnownValues(t *testing.T) {
	// Shifted (0,0,0) is index 0 and stays at the box origin.
	if x, y, z := FixXYZ(-5, 63, -5); x != -5 || y != 63 || z != -5 {
		t.Fatalf("origin: got (%d,%d,%d)", x, y, z)
	}
	// Shifted (0,1,0): index 9 decomposes as y=0, z=9.
	if x, y, z := FixXYZ(-5, 64, -5); x != -5 || y != 63 || z != 4 {
		t.Fatalf("y=1: got (%d,%d,%d)", x, y, z)
	}
	// Shifted (1,0,0): index 99 decomposes as x=1.
	if x, y, z := FixXYZ(-4, 63, -5); x != -4 || y != 63 || z != -5 {
		t.Fatalf("x=1: got (%d,%d,%d)", x, y, z)
	}
	// Shifted (0,2,3): index 21 decomposes as y=1, z=10.
	if x, y, z := FixXYZ(-5, 65, -2); x != -5 || y != 64 || z != 5 {
		t.Fatalf("y=2,z=3: got (%d,%d,%d)", x, y, z)
	}
}

func TestFixXYZ_Deterministic(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 2000; i++ {
		x := r.Intn(XMax) - Shift[0]
		y := r.Intn(YMax) - Shift[1]
		z := r.Intn(ZMax) - Shift[2]
		ax, ay, az := FixXYZ(x, y, z)
		bx, by, bz := FixXYZ(x, y, z)
		if ax != bx || ay != by || az != bz {
			t.Fatalf("FixXYZ(%d,%d,%d) not deterministic", x, y, z)
		}
	}
}

func TestFloorDivMod_Negative(t *testing.T) {
	if floorDiv(-1, 99) != -1 || floorMod(-1, 99) != 98 {
		t.Fatalf("floor semantics: div=%d mod=%d", floorDiv(-1, 99), floorMod(-1, 99))
	}
	if floorDiv(7, 3) != 2 || floorMod(7, 3) != 1 {
		t.Fatalf("positive semantics broken")
	}
}

func TestParseLiteral(t *testing.T) {
	l, err := ParseLiteral(" ( 1, -2 ,3, (4, 5), 6,) ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := l.String(); got != "(1, -2, 3, (4, 5), 6)" {
		t.Fatalf("render: %q", got)
	}
	one, err := ParseLiteral("(7,)")
	if err != nil || one.String() != "(7,)" {
		t.Fatalf("single tuple: %v %q", err, one.String())
	}
	paren, err := ParseLiteral("(7)")
	if err != nil || paren.IsTuple || paren.Int != 7 {
		t.Fatalf("parenthesized int: %v %+v", err, paren)
	}
}

func TestParseLiteral_Rejects(t *testing.T) {
	bad := []string{
		"", "(", "(1, 2", "1.5", "(1, 'a')", "__import__('os')", "(1 2)", "[1, 2]", "(1,,2)", "-",
		strings.Repeat("(", 100) + "1" + strings.Repeat(")", 100),
	}
	for _, s := range bad {
		if _, err := ParseLiteral(s); !errors.Is(err, ErrBadLiteral) {
			t.Fatalf("%q: expected ErrBadLiteral, got %v", s, err)
		}
	}
}

func TestFixLine_RewritesBlockChange(t *testing.T) {
	in := "2021-06-01T10:00:00 block_change (-5, 64, -5, 1, 57)"
	out, ok := FixLine(in)
	if !ok {
		t.Fatalf("expected fix")
	}
	want := "2021-06-01T10:00:00 block_change (-5, 63, 4, 1, 57)"
	if out != want {
		t.Fatalf("got %q want %q", out, want)
	}
}

func TestFixLine_PassThrough(t *testing.T) {
	cases := []string{
		"2021 chat hello there",
		"2021 block_change not-a-tuple",
		"2021 block_change (1, 2, 3)",
		"block_change",
		"2021 block_change os.system('rm -rf /')",
	}
	for _, in := range cases {
		out, ok := FixLine(in)
		if ok || out != in {
			t.Fatalf("%q: expected pass-through, got %q ok=%v", in, out, ok)
		}
	}
}

func TestFixLog_PreservesOtherLines(t *testing.T) {
	in := "a chat hi\r\nb block_change (-5, 64, -5, 1, 57)\nc block_change oops\n"
	got := FixLog(in)
	want := "a chat hi\nb block_change (-5, 63, 4, 1, 57)\nc block_change oops"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestFixStream_Stats(t *testing.T) {
	in := "a chat hi\nb block_change (-5, 64, -5, 1, 57)\nc block_change oops\n"
	var out bytes.Buffer
	st, err := FixStream(strings.NewReader(in), &out)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if st.Lines != 3 || st.BlockChanges != 2 || st.Fixed != 1 || st.Unparsed != 1 {
		t.Fatalf("stats: %+v", st)
	}
	if out.String() != FixLog(in) {
		t.Fatalf("stream and FixLog disagree: %q vs %q", out.String(), FixLog(in))
	}
}
