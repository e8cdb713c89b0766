package logfix

import (
	"bufio"
	"io"
	"strings"
)

// BlockChangeMarker identifies block-change event lines in raw session logs.
const BlockChangeMarker = "block_change"

type Stats struct {
	Lines        int
	BlockChanges int
	Fixed        int
	Unparsed     int
}

// FixLine repairs one log line. Lines that are not block changes, or whose
// payload is not an (x, y, z, action, color) tuple of integers in the first
// three slots, come back unchanged with ok=false.
func FixLine(line string) (fixed string, ok bool) {
	if !strings.Contains(line, BlockChangeMarker) {
		return line, false
	}
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 3 {
		return line, false
	}
	info, err := ParseLiteral(parts[2])
	if err != nil || !info.IsTuple || len(info.Items) < 5 {
		return line, false
	}
	for _, it := range info.Items[:3] {
		if it.IsTuple {
			return line, false
		}
	}
	nx, ny, nz := FixXYZ(info.Items[0].Int, info.Items[1].Int, info.Items[2].Int)
	out := TupleLit(IntLit(nx), IntLit(ny), IntLit(nz), info.Items[3], info.Items[4])
	parts[2] = out.String()
	return strings.Join(parts, " "), true
}

// FixLog repairs a whole log. Lines are joined with "\n" and the result has no
// trailing newline.
func FixLog(text string) string {
	lines := splitLines(text)
	for i, line := range lines {
		lines[i], _ = FixLine(line)
	}
	return strings.Join(lines, "\n")
}

// FixStream repairs r line by line into w, keeping one line per output line.
func FixStream(r io.Reader, w io.Writer) (Stats, error) {
	var st Stats
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	bw := bufio.NewWriter(w)
	first := true
	for sc.Scan() {
		line := sc.Text()
		st.Lines++
		if strings.Contains(line, BlockChangeMarker) {
			st.BlockChanges++
		}
		out, ok := FixLine(line)
		if ok {
			st.Fixed++
		} else if strings.Contains(line, BlockChangeMarker) {
			st.Unparsed++
		}
		if !first {
			if err := bw.WriteByte('\n'); err != nil {
				return st, err
			}
		}
		first = false
		if _, err := bw.WriteString(out); err != nil {
			return st, err
		}
	}
	if err := sc.Err(); err != nil {
		return st, err
	}
	return st, bw.Flush()
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.TrimSuffix(text, "\n")
	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimSuffix(lines[i], "\r")
	}
	return lines
}
