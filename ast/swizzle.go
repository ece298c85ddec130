package ast

// SwizzleComponentIndex maps a swizzle letter to a component index.
func SwizzleComponentIndex(c rune) (uint32, bool) {
	switch c {
	case 'x', 'r', 's':
		return 0, true
	case 'y', 'g', 't':
		return 1, true
	case 'z', 'b', 'p':
		return 2, true
	case 'w', 'a', 'q':
		return 3, true
	}
	return 0, false
}

// ParseSwizzle parses a component selector such as "xyz" or "rgba". Letter
// sets cannot be mixed.
func ParseSwizzle(s string) ([]uint32, bool) {
	if len(s) == 0 || len(s) > 4 {
		return nil, false
	}
	set := -1
	out := make([]uint32, 0, len(s))
	for _, c := range s {
		idx, ok := SwizzleComponentIndex(c)
		if !ok {
			return nil, false
		}
		cs := swizzleSet(c)
		if set >= 0 && cs != set {
			return nil, false
		}
		set = cs
		out = append(out, idx)
	}
	return out, true
}

func swizzleSet(c rune) int {
	switch c {
	case 'x', 'y', 'z', 'w':
		return 0
	case 'r', 'g', 'b', 'a':
		return 1
	}
	return 2
}

// ComposeSwizzle returns the selector equivalent to applying inner then
// outer: result[i] = inner[outer[i]].
func ComposeSwizzle(inner, outer []uint32) []uint32 {
	out := make([]uint32, len(outer))
	for i, c := range outer {
		out[i] = inner[c]
	}
	return out
}

// SwizzleString formats component indices with the xyzw letter set.
func SwizzleString(components []uint32) string {
	const letters = "xyzw"
	b := make([]byte, len(components))
	for i, c := range components {
		b[i] = letters[c]
	}
	return string(b)
}
