package engine

// matchGlob reports whether s matches pattern. Both are compared byte by
// byte, so keys need not be valid UTF-8. The pattern supports '*', '?',
// '[...]' classes with ranges and '^' or '!' negation, and '\' escapes.
// An unterminated '[' matches itself.
func matchGlob(pattern, s string) bool {
	px, sx := 0, 0
	starP, starS := -1, 0
	for px < len(pattern) || sx < len(s) {
		if px < len(pattern) {
			if pattern[px] == '*' {
				starP, starS = px, sx
				px++
				continue
			}
			if sx < len(s) {
				if width, ok := matchByte(pattern[px:], s[sx]); ok {
					px += width
					sx++
					continue
				}
			}
		}
		// Let the last '*' swallow one more byte and retry.
		if starP < 0 || starS >= len(s) {
			return false
		}
		starS++
		px, sx = starP+1, starS
	}
	return true
}

// matchByte matches c against the single-byte token at the start of p and
// returns the token's width in p.
func matchByte(p string, c byte) (int, bool) {
	switch p[0] {
	case '?':
		return 1, true
	case '\\':
		if len(p) > 1 {
			return 2, p[1] == c
		}
		return 1, c == '\\'
	case '[':
		end := classEnd(p)
		if end < 0 {
			return 1, c == '['
		}
		return end + 1, matchClass(p[1:end], c)
	}
	return 1, p[0] == c
}

// classEnd returns the index of the ']' closing the class at p[0], or -1.
func classEnd(p string) int {
	for i := 1; i < len(p); i++ {
		switch p[i] {
		case '\\':
			i++
		case ']':
			return i
		}
	}
	return -1
}

func matchClass(class string, c byte) bool {
	negate := false
	if len(class) > 0 && (class[0] == '^' || class[0] == '!') {
		negate = true
		class = class[1:]
	}
	matched := false
	for i := 0; i < len(class); i++ {
		lo := class[i]
		if lo == '\\' && i+1 < len(class) {
			i++
			lo = class[i]
		}
		if i+2 < len(class) && class[i+1] == '-' {
			hi := class[i+2]
			i += 2
			if lo > hi {
				lo, hi = hi, lo
			}
			if c >= lo && c <= hi {
				matched = true
			}
			continue
		}
		if c == lo {
			matched = true
		}
	}
	return matched != negate
}
