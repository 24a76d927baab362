package variable

import (
	"strings"

	"laughprop/obj"
)

// maxExpandDepth bounds recursive whole-reference substitution so a
// self-referential or mutually-referential chain of variables (e.g.
// @a = "@a") degrades to returning the unexpanded value instead of
// recursing forever.
const maxExpandDepth = 32

// Expand recursively substitutes variable references inside v against ctx.
// It never fails: a missing full-reference yields the original literal
// string, and a missing inline {@…} or bare @… reference is left in place.
func Expand(v obj.Value, ctx Context) obj.Value {
	return expandDepth(v, ctx, 0)
}

func expandDepth(v obj.Value, ctx Context, depth int) obj.Value {
	if depth > maxExpandDepth {
		return v
	}
	switch v.Kind {
	case obj.KindString:
		return expandString(v.Str, ctx, depth)
	case obj.KindList:
		out := make([]obj.Value, len(v.List))
		for i, el := range v.List {
			out[i] = expandDepth(el, ctx, depth+1)
		}
		return obj.NewList(out)
	case obj.KindSet:
		out := make([]obj.Value, len(v.Set))
		for i, el := range v.Set {
			out[i] = expandDepth(el, ctx, depth+1)
		}
		return obj.NewSet(out)
	case obj.KindMap:
		if v.Map == nil {
			return v
		}
		result := obj.NewOrderedMap()
		for _, k := range v.Map.Keys() {
			mv, _ := v.Map.Get(k)
			result.Set(k, expandDepth(mv, ctx, depth+1))
		}
		return obj.NewMap(result)
	default:
		return v
	}
}

// expandString handles the two string cases: a bare "@name"/"@@name"
// reference spanning the whole string (full-value substitution, preserving
// type, and itself recursively expanded) and inline references embedded in
// surrounding text — either brace-delimited "{@name}" or bare "@name"/
// "@@name" tokens (printable substitution).
func expandString(s string, ctx Context, depth int) obj.Value {
	if looksLikeWholeReference(s) {
		if v, ok, err := Read(ctx, s); err == nil && ok {
			return expandDepth(v, ctx, depth+1)
		}
		// Missing variable on full substitution: fall through to inline
		// expansion of the literal text below.
	}
	if !strings.Contains(s, sentinel) {
		return obj.NewString(s)
	}
	return obj.NewString(expandInline(s, ctx))
}

// looksLikeWholeReference reports whether s, taken as a whole, is a single
// variable name reference (@foo or @@foo) rather than prose that merely
// starts with the sentinel character followed by punctuation/space.
func looksLikeWholeReference(s string) bool {
	if s == "" || s[0] != '@' {
		return false
	}
	name := strings.TrimPrefix(s, localSentinel)
	name = strings.TrimPrefix(name, sentinel)
	if name == "" {
		return false
	}
	for _, r := range name {
		if r == ' ' || r == '{' || r == '}' {
			return false
		}
	}
	return true
}

// expandInline scans s left-to-right substituting every reference it finds
// with its printable form: brace-delimited "{@…}"/"{@@…}" segments (nesting
// is not supported: innermost "{" followed by a sentinel, up to the next
// "}" on the same level) and bare "@name"/"@@name" word-boundary tokens
// outside of braces. Unresolved references are left literal.
func expandInline(s string, ctx Context) string {
	var b strings.Builder
	i := 0
	for i < len(s) {
		if s[i] == '{' && strings.HasPrefix(s[i+1:], sentinel) {
			rest := s[i+1:]
			closeIdx := strings.IndexByte(rest, '}')
			if closeIdx == -1 {
				// No closing brace: rest of string is literal.
				b.WriteString(s[i:])
				break
			}
			name := rest[:closeIdx]
			if v, ok, err := Read(ctx, name); err == nil && ok {
				b.WriteString(v.Printable())
			} else {
				// Unresolved: leave the original "{...}" text in place.
				b.WriteString(s[i : i+2+closeIdx])
			}
			i = i + 2 + closeIdx
			continue
		}
		if s[i] == '@' {
			if name, width := scanBareToken(s[i:]); width > 0 {
				if v, ok, err := Read(ctx, name); err == nil && ok {
					b.WriteString(v.Printable())
				} else {
					// Unresolved: leave the original token text in place.
					b.WriteString(s[i : i+width])
				}
				i += width
				continue
			}
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

// scanBareToken parses a bare "@name" or "@@name" reference starting at
// s[0] (s[0] == '@' is assumed). It returns the full key, sentinel
// included, and its byte width, or ("", 0) if s does not hold one (e.g. a
// lone "@" with no following name characters).
func scanBareToken(s string) (string, int) {
	prefixLen := 1
	if strings.HasPrefix(s, localSentinel) {
		prefixLen = 2
	}
	j := prefixLen
	for j < len(s) && isNameByte(s[j]) {
		j++
	}
	if j == prefixLen {
		return "", 0
	}
	return s[:j], j
}

func isNameByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}
