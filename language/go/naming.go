package golang

import (
	"strconv"
	"strings"
	"unicode"
)

// initialisms are rendered in upper case, following Go naming conventions.
var initialisms = map[string]string{
	"id":   "ID",
	"ids":  "IDs",
	"url":  "URL",
	"uri":  "URI",
	"api":  "API",
	"http": "HTTP",
	"json": "JSON",
	"html": "HTML",
	"ip":   "IP",
	"uuid": "UUID",
}

// ExportedName converts a table, field, module or function name to an
// exported Go identifier: "by_email" -> "ByEmail", "admin/posts" -> "AdminPosts",
// "userId" -> "UserID".
func ExportedName(s string) string {
	var b strings.Builder

	for _, word := range splitWords(s) {
		if up, ok := initialisms[strings.ToLower(word)]; ok {
			b.WriteString(up)

			continue
		}

		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		b.WriteString(string(runes))
	}

	name := b.String()
	if name == "" {
		return "X"
	}

	if unicode.IsDigit(rune(name[0])) {
		name = "X" + name
	}

	return name
}

// splitWords splits on non-alphanumeric characters and lower-to-upper case
// boundaries.
func splitWords(s string) []string {
	var (
		words []string
		cur   []rune
		prev  rune
	)

	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = nil
		}
	}

	for _, r := range s {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
		case unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev)):
			flush()

			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}

		prev = r
	}

	flush()

	return words
}

// namer hands out identifiers unique within one scope.
type namer struct {
	used map[string]bool
}

func newNamer(reserved ...string) *namer {
	n := &namer{used: make(map[string]bool)}
	for _, r := range reserved {
		n.used[r] = true
	}

	return n
}

// unique returns name, or name with the smallest numeric suffix not yet used.
func (n *namer) unique(name string) string {
	if !n.used[name] {
		n.used[name] = true

		return name
	}

	for i := 2; ; i++ {
		candidate := name + strconv.Itoa(i)
		if !n.used[candidate] {
			n.used[candidate] = true

			return candidate
		}
	}
}
