package owners

import "strings"

type Buffer struct{ parts []string }

func (b *Buffer) WriteString(s string) { b.parts = append(b.parts, s) }

func Join() string {
	var sb strings.Builder
	sb.WriteString("a")
	var b Buffer
	b.WriteString("b")
	return sb.String()
}
