package service

import "strings"

var htmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#039;",
)

// EscapeHTML はクライアントで描画される前提のテキストをエスケープします
func EscapeHTML(s string) string {
	return htmlReplacer.Replace(s)
}
