package handlers

import (
	"net/url"
	"strings"
)

// ParseCookieHeader はCookieヘッダーを名前と値のマップに変換します
// 各ペアは最初の「=」で分割し、値はURLデコードできる場合のみデコードします
// 同じ名前が複数ある場合は最初の値を使います
func ParseCookieHeader(header string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(header, ";") {
		name, value, found := strings.Cut(pair, "=")
		if !found {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, exists := out[name]; exists {
			continue
		}
		value = strings.TrimSpace(value)
		if unq, err := url.PathUnescape(value); err == nil {
			value = unq
		}
		out[name] = value
	}
	return out
}
