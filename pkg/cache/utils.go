package cache

import (
	"fmt"
	"strings"
)

// GenerateKey joins prefix and id with a colon.
func GenerateKey(prefix string, id string) string {
	return prefix + ":" + id
}

// GenerateKeyWithParams appends each param to prefix, colon-separated.
func GenerateKeyWithParams(prefix string, params ...interface{}) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, p := range params {
		b.WriteByte(':')
		fmt.Fprint(&b, p)
	}
	return b.String()
}

// BuildPattern matches every key that starts with prefix.
func BuildPattern(prefix string) string {
	return prefix + "*"
}
