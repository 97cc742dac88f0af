package apiflow

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FingerprintBodyLimit bounds how many characters of the serialized body
// contribute to a fingerprint.
const FingerprintBodyLimit = 100

// Fingerprint returns "METHOD:target:body-prefix" for d. Headers never take
// part, so identical calls carrying different tokens still coalesce. Bodies
// sharing their first FingerprintBodyLimit characters collide.
func Fingerprint(d *Descriptor) string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(d.Method))
	b.WriteByte(':')
	b.WriteString(d.URL())
	b.WriteByte(':')
	b.WriteString(truncateRunes(serializeBody(d.Body), FingerprintBodyLimit))
	return b.String()
}

func serializeBody(body any) string {
	switch v := body.(type) {
	case nil:
		return ""
	case *Multipart:
		return v.serialize()
	case []byte:
		return string(v)
	case string:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
