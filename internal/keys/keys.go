// Package keys derives deterministic cache keys from an endpoint and its
// request parameters. Two calls over the same endpoint and parameter set
// yield the same key regardless of map iteration order.
package keys

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"
)

// Cache builds the store key: namespace + endpoint + canonical query.
// Parameters with nil values are omitted, so passing an explicit nil is
// equivalent to omitting the parameter.
func Cache(namespace, endpoint string, params map[string]any) string {
	var b strings.Builder
	b.Grow(len(namespace) + len(endpoint) + 16*len(params))
	b.WriteString(namespace)
	b.WriteString(endpoint)
	writeCanonicalQuery(&b, params)
	return b.String()
}

// Request builds the deduplication key: same material as Cache plus the
// HTTP method, so a GET and a DELETE against one endpoint never collapse.
func Request(namespace, endpoint string, params map[string]any, method string) string {
	if method == "" {
		method = "GET"
	}
	var b strings.Builder
	b.Grow(len(namespace) + len(method) + len(endpoint) + 16*len(params) + 1)
	b.WriteString(namespace)
	b.WriteString(strings.ToUpper(method))
	b.WriteByte(' ')
	b.WriteString(endpoint)
	writeCanonicalQuery(&b, params)
	return b.String()
}

// ShardIndex maps a key onto one of n shards.
func ShardIndex(key string, n int) int {
	return int(xxh3.HashString(key) % uint64(n))
}

func writeCanonicalQuery(b *strings.Builder, params map[string]any) {
	names := make([]string, 0, len(params))
	for name, value := range params {
		if value == nil {
			continue
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return
	}
	sort.Strings(names)

	b.WriteByte('?')
	for i, name := range names {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(formatScalar(params[name])))
	}
}

func formatScalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'g', -1, 32)
	default:
		return fmt.Sprintf("%v", t)
	}
}
