package adaptcache

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Key builds a namespaced cache key of the form "namespace:op:hash", where
// hash is the xxhash of params' JSON encoding. Map keys are encoded in sorted
// order, so equal parameter maps produce equal keys. Keys built this way
// share the "namespace:op:" prefix used to find prefetch candidates.
func Key(namespace, op string, params any) string {
	parts := make([]string, 0, 3)
	if namespace != "" {
		parts = append(parts, namespace)
	}
	if op != "" {
		parts = append(parts, op)
	}
	if params != nil {
		parts = append(parts, hashParams(params))
	}
	return strings.Join(parts, ":")
}

func hashParams(params any) string {
	switch p := params.(type) {
	case string:
		return fmt.Sprintf("%016x", xxhash.Sum64String(p))
	case []byte:
		return fmt.Sprintf("%016x", xxhash.Sum64(p))
	}

	data, err := json.Marshal(params)
	if err != nil {
		// Unencodable params fall back to their printed form
		return fmt.Sprintf("%016x", xxhash.Sum64String(fmt.Sprintf("%#v", params)))
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}
