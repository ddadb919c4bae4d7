package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/waploaj/DyAPI/internal/status"
)

const maxBodyBytes = 1 << 20

// maxExactInt is the largest integer a float64 holds exactly.
const maxExactInt = 1 << 53

// ExtractParams merges the query string with a JSON object body; body keys
// win. Query values are strings. JSON numbers become float64; integers
// beyond float64 precision and out-of-range numbers stay json.Number.
func ExtractParams(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	params := map[string]any{}
	for k, vs := range r.URL.Query() {
		if len(vs) > 0 {
			params[k] = vs[0]
		}
	}
	if r.Body == nil {
		return params, nil
	}
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, status.Wrap(status.KindPayloadInvalid, status.CodePayloadInvalid, "read body", err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return params, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var body any
	if err := dec.Decode(&body); err != nil {
		return nil, status.Wrap(status.KindPayloadInvalid, status.CodePayloadInvalid, "decode body", err)
	}
	if dec.More() {
		return nil, status.NewError(status.KindPayloadInvalid, status.CodePayloadInvalid, "trailing data after JSON body")
	}
	obj, ok := body.(map[string]any)
	if !ok {
		return nil, status.NewError(status.KindPayloadInvalid, status.CodePayloadInvalid, fmt.Sprintf("body must be a JSON object, got %s", kindOf(body)))
	}
	for k, v := range obj {
		params[k] = normalize(v)
	}
	return params, nil
}

func normalize(v any) any {
	switch t := v.(type) {
	case json.Number:
		f, err := strconv.ParseFloat(t.String(), 64)
		if err != nil || (math.Abs(f) > maxExactInt && !strings.ContainsAny(t.String(), ".eE")) {
			return t
		}
		return f
	case map[string]any:
		for k, e := range t {
			t[k] = normalize(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = normalize(e)
		}
		return t
	default:
		return v
	}
}

func kindOf(v any) string {
	switch v.(type) {
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case nil:
		return "null"
	default:
		return "number"
	}
}
