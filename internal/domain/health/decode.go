package health

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Decoding errors.
var (
	ErrInvalidJSON = errors.New("response is not valid JSON")
	ErrNotObject   = errors.New("response is not a JSON object")
)

// Decode parses a /health response body. Only the known services are kept;
// extra keys are ignored. A service whose value is missing, null or not an
// object decodes as absent.
func Decode(body []byte) (Map, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrInvalidJSON
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: got %s", ErrNotObject, root.Type)
	}

	m := make(Map, len(services))
	for _, s := range services {
		v := root.Get(string(s.ID))
		if !v.IsObject() {
			m[s.ID] = nil
			continue
		}
		m[s.ID] = decodeRecord(v)
	}
	return m, nil
}

func decodeRecord(v gjson.Result) *Record {
	r := &Record{}

	// Scalar statuses are shown as written; they still classify as unknown.
	switch st := v.Get("status"); st.Type {
	case gjson.String:
		r.Status = st.Str
	case gjson.Number, gjson.True, gjson.False:
		r.Status = st.Raw
	}

	if f, ok := latency(v.Get("latency_ms")); ok {
		r.LatencyMS = &f
	}

	switch e := v.Get("error"); {
	case e.Type == gjson.String && e.Str != "":
		s := e.Str
		r.Error = &s
	case e.Type != gjson.String && truthy(e):
		s := e.Raw
		r.Error = &s
	}

	if d := v.Get("details"); d.Exists() && truthy(d) {
		r.Details = json.RawMessage(d.Raw)
	}

	if ts := v.Get("timestamp"); ts.Type == gjson.String {
		r.Timestamp = ts.Str
	}

	return r
}

// latency accepts a number or a string holding one.
func latency(v gjson.Result) (float64, bool) {
	switch v.Type {
	case gjson.Number:
		return v.Num, true
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// truthy follows the usual JSON-in-a-browser notion of truthiness: null,
// false, 0 and "" are falsy, everything else (including {} and []) is not.
func truthy(v gjson.Result) bool {
	switch v.Type {
	case gjson.Null:
		return false
	case gjson.False:
		return false
	case gjson.Number:
		return v.Num != 0
	case gjson.String:
		return v.Str != ""
	default:
		return true
	}
}
