package nep

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// ExtractLatest returns usage.usageHistory[0].usageData[last].value from a
// usage response. It never fails: any structural problem is logged and 0 is
// returned, so a logged warning is the only way to tell it from real zero usage.
func ExtractLatest(doc interface{}) float64 {
	v, err := latestValue(doc)
	if err != nil {
		slog.Warn("usage: failed to parse usage response", "err", err)
		return 0
	}
	return v
}

func latestValue(doc interface{}) (float64, error) {
	root, ok := doc.(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("response is %s, want object", jsonType(doc))
	}
	usage, ok := root["usage"].(map[string]interface{})
	if !ok {
		return 0, errors.New("missing usage object")
	}
	history, ok := usage["usageHistory"].([]interface{})
	if !ok {
		return 0, errors.New("missing usage.usageHistory")
	}
	if len(history) == 0 {
		return 0, errors.New("usage.usageHistory is empty")
	}
	first, ok := history[0].(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("usage.usageHistory[0] is %s, want object", jsonType(history[0]))
	}
	data, ok := first["usageData"].([]interface{})
	if !ok {
		return 0, errors.New("missing usage.usageHistory[0].usageData")
	}
	if len(data) == 0 {
		return 0, errors.New("usage.usageHistory[0].usageData is empty")
	}
	latest, ok := data[len(data)-1].(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("latest usageData entry is %s, want object", jsonType(data[len(data)-1]))
	}
	raw, present := latest["value"]
	if !present {
		return 0, errors.New("latest usageData entry has no value")
	}
	return toFloat(raw)
}

func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case json.Number:
		return strconv.ParseFloat(n.String(), 64)
	case float64:
		return n, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("value %q is not numeric", n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("value is %s, want number or string", jsonType(v))
	}
}

func jsonType(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]interface{}:
		return "object"
	case []interface{}:
		return "array"
	case string:
		return "string"
	case bool:
		return "bool"
	case json.Number, float64:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
