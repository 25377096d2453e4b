package grading

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// UserAnswer is a decoded composite answer: either Keyed or Delimited.
type UserAnswer interface {
	// Part returns the sub-answer at index i.
	Part(i int) (string, bool)
}

// Keyed is a sub-answer map keyed by sub-question index, e.g. {"0":"TRUE","2":"B"}.
type Keyed map[int]string

func (k Keyed) Part(i int) (string, bool) {
	v, ok := k[i]
	return v, ok
}

// Delimited is a comma separated list of sub-answers in sub-question order.
type Delimited []string

func (d Delimited) Part(i int) (string, bool) {
	if i < 0 || i >= len(d) {
		return "", false
	}
	return d[i], true
}

// ParseUserAnswer decodes a composite answer. The keyed JSON form is tried first and
// anything that is not a JSON object with integer keys falls back to comma splitting.
func ParseUserAnswer(raw string) UserAnswer {
	if keyed, ok := parseKeyed(raw); ok {
		return keyed
	}
	return Delimited(strings.Split(raw, ","))
}

func parseKeyed(raw string) (Keyed, bool) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, false
	}
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
		return nil, false
	}
	out := make(Keyed, len(obj))
	for k, v := range obj {
		idx, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			return nil, false
		}
		switch t := v.(type) {
		case string:
			out[idx] = t
		case nil:
			out[idx] = ""
		default:
			out[idx] = fmt.Sprint(t)
		}
	}
	return out, true
}

// splitSet splits a comma separated answer into a set of trimmed, non-empty values.
func splitSet(raw string, fold bool) map[string]struct{} {
	set := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if fold {
			part = strings.ToLower(part)
		}
		set[part] = struct{}{}
	}
	return set
}
