package vectorstore

import (
	"encoding/json"
	"fmt"
)

// Metadata is the closed set of primitive attributes stored alongside each
// embedding. Only these fields are filterable; arbitrary maps are rejected at
// the boundary so the store never accumulates unqueryable keys.
type Metadata struct {
	ImageID      string  `json:"image_id"`
	Age          int     `json:"age,omitempty"`
	AgeBracket   string  `json:"age_bracket,omitempty"`
	Gender       string  `json:"gender,omitempty"`
	FaceQuality  float64 `json:"face_quality"`
	IsFrontal    bool    `json:"is_frontal"`
	Prominence   float64 `json:"prominence"`
	CenterDist   float64 `json:"center_dist"`
	AbsYaw       float64 `json:"abs_yaw,omitempty"`
	Brightness   float64 `json:"brightness,omitempty"`
	Sharpness    float64 `json:"sharpness,omitempty"`
	SceneType    string  `json:"scene_type,omitempty"`
	ModelVersion string  `json:"model_version"`
}

// Validate checks the invariants enforced at write time.
func (m Metadata) Validate() error {
	if m.ImageID == "" {
		return fmt.Errorf("metadata: image_id is required")
	}
	if m.FaceQuality < 0 || m.FaceQuality > 1 {
		return fmt.Errorf("metadata: face_quality %v out of [0,1]", m.FaceQuality)
	}
	if m.Prominence < 0 || m.Prominence > 1 {
		return fmt.Errorf("metadata: prominence %v out of [0,1]", m.Prominence)
	}
	if m.CenterDist < 0 || m.CenterDist > 1 {
		return fmt.Errorf("metadata: center_dist %v out of [0,1]", m.CenterDist)
	}
	if m.Gender != "" && m.Gender != "M" && m.Gender != "F" {
		return fmt.Errorf("metadata: gender %q must be M or F", m.Gender)
	}
	return nil
}

// filterableKeys is the set of metadata keys accepted in equality filters.
var filterableKeys = map[string]bool{
	"image_id":      true,
	"age":           true,
	"age_bracket":   true,
	"gender":        true,
	"is_frontal":    true,
	"scene_type":    true,
	"model_version": true,
}

// Filter is an equality filter over metadata keys. Values must be the JSON
// primitives the metadata schema declares for those keys.
type Filter map[string]any

// Validate rejects keys outside the declared filterable set and non-primitive
// values.
func (f Filter) Validate() error {
	for k, v := range f {
		if !filterableKeys[k] {
			return fmt.Errorf("filter: key %q is not filterable", k)
		}
		switch v.(type) {
		case string, bool, int, int64, float64:
		default:
			return fmt.Errorf("filter: key %q has non-primitive value %T", k, v)
		}
	}
	return nil
}

// MergeGender returns a copy of the filter with the inferred gender added only
// when the caller did not already filter on gender. Caller filters win.
func (f Filter) MergeGender(gender string) Filter {
	merged := make(Filter, len(f)+1)
	for k, v := range f {
		merged[k] = v
	}
	if gender != "" {
		if _, ok := merged["gender"]; !ok {
			merged["gender"] = gender
		}
	}
	return merged
}

func (f Filter) jsonb() ([]byte, error) {
	return json.Marshal(map[string]any(f))
}

// Matches evaluates the equality filter against a metadata record in memory,
// mirroring the jsonb containment semantics used by the store.
func (m Metadata) Matches(f Filter) bool {
	for key, want := range f {
		var got any
		switch key {
		case "image_id":
			got = m.ImageID
		case "age":
			got = m.Age
		case "age_bracket":
			got = m.AgeBracket
		case "gender":
			got = m.Gender
		case "is_frontal":
			got = m.IsFrontal
		case "scene_type":
			got = m.SceneType
		case "model_version":
			got = m.ModelVersion
		default:
			return false
		}
		if !primitiveEqual(got, want) {
			return false
		}
	}
	return true
}

func primitiveEqual(got, want any) bool {
	if gi, ok := toFloat(got); ok {
		if wi, ok := toFloat(want); ok {
			return gi == wi
		}
		return false
	}
	return got == want
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
