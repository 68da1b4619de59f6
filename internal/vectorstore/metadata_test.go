package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMetadataValidate(t *testing.T) {
	valid := Metadata{ImageID: "img-1", FaceQuality: 0.8, Prominence: 0.05, CenterDist: 0.2, Gender: "F"}
	require.NoError(t, valid.Validate())

	require.Error(t, Metadata{FaceQuality: 0.5}.Validate(), "image_id is required")
	require.Error(t, Metadata{ImageID: "x", FaceQuality: 1.2}.Validate())
	require.Error(t, Metadata{ImageID: "x", Prominence: -0.1}.Validate())
	require.Error(t, Metadata{ImageID: "x", Gender: "male"}.Validate())
	require.NoError(t, Metadata{ImageID: "x"}.Validate(), "empty gender is allowed")
}

func TestFilterValidate(t *testing.T) {
	require.NoError(t, Filter{"gender": "M", "age_bracket": "adult"}.Validate())
	require.NoError(t, Filter(nil).Validate())

	require.Error(t, Filter{"face_quality": 0.5}.Validate(), "non-filterable key rejected")
	require.Error(t, Filter{"gender": []string{"M"}}.Validate(), "non-primitive value rejected")
}

func TestFilterMergeGender(t *testing.T) {
	merged := Filter{"age_bracket": "adult"}.MergeGender("M")
	require.Equal(t, "M", merged["gender"])
	require.Equal(t, "adult", merged["age_bracket"])

	// Caller-supplied gender wins over the inferred one.
	merged = Filter{"gender": "F"}.MergeGender("M")
	require.Equal(t, "F", merged["gender"])

	// No inferred gender adds nothing.
	merged = Filter{}.MergeGender("")
	require.NotContains(t, merged, "gender")

	// The original filter is never mutated.
	orig := Filter{"age_bracket": "adult"}
	_ = orig.MergeGender("M")
	require.NotContains(t, orig, "gender")
}

func TestMetadataMatches(t *testing.T) {
	meta := Metadata{
		ImageID:      "img-1",
		Age:          34,
		AgeBracket:   "young_adult",
		Gender:       "M",
		IsFrontal:    true,
		SceneType:    "outdoor",
		ModelVersion: "buffalo_l_v1",
	}

	require.True(t, meta.Matches(nil), "empty filter matches everything")
	require.True(t, meta.Matches(Filter{"gender": "M", "is_frontal": true}))
	require.False(t, meta.Matches(Filter{"gender": "F"}))
	require.False(t, meta.Matches(Filter{"scene_type": "indoor"}))
}

func TestMetadataMatches_NumericCoercion(t *testing.T) {
	meta := Metadata{ImageID: "img-1", Age: 34}

	// JSON decoding yields float64; the in-memory check must agree with the
	// jsonb containment the store uses.
	require.True(t, meta.Matches(Filter{"age": float64(34)}))
	require.True(t, meta.Matches(Filter{"age": 34}))
	require.False(t, meta.Matches(Filter{"age": 35}))
}
