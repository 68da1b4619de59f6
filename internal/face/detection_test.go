package face

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSelectPrimary(t *testing.T) {
	_, ok := SelectPrimary(nil)
	require.False(t, ok)

	big := Detection{BBox: BBox{W: 100, H: 100}, DetectionScore: 0.9}
	small := Detection{BBox: BBox{W: 20, H: 20}, DetectionScore: 0.99}

	got, ok := SelectPrimary([]Detection{small, big})
	require.True(t, ok)
	require.Equal(t, big, got, "area times confidence picks the prominent face")
}

func TestSelectPrimary_TieKeepsFirst(t *testing.T) {
	first := Detection{BBox: BBox{W: 50, H: 50}, DetectionScore: 0.9, Age: 30}
	second := Detection{BBox: BBox{W: 50, H: 50}, DetectionScore: 0.9, Age: 60}

	got, ok := SelectPrimary([]Detection{first, second})
	require.True(t, ok)
	require.Equal(t, 30, got.Age, "equal scores keep detector order")
}

func TestIsFrontal(t *testing.T) {
	require.True(t, Detection{Yaw: 10, Pitch: -12}.IsFrontal())
	require.False(t, Detection{Yaw: 20, Pitch: 0}.IsFrontal())
	require.False(t, Detection{Yaw: 0, Pitch: -16}.IsFrontal())
}

func TestAgeBracket(t *testing.T) {
	require.Equal(t, "child", AgeBracket(8))
	require.Equal(t, "teen", AgeBracket(16))
	require.Equal(t, "young_adult", AgeBracket(27))
	require.Equal(t, "adult", AgeBracket(45))
	require.Equal(t, "senior", AgeBracket(70))
}

func TestDescriptorText(t *testing.T) {
	d := Detection{
		Gender:     "M",
		Age:        34,
		Yaw:        5,
		Pitch:      3,
		Quality:    0.9,
		Prominence: 0.08,
		CenterDist: 0.1,
	}

	text := DescriptorText(d)
	for _, term := range []string{"gender:m", "age:34", "bracket:young_adult", "frontal", "close-up", "centered", "high-quality"} {
		require.Contains(t, text, term)
	}
}

func TestDescriptorText_ProfileLowQuality(t *testing.T) {
	d := Detection{Yaw: 60, Quality: 0.2, Prominence: 0.002, CenterDist: 0.7}

	text := DescriptorText(d)
	require.Contains(t, text, "profile")
	require.Contains(t, text, "background")
	require.Contains(t, text, "peripheral")
	require.Contains(t, text, "low-quality")
	require.NotContains(t, text, "gender:", "unknown gender emits no term")
}

func TestImageText(t *testing.T) {
	text := ImageText("outdoor", 180, 250, 4000, 3000)
	require.Contains(t, text, "scene:outdoor")
}

func TestJoinTexts(t *testing.T) {
	require.Equal(t, "a b", JoinTexts("a", "", "b"))
	require.Equal(t, "", JoinTexts("", ""))
	require.False(t, strings.Contains(JoinTexts("a", "b"), "  "))
}
