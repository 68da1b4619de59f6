package face

import (
	"fmt"
	"strings"
)

// DescriptorText renders a face into the token vocabulary the lexical index
// is built over. The same builder runs at ingestion (stored document) and at
// query time (selfie descriptor), so both sides speak identical terms.
func DescriptorText(d Detection) string {
	var parts []string

	if d.Gender != "" {
		parts = append(parts, "gender:"+strings.ToLower(d.Gender))
	}
	if d.Age > 0 {
		parts = append(parts, fmt.Sprintf("age:%d", d.Age))
		parts = append(parts, "bracket:"+AgeBracket(d.Age))
	}

	if d.IsFrontal() {
		parts = append(parts, "frontal facing-camera")
	} else if d.Yaw > 45 || d.Yaw < -45 {
		parts = append(parts, "profile side-view")
	} else {
		parts = append(parts, "angled partial-profile")
	}

	switch {
	case d.Prominence > 0.05:
		parts = append(parts, "close-up prominent large-face")
	case d.Prominence > 0.01:
		parts = append(parts, "medium-shot")
	default:
		parts = append(parts, "background small-face group")
	}

	if d.CenterDist < 0.2 {
		parts = append(parts, "centered")
	} else if d.CenterDist > 0.6 {
		parts = append(parts, "edge peripheral")
	}

	if d.Quality > 0.7 {
		parts = append(parts, "high-quality clear")
	} else if d.Quality < 0.3 {
		parts = append(parts, "low-quality unclear")
	}

	return strings.Join(parts, " ")
}

// ImageText renders image-level attributes into lexical terms. Scene type and
// lighting come from the external processing pipeline.
func ImageText(sceneType string, brightness, sharpness float64, width, height int) string {
	var parts []string

	if sceneType != "" {
		parts = append(parts, "scene:"+sceneType)
	}

	if brightness > 180 {
		parts = append(parts, "bright well-lit")
	} else if brightness > 0 && brightness < 80 {
		parts = append(parts, "dark low-light")
	}

	if sharpness > 200 {
		parts = append(parts, "sharp crisp")
	} else if sharpness > 0 && sharpness < 30 {
		parts = append(parts, "soft blurry")
	}

	if width > height {
		parts = append(parts, "landscape")
	} else if height > width {
		parts = append(parts, "portrait")
	} else if width > 0 {
		parts = append(parts, "square")
	}

	return strings.Join(parts, " ")
}

// JoinTexts combines face and image descriptor texts into the stored document.
func JoinTexts(texts ...string) string {
	var parts []string
	for _, t := range texts {
		if t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
