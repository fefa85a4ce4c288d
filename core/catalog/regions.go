package catalog

import "strings"

var regionNames = map[string]string{
	"cn-beijing":     "Chinese Mainland (Beijing)",
	"cn-shanghai":    "Chinese Mainland (Shanghai)",
	"cn-hangzhou":    "Chinese Mainland (Hangzhou)",
	"cn-shenzhen":    "Chinese Mainland (Shenzhen)",
	"ap-southeast-1": "International (Singapore)",
	"us-west-1":      "International (US West)",
}

// RegionName returns the display name of a region, or the code itself
func RegionName(region string) string {
	if name, ok := regionNames[region]; ok {
		return name
	}
	return region
}

var categoryModalities = map[string]Modality{
	"llm":                  ModalityText,
	"text-generation":      ModalityText,
	"text-embedding":       ModalityText,
	"rerank":               ModalityText,
	"image-generation":     ModalityImage,
	"image-understanding":  ModalityImage,
	"video-generation":     ModalityVideo,
	"speech-synthesis":     ModalityAudio,
	"speech-recognition":   ModalityAudio,
	"multimodal-embedding": ModalityMultimodal,
	"multimodal":           ModalityMultimodal,
}

// ModalityForCategory infers the modality from a catalog category
func ModalityForCategory(category string) Modality {
	if m, ok := categoryModalities[strings.ToLower(category)]; ok {
		return m
	}
	return ModalityUnknown
}

// CapabilityForCategory infers generation/understanding capability
func CapabilityForCategory(category string) string {
	c := strings.ToLower(category)
	switch {
	case strings.Contains(c, "generation"), strings.Contains(c, "synthesis"):
		return "generation"
	case strings.Contains(c, "understanding"), strings.Contains(c, "recognition"):
		return "understanding"
	case c == "llm":
		return "both"
	}
	return ""
}

// ModelTypeForCategory infers the model type
func ModelTypeForCategory(category string) string {
	c := strings.ToLower(category)
	switch {
	case strings.Contains(c, "embedding"):
		if strings.Contains(c, "multimodal") {
			return "multimodal_embedding"
		}
		return "text_embedding"
	case strings.Contains(c, "rerank"):
		return "rerank"
	case c == "llm":
		return "llm"
	}
	return ""
}
