package domain

// AnalyzeRequest is sent to the content analysis service.
type AnalyzeRequest struct {
	ContentURI    string
	Caption       string
	PostID        string
	CreatorWallet string
}

// Analysis is the structured result of content analysis.
type Analysis struct {
	Description string    `json:"description"`
	Tags        []string  `json:"tags"`
	SceneType   string    `json:"sceneType"`
	Objects     []string  `json:"objects,omitempty"`
	Mood        string    `json:"mood"`
	Colors      []string  `json:"colors,omitempty"`
	SafetyScore float64   `json:"safetyScore"`
	AltText     string    `json:"altText"`
	Embedding   []float64 `json:"embedding,omitempty"`
}

// PostAnalysis returns the six descriptive fields written onto a post.
func (a *Analysis) PostAnalysis() PostAnalysis {
	return PostAnalysis{
		Description: a.Description,
		Tags:        a.Tags,
		SceneType:   a.SceneType,
		Mood:        a.Mood,
		SafetyScore: a.SafetyScore,
		AltText:     a.AltText,
	}
}

// PostAnalysis is the partial post update produced by content analysis.
// All six fields are written together or not at all.
type PostAnalysis struct {
	Description string
	Tags        []string
	SceneType   string
	Mood        string
	SafetyScore float64
	AltText     string
}

// EmbeddingMetadata accompanies a vector in the search index.
type EmbeddingMetadata struct {
	Description string   `json:"description"`
	Caption     string   `json:"caption,omitempty"`
	Tags        []string `json:"tags"`
	SceneType   string   `json:"sceneType"`
}
