package model

// AnalysisItem is a single timestamped coaching observation. The timestamp is
// an "MM:SS" marker aligned with the video frame the observation starts at.
type AnalysisItem struct {
	Timestamp  string `json:"timestamp"`
	Suggestion string `json:"suggestion"`
}

// AnalysisResult is the structured critique produced for one workout video.
// Item order is significant: each item is displayed until the next one starts.
type AnalysisResult struct {
	Exercise string         `json:"exercise"`
	Analysis []AnalysisItem `json:"analysis"`
}
