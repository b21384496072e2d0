package domain

// ChatAnswer is the model's reply to a question about a project.
type ChatAnswer struct {
	Answer  string   `json:"answer"`
	Model   string   `json:"model"`
	Sources []string `json:"sources"`
}

// InsightReport is a structured project assessment.
// Degraded is set when the model reply could not be parsed as JSON.
type InsightReport struct {
	Summary         string   `json:"summary"`
	Score           float64  `json:"score"`
	Strengths       []string `json:"strengths"`
	Risks           []string `json:"risks"`
	Recommendations []string `json:"recommendations"`
	Raw             string   `json:"raw,omitempty"`
	Degraded        bool     `json:"degraded,omitempty"`
}

// OnboardingGuide walks a new contributor through a project.
type OnboardingGuide struct {
	Overview   string   `json:"overview"`
	Setup      []string `json:"setup"`
	KeyFiles   []string `json:"key_files"`
	FirstTasks []string `json:"first_tasks"`
	Raw        string   `json:"raw,omitempty"`
	Degraded   bool     `json:"degraded,omitempty"`
}

// TourStep is one stop of a guided code tour.
type TourStep struct {
	FilePath    string `json:"file_path"`
	Title       string `json:"title"`
	Explanation string `json:"explanation"`
}

// Tour is an ordered walk through the important files of a project.
type Tour struct {
	Steps    []TourStep `json:"steps"`
	Raw      string     `json:"raw,omitempty"`
	Degraded bool       `json:"degraded,omitempty"`
}
