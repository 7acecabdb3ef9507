package taskname

const (
	// Analysis tasks
	AnalysisProcessText = "analysis:process_text"
)
