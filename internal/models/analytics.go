package models

// GradeSymbols is the fixed grade vocabulary, best first.
var GradeSymbols = []string{"A", "B", "C", "D", "E", "F"}

// GradeDistribution counts marks per grade symbol.
type GradeDistribution map[string]int

// Performance summarises total scores for one subject or class.
type Performance struct {
	Name    string  `json:"name"`
	Average float64 `json:"average"`
	Highest float64 `json:"highest"`
	Lowest  float64 `json:"lowest"`
	Count   int     `json:"count"`
}

// ScoreBucket counts marks whose total falls within [Min, Max].
type ScoreBucket struct {
	Range string `json:"range"`
	Min   int    `json:"min"`
	Max   int    `json:"max"`
	Count int    `json:"count"`
}

// ArchiveAnalytics is the analytical view over one archive's marks.
type ArchiveAnalytics struct {
	Archive            Archive           `json:"archive"`
	Counts             ArchiveCounts     `json:"counts"`
	OverallAverage     float64           `json:"overallAverage"`
	PassRate           float64           `json:"passRate"`
	GradeDistribution  GradeDistribution `json:"gradeDistribution"`
	SubjectPerformance []Performance     `json:"subjectPerformance"`
	ClassPerformance   []Performance     `json:"classPerformance"`
	ScoreDistribution  []ScoreBucket     `json:"scoreDistribution"`
}

// ArchiveComparison lines up analytics of several archives.
type ArchiveComparison struct {
	Archives []ArchiveAnalytics `json:"archives"`
	// Subjects lists every subject seen in any compared archive, sorted.
	Subjects []string `json:"subjects"`
}
