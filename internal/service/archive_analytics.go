package service

import (
	"math"
	"sort"
	"strings"

	"github.com/noah-isme/sma-archive-api/internal/models"
)

// passMark is the lowest total counted as a pass.
const passMark = 50.0

var scoreBuckets = []struct {
	label    string
	min, max int
}{
	{"0-40", 0, 40},
	{"41-50", 41, 50},
	{"51-60", 51, 60},
	{"61-70", 61, 70},
	{"71-80", 71, 80},
	{"81-90", 81, 90},
	{"91-100", 91, 100},
}

// GradeDistribution counts marks per grade symbol. Missing or unknown grades count as F.
func GradeDistribution(marks []models.Mark) models.GradeDistribution {
	dist := make(models.GradeDistribution, len(models.GradeSymbols))
	for _, symbol := range models.GradeSymbols {
		dist[symbol] = 0
	}
	for _, mark := range marks {
		grade := "F"
		if mark.Grade != nil {
			candidate := strings.ToUpper(strings.TrimSpace(*mark.Grade))
			if _, ok := dist[candidate]; ok {
				grade = candidate
			}
		}
		dist[grade]++
	}
	return dist
}

// SubjectPerformance summarises totals per subject, best average first.
func SubjectPerformance(marks []models.Mark) []models.Performance {
	return performanceBy(marks, func(m models.Mark) string { return m.Subject })
}

// ClassPerformance summarises totals per class, best average first.
func ClassPerformance(marks []models.Mark) []models.Performance {
	return performanceBy(marks, func(m models.Mark) string { return m.ClassName })
}

// ScoreDistribution places every total in one of seven fixed ranges. Upper bounds are inclusive.
func ScoreDistribution(marks []models.Mark) []models.ScoreBucket {
	buckets := make([]models.ScoreBucket, len(scoreBuckets))
	for i, b := range scoreBuckets {
		buckets[i] = models.ScoreBucket{Range: b.label, Min: b.min, Max: b.max}
	}
	for _, mark := range marks {
		buckets[bucketIndex(mark.Total())].Count++
	}
	return buckets
}

func bucketIndex(total float64) int {
	for i, b := range scoreBuckets {
		if total <= float64(b.max) {
			return i
		}
	}
	return len(scoreBuckets) - 1
}

// OverallAverage is the mean total over all marks, 0 for none.
func OverallAverage(marks []models.Mark) float64 {
	if len(marks) == 0 {
		return 0
	}
	var sum float64
	for _, mark := range marks {
		sum += mark.Total()
	}
	return round2(sum / float64(len(marks)))
}

// PassRate is the percentage of marks whose total reaches the pass mark.
func PassRate(marks []models.Mark) float64 {
	if len(marks) == 0 {
		return 0
	}
	passed := 0
	for _, mark := range marks {
		if mark.Total() >= passMark {
			passed++
		}
	}
	return round2(float64(passed) * 100 / float64(len(marks)))
}

type performanceAcc struct {
	sum, highest, lowest float64
	count                int
}

func performanceBy(marks []models.Mark, key func(models.Mark) string) []models.Performance {
	groups := make(map[string]*performanceAcc)
	for _, mark := range marks {
		name := key(mark)
		total := mark.Total()
		acc, ok := groups[name]
		if !ok {
			acc = &performanceAcc{highest: total, lowest: total}
			groups[name] = acc
		}
		acc.sum += total
		acc.count++
		acc.highest = math.Max(acc.highest, total)
		acc.lowest = math.Min(acc.lowest, total)
	}

	result := make([]models.Performance, 0, len(groups))
	for name, acc := range groups {
		result = append(result, models.Performance{
			Name:    name,
			Average: round2(acc.sum / float64(acc.count)),
			Highest: acc.highest,
			Lowest:  acc.lowest,
			Count:   acc.count,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Average != result[j].Average {
			return result[i].Average > result[j].Average
		}
		return result[i].Name < result[j].Name
	})
	return result
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func marksOf(records []models.MarkRecord) []models.Mark {
	marks := make([]models.Mark, len(records))
	for i, record := range records {
		marks[i] = record.Mark
	}
	return marks
}
