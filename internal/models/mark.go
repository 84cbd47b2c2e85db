package models

// Mark is one score row per (student, subject, term, academic year).
type Mark struct {
	ID           string   `db:"id" json:"id"`
	StudentID    string   `db:"student_id" json:"studentId"`
	ClassName    string   `db:"class_name" json:"className"`
	Subject      string   `db:"subject" json:"subject"`
	Term         string   `db:"term" json:"term"`
	AcademicYear string   `db:"academic_year" json:"academicYear"`
	ClassScore   *float64 `db:"class_score" json:"classScore"`
	ExamsScore   *float64 `db:"exams_score" json:"examsScore"`
	Grade        *string  `db:"grade" json:"grade"`
	Remarks      *string  `db:"remarks" json:"remarks"`
	TeacherID    *string  `db:"teacher_id" json:"teacherId"`
}

// Total is classScore + examsScore with missing parts counted as zero.
func (m Mark) Total() float64 {
	var total float64
	if m.ClassScore != nil {
		total += *m.ClassScore
	}
	if m.ExamsScore != nil {
		total += *m.ExamsScore
	}
	return total
}

// MarkRecord is a mark joined with the owning student's identity, which may be absent.
type MarkRecord struct {
	Mark
	StudentName   *string `db:"student_name" json:"studentName"`
	StudentNumber *string `db:"student_number" json:"studentNumber"`
}
