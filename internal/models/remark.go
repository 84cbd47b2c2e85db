package models

// Remark holds a student's conduct report for one term.
type Remark struct {
	ID             string  `db:"id" json:"id"`
	StudentID      string  `db:"student_id" json:"studentId"`
	Term           string  `db:"term" json:"term"`
	AcademicYear   string  `db:"academic_year" json:"academicYear"`
	Conduct        *string `db:"conduct" json:"conduct"`
	Attitude       *string `db:"attitude" json:"attitude"`
	Interest       *string `db:"interest" json:"interest"`
	Remarks        *string `db:"remarks" json:"remarks"`
	ClassTeacherID *string `db:"class_teacher_id" json:"classTeacherId"`
}

// RemarkRecord is a remark joined with student identity.
type RemarkRecord struct {
	Remark
	StudentName   *string `db:"student_name" json:"studentName"`
	StudentNumber *string `db:"student_number" json:"studentNumber"`
}
