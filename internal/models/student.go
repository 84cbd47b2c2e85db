package models

// Student represents a learner registered in the institution.
type Student struct {
	ID            string  `db:"id" json:"id"`
	StudentNumber string  `db:"student_number" json:"studentNumber"`
	FullName      string  `db:"full_name" json:"fullName"`
	ClassName     *string `db:"class_name" json:"className"`
	Gender        *string `db:"gender" json:"gender"`
}
