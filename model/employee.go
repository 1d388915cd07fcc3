package model

import "time"

// Employee is the record returned by the identity store
type Employee struct {
	EmployeeID   string     `json:"employee_id"`
	IDNumber     string     `json:"id_number,omitempty"`
	EmployeeCode string     `json:"-"`
	HireDate     *time.Time `json:"hire_date,omitempty"`
	Department   string     `json:"department,omitempty"`
}
