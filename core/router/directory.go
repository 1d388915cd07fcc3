package router

import (
	"context"
	"fmt"
	"time"

	"github.com/siherrmann/handbot/database"
	"github.com/siherrmann/handbot/helper"
	"github.com/siherrmann/handbot/model"
)

// Directory looks up employees for identity verification.
// database.EmployeesDBHandler implements it on Postgres.
type Directory interface {
	// VerifyEmployee returns the employee id for a matching pair, ok is false on a miss
	VerifyEmployee(ctx context.Context, idNumber string, code string) (string, bool, error)
	SelectEmployee(ctx context.Context, employeeID string) (*model.Employee, error)
}

var _ Directory = (*database.EmployeesDBHandler)(nil)

// StaticDirectory is an in-memory directory built from configured credentials
type StaticDirectory struct {
	employees map[string]*model.Employee
}

// NewStaticDirectory validates the credentials and indexes them by employee id
func NewStaticDirectory(credentials []helper.EmployeeCredentials) (*StaticDirectory, error) {
	employees := map[string]*model.Employee{}
	for _, c := range credentials {
		if c.EmployeeID == "" || c.IDNumber == "" || c.EmployeeCode == "" {
			return nil, fmt.Errorf("employee %q is missing id number or code", c.EmployeeID)
		}
		if _, ok := employees[c.EmployeeID]; ok {
			return nil, fmt.Errorf("duplicate employee %q", c.EmployeeID)
		}

		employee := &model.Employee{
			EmployeeID:   c.EmployeeID,
			IDNumber:     c.IDNumber,
			EmployeeCode: c.EmployeeCode,
			Department:   c.Department,
		}
		if c.HireDate != "" {
			hireDate, err := time.Parse(time.DateOnly, c.HireDate)
			if err != nil {
				return nil, helper.NewError(fmt.Sprintf("parse hire date of %s", c.EmployeeID), err)
			}
			employee.HireDate = &hireDate
		}
		employees[c.EmployeeID] = employee
	}

	return &StaticDirectory{employees: employees}, nil
}

func (d *StaticDirectory) VerifyEmployee(ctx context.Context, idNumber string, code string) (string, bool, error) {
	for _, e := range d.employees {
		if e.IDNumber == idNumber && e.EmployeeCode == code {
			return e.EmployeeID, true, nil
		}
	}
	return "", false, nil
}

func (d *StaticDirectory) SelectEmployee(ctx context.Context, employeeID string) (*model.Employee, error) {
	e, ok := d.employees[employeeID]
	if !ok {
		return nil, database.ErrEmployeeNotFound
	}
	copied := *e
	return &copied, nil
}
