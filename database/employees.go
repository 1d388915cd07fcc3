package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/siherrmann/handbot/helper"
	"github.com/siherrmann/handbot/model"
	loadSql "github.com/siherrmann/handbot/sql"
)

// ErrEmployeeNotFound is returned when no employee has the requested id
var ErrEmployeeNotFound = errors.New("employee not found")

// EmployeesDBHandlerFunctions defines the interface for Employees database operations.
type EmployeesDBHandlerFunctions interface {
	InsertEmployee(ctx context.Context, employee *model.Employee) error
	VerifyEmployee(ctx context.Context, idNumber string, code string) (string, bool, error)
	SelectEmployee(ctx context.Context, employeeID string) (*model.Employee, error)
	DeleteEmployee(ctx context.Context, employeeID string) error
}

// EmployeesDBHandler is the identity store backed by the 'employees' table
type EmployeesDBHandler struct {
	db *helper.Database
}

// NewEmployeesDBHandler creates a new employees database handler.
// If force is true, it will reload the SQL functions even if they already exist.
func NewEmployeesDBHandler(db *helper.Database, force bool) (*EmployeesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	employeesDbHandler := &EmployeesDBHandler{
		db: db,
	}

	err := loadSql.LoadEmployeesSql(employeesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load employees sql", err)
	}

	err = employeesDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized EmployeesDBHandler")

	return employeesDbHandler, nil
}

// CreateTable creates the 'employees' table in the database.
// If the table already exists, it does not create it again.
func (h *EmployeesDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_employees();`)
	if err != nil {
		log.Panicf("error initializing employees table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table employees")

	return nil
}

// InsertEmployee inserts or updates an employee by employee id
func (h *EmployeesDBHandler) InsertEmployee(ctx context.Context, employee *model.Employee) error {
	_, err := h.db.Instance.ExecContext(
		ctx,
		`SELECT insert_employee($1, $2, $3, $4, $5)`,
		employee.EmployeeID,
		employee.IDNumber,
		employee.EmployeeCode,
		employee.HireDate,
		employee.Department,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// VerifyEmployee looks up the employee id for an id number and employee code pair.
// ok is false when no employee matches.
func (h *EmployeesDBHandler) VerifyEmployee(ctx context.Context, idNumber string, code string) (string, bool, error) {
	var employeeID string
	err := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM verify_employee($1, $2)`,
		idNumber,
		code,
	).Scan(&employeeID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, helper.NewError("scan", err)
	}

	return employeeID, true, nil
}

// SelectEmployee retrieves the employee record used for personalised answers
func (h *EmployeesDBHandler) SelectEmployee(ctx context.Context, employeeID string) (*model.Employee, error) {
	employee := &model.Employee{}
	var hireDate sql.NullTime
	err := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM select_employee($1)`,
		employeeID,
	).Scan(
		&employee.EmployeeID,
		&employee.IDNumber,
		&hireDate,
		&employee.Department,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEmployeeNotFound
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	if hireDate.Valid {
		employee.HireDate = &hireDate.Time
	}

	return employee, nil
}

// DeleteEmployee deletes an employee by employee id
func (h *EmployeesDBHandler) DeleteEmployee(ctx context.Context, employeeID string) error {
	_, err := h.db.Instance.ExecContext(
		ctx,
		`SELECT delete_employee($1)`,
		employeeID,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}
