// Package tables registers the three fixed table definitions the service
// ingests: departments, jobs, and hired employees. CSV files are
// headerless; columns map by position in FieldSpecs order.
package tables

import (
	"time"

	"github.com/hiringdata/api/internal/core"
)

// Department is an organizational unit.
type Department struct {
	ID         int64
	Department string
}

// Job is a job title.
type Job struct {
	ID  int64
	Job string
}

// HiredEmployee is one hiring event. DepartmentID and JobID are soft
// references; the storage layer does not enforce them.
type HiredEmployee struct {
	ID           int64
	Name         string
	HiredAt      time.Time
	DepartmentID int64
	JobID        int64
}

func init() {
	registerDepartments()
	registerJobs()
	registerHiredEmployees()
}

func registerDepartments() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:   "departments",
			Label: "Departments",
			Table: "departments",
		},
		FieldSpecs: []core.FieldSpec{
			{Name: "id", Kind: core.FieldInt},
			{Name: "department", Kind: core.FieldText},
		},
		Build: func(fields []any) any {
			return Department{
				ID:         fields[0].(int64),
				Department: fields[1].(string),
			}
		},
		Row: func(rec any) []any {
			d := rec.(Department)
			return []any{d.ID, d.Department}
		},
	})
}

func registerJobs() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:   "jobs",
			Label: "Jobs",
			Table: "jobs",
		},
		FieldSpecs: []core.FieldSpec{
			{Name: "id", Kind: core.FieldInt},
			{Name: "job", Kind: core.FieldText},
		},
		Build: func(fields []any) any {
			return Job{
				ID:  fields[0].(int64),
				Job: fields[1].(string),
			}
		},
		Row: func(rec any) []any {
			j := rec.(Job)
			return []any{j.ID, j.Job}
		},
	})
}

func registerHiredEmployees() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:   "hired-employees",
			Label: "Hired Employees",
			Table: "hired_employees",
		},
		FieldSpecs: []core.FieldSpec{
			{Name: "id", Kind: core.FieldInt},
			{Name: "name", Kind: core.FieldText},
			{Name: "datetime", Kind: core.FieldTimestamp},
			{Name: "department_id", Kind: core.FieldInt},
			{Name: "job_id", Kind: core.FieldInt},
		},
		Build: func(fields []any) any {
			return HiredEmployee{
				ID:           fields[0].(int64),
				Name:         fields[1].(string),
				HiredAt:      fields[2].(time.Time),
				DepartmentID: fields[3].(int64),
				JobID:        fields[4].(int64),
			}
		},
		Row: func(rec any) []any {
			e := rec.(HiredEmployee)
			return []any{e.ID, e.Name, e.HiredAt, e.DepartmentID, e.JobID}
		},
		References: []core.Reference{
			{
				Column: "department_id",
				Table:  "departments",
				Key:    func(rec any) int64 { return rec.(HiredEmployee).DepartmentID },
			},
			{
				Column: "job_id",
				Table:  "jobs",
				Key:    func(rec any) int64 { return rec.(HiredEmployee).JobID },
			},
		},
	})
}
