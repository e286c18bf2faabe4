package repository

import (
	"time"

	"github.com/okian/asamblea/internal/domain/model"
)

type assemblyRow struct {
	ID              string    `gorm:"primaryKey"`
	Name            string    `gorm:"not null"`
	Date            time.Time `gorm:"index"`
	Kind            string
	Description     string
	RegistrarName   string
	RegistrarGender string
	ModeratorID     string
	SecretaryID     string
	StartTime       *time.Time
	EndTime         *time.Time
}

func (assemblyRow) TableName() string { return "assembly" }

func (r assemblyRow) toModel() model.Assembly {
	return model.Assembly{
		ID:           r.ID,
		Name:         r.Name,
		Date:         r.Date.UTC(),
		Kind:         r.Kind,
		Description:  r.Description,
		RegisteredBy: model.Registrar{Name: r.RegistrarName, Gender: model.Gender(r.RegistrarGender)},
		ModeratorID:  r.ModeratorID,
		SecretaryID:  r.SecretaryID,
		StartTime:    utcPtr(r.StartTime),
		EndTime:      utcPtr(r.EndTime),
	}
}

func assemblyRowFrom(a model.Assembly) assemblyRow {
	return assemblyRow{
		ID:              a.ID,
		Name:            a.Name,
		Date:            a.Date.UTC(),
		Kind:            a.Kind,
		Description:     a.Description,
		RegistrarName:   a.RegisteredBy.Name,
		RegistrarGender: string(a.RegisteredBy.Gender),
		ModeratorID:     a.ModeratorID,
		SecretaryID:     a.SecretaryID,
		StartTime:       utcPtr(a.StartTime),
		EndTime:         utcPtr(a.EndTime),
	}
}

type personRow struct {
	ID      string `gorm:"primaryKey"`
	Name    string
	Surname string
	Gender  string
}

func (personRow) TableName() string { return "person" }

func (r personRow) toModel() model.Person {
	return model.Person{ID: r.ID, Name: r.Name, Surname: r.Surname, Gender: model.Gender(r.Gender)}
}

type interventionRow struct {
	ID         string `gorm:"primaryKey"`
	AssemblyID string `gorm:"not null;index:idx_intervention_bucket,priority:1"`
	Gender     string `gorm:"not null;index:idx_intervention_bucket,priority:2"`
	Type       string `gorm:"column:intervention_type;not null;index:idx_intervention_bucket,priority:3"`
	Timestamp  int64  `gorm:"column:created_ms;not null"`
}

func (interventionRow) TableName() string { return "intervention" }

func (r interventionRow) toModel() model.Intervention {
	return model.Intervention{
		ID:         r.ID,
		AssemblyID: r.AssemblyID,
		Gender:     model.Gender(r.Gender),
		Type:       model.InterventionType(r.Type),
		Timestamp:  r.Timestamp,
	}
}

type attendanceRow struct {
	AssemblyID string `gorm:"primaryKey"`
	PersonID   string `gorm:"primaryKey"`
	Present    bool
	Mode       string
	Role       string
}

func (attendanceRow) TableName() string { return "attendance" }

func (r attendanceRow) toModel() model.Attendance {
	return model.Attendance{
		PersonID:   r.PersonID,
		AssemblyID: r.AssemblyID,
		Present:    r.Present,
		Mode:       model.AttendanceMode(r.Mode),
		Role:       model.Role(r.Role),
	}
}

var sqliteModels = []any{
	&assemblyRow{},
	&personRow{},
	&interventionRow{},
	&attendanceRow{},
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
