package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Gender is the closed set of gender tags an intervention or person may carry.
type Gender string

// Gender tags. GenderTrans is legacy: accepted for historic records but never
// broken out in aggregate reporting.
const (
	GenderMan       Gender = "man"
	GenderWoman     Gender = "woman"
	GenderNonBinary Gender = "non-binary"
	GenderTrans     Gender = "trans"
)

// ReportingGenders returns the genders broken out in aggregate reports, in display order.
func ReportingGenders() []Gender {
	return []Gender{GenderMan, GenderWoman, GenderNonBinary}
}

// ParseGender validates a raw tag at the ingestion boundary.
func ParseGender(raw string) (Gender, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "man", "male":
		return GenderMan, nil
	case "woman", "female":
		return GenderWoman, nil
	case "non-binary", "nonbinary", "non_binary":
		return GenderNonBinary, nil
	case "trans":
		return GenderTrans, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownGender, raw)
}

// IsReporting reports whether g is broken out in per-gender aggregates.
func (g Gender) IsReporting() bool {
	return g == GenderMan || g == GenderWoman || g == GenderNonBinary
}

// UnmarshalJSON rejects tags outside the closed set.
func (g *Gender) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseGender(raw)
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// InterventionType is the manner in which someone spoke.
type InterventionType string

// Intervention types in storage order.
const (
	TypeShort        InterventionType = "short-intervention"
	TypeFacilitates  InterventionType = "facilitates"
	TypeInterruption InterventionType = "interruption"
	TypeLong         InterventionType = "long-intervention"
	TypeOffensive    InterventionType = "offensive"
	TypeExplains     InterventionType = "explains"
)

// AllTypes returns every intervention type in storage order.
func AllTypes() []InterventionType {
	return []InterventionType{TypeShort, TypeFacilitates, TypeInterruption, TypeLong, TypeOffensive, TypeExplains}
}

// ChartOrder is the fixed display order used by charts and tables.
// It intentionally differs from storage order.
func ChartOrder() []InterventionType {
	return []InterventionType{TypeFacilitates, TypeExplains, TypeInterruption, TypeShort, TypeLong, TypeOffensive}
}

// ParseInterventionType validates a raw type tag at the ingestion boundary.
func ParseInterventionType(raw string) (InterventionType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "short-intervention", "short":
		return TypeShort, nil
	case "facilitates", "facilitate":
		return TypeFacilitates, nil
	case "interruption", "interrupt":
		return TypeInterruption, nil
	case "long-intervention", "long":
		return TypeLong, nil
	case "offensive":
		return TypeOffensive, nil
	case "explains", "explain":
		return TypeExplains, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownType, raw)
}

// UnmarshalJSON rejects types outside the closed set.
func (t *InterventionType) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseInterventionType(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// AttendanceMode records how a present person attended.
type AttendanceMode string

// Attendance modes.
const (
	ModeInPerson AttendanceMode = "in-person"
	ModeOnline   AttendanceMode = "online"
)

// ParseAttendanceMode validates a mode; empty defaults to in-person.
func ParseAttendanceMode(raw string) (AttendanceMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "in-person", "inperson", "presencial":
		return ModeInPerson, nil
	case "online":
		return ModeOnline, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, raw)
}

// Role is the function a person held at an assembly.
type Role string

// Roles.
const (
	RoleMember    Role = "member"
	RoleModerator Role = "moderator"
	RoleSecretary Role = "secretary"
)

// ParseRole validates a role; empty defaults to member.
func ParseRole(raw string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "member":
		return RoleMember, nil
	case "moderator":
		return RoleModerator, nil
	case "secretary":
		return RoleSecretary, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
}
