// Package profile validates and accumulates the demographic attributes every
// reading needs: gender, birth month and birth year.
package profile

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MinBirthYear is the earliest accepted birth year.
const MinBirthYear = 1900

// ErrValidation is matched by every *ValidationError.
var ErrValidation = errors.New("profile: invalid value")

// ErrComplete is returned when a field is set on a complete draft. Only a
// session reset clears a profile.
var ErrComplete = errors.New("profile: already complete")

// Field identifies one profile attribute.
type Field int

const (
	FieldGender Field = iota + 1
	FieldBirthMonth
	FieldBirthYear
)

func (f Field) String() string {
	switch f {
	case FieldGender:
		return "gender"
	case FieldBirthMonth:
		return "birth_month"
	case FieldBirthYear:
		return "birth_year"
	default:
		return "unknown"
	}
}

// Gender is one of the two enumerated values.
type Gender string

const (
	GenderFemale Gender = "female"
	GenderMale   Gender = "male"
)

// Genders lists accepted values in display order.
var Genders = []Gender{GenderFemale, GenderMale}

// ValidationError reports a rejected field value. The draft it was applied to is unchanged.
type ValidationError struct {
	Field  Field
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("profile: invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Code satisfies the handler summary coder used by the telegram router.
func (e *ValidationError) Code() string {
	return "VALIDATION_" + strings.ToUpper(e.Field.String())
}

// Profile is a complete, validated set of attributes.
type Profile struct {
	Gender     Gender
	BirthMonth int
	BirthYear  int
}

// MonthName returns the display name of the birth month.
func (p Profile) MonthName() string {
	return Months[p.BirthMonth-1].Name
}

// Age returns the age reached in the given year.
func (p Profile) Age(now time.Time) int {
	return now.Year() - p.BirthYear
}

// Draft accumulates fields one at a time. The zero value is empty.
type Draft struct {
	Gender     Gender `json:"gender,omitempty"`
	BirthMonth int    `json:"birth_month,omitempty"`
	BirthYear  int    `json:"birth_year,omitempty"`
}

// Set validates raw and merges it into the draft. On error the draft is not modified.
// A complete draft rejects every write with ErrComplete.
func (d *Draft) Set(field Field, raw string, now time.Time) error {
	if d.Complete() {
		return ErrComplete
	}
	switch field {
	case FieldGender:
		g, err := ParseGender(raw)
		if err != nil {
			return err
		}
		d.Gender = g
	case FieldBirthMonth:
		m, err := ParseMonth(raw)
		if err != nil {
			return err
		}
		d.BirthMonth = m
	case FieldBirthYear:
		y, err := ParseYear(raw, now)
		if err != nil {
			return err
		}
		d.BirthYear = y
	default:
		return &ValidationError{Field: field, Value: raw, Reason: "unknown field"}
	}
	return nil
}

// Missing returns the first field still unset, or 0 when the draft is complete.
func (d Draft) Missing() Field {
	switch {
	case d.Gender == "":
		return FieldGender
	case d.BirthMonth == 0:
		return FieldBirthMonth
	case d.BirthYear == 0:
		return FieldBirthYear
	}
	return 0
}

// Complete reports whether all fields are set.
func (d Draft) Complete() bool {
	return d.Missing() == 0
}

// Profile returns the completed profile.
func (d Draft) Profile() (Profile, bool) {
	if !d.Complete() {
		return Profile{}, false
	}
	return Profile{Gender: d.Gender, BirthMonth: d.BirthMonth, BirthYear: d.BirthYear}, true
}

// ParseGender accepts the enumerated value, case-insensitively.
func ParseGender(raw string) (Gender, error) {
	v := Gender(strings.ToLower(strings.TrimSpace(raw)))
	for _, g := range Genders {
		if v == g {
			return g, nil
		}
	}
	if alias, ok := genderAliases[string(v)]; ok {
		return alias, nil
	}
	return "", &ValidationError{Field: FieldGender, Value: raw, Reason: "not one of female, male"}
}

var genderAliases = map[string]Gender{
	"f":     GenderFemale,
	"woman": GenderFemale,
	"زن":    GenderFemale,
	"m":     GenderMale,
	"man":   GenderMale,
	"مرد":   GenderMale,
}

// ParseYear accepts an integer year in [MinBirthYear, now.Year()].
func ParseYear(raw string, now time.Time) (int, error) {
	s := strings.TrimSpace(normalizeDigits(raw))
	y, err := strconv.Atoi(s)
	if err != nil {
		return 0, &ValidationError{Field: FieldBirthYear, Value: raw, Reason: "not a number"}
	}
	if y < MinBirthYear || y > now.Year() {
		return 0, &ValidationError{
			Field:  FieldBirthYear,
			Value:  raw,
			Reason: fmt.Sprintf("outside %d..%d", MinBirthYear, now.Year()),
		}
	}
	return y, nil
}

// normalizeDigits maps Persian and Arabic-Indic digits to ASCII.
func normalizeDigits(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '۰' && r <= '۹':
			return '0' + (r - '۰')
		case r >= '٠' && r <= '٩':
			return '0' + (r - '٠')
		}
		return r
	}, s)
}
