package profile

import (
	"strconv"
	"strings"
)

// Month is one of the twelve named months of the solar calendar used for birth months.
type Month struct {
	Ordinal int
	Name    string
	Latin   string
}

// Months is ordered by ordinal, starting at 1.
var Months = [12]Month{
	{1, "فروردین", "Farvardin"},
	{2, "اردیبهشت", "Ordibehesht"},
	{3, "خرداد", "Khordad"},
	{4, "تیر", "Tir"},
	{5, "مرداد", "Mordad"},
	{6, "شهریور", "Shahrivar"},
	{7, "مهر", "Mehr"},
	{8, "آبان", "Aban"},
	{9, "آذر", "Azar"},
	{10, "دی", "Dey"},
	{11, "بهمن", "Bahman"},
	{12, "اسفند", "Esfand"},
}

// ParseMonth accepts a month name (native or Latin spelling) or an ordinal 1–12.
func ParseMonth(raw string) (int, error) {
	s := strings.TrimSpace(normalizeDigits(raw))
	if n, err := strconv.Atoi(s); err == nil {
		if n >= 1 && n <= 12 {
			return n, nil
		}
		return 0, &ValidationError{Field: FieldBirthMonth, Value: raw, Reason: "ordinal outside 1..12"}
	}
	for _, m := range Months {
		if s == m.Name || strings.EqualFold(s, m.Latin) {
			return m.Ordinal, nil
		}
	}
	return 0, &ValidationError{Field: FieldBirthMonth, Value: raw, Reason: "unknown month"}
}
