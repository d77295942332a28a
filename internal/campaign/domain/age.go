package domain

import "time"

// Age is a calendar age in whole years and remaining months
type Age struct {
	Years  int
	Months int
}

// TotalMonths returns the age expressed in whole months
func (a Age) TotalMonths() int {
	return a.Years*12 + a.Months
}

// AgeAt computes calendar age at the reference date. A birthday that
// has not yet occurred in the current year or month does not count,
// so someone born 2020-03-15 is 3 years 11 months on 2024-03-14.
func AgeAt(birthDate, at time.Time) Age {
	if at.Before(birthDate) {
		return Age{}
	}

	years := at.Year() - birthDate.Year()
	months := int(at.Month()) - int(birthDate.Month())
	if at.Day() < birthDate.Day() {
		months--
	}
	if months < 0 {
		years--
		months += 12
	}

	return Age{Years: years, Months: months}
}
