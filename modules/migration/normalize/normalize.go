// Package normalize maps raw legacy field text to canonical domain values.
// Every function here is pure and total: it either returns a canonical value
// or reports that the input is unusable, and never consults outside state.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/smccd/doorcard-data/modules/migration/domain"
)

// Role maps legacy role text by case-insensitive substring. Anything that is
// not recognizably ADMIN or STAFF is FACULTY; this normalizer never fails.
func Role(raw string) domain.Role {
	upper := strings.ToUpper(raw)
	switch {
	case strings.Contains(upper, "ADMIN"):
		return domain.RoleAdmin
	case strings.Contains(upper, "STAFF"):
		return domain.RoleStaff
	default:
		return domain.RoleFaculty
	}
}

// College matches known campus name variants. The legacy extract spells the
// same campus several ways ("CSM", "College of San Mateo", "Cañada"...).
// Returns false when no variant matches; college is required on doorcards,
// so the caller rejects.
func College(raw string) (domain.College, bool) {
	upper := strings.ToUpper(raw)
	switch {
	case strings.Contains(upper, "SKYLINE"):
		return domain.CollegeSkyline, true
	case strings.Contains(upper, "CSM"), strings.Contains(upper, "SAN MATEO"):
		return domain.CollegeCSM, true
	case strings.Contains(upper, "CANADA"), strings.Contains(upper, "CAÑADA"):
		return domain.CollegeCanada, true
	case strings.Contains(upper, "DISTRICT"):
		return domain.CollegeDistrictOffice, true
	default:
		return "", false
	}
}

var (
	numericTermRe = regexp.MustCompile(`^(\d{4})(\d{2})$`)
	termYearRe    = regexp.MustCompile(`\b(19|20)\d{2}\b|\b\d{2}\b`)
)

// Term parses either a 6-digit numeric term code (YYYYSS) or free text
// containing a season name and a 2- or 4-digit year. Season codes: 01 is the
// legacy winter session and folds into SPRING, 03 SPRING, 05 SUMMER, 08 FALL.
// Two-digit years below 50 land in the 2000s, 50 and up in the 1900s.
func Term(raw string) (domain.TermSeason, int, error) {
	trimmed := strings.TrimSpace(raw)

	if m := numericTermRe.FindStringSubmatch(trimmed); m != nil {
		year, _ := strconv.Atoi(m[1])
		var season domain.TermSeason
		switch m[2] {
		case "01", "03":
			season = domain.TermSpring
		case "05":
			season = domain.TermSummer
		case "08":
			season = domain.TermFall
		default:
			return "", 0, fmt.Errorf("unparseable term: unknown season code %q in %q", m[2], raw)
		}
		return season, year, nil
	}

	upper := strings.ToUpper(trimmed)
	var season domain.TermSeason
	switch {
	case strings.Contains(upper, "FALL"):
		season = domain.TermFall
	case strings.Contains(upper, "SPRING"), strings.Contains(upper, "WINTER"):
		season = domain.TermSpring
	case strings.Contains(upper, "SUMMER"):
		season = domain.TermSummer
	default:
		return "", 0, fmt.Errorf("unparseable term: no season in %q", raw)
	}

	m := termYearRe.FindString(trimmed)
	if m == "" {
		return "", 0, fmt.Errorf("unparseable term: no year in %q", raw)
	}
	year, _ := strconv.Atoi(m)
	if len(m) == 2 {
		if year < 50 {
			year += 2000
		} else {
			year += 1900
		}
	}
	return season, year, nil
}

var dayAliases = map[string]domain.DayOfWeek{
	"MONDAY": domain.Monday, "MON": domain.Monday, "M": domain.Monday,
	"TUESDAY": domain.Tuesday, "TUES": domain.Tuesday, "TUE": domain.Tuesday, "T": domain.Tuesday,
	"WEDNESDAY": domain.Wednesday, "WED": domain.Wednesday, "W": domain.Wednesday,
	"THURSDAY": domain.Thursday, "THURS": domain.Thursday, "THUR": domain.Thursday,
	"THU": domain.Thursday, "TH": domain.Thursday,
	"FRIDAY": domain.Friday, "FRI": domain.Friday, "F": domain.Friday,
	"SATURDAY": domain.Saturday, "SAT": domain.Saturday, "SA": domain.Saturday,
	"SUNDAY": domain.Sunday, "SUN": domain.Sunday, "SU": domain.Sunday,
}

// Day matches a full day name or a standard abbreviation, case-insensitive.
// Returns false for anything else; day is required on appointments, so the
// caller rejects.
func Day(raw string) (domain.DayOfWeek, bool) {
	d, ok := dayAliases[strings.ToUpper(strings.TrimSpace(raw))]
	return d, ok
}

// Time extracts the time-of-day portion of a legacy combined date-time
// string ("MM/DD/YY HH:MM:SS") and reformats it as zero-padded "HH:MM".
//
// Unparseable input yields "00:00" instead of a reject: schedule rows with a
// mangled timestamp still carry meaningful attendance data, so losing the
// whole row over a formatting quirk was judged worse than importing it at
// midnight. This is deliberately asymmetric with Day, which does reject.
func Time(raw string) string {
	parts := strings.Fields(raw)
	if len(parts) < 2 {
		return "00:00"
	}
	hm := strings.Split(parts[1], ":")
	if len(hm) < 2 {
		return "00:00"
	}
	h, errH := strconv.Atoi(hm[0])
	m, errM := strconv.Atoi(hm[1])
	if errH != nil || errM != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return "00:00"
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

var locationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Room\s+[\d\-A-Z]+`),
	regexp.MustCompile(`(?i)Rm\s+[\d\-A-Z]+`),
	regexp.MustCompile(`(?i)Bldg\s+[\d\-A-Z]+`),
	regexp.MustCompile(`(?i)Building\s+[\d\-A-Z]+`),
	regexp.MustCompile(`(?i)Lab\s+[\d\-A-Z]+`),
	regexp.MustCompile(`\b\d{1,2}-\d{3,4}\b`), // campus room codes like "18-204"
}

var bareRoomCodeRe = regexp.MustCompile(`^\d{1,2}-\d{3,4}$`)

// Location scans free-text activity names for room or building references.
// No match is not an error; most activity names simply have no location.
func Location(activity string) string {
	for _, p := range locationPatterns {
		if m := p.FindString(activity); m != "" {
			return m
		}
	}
	if bareRoomCodeRe.MatchString(strings.TrimSpace(activity)) {
		return strings.TrimSpace(activity)
	}
	return ""
}

// Username canonicalizes a username for index lookup: whitespace-trimmed,
// lowercased. The stored username keeps the original casing.
func Username(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
