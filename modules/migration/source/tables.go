package source

import "github.com/smccd/doorcard-data/modules/migration/domain"

// Spec describes one legacy extract: its base file name and its header
// contract. Base names match the tables of the predecessor system; the
// extension (.csv or .xlsx) is resolved at open time.
type Spec struct {
	Base     string
	Required []string
	Allowed  []string
}

var (
	Users = Spec{
		Base:     "TBL_USER",
		Required: []string{"username"},
		Allowed:  []string{"username", "userrole"},
	}
	Doorcards = Spec{
		Base:     "TBL_DOORCARD",
		Required: []string{"doorcardID", "username", "doorcardname", "doorterm", "college"},
		Allowed: []string{
			"doorcardID", "username", "doorcardname", "doorstartdate",
			"doorenddate", "doorterm", "college",
		},
	}
	Appointments = Spec{
		Base:     "TBL_APPOINTMENT",
		Required: []string{"appointID", "username", "doorcardID", "appointname", "appointday"},
		Allowed: []string{
			"appointID", "catID", "username", "doorcardID", "appointname",
			"appointstarttime", "appointendtime", "appointday",
		},
	}
	Categories = Spec{
		Base:     "TBL_CATEGORY",
		Required: []string{"catID", "catname"},
		Allowed:  []string{"catID", "catname", "catcolor"},
	}
)

// Open opens the extract described by this table layout at the given path.
func (s Spec) Open(path string) (Rows, error) {
	return Open(path, s.Required, s.Allowed)
}

func DecodeUser(rec Record) domain.RawUser {
	return domain.RawUser{
		Line:     rec.Line,
		Username: rec.Get("username"),
		RoleText: rec.Get("userrole"),
	}
}

func DecodeDoorcard(rec Record) domain.RawDoorcard {
	return domain.RawDoorcard{
		Line:          rec.Line,
		LegacyID:      rec.Get("doorcardID"),
		Username:      rec.Get("username"),
		Title:         rec.Get("doorcardname"),
		StartDateText: rec.Get("doorstartdate"),
		EndDateText:   rec.Get("doorenddate"),
		TermText:      rec.Get("doorterm"),
		CollegeText:   rec.Get("college"),
	}
}

func DecodeAppointment(rec Record) domain.RawAppointment {
	return domain.RawAppointment{
		Line:             rec.Line,
		LegacyID:         rec.Get("appointID"),
		LegacyCategoryID: rec.Get("catID"),
		Username:         rec.Get("username"),
		LegacyDoorcardID: rec.Get("doorcardID"),
		ActivityText:     rec.Get("appointname"),
		StartTimeText:    rec.Get("appointstarttime"),
		EndTimeText:      rec.Get("appointendtime"),
		DayText:          rec.Get("appointday"),
	}
}

func DecodeCategory(rec Record) domain.RawCategory {
	return domain.RawCategory{
		Line:             rec.Line,
		LegacyCategoryID: rec.Get("catID"),
		Name:             rec.Get("catname"),
		Color:            rec.Get("catcolor"),
	}
}
