package domain

// Role is a user's role in the new system. Legacy role text that matches
// neither ADMIN nor STAFF falls back to FACULTY.
type Role string

const (
	RoleFaculty Role = "FACULTY"
	RoleStaff   Role = "STAFF"
	RoleAdmin   Role = "ADMIN"
)

// College identifies one of the district campuses.
type College string

const (
	CollegeSkyline        College = "SKYLINE"
	CollegeCSM            College = "CSM"
	CollegeCanada         College = "CANADA"
	CollegeDistrictOffice College = "DISTRICT_OFFICE"
)

// TermSeason is the academic term. The legacy system also carried WINTER,
// which folds into SPRING.
type TermSeason string

const (
	TermFall   TermSeason = "FALL"
	TermSpring TermSeason = "SPRING"
	TermSummer TermSeason = "SUMMER"
)

type DayOfWeek string

const (
	Monday    DayOfWeek = "MONDAY"
	Tuesday   DayOfWeek = "TUESDAY"
	Wednesday DayOfWeek = "WEDNESDAY"
	Thursday  DayOfWeek = "THURSDAY"
	Friday    DayOfWeek = "FRIDAY"
	Saturday  DayOfWeek = "SATURDAY"
	Sunday    DayOfWeek = "SUNDAY"
)

// DaysOfWeek lists all seven days in week order.
var DaysOfWeek = []DayOfWeek{
	Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday,
}

// Category classifies an appointment block. CategoryOther is the catch-all
// for legacy category ids that have no mapping.
type Category string

const (
	CategoryOfficeHours        Category = "OFFICE_HOURS"
	CategoryInClass            Category = "IN_CLASS"
	CategoryLecture            Category = "LECTURE"
	CategoryLab                Category = "LAB"
	CategoryHoursByArrangement Category = "HOURS_BY_ARRANGEMENT"
	CategoryReference          Category = "REFERENCE"
	CategoryOther              Category = "OTHER"
)
