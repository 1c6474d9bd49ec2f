package domain

// Canonical column names of the cumulative activity store.
const (
	ColSerial       = "Serial"
	ColAthleteID    = "Athlete ID"
	ColAthleteName  = "Athlete Name"
	ColActivityID   = "Activity ID"
	ColActivityName = "Activity Name"
	ColDescription  = "Description"
	ColStartDate    = "Start Date"
	ColElapsedTime  = "Elapsed Time"
	ColType         = "Type"
	ColLocation     = "Location"
	ColPacePerMile  = "Pace (min/mi)"
	ColPacePerKm    = "Pace (min/km)"
	ColDurationMin  = "Time (min)"
	ColDistanceKm   = "Distance (km)"
	ColDurationSec  = "Activity Time (s)"
	ColTime         = "Time"
)

// ActivityColumns is the fixed column order of the activity store. Appends rely on it.
var ActivityColumns = []string{
	ColSerial,
	ColAthleteID,
	ColAthleteName,
	ColActivityID,
	ColActivityName,
	ColDescription,
	ColStartDate,
	ColElapsedTime,
	ColType,
	ColLocation,
	ColPacePerMile,
	ColPacePerKm,
	ColDurationMin,
	ColDistanceKm,
	ColDurationSec,
	ColTime,
}

// Well-known activity types used by the metrics.
const (
	TypeRun   = "Run"
	TypeRide  = "Ride"
	TypeSwim  = "Swim"
	TypeOther = "Other"
)

// Activity is one exercise session in the cumulative activity store.
type Activity struct {
	Serial       int64
	AthleteID    int64
	AthleteName  string
	ActivityID   int64
	ActivityName string
	Description  string
	StartDate    string
	ElapsedTime  int64
	Type         string
	Location     string
	PacePerMile  *float64
	PacePerKm    *float64
	DurationMin  float64
	DistanceKm   float64
	DurationSec  float64
	Time         string
}

// ActivityLog is a snapshot of the cumulative store: the header as found on disk plus the parsed rows.
type ActivityLog struct {
	Header     []string
	Activities []Activity
}

// LastSerial returns the highest serial in the log, or zero when it is empty.
func (l ActivityLog) LastSerial() int64 {
	var last int64
	for _, a := range l.Activities {
		if a.Serial > last {
			last = a.Serial
		}
	}
	return last
}

// ActivityIDs returns the set of activity identifiers present in the log.
func (l ActivityLog) ActivityIDs() map[int64]struct{} {
	ids := make(map[int64]struct{}, len(l.Activities))
	for _, a := range l.Activities {
		ids[a.ActivityID] = struct{}{}
	}
	return ids
}

// RawRow is one loosely typed scraped row keyed by column name.
type RawRow map[string]string

// RawBatch is a freshly scraped set of activity rows. Columns lists which columns the scrape produced.
// AthleteIDs lists athletes covered by the scrape even when none of their rows made it into Rows.
type RawBatch struct {
	Columns    []string
	Rows       []RawRow
	AthleteIDs []int64
}

// HasColumn reports whether the batch carries the named column.
func (b RawBatch) HasColumn(name string) bool {
	for _, c := range b.Columns {
		if c == name {
			return true
		}
	}
	return false
}
