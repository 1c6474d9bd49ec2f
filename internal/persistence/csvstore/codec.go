package csvstore

import (
	"strconv"
	"strings"

	"example.com/endurance/internal/domain"
)

// EncodeActivity renders an activity in canonical column order. Missing paces become empty cells.
func EncodeActivity(a domain.Activity) []string {
	return []string{
		strconv.FormatInt(a.Serial, 10),
		strconv.FormatInt(a.AthleteID, 10),
		a.AthleteName,
		strconv.FormatInt(a.ActivityID, 10),
		a.ActivityName,
		a.Description,
		a.StartDate,
		strconv.FormatInt(a.ElapsedTime, 10),
		a.Type,
		a.Location,
		FormatOptionalFloat(a.PacePerMile),
		FormatOptionalFloat(a.PacePerKm),
		FormatFloat(a.DurationMin),
		FormatFloat(a.DistanceKm),
		FormatFloat(a.DurationSec),
		a.Time,
	}
}

// DecodeActivities parses the rows of an activity table by column name, so a store whose header
// drifted still decodes; callers compare the header against domain.ActivityColumns themselves.
func DecodeActivities(table *domain.Table) domain.ActivityLog {
	idx := make(map[string]int, len(table.Header))
	for i, h := range table.Header {
		idx[h] = i
	}
	cell := func(row int, column string) string {
		i, ok := idx[column]
		if !ok {
			return ""
		}
		return table.Value(row, i)
	}

	log := domain.ActivityLog{
		Header:     append([]string(nil), table.Header...),
		Activities: make([]domain.Activity, 0, len(table.Rows)),
	}
	for r := range table.Rows {
		log.Activities = append(log.Activities, domain.Activity{
			Serial:       domain.CoerceInt(cell(r, domain.ColSerial)),
			AthleteID:    domain.CoerceInt(cell(r, domain.ColAthleteID)),
			AthleteName:  cell(r, domain.ColAthleteName),
			ActivityID:   domain.CoerceInt(cell(r, domain.ColActivityID)),
			ActivityName: cell(r, domain.ColActivityName),
			Description:  cell(r, domain.ColDescription),
			StartDate:    cell(r, domain.ColStartDate),
			ElapsedTime:  domain.CoerceInt(cell(r, domain.ColElapsedTime)),
			Type:         cell(r, domain.ColType),
			Location:     cell(r, domain.ColLocation),
			PacePerMile:  domain.ParseOptionalFloat(cell(r, domain.ColPacePerMile)),
			PacePerKm:    domain.ParseOptionalFloat(cell(r, domain.ColPacePerKm)),
			DurationMin:  domain.CoerceFloat(cell(r, domain.ColDurationMin)),
			DistanceKm:   domain.CoerceFloat(cell(r, domain.ColDistanceKm)),
			DurationSec:  domain.CoerceFloat(cell(r, domain.ColDurationSec)),
			Time:         cell(r, domain.ColTime),
		})
	}
	return log
}

// FormatFloat writes the shortest round-trip form, keeping a trailing ".0" on whole numbers so
// float columns stay recognisable to the other tools that read these files.
func FormatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

// FormatOptionalFloat renders nil as an empty cell.
func FormatOptionalFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return FormatFloat(*v)
}
