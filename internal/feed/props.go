package feed

import (
	"bytes"
	"encoding/json"
)

// text accepts a JSON string, number or boolean and keeps its textual form. null becomes "".
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*t = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = text(s)
	case len(b) > 0 && (b[0] == '{' || b[0] == '['):
		*t = ""
	default:
		*t = text(b)
	}
	return nil
}

type props struct {
	PreFetchedEntries *[]entry `json:"preFetchedEntries"`
	AppContext        *struct {
		PreFetchedEntries *[]entry `json:"preFetchedEntries"`
	} `json:"appContext"`
}

type entry struct {
	Activity        *individualActivity `json:"activity"`
	RowData         *groupRow           `json:"rowData"`
	TimeAndLocation *timeAndLocation    `json:"timeAndLocation"`
}

type timeAndLocation struct {
	Location text `json:"location"`
}

type stat struct {
	Key   string `json:"key"`
	Value text   `json:"value"`
}

type individualActivity struct {
	ID           text `json:"id"`
	ActivityName text `json:"activityName"`
	Description  text `json:"description"`
	StartDate    text `json:"startDate"`
	ElapsedTime  text `json:"elapsedTime"`
	Type         text `json:"type"`
	Athlete      struct {
		AthleteID   text   `json:"athleteId"`
		AthleteName string `json:"athleteName"`
	} `json:"athlete"`
	TimeAndLocation timeAndLocation `json:"timeAndLocation"`
	Stats           []stat          `json:"stats"`
}

type groupRow struct {
	Entity     string        `json:"entity"`
	Activities []groupMember `json:"activities"`
}

type groupMember struct {
	ActivityID  text   `json:"activity_id"`
	AthleteName text   `json:"athlete_name"`
	AthleteID   text   `json:"athlete_id"`
	Name        text   `json:"name"`
	Description text   `json:"description"`
	StartDate   text   `json:"start_date"`
	ElapsedTime text   `json:"elapsed_time"`
	Type        text   `json:"type"`
	Stats       []stat `json:"stats"`
}
