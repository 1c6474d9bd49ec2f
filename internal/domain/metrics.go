package domain

// Metric columns written into the athlete metadata table.
const (
	ColTotalRunDistanceKm    = "Total_Run_Distance_km"
	ColAvgWeeklyRunMileageKm = "Avg_Weekly_Run_Mileage_km"
	ColTotalRunHours         = "Total_Run_Hours"
	ColAvgWeeklyRunHours     = "Avg_Weekly_Run_Hours"
	ColTotalRideHours        = "Total_Ride_Hours"
	ColTotalSwimHours        = "Total_Swim_Hours"
	ColTotalOtherHours       = "Total_Other_Hours"
	ColAvgRunPaceMinPerKm    = "Avg_Run_Pace_min_per_km"

	// DefaultWeeksScrapedColumn is the counter column both metadata tables carry.
	DefaultWeeksScrapedColumn = "2024 Weeks Scraped"
)

// AthleteMetrics are the aggregate training figures of one athlete.
type AthleteMetrics struct {
	AthleteID             int64
	AthleteName           string
	TotalRunDistanceKm    float64
	AvgWeeklyRunMileageKm float64
	TotalRunHours         float64
	AvgWeeklyRunHours     float64
	AvgRunPaceMinPerKm    *float64
	TotalRideHours        float64
	TotalSwimHours        float64
	TotalOtherHours       float64
}

// CounterDivergence describes an athlete whose weeks-scraped counters disagree between tables.
type CounterDivergence struct {
	AthleteID int64
	Metadata  string
	Master    []string
}
