// Package feed turns saved athlete profile-feed snapshots into raw activity rows for the cleaner.
//
// A snapshot table has one row per athlete and scraped week with the columns Athlete ID, Name,
// Week Number, Date Range and JSON Data, the last holding the profile page props.
package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"example.com/endurance/internal/domain"
)

// Snapshot table columns.
const (
	ColSnapshotAthleteID = "Athlete ID"
	ColSnapshotName      = "Name"
	ColWeekNumber        = "Week Number"
	ColDateRange         = "Date Range"
	ColJSONData          = "JSON Data"
)

// Columns lists the raw batch columns produced by the decoder.
var Columns = []string{
	domain.ColAthleteID,
	domain.ColAthleteName,
	domain.ColActivityID,
	domain.ColActivityName,
	domain.ColDescription,
	domain.ColStartDate,
	domain.ColElapsedTime,
	domain.ColType,
	domain.ColLocation,
	domain.ColDistanceKm,
	domain.ColPacePerKm,
	domain.ColTime,
}

// ErrNoEntries is returned when the props carry no preFetchedEntries list.
var ErrNoEntries = errors.New("preFetchedEntries not found")

var (
	controlChars   = regexp.MustCompile(`[\n\r\t]`)
	trailingCommas = regexp.MustCompile(`,(\s*[}\]])`)
	firstNumber    = regexp.MustCompile(`[\d.]+`)
	paceText       = regexp.MustCompile(`^(\d+):(\d+)\s*/\s*(mi|km)`)
)

// Option configures optional behaviour for the Decoder.
type Option func(*Decoder)

// WithLogger overrides the logger used to report skipped snapshots.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Decoder) {
		d.logger = logger
	}
}

// Decoder extracts activities from snapshot tables.
type Decoder struct {
	logger *slog.Logger
}

// New constructs a Decoder.
func New(opts ...Option) *Decoder {
	d := &Decoder{logger: slog.Default().With("component", "feed")}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Stats counts what happened to the snapshot rows of one table.
type Stats struct {
	Snapshots int
	Skipped   int
	Rows      int
}

// DecodeTable decodes every snapshot row. Rows whose JSON cannot be parsed are logged and
// skipped. An activity already emitted for the same athlete is not emitted again. Every
// decoded snapshot's athlete ID is listed in the batch, including athletes without activities.
func (d *Decoder) DecodeTable(table *domain.Table) (domain.RawBatch, Stats, error) {
	nameCol := table.Index(ColSnapshotName)
	dataCol := table.Index(ColJSONData)
	if nameCol < 0 || dataCol < 0 {
		return domain.RawBatch{}, Stats{}, fmt.Errorf("%w: snapshot table needs %q and %q", domain.ErrColumnMissing, ColSnapshotName, ColJSONData)
	}
	idCol := table.Index(ColSnapshotAthleteID)
	weekCol := table.Index(ColWeekNumber)

	batch := domain.RawBatch{Columns: append([]string(nil), Columns...)}
	seen := make(map[string]map[string]struct{})
	var stats Stats
	for i := range table.Rows {
		stats.Snapshots++
		name := table.Value(i, nameCol)
		key := normalizeName(name)
		if seen[key] == nil {
			seen[key] = make(map[string]struct{})
		}

		rows, err := DecodeProps([]byte(table.Value(i, dataCol)), name)
		if err != nil {
			stats.Skipped++
			d.logger.Warn("skipping snapshot", "athlete", name, "week", table.Value(i, weekCol), "error", err)
			continue
		}
		if idCol >= 0 {
			if id, ok := domain.ParseIntCell(table.Value(i, idCol)); ok && !slices.Contains(batch.AthleteIDs, id) {
				batch.AthleteIDs = append(batch.AthleteIDs, id)
			}
		}
		for _, row := range rows {
			if _, dup := seen[key][row[domain.ColActivityID]]; dup {
				continue
			}
			seen[key][row[domain.ColActivityID]] = struct{}{}
			if row[domain.ColAthleteID] == "" && idCol >= 0 {
				row[domain.ColAthleteID] = table.Value(i, idCol)
			}
			batch.Rows = append(batch.Rows, row)
		}
	}
	stats.Rows = len(batch.Rows)
	d.logger.Info("decoded feed snapshots", "snapshots", stats.Snapshots, "skipped", stats.Skipped, "activities", stats.Rows)
	return batch, stats, nil
}

// DecodeProps extracts the activities of athleteName from one profile props document.
func DecodeProps(data []byte, athleteName string) ([]domain.RawRow, error) {
	var doc props
	if err := json.Unmarshal(Sanitize(data), &doc); err != nil {
		return nil, fmt.Errorf("decode props: %w", err)
	}
	entries := doc.PreFetchedEntries
	if entries == nil && doc.AppContext != nil {
		entries = doc.AppContext.PreFetchedEntries
	}
	if entries == nil {
		return nil, ErrNoEntries
	}

	target := normalizeName(athleteName)
	seen := make(map[string]struct{})
	var rows []domain.RawRow
	for _, e := range *entries {
		switch {
		case e.Activity != nil:
			a := e.Activity
			if normalizeName(a.Athlete.AthleteName) != target {
				continue
			}
			if _, dup := seen[string(a.ID)]; dup {
				continue
			}
			seen[string(a.ID)] = struct{}{}
			rows = append(rows, buildRow(rawActivity{
				athleteID:   string(a.Athlete.AthleteID),
				athleteName: a.Athlete.AthleteName,
				id:          string(a.ID),
				name:        string(a.ActivityName),
				description: string(a.Description),
				startDate:   string(a.StartDate),
				elapsed:     string(a.ElapsedTime),
				kind:        string(a.Type),
				location:    string(a.TimeAndLocation.Location),
				stats:       a.Stats,
			}))
		case e.RowData != nil && e.RowData.Entity == "GroupActivity":
			var location string
			if e.TimeAndLocation != nil {
				location = string(e.TimeAndLocation.Location)
			}
			for _, m := range e.RowData.Activities {
				if _, dup := seen[string(m.ActivityID)]; dup {
					continue
				}
				seen[string(m.ActivityID)] = struct{}{}
				if normalizeName(string(m.AthleteName)) != target {
					continue
				}
				rows = append(rows, buildRow(rawActivity{
					athleteID:   string(m.AthleteID),
					athleteName: string(m.AthleteName),
					id:          string(m.ActivityID),
					name:        string(m.Name),
					description: string(m.Description),
					startDate:   string(m.StartDate),
					elapsed:     string(m.ElapsedTime),
					kind:        string(m.Type),
					location:    location,
					stats:       m.Stats,
				}))
			}
		}
	}
	return rows, nil
}

// Sanitize removes line breaks, tabs and trailing commas before a closing brace or bracket.
func Sanitize(data []byte) []byte {
	data = controlChars.ReplaceAll(data, nil)
	data = trailingCommas.ReplaceAll(data, []byte("$1"))
	return bytes.TrimSpace(data)
}

type rawActivity struct {
	athleteID   string
	athleteName string
	id          string
	name        string
	description string
	startDate   string
	elapsed     string
	kind        string
	location    string
	stats       []stat
}

func buildRow(a rawActivity) domain.RawRow {
	stats := make(map[string]string, len(a.stats))
	for _, s := range a.stats {
		stats[s.Key] = string(s.Value)
	}
	return domain.RawRow{
		domain.ColAthleteID:    a.athleteID,
		domain.ColAthleteName:  a.athleteName,
		domain.ColActivityID:   a.id,
		domain.ColActivityName: a.name,
		domain.ColDescription:  HTMLText(a.description),
		domain.ColStartDate:    a.startDate,
		domain.ColElapsedTime:  a.elapsed,
		domain.ColType:         a.kind,
		domain.ColLocation:     a.location,
		domain.ColDistanceKm:   Distance(stats["stat_one"]),
		domain.ColPacePerKm:    Pace(stats["stat_two"]),
		domain.ColTime:         HTMLText(stats["stat_three"]),
	}
}

// HTMLText reduces an HTML fragment to its text nodes, trimmed and joined by single spaces.
func HTMLText(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return strings.TrimSpace(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	var parts []string
	collectText(doc.Selection, &parts)
	return strings.Join(parts, " ")
}

func collectText(s *goquery.Selection, parts *[]string) {
	s.Contents().Each(func(_ int, child *goquery.Selection) {
		if goquery.NodeName(child) == "#text" {
			if text := strings.TrimSpace(child.Text()); text != "" {
				*parts = append(*parts, text)
			}
			return
		}
		collectText(child, parts)
	})
}

// Distance returns the first number in a distance stat such as "<b>12.4</b> km", or "" when
// there is none.
func Distance(stat string) string {
	match := firstNumber.FindString(HTMLText(stat))
	if match == "" {
		return ""
	}
	f, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Pace converts a pace stat such as "4:05 /km" into fractional minutes rounded to two decimals.
// Per-mile paces return "" since the value is stored per kilometre.
func Pace(stat string) string {
	m := paceText.FindStringSubmatch(HTMLText(stat))
	if m == nil || m[3] != "km" {
		return ""
	}
	minutes, _ := strconv.Atoi(m[1])
	seconds, _ := strconv.Atoi(m[2])
	v := math.Round((float64(minutes)+float64(seconds)/60)*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
