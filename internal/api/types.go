package api

import (
	"time"

	"github.com/djlord-it/easy-meetings/internal/domain"
	"github.com/djlord-it/easy-meetings/internal/generator"
	"github.com/djlord-it/easy-meetings/internal/holiday"
)

type CreateOccurrenceRequest struct {
	SeriesID        string `json:"series_id,omitempty"`
	Title           string `json:"title"`
	Date            string `json:"date"`                       // YYYY-MM-DD
	StartTime       string `json:"start_time"`                 // HH:MM
	DurationMinutes int    `json:"duration_minutes,omitempty"` // default 60
}

type RescheduleRequest struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time,omitempty"` // default: keep current time
}

type OccurrenceResponse struct {
	ID              string `json:"id"`
	SeriesID        string `json:"series_id"`
	Title           string `json:"title"`
	Date            string `json:"date"`
	StartTime       string `json:"start_time"`
	StartsAt        string `json:"starts_at"`
	DurationMinutes int    `json:"duration_minutes"`
	RemoteID        string `json:"remote_id,omitempty"`
	JoinURL         string `json:"join_url,omitempty"`
	Status          string `json:"status"`
	Recurring       bool   `json:"recurring"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

type ListOccurrencesResponse struct {
	Occurrences []OccurrenceResponse `json:"occurrences"`
}

type SeriesResultResponse struct {
	SeriesID   string              `json:"series_id"`
	Outcome    string              `json:"outcome"`
	Occurrence *OccurrenceResponse `json:"occurrence,omitempty"`
	Error      string              `json:"error,omitempty"`
}

type GenerateResponse struct {
	Trigger    string                 `json:"trigger"`
	StartedAt  string                 `json:"started_at"`
	FinishedAt string                 `json:"finished_at"`
	Created    int                    `json:"created"`
	Skipped    int                    `json:"skipped"`
	Failed     int                    `json:"failed"`
	Results    []SeriesResultResponse `json:"results"`
}

type HolidayResponse struct {
	Name     string `json:"name"`
	Date     string `json:"date"`
	Observed string `json:"observed"`
}

type ListHolidaysResponse struct {
	Year     int               `json:"year"`
	Holidays []HolidayResponse `json:"holidays"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func toOccurrenceResponse(occ domain.Occurrence, loc *time.Location) OccurrenceResponse {
	return OccurrenceResponse{
		ID:              occ.ID.String(),
		SeriesID:        string(occ.SeriesID),
		Title:           occ.Title,
		Date:            domain.FormatDate(occ.Date),
		StartTime:       occ.StartTime.String(),
		StartsAt:        occ.Start(loc).Format(time.RFC3339),
		DurationMinutes: occ.DurationMinutes,
		RemoteID:        occ.RemoteID,
		JoinURL:         occ.JoinURL,
		Status:          string(occ.Status),
		Recurring:       occ.Recurring,
		CreatedAt:       formatTime(occ.CreatedAt),
		UpdatedAt:       formatTime(occ.UpdatedAt),
	}
}

func toGenerateResponse(report generator.Report, loc *time.Location) GenerateResponse {
	resp := GenerateResponse{
		Trigger:    report.Trigger,
		StartedAt:  formatTime(report.StartedAt),
		FinishedAt: formatTime(report.FinishedAt),
		Created:    report.Created(),
		Skipped:    report.Skipped(),
		Failed:     report.Failed(),
		Results:    make([]SeriesResultResponse, len(report.Results)),
	}
	for i, r := range report.Results {
		res := SeriesResultResponse{SeriesID: string(r.SeriesID), Outcome: string(r.Outcome)}
		if r.Occurrence != nil {
			occ := toOccurrenceResponse(*r.Occurrence, loc)
			res.Occurrence = &occ
		}
		if r.Err != nil {
			res.Error = r.Err.Error()
		}
		resp.Results[i] = res
	}
	return resp
}

func toHolidayResponse(h holiday.Holiday) HolidayResponse {
	return HolidayResponse{
		Name:     h.Name,
		Date:     domain.FormatDate(h.Date),
		Observed: domain.FormatDate(h.Observed),
	}
}
