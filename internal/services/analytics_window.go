package services

import (
	"time"

	apperrors "spendlens/internal/errors"
)

// MonthWindow returns the calendar month containing t, shifted by offset
// months, in loc.
func MonthWindow(t time.Time, loc *time.Location, offset int) Window {
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month()+time.Month(offset), 1, 0, 0, 0, 0, loc)
	return Window{Start: start, End: start.AddDate(0, 1, 0)}
}

// ParseWindow reads optional start/end query values. Date-only values are
// days in loc and the end day is inclusive; RFC3339 values are used as given.
// ok is false when neither bound was supplied.
func ParseWindow(startRaw, endRaw string, loc *time.Location, fallback Window) (w Window, ok bool, err error) {
	if startRaw == "" && endRaw == "" {
		return fallback, false, nil
	}

	w = fallback
	if startRaw != "" {
		if w.Start, err = parseBound(startRaw, loc, false); err != nil {
			return Window{}, false, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid start_date")
		}
	}
	if endRaw != "" {
		if w.End, err = parseBound(endRaw, loc, true); err != nil {
			return Window{}, false, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid end_date")
		}
	}
	if !w.End.After(w.Start) {
		return Window{}, false, apperrors.WithMessage(apperrors.ErrInvalidInput, "end_date must be after start_date")
	}
	return w, true, nil
}

func parseBound(raw string, loc *time.Location, end bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	day, err := time.ParseInLocation(time.DateOnly, raw, loc)
	if err != nil {
		return time.Time{}, err
	}
	if end {
		return day.AddDate(0, 0, 1), nil
	}
	return day, nil
}
