package match

import (
	"github.com/go-playground/validator/v10"

	"court-watch-backend/internal/errs"
	"court-watch-backend/internal/model"
	"court-watch-backend/internal/parse"
)

const (
	CourtTypeAll     = "all"
	CourtTypeIndoor  = "indoor"
	CourtTypeOutdoor = "outdoor"

	CourtConfigAll    = "all"
	CourtConfigSingle = "single"
	CourtConfigDouble = "double"

	DefaultDuration = 90
)

var validate = validator.New()

// Criteria selects slots. StartTime and EndTime bound the slot start only.
type Criteria struct {
	Date            string  `json:"date" validate:"required"`
	StartTime       string  `json:"start_time" validate:"required"`
	EndTime         string  `json:"end_time" validate:"required"`
	DurationMinutes int     `json:"duration_minutes" validate:"gt=0,lte=480"`
	CourtType       string  `json:"court_type" validate:"oneof=all indoor outdoor"`
	CourtConfig     string  `json:"court_config" validate:"oneof=all single double"`
	LocationIDs     []int64 `json:"location_ids"`
}

// Normalize fills defaults, canonicalizes times to HH:MM and validates. All
// failures are ErrInvalid.
func (c *Criteria) Normalize() error {
	if c.DurationMinutes == 0 {
		c.DurationMinutes = DefaultDuration
	}
	if c.CourtType == "" {
		c.CourtType = CourtTypeAll
	}
	if c.CourtConfig == "" {
		c.CourtConfig = CourtConfigAll
	}
	if err := validate.Struct(c); err != nil {
		return errs.Mark(errs.Wrap(err, "invalid search criteria"), errs.ErrInvalid)
	}

	d, err := parse.Date(c.Date)
	if err != nil {
		return errs.Mark(err, errs.ErrInvalid)
	}
	c.Date = d.Format(parse.DateLayout)
	if c.StartTime, err = parse.Clock(c.StartTime); err != nil {
		return errs.Mark(err, errs.ErrInvalid)
	}
	if c.EndTime, err = parse.Clock(c.EndTime); err != nil {
		return errs.Mark(err, errs.ErrInvalid)
	}
	if c.StartTime > c.EndTime {
		return errs.Invalidf("start time %s is after end time %s", c.StartTime, c.EndTime)
	}
	return nil
}

// FromParams builds criteria from on-demand search parameters.
func FromParams(p model.SearchParams) Criteria {
	return Criteria{
		Date:            p.Date,
		StartTime:       p.StartTime,
		EndTime:         p.EndTime,
		DurationMinutes: p.DurationMinutes,
		CourtType:       p.CourtType,
		CourtConfig:     p.CourtConfig,
		LocationIDs:     p.LocationIDs,
	}
}

// FromSavedSearch builds criteria from a standing watch.
func FromSavedSearch(s *model.SavedSearch) Criteria {
	return Criteria{
		Date:            s.Date,
		StartTime:       s.StartTime,
		EndTime:         s.EndTime,
		DurationMinutes: s.DurationMinutes,
		CourtType:       s.CourtType,
		CourtConfig:     s.CourtConfig,
		LocationIDs:     s.LocationIDs,
	}
}
