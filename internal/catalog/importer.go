// Package catalog loads facility and session definitions from a JSON file.
// Facility administration lives outside the engine; this is how the
// catalog read model gets populated.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/iliyamo/facility-reservation/internal/database"
	"github.com/iliyamo/facility-reservation/internal/model"
	"github.com/iliyamo/facility-reservation/internal/repository"
)

// File is the import document.
type File struct {
	Facilities []Facility `json:"facilities"`
}

// Facility describes one facility and its sessions.
type Facility struct {
	Name         string    `json:"name"`
	Description  *string   `json:"description,omitempty"`
	Capacity     uint32    `json:"capacity"`
	OpenHour     uint8     `json:"open_hour"`
	CloseHour    uint8     `json:"close_hour"`
	UsesSessions bool      `json:"uses_sessions"`
	Status       string    `json:"status,omitempty"` // active when empty
	Sessions     []Session `json:"sessions,omitempty"`
}

// Session describes a recurring session.  An empty DaysOfWeek means every
// day.
type Session struct {
	Name       string  `json:"name"`
	StartTime  string  `json:"start_time"`
	EndTime    string  `json:"end_time"`
	DaysOfWeek []int   `json:"days_of_week,omitempty"`
	Capacity   *uint32 `json:"capacity,omitempty"`
	Active     *bool   `json:"active,omitempty"`
}

// Result counts what an import changed.
type Result struct {
	FacilitiesCreated int `json:"facilities_created"`
	FacilitiesUpdated int `json:"facilities_updated"`
	SessionsCreated   int `json:"sessions_created"`
	SessionsUpdated   int `json:"sessions_updated"`
}

// Decode reads a File, rejecting unknown fields.
func Decode(r io.Reader) (*File, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return &f, nil
}

// Importer upserts facilities and sessions by name.
type Importer struct {
	store      *database.Store
	facilities *repository.FacilityRepo
	sessions   *repository.SessionRepo
	Now        func() time.Time
}

// NewImporter returns an importer over store.
func NewImporter(store *database.Store) *Importer {
	db := store.DB()
	return &Importer{
		store:      store,
		facilities: repository.NewFacilityRepo(db),
		sessions:   repository.NewSessionRepo(db),
		Now:        time.Now,
	}
}

// Import validates the whole file and applies it in one transaction.
// Facilities and sessions missing from the file are left as they are.
func (i *Importer) Import(ctx context.Context, file *File) (Result, error) {
	facilities := make([]model.Facility, len(file.Facilities))
	sessions := make([][]model.Session, len(file.Facilities))
	seen := map[string]bool{}
	for n, in := range file.Facilities {
		if seen[in.Name] {
			return Result{}, fmt.Errorf("facility %q listed twice", in.Name)
		}
		seen[in.Name] = true
		f, ss, err := in.build()
		if err != nil {
			return Result{}, fmt.Errorf("facility %q: %w", in.Name, err)
		}
		facilities[n], sessions[n] = f, ss
	}

	var res Result
	err := i.store.WithTx(ctx, func(tx *sql.Tx) error {
		res = Result{}
		now := i.Now().UTC().Truncate(time.Microsecond)
		for n := range facilities {
			f := facilities[n]
			existing, err := i.facilities.GetByNameTx(ctx, tx, f.Name)
			switch {
			case errors.Is(err, repository.ErrNotFound):
				if err := i.facilities.CreateTx(ctx, tx, &f, now); err != nil {
					return fmt.Errorf("create facility %q: %w", f.Name, err)
				}
				res.FacilitiesCreated++
			case err != nil:
				return fmt.Errorf("load facility %q: %w", f.Name, err)
			default:
				f.ID = existing.ID
				if err := i.facilities.UpdateTx(ctx, tx, &f, now); err != nil {
					return fmt.Errorf("update facility %q: %w", f.Name, err)
				}
				res.FacilitiesUpdated++
			}

			for _, s := range sessions[n] {
				s.FacilityID = f.ID
				existing, err := i.sessions.GetByNameTx(ctx, tx, f.ID, s.Name)
				switch {
				case errors.Is(err, repository.ErrNotFound):
					if err := i.sessions.CreateTx(ctx, tx, &s); err != nil {
						return fmt.Errorf("create session %q: %w", s.Name, err)
					}
					res.SessionsCreated++
				case err != nil:
					return fmt.Errorf("load session %q: %w", s.Name, err)
				default:
					s.ID = existing.ID
					if err := i.sessions.UpdateTx(ctx, tx, &s); err != nil {
						return fmt.Errorf("update session %q: %w", s.Name, err)
					}
					res.SessionsUpdated++
				}
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

func (in Facility) build() (model.Facility, []model.Session, error) {
	f := model.Facility{
		Name:         in.Name,
		Description:  in.Description,
		Capacity:     in.Capacity,
		OpenHour:     in.OpenHour,
		CloseHour:    in.CloseHour,
		UsesSessions: in.UsesSessions,
		Status:       in.Status,
	}
	if f.Status == "" {
		f.Status = model.FacilityActive
	}
	switch {
	case f.Name == "":
		return f, nil, errors.New("name is required")
	case f.Capacity == 0:
		return f, nil, errors.New("capacity must be positive")
	case !model.ValidFacilityStatus(f.Status):
		return f, nil, fmt.Errorf("unknown status %q", f.Status)
	case f.OpenHour > 23 || f.CloseHour > 23:
		return f, nil, errors.New("hours must be between 0 and 23")
	case !f.UsesSessions && f.OpenHour >= f.CloseHour:
		return f, nil, errors.New("open_hour must be before close_hour")
	case !f.UsesSessions && len(in.Sessions) > 0:
		return f, nil, errors.New("sessions require uses_sessions")
	}

	out := make([]model.Session, 0, len(in.Sessions))
	names := map[string]bool{}
	for _, ss := range in.Sessions {
		if ss.Name == "" {
			return f, nil, errors.New("session name is required")
		}
		if names[ss.Name] {
			return f, nil, fmt.Errorf("session %q listed twice", ss.Name)
		}
		names[ss.Name] = true
		s, err := ss.build()
		if err != nil {
			return f, nil, fmt.Errorf("session %q: %w", ss.Name, err)
		}
		out = append(out, s)
	}
	return f, out, nil
}

func (in Session) build() (model.Session, error) {
	start, err := model.ParseTimeOfDay(in.StartTime)
	if err != nil {
		return model.Session{}, err
	}
	end, err := model.ParseTimeOfDay(in.EndTime)
	if err != nil {
		return model.Session{}, err
	}
	if start >= end {
		return model.Session{}, errors.New("start_time must be before end_time")
	}
	days := model.AllWeekdays
	if len(in.DaysOfWeek) > 0 {
		if days, err = model.NewWeekdays(in.DaysOfWeek...); err != nil {
			return model.Session{}, err
		}
	}
	if in.Capacity != nil && *in.Capacity == 0 {
		return model.Session{}, errors.New("capacity must be positive")
	}
	active := in.Active == nil || *in.Active
	return model.Session{
		Name:       in.Name,
		StartTime:  start,
		EndTime:    end,
		DaysOfWeek: days,
		IsActive:   active,
		Capacity:   in.Capacity,
	}, nil
}
