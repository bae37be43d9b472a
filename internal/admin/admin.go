// Package admin is the organiser view over stored registrations.
package admin

import (
	"context"
	"crypto/subtle"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"cache2k25/internal/catalog"
	"cache2k25/internal/dto"
	"cache2k25/internal/model"
)

var ErrInvalidCredentials = errors.New("invalid admin credentials")

// AllEvents disables the event filter.
const AllEvents = "all"

type Credentials struct {
	Email    string
	Password string
}

// Source is where the view reads registrations from.
type Source interface {
	Registrations(ctx context.Context) ([]model.Registration, error)
	ExportRows(ctx context.Context) ([]dto.ExportRow, error)
}

type View struct {
	creds   Credentials
	source  Source
	catalog *catalog.Catalog
}

func NewView(creds Credentials, source Source, cat *catalog.Catalog) *View {
	return &View{creds: creds, source: source, catalog: cat}
}

// Login compares both fields in constant time. Empty configured credentials
// never match.
func (v *View) Login(email, password string) error {
	if v.creds.Email == "" || v.creds.Password == "" {
		return ErrInvalidCredentials
	}
	emailOK := subtle.ConstantTimeCompare([]byte(strings.TrimSpace(email)), []byte(v.creds.Email))
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(v.creds.Password))
	if emailOK&passOK != 1 {
		return ErrInvalidCredentials
	}
	return nil
}

type Stats struct {
	Total        int     `json:"total"`
	Technical    int     `json:"technical"`
	NonTechnical int     `json:"nonTechnical"`
	Revenue      float64 `json:"revenue"`
}

type Dashboard struct {
	Registrations []model.Registration
	Stats         Stats
}

// Open checks the credentials and loads every registration.
func (v *View) Open(ctx context.Context, email, password string) (*Dashboard, error) {
	if err := v.Login(email, password); err != nil {
		return nil, err
	}
	regs, err := v.source.Registrations(ctx)
	if err != nil {
		return nil, err
	}
	return &Dashboard{Registrations: regs, Stats: ComputeStats(regs, v.catalog)}, nil
}

func ComputeStats(regs []model.Registration, cat *catalog.Catalog) Stats {
	s := Stats{Total: len(regs)}
	for _, r := range regs {
		if cat.IsTechnical(r.EventID) {
			s.Technical++
		} else {
			s.NonTechnical++
		}
		s.Revenue += r.TotalAmount
	}
	return s
}

type Filter struct {
	Query   string
	EventID string
}

// Apply keeps records whose name, email or registration id contains Query
// (case-insensitive) and whose event equals EventID. Order is preserved.
func Apply(regs []model.Registration, f Filter) []model.Registration {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]model.Registration, 0, len(regs))
	for _, r := range regs {
		if f.EventID != "" && f.EventID != AllEvents && r.EventID != f.EventID {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(r.ParticipantName), q) &&
			!strings.Contains(strings.ToLower(r.Email), q) &&
			!strings.Contains(strings.ToLower(r.RegistrationID), q) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (d *Dashboard) Search(f Filter) []model.Registration {
	return Apply(d.Registrations, f)
}

// Export pulls the server-side dump and writes it as CSV.
func (v *View) Export(ctx context.Context, w io.Writer) (int, error) {
	rows, err := v.source.ExportRows(ctx)
	if err != nil {
		return 0, err
	}
	return len(rows), WriteCSV(w, rows)
}

func WriteCSV(w io.Writer, rows []dto.ExportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(dto.ExportHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.Record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
