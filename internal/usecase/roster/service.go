// Package roster loads mandate reference data used by the member resolver.
package roster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"escrutinio/internal/bootstrap/logging"
	"escrutinio/internal/domain/textnorm"
	"escrutinio/internal/errs"
	"escrutinio/internal/ports"
)

var errRosterPathRequired = errors.New("roster file is required")

type File struct {
	Mandates []Entry `yaml:"mandates"`
}

type Entry struct {
	OfficeholderID string `yaml:"officeholder_id"`
	Source         string `yaml:"source"`
	FullName       string `yaml:"full_name"`
	StartDate      string `yaml:"start_date"`
	EndDate        string `yaml:"end_date"`
	Active         bool   `yaml:"active"`
	Legislature    string `yaml:"legislature"`
}

type ImportReport struct {
	Read     int `json:"read"`
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}

type Service struct {
	repo ports.MandateRepository
	uow  ports.UnitOfWork
}

func NewService(repo ports.MandateRepository, uow ports.UnitOfWork) *Service {
	return &Service{repo: repo, uow: uow}
}

// Import upserts every mandate of a YAML roster in one transaction, keyed by
// office-holder, source and start date.
func (s *Service) Import(ctx context.Context, path string) (ImportReport, error) {
	var report ImportReport
	if strings.TrimSpace(path) == "" {
		return report, errRosterPathRequired
	}
	ctx = logging.WithAttrs(ctx, slog.String("component", "roster.import"), slog.String("file", path))

	body, err := os.ReadFile(path)
	if err != nil {
		return report, errs.Wrap(err, "read roster file")
	}
	var file File
	if err := yaml.Unmarshal(body, &file); err != nil {
		return report, errs.Wrap(err, "parse roster file")
	}

	inputs := make([]ports.MandateUpsert, 0, len(file.Mandates))
	for i, entry := range file.Mandates {
		in, err := entry.toUpsert()
		if err != nil {
			return report, fmt.Errorf("mandates[%d]: %w", i, err)
		}
		inputs = append(inputs, in)
	}
	report.Read = len(inputs)

	err = s.uow.WithTx(ctx, func(txCtx context.Context) error {
		for _, in := range inputs {
			inserted, err := s.repo.UpsertMandate(txCtx, in)
			if err != nil {
				return errs.Wrapf(err, "upsert mandate %s", in.OfficeholderID)
			}
			if inserted {
				report.Inserted++
			} else {
				report.Updated++
			}
		}
		return nil
	})
	if err != nil {
		return ImportReport{Read: report.Read}, err
	}

	logging.Info(ctx, "roster imported",
		slog.Int("read", report.Read),
		slog.Int("inserted", report.Inserted),
		slog.Int("updated", report.Updated),
	)
	return report, nil
}

func (e Entry) toUpsert() (ports.MandateUpsert, error) {
	id := strings.TrimSpace(e.OfficeholderID)
	source := strings.TrimSpace(e.Source)
	name := strings.TrimSpace(e.FullName)
	switch {
	case id == "":
		return ports.MandateUpsert{}, errors.New("officeholder_id is required")
	case source == "":
		return ports.MandateUpsert{}, errors.New("source is required")
	case name == "":
		return ports.MandateUpsert{}, errors.New("full_name is required")
	}
	start, err := isoDate("start_date", e.StartDate)
	if err != nil {
		return ports.MandateUpsert{}, err
	}
	if start == "" {
		return ports.MandateUpsert{}, errors.New("start_date is required")
	}
	end, err := isoDate("end_date", e.EndDate)
	if err != nil {
		return ports.MandateUpsert{}, err
	}

	in := ports.MandateUpsert{
		OfficeholderID: id,
		Source:         source,
		Active:         e.Active,
		StartDate:      start,
		FullName:       name,
		NameNormalized: textnorm.Name(name),
		Legislature:    strings.TrimSpace(e.Legislature),
	}
	if end != "" {
		if end < start {
			return ports.MandateUpsert{}, fmt.Errorf("end_date %s is before start_date %s", end, start)
		}
		in.EndDate = &end
	}
	return in, nil
}

func isoDate(field string, raw string) (string, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return "", nil
	}
	if _, err := time.Parse(time.DateOnly, v); err != nil {
		return "", fmt.Errorf("%s %q must be YYYY-MM-DD", field, v)
	}
	return v, nil
}
