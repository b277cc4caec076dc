// Package export periodically writes a per-student summary of the stored
// roster to a CSV file.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/milestones/internal/app"
	"github.com/shrimpsizemoose/milestones/internal/metrics"
	"github.com/shrimpsizemoose/milestones/internal/models"
	"github.com/shrimpsizemoose/milestones/internal/scoring"
)

const FileName = "roster_summary.csv"

// Loader is the read side of the roster document.
type Loader interface {
	Load(ctx context.Context) ([]models.Student, error)
}

type CSVExporter struct {
	config    *app.Config
	source    Loader
	scheduler *gocron.Scheduler
	now       func() time.Time
}

func NewCSVExporter(config *app.Config, source Loader) *CSVExporter {
	return &CSVExporter{
		config:    config,
		source:    source,
		scheduler: gocron.NewScheduler(time.UTC),
		now:       time.Now,
	}
}

// Start schedules Export on the configured cron expression.
func (e *CSVExporter) Start() error {
	_, err := e.scheduler.Cron(e.config.Export.Schedule).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := e.Export(ctx); err != nil {
			logger.Error.Printf("Export failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule export: %w", err)
	}

	e.scheduler.StartAsync()
	logger.Info.Printf("Scheduled roster export %q into %s", e.config.Export.Schedule, e.config.Export.Path)
	return nil
}

func (e *CSVExporter) Stop() {
	e.scheduler.Stop()
}

// Export loads the roster and replaces the CSV file, returning its path.
func (e *CSVExporter) Export(ctx context.Context) (string, error) {
	students, err := e.source.Load(ctx)
	if err != nil {
		metrics.ExportsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("failed to load roster: %w", err)
	}

	path, err := e.write(students)
	if err != nil {
		metrics.ExportsTotal.WithLabelValues("error").Inc()
		return "", err
	}

	metrics.ExportsTotal.WithLabelValues("ok").Inc()
	logger.Info.Printf("Exported %d students to %s", len(students), path)
	return path, nil
}

func (e *CSVExporter) write(students []models.Student) (string, error) {
	dir := e.config.Export.Path
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, FileName+".*")
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.WriteAll(e.rows(students)); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write csv: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close export file: %w", err)
	}

	path := filepath.Join(dir, FileName)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to move export file: %w", err)
	}
	return path, nil
}

// Header is the first CSV row: student columns, one count per rating level,
// one score per skill, then the export timestamp.
func Header() []string {
	header := []string{"id", "name", "birthday", "age"}
	for _, level := range models.RatingLevels {
		header = append(header, string(level))
	}
	for _, skill := range models.Skills {
		header = append(header, string(skill))
	}
	return append(header, "exported_at")
}

func (e *CSVExporter) rows(students []models.Student) [][]string {
	now := e.now()
	exportedAt := now.Format(e.config.Display.TimestampFormat)

	rows := make([][]string, 0, len(students)+1)
	rows = append(rows, Header())
	for _, s := range students {
		summary := scoring.Summarize(s.AssessmentData, nil)
		age := ""
		if !s.Birthday.IsZero() {
			years, months := s.Age(now)
			age = fmt.Sprintf("%dy%dm", years, months)
		}

		row := []string{
			strconv.FormatInt(s.ID, 10),
			s.Name,
			s.Birthday.String(),
			age,
		}
		for _, c := range summary.Distribution {
			row = append(row, strconv.Itoa(c.Count))
		}
		for _, p := range summary.Profile {
			row = append(row, strconv.FormatFloat(p.Score, 'f', 2, 64))
		}
		rows = append(rows, append(row, exportedAt))
	}
	return rows
}
