package service

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/boddenberg/family-rewards-bfa-go/internal/domain"
	"github.com/boddenberg/family-rewards-bfa-go/internal/infra/observability"
	"github.com/boddenberg/family-rewards-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/family-rewards-bfa-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var exportTracer = otel.Tracer("service/export")

// ExportTables lists what a user export contains and how each table is
// scoped to the user.
var ExportTables = []domain.ExportTable{
	{Name: "profiles", UserColumn: "id"},
	{Name: "students", UserColumn: "parent_id"},
	{Name: "grade_entries", UserColumn: "submitted_by"},
	{Name: "behavior_assessments", UserColumn: "assessed_by"},
	{Name: "quiz_answers", UserColumn: "user_id"},
	{Name: "family_meetings", UserColumn: "parent_id"},
	{Name: "subscriptions", UserColumn: "user_id"},
}

// ExportService gathers every row a user owns.
type ExportService struct {
	store    port.ExportStore
	bulkhead *resilience.Bulkhead
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewExportService creates the service. At most maxConcurrency tables are
// fetched at once.
func NewExportService(store port.ExportStore, maxConcurrency int, metrics *observability.Metrics, logger *zap.Logger) *ExportService {
	return &ExportService{
		store:    store,
		bulkhead: resilience.NewBulkhead(maxConcurrency),
		metrics:  metrics,
		logger:   logger,
	}
}

// Export collects the user's rows from every export table. Callers may only
// export their own data.
func (s *ExportService) Export(ctx context.Context, caller *domain.Caller, userID string) (*domain.ExportDocument, error) {
	if s.store == nil {
		return nil, &domain.ErrUnavailable{Feature: "export"}
	}
	if caller.UserID != userID {
		return nil, &domain.ErrForbidden{Action: "export another user's data"}
	}

	ctx, span := exportTracer.Start(ctx, "ExportService.Export")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("export", time.Since(start))
	}()

	results := make([][]map[string]any, len(ExportTables))
	g, gCtx := errgroup.WithContext(ctx)
	for i, table := range ExportTables {
		g.Go(func() error {
			if err := s.bulkhead.Acquire(gCtx); err != nil {
				return err
			}
			defer s.bulkhead.Release()

			rows, err := s.store.FetchUserRows(gCtx, table, userID)
			if err != nil {
				s.logger.Error("export: table fetch failed",
					zap.String("table", table.Name),
					zap.String("user_id", userID),
					zap.Error(err),
				)
				s.metrics.IncrExternalError("export")
				return fmt.Errorf("export %s: %w", table.Name, err)
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	doc := &domain.ExportDocument{
		ExportID:   uuid.NewString(),
		UserID:     userID,
		ExportedAt: time.Now().UTC(),
		Summary:    make(map[string]int, len(ExportTables)),
		Data:       make(map[string][]map[string]any, len(ExportTables)),
	}
	for i, table := range ExportTables {
		rows := results[i]
		if rows == nil {
			rows = []map[string]any{}
		}
		doc.Summary[table.Name] = len(rows)
		doc.Data[table.Name] = rows
	}

	s.logger.Info("export: completed",
		zap.String("export_id", doc.ExportID),
		zap.String("user_id", userID),
		zap.Any("summary", doc.Summary),
	)
	return doc, nil
}

// WriteZIP writes doc as a ZIP archive holding one CSV per table plus
// summary.json.
func WriteZIP(w io.Writer, doc *domain.ExportDocument) error {
	zw := zip.NewWriter(w)

	summary, err := json.MarshalIndent(map[string]any{
		"export_id":   doc.ExportID,
		"user_id":     doc.UserID,
		"exported_at": doc.ExportedAt,
		"summary":     doc.Summary,
	}, "", "  ")
	if err != nil {
		return err
	}
	f, err := zw.Create("summary.json")
	if err != nil {
		return err
	}
	if _, err := f.Write(summary); err != nil {
		return err
	}

	for _, table := range ExportTables {
		f, err := zw.Create(table.Name + ".csv")
		if err != nil {
			return err
		}
		if err := writeCSV(f, doc.Data[table.Name]); err != nil {
			return fmt.Errorf("write %s.csv: %w", table.Name, err)
		}
	}

	return zw.Close()
}

// writeCSV writes rows with a header made of the sorted union of their keys.
// No rows means an empty file.
func writeCSV(w io.Writer, rows []map[string]any) error {
	if len(rows) == 0 {
		return nil
	}

	seen := map[string]bool{}
	var columns []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}
	sort.Strings(columns)

	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}
	record := make([]string, len(columns))
	for _, row := range rows {
		for i, col := range columns {
			record[i] = csvValue(row[col])
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
