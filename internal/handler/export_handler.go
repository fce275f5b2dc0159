package handler

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/boddenberg/family-rewards-bfa-go/internal/domain"
	"github.com/boddenberg/family-rewards-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// GET /v1/users/{userId}/export?format=json|zip
func exportHandler(svc *service.ExportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userId")

		format := domain.ExportFormat(r.URL.Query().Get("format"))
		if format == "" {
			format = domain.ExportJSON
		}
		if format != domain.ExportJSON && format != domain.ExportZIP {
			handleServiceError(w, &domain.ErrValidation{Field: "format", Message: "must be json or zip"}, logger)
			return
		}

		doc, err := svc.Export(r.Context(), CallerFromContext(r.Context()), userID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		if format == domain.ExportJSON {
			w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="export-%s.json"`, doc.ExportID))
			writeJSON(w, http.StatusOK, doc)
			return
		}

		var buf bytes.Buffer
		if err := service.WriteZIP(&buf, doc); err != nil {
			handleServiceError(w, fmt.Errorf("build zip: %w", err), logger)
			return
		}
		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="export-%s.zip"`, doc.ExportID))
		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes())
	}
}
