package securestore

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/pkg"

	log "github.com/sirupsen/logrus"
)

const maxImportBytes = 2 * 1024 * 1024

type Handler struct {
	store *Store
}

func NewHandler(store *Store) *Handler {
	return &Handler{
		store: store,
	}
}

func (handler *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.data.export")
	defer span.End()

	userID, ok := pkg.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	artifact, err := handler.store.ExportUserData(ctx, userID)
	if err != nil {
		log.Errorf("export user data [%s]: %s", userID, err)
		http.Error(w, "error, export failed", http.StatusInternalServerError)
		return
	}

	writeArtifact(w, artifact)
}

// HandleFullBackup dumps the whole store, so it is only served to local callers.
func (handler *Handler) HandleFullBackup(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.data.backup")
	defer span.End()

	if !pkg.IPIsLocal(r.RemoteAddr) {
		log.Warnf("full backup requested from non local address: %s", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	artifact, err := handler.store.CreateFullBackup(ctx)
	if err != nil {
		log.Errorf("create full backup: %s", err)
		http.Error(w, "error, backup failed", http.StatusInternalServerError)
		return
	}

	writeArtifact(w, artifact)
}

func (handler *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.data.import")
	defer span.End()

	userID, ok := pkg.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	err := handler.store.ImportUserData(ctx, http.MaxBytesReader(w, r.Body, maxImportBytes), userID)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		err = fmt.Errorf("%w: backup exceeds %d bytes", ErrInvalidImport, tooLarge.Limit)
	}
	if errors.Is(err, ErrInvalidImport) {
		http.Error(w, "error, invalid backup file", http.StatusBadRequest)
		return
	}
	if err != nil {
		log.Errorf("import user data [%s]: %s", userID, err)
		http.Error(w, "error, import failed", http.StatusInternalServerError)
		return
	}

	pkg.WriteTextResponseOK(w, "imported")
}

func (handler *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.data.stats")
	defer span.End()

	stats, err := handler.store.StorageStats(ctx)
	if err != nil {
		log.Errorf("storage stats: %s", err)
		http.Error(w, "error, stats unavailable", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONOK(w, stats)
}

func writeArtifact(w http.ResponseWriter, artifact *Artifact) {
	w.Header().Set("Content-Disposition", `attachment; filename="`+artifact.Filename+`"`)
	pkg.WriteResponseBytes(w, artifact.ContentType, artifact.Content, http.StatusOK)
}
