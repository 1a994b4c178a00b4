package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sspi-index/sspi-engine/internal/core/domain"
	"github.com/sspi-index/sspi-engine/internal/errkind"
)

// parseFilters reads filter parameters from the query string.
func parseFilters(r *http.Request, skip ...string) (domain.QueryFilters, error) {
	params := map[string][]string(r.URL.Query())
	for _, k := range skip {
		delete(params, k)
	}
	f, err := domain.ParseQueryFilters(params)
	if err != nil {
		return f, errkind.Query.Wrap(err)
	}
	return f, nil
}

func (h *handler) query(w http.ResponseWriter, r *http.Request) {
	collection, err := domain.ParseCollection(chi.URLParam(r, "collection"))
	if err != nil {
		writeError(w, r, errkind.Query.Wrap(err))
		return
	}
	filters, err := parseFilters(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeQuery(w, r, collection, filters)
}

func (h *handler) queryIndicator(w http.ResponseWriter, r *http.Request) {
	database := r.URL.Query().Get("database")
	if database == "" {
		database = string(domain.CollectionClean)
	}
	collection, err := domain.ParseCollection(database)
	if err != nil {
		writeError(w, r, errkind.Query.Wrap(err))
		return
	}
	filters, err := parseFilters(r, "database")
	if err != nil {
		writeError(w, r, err)
		return
	}
	code := chi.URLParam(r, "code")
	if _, err := h.cfg.Metadata.Indicator(code); err != nil {
		writeError(w, r, err)
		return
	}
	filters.IndicatorCodes = []string{code}
	h.writeQuery(w, r, collection, filters)
}

// writeQuery answers with the bare row array of the collection.
func (h *handler) writeQuery(w http.ResponseWriter, r *http.Request, c domain.Collection, f domain.QueryFilters) {
	res, err := h.cfg.Query.Query(r.Context(), c, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if c == domain.CollectionIncomplete {
		writeJSON(w, http.StatusOK, nonNil(res.Incomplete))
		return
	}
	writeJSON(w, http.StatusOK, nonNil(res.Observations))
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func (h *handler) queryCountry(w http.ResponseWriter, r *http.Request) {
	obs, err := h.cfg.Query.QueryCountry(r.Context(), strings.ToUpper(chi.URLParam(r, "code")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(obs))
}

func (h *handler) querySummary(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := h.cfg.Query.Summary(r.Context(), chi.URLParam(r, "code"), filters)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(summary))
}

func (h *handler) metadata(w http.ResponseWriter, r *http.Request) {
	kind, ok := domain.ParseDocumentType(chi.URLParam(r, "kind"))
	if !ok {
		writeError(w, r, fmt.Errorf("%w: metadata kind %q", domain.ErrNotFound, chi.URLParam(r, "kind")))
		return
	}
	doc, err := h.cfg.Metadata.Document(kind, chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// stream runs a pipeline operation and relays its lines as they arrive.
func (h *handler) stream(verb domain.Verb) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		op := domain.Operation{Verb: verb, Code: chi.URLParam(r, "code")}
		if verb == domain.VerbCollect {
			op.Context.IntermediateCode = r.URL.Query().Get("IntermediateCode")
			if meta := r.URL.Query().Get("Metadata"); meta != "" {
				if !json.Valid([]byte(meta)) {
					writeError(w, r, errkind.Query.New("Metadata is not valid JSON"))
					return
				}
				op.Context.Metadata = json.RawMessage(meta)
			}
		}
		lines, err := h.cfg.Runner.Stream(r.Context(), PrincipalFrom(r.Context()), op)
		if err != nil {
			writeError(w, r, err)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		for line := range lines {
			if _, err := fmt.Fprintln(w, line); err != nil {
				// Client went away; drain so the producer can finish.
				for range lines {
				}
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

func (h *handler) deleteSeries(w http.ResponseWriter, r *http.Request) {
	collection, err := domain.ParseCollection(chi.URLParam(r, "collection"))
	if err != nil {
		writeError(w, r, errkind.Query.Wrap(err))
		return
	}
	report, err := h.cfg.Runner.DeleteSeries(r.Context(), PrincipalFrom(r.Context()), collection, chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *handler) enqueueRebuild(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Jobs == nil {
		writeError(w, r, errkind.Configuration.New("no job queue configured"))
		return
	}
	status, err := h.cfg.Jobs.EnqueueRebuild(r.Context(), PrincipalFrom(r.Context()), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, status)
}

func (h *handler) jobStatus(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Jobs == nil {
		writeError(w, r, errkind.Configuration.New("no job queue configured"))
		return
	}
	status, err := h.cfg.Jobs.JobStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
