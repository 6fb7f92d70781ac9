package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"argus/internal/retention"
)

// handleExport streams the retained exportable-events vector, filtered
// by family (types=) and time range (from=/to=, RFC3339), gzip-encoded
// when the client advertises it. format=ndjson emits one JSON object per
// line; anything else (including the default) emits a JSON array.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var typeFilter map[string]bool
	if raw := q.Get("types"); raw != "" {
		typeFilter = make(map[string]bool)
		for _, t := range strings.Split(raw, ",") {
			typeFilter[strings.TrimSpace(t)] = true
		}
	}

	var from, to time.Time
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from: "+err.Error())
			return
		}
		from = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to: "+err.Error())
			return
		}
		to = t
	}

	records := s.deps.Retention.ExportSnapshot()
	filtered := make([]retention.Record, 0, len(records))
	for _, rec := range records {
		if typeFilter != nil && !typeFilter[rec.Event.Kind().String()] {
			continue
		}
		ts := rec.Event.Timestamp()
		if !from.IsZero() && ts.Before(from) {
			continue
		}
		if !to.IsZero() && ts.After(to) {
			continue
		}
		filtered = append(filtered, rec)
	}

	w.Header().Set("Content-Type", "application/json")
	var out http.ResponseWriter = w
	if strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		defer gz.Close()
		out = &gzipResponseWriter{ResponseWriter: w, gz: gz}
	}

	out.WriteHeader(http.StatusOK)
	ndjson := q.Get("format") == "ndjson"

	if ndjson {
		for _, rec := range filtered {
			_, _ = out.Write(rec.JSON)
			_, _ = out.Write([]byte("\n"))
		}
		return
	}

	_, _ = out.Write([]byte("["))
	for i, rec := range filtered {
		if i > 0 {
			_, _ = out.Write([]byte(","))
		}
		_, _ = out.Write(rec.JSON)
	}
	_, _ = out.Write([]byte("]"))
}

// gzipResponseWriter forwards writes through a gzip.Writer while still
// satisfying http.ResponseWriter for the WriteHeader/Header calls above.
type gzipResponseWriter struct {
	http.ResponseWriter
	gz *gzip.Writer
}

func (g *gzipResponseWriter) Write(p []byte) (int, error) {
	return g.gz.Write(p)
}
