package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"power_dashboard/export"
	"power_dashboard/models"
	"power_dashboard/plot"
	"power_dashboard/session"
	"power_dashboard/stats"
	"power_dashboard/table"
)

var errBadRequest = errors.New("bad request")

func (s *Server) setupRoutes() {
	// Table
	// GET    /api/table                  - rows with validity flags
	// POST   /api/table/append           - append one typed value
	// PUT    /api/table                  - commit an edited grid
	// PUT    /api/table/{index}          - edit one row
	// POST   /api/table/insert/{index}   - insert one row
	// DELETE /api/table/{index}          - delete one row
	s.mux.HandleFunc("GET /api/table", s.withSession(s.getTable))
	s.mux.HandleFunc("POST /api/table/append", s.withSession(s.appendRow))
	s.mux.HandleFunc("PUT /api/table", s.withSession(s.commitTable))
	s.mux.HandleFunc("PUT /api/table/{index}", s.withSession(s.editRow))
	s.mux.HandleFunc("POST /api/table/insert/{index}", s.withSession(s.insertRow))
	s.mux.HandleFunc("DELETE /api/table/{index}", s.withSession(s.deleteRow))
	s.mux.HandleFunc("POST /api/table/clear", s.withSession(s.clearTable))
	s.mux.HandleFunc("POST /api/table/lock", s.withSession(s.lockTable))
	s.mux.HandleFunc("POST /api/table/unlock", s.withSession(s.unlockTable))

	// Analysis
	s.mux.HandleFunc("GET /api/stats", s.withSession(s.getStats))
	s.mux.HandleFunc("GET /api/metrics", s.withSession(s.getMetrics))
	s.mux.HandleFunc("GET /api/histogram", s.withSession(s.getHistogram))
	s.mux.HandleFunc("GET /api/plot", s.withSession(s.getPlot))
	s.mux.HandleFunc("GET /api/plot.png", s.withSession(s.getPlotPNG))

	// History and export
	s.mux.HandleFunc("GET /api/history", s.withSession(s.getHistory))
	s.mux.HandleFunc("POST /api/history/{index}/restore", s.withSession(s.restoreSnapshot))
	s.mux.HandleFunc("GET /api/export/{format}", s.withSession(s.exportTable))
	s.mux.HandleFunc("POST /api/export/db", s.withSession(s.exportToDB))

	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":   "ok",
			"sessions": s.registry.Len(),
		})
	})
}

type tableResponse struct {
	Rows        []table.Annotated `json:"rows"`
	Editable    bool              `json:"editable"`
	InvalidRows []int             `json:"invalid_rows,omitempty"`
	Status      *session.Status   `json:"status,omitempty"`
}

func (s *Server) writeTable(w http.ResponseWriter, code int, sess *session.Session, invalid []int) {
	writeJSON(w, code, tableResponse{
		Rows:        sess.Annotated(),
		Editable:    sess.Editable(),
		InvalidRows: invalid,
		Status:      sess.Status(),
	})
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}

func pathIndex(r *http.Request) (int, error) {
	raw := r.PathValue("index")
	i, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid index %q", errBadRequest, raw)
	}
	return i, nil
}

func (s *Server) getTable(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	s.writeTable(w, http.StatusOK, sess, nil)
}

type appendRequest struct {
	Value string `json:"value"`
}

func (s *Server) appendRow(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req appendRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err, nil)
		return
	}
	if _, err := sess.Add(req.Value); err != nil {
		writeError(w, err, sess)
		return
	}
	s.writeTable(w, http.StatusCreated, sess, nil)
}

type commitRequest struct {
	Rows []models.Reading `json:"rows"`
}

func (s *Server) commitTable(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req commitRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err, nil)
		return
	}
	invalid, err := sess.CommitEdits(req.Rows)
	if err != nil {
		writeError(w, err, sess)
		return
	}
	s.writeTable(w, http.StatusOK, sess, invalid)
}

func (s *Server) editRow(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	index, err := pathIndex(r)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	var row models.Reading
	if err := decodeBody(r, &row); err != nil {
		writeError(w, err, nil)
		return
	}
	invalid, err := sess.EditRow(index, row)
	if err != nil {
		writeError(w, err, sess)
		return
	}
	s.writeTable(w, http.StatusOK, sess, invalid)
}

func (s *Server) insertRow(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	index, err := pathIndex(r)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	var row models.Reading
	if err := decodeBody(r, &row); err != nil {
		writeError(w, err, nil)
		return
	}
	invalid, err := sess.InsertRow(index, row)
	if err != nil {
		writeError(w, err, sess)
		return
	}
	s.writeTable(w, http.StatusCreated, sess, invalid)
}

func (s *Server) deleteRow(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	index, err := pathIndex(r)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	if err := sess.DeleteRow(index); err != nil {
		writeError(w, err, sess)
		return
	}
	s.writeTable(w, http.StatusOK, sess, nil)
}

func (s *Server) clearTable(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	sess.Clear()
	s.writeTable(w, http.StatusOK, sess, nil)
}

func (s *Server) lockTable(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	sess.Lock()
	s.writeTable(w, http.StatusOK, sess, nil)
}

func (s *Server) unlockTable(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	sess.Unlock()
	s.writeTable(w, http.StatusOK, sess, nil)
}

type statsResponse struct {
	Available bool           `json:"available"`
	Summary   *stats.Summary `json:"summary,omitempty"`
	Range     *float64       `json:"range,omitempty"`
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	sum, ok := sess.Stats()
	resp := statsResponse{Available: ok}
	if ok {
		spread := sum.Range()
		resp.Summary, resp.Range = &sum, &spread
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getMetrics(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	writeJSON(w, http.StatusOK, sess.Metrics())
}

func (s *Server) getHistogram(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	bins := stats.DefaultBins
	if raw := r.URL.Query().Get("bins"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, fmt.Errorf("%w: invalid bins %q", errBadRequest, raw), nil)
			return
		}
		bins = n
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"bins": sess.Histogram(bins)})
}

// chartOptions overlays query parameters on the session's chart controls
func chartOptions(q url.Values, base plot.Options) (plot.Options, error) {
	o := base
	bools := map[string]*bool{"sort": &o.SortByTime, "smooth": &o.Smoothing, "zero": &o.ZeroLine}
	for key, dst := range bools {
		if raw := q.Get(key); raw != "" {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				return o, fmt.Errorf("%w: invalid %s %q", errBadRequest, key, raw)
			}
			*dst = v
		}
	}
	floats := map[string]*float64{"min": &o.RangeMin, "max": &o.RangeMax}
	for key, dst := range floats {
		if raw := q.Get(key); raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return o, fmt.Errorf("%w: invalid %s %q", errBadRequest, key, raw)
			}
			*dst = v
		}
	}
	if raw := q.Get("window"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return o, fmt.Errorf("%w: invalid window %q", errBadRequest, raw)
		}
		o.WindowSize = v
	}
	if raw := q.Get("kind"); raw != "" {
		k, err := plot.ParseKind(raw)
		if err != nil {
			return o, err
		}
		o.Kind = k
	}
	return o, nil
}

func (s *Server) applyChartQuery(r *http.Request, sess *session.Session) error {
	o, err := chartOptions(r.URL.Query(), sess.ChartOptions())
	if err != nil {
		return err
	}
	return sess.SetChartOptions(o)
}

type plotResponse struct {
	Options plot.Options `json:"options"`
	Series  plot.Series  `json:"series"`
}

func (s *Server) getPlot(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if err := s.applyChartQuery(r, sess); err != nil {
		writeError(w, err, sess)
		return
	}
	writeJSON(w, http.StatusOK, plotResponse{Options: sess.ChartOptions(), Series: sess.Plot()})
}

func (s *Server) getPlotPNG(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if err := s.applyChartQuery(r, sess); err != nil {
		writeError(w, err, sess)
		return
	}
	var buf bytes.Buffer
	if err := sess.RenderChart(&buf); err != nil {
		writeError(w, err, sess)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"snapshots": sess.History()})
}

func (s *Server) restoreSnapshot(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	index, err := pathIndex(r)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	if err := sess.Restore(index); err != nil {
		writeError(w, err, sess)
		return
	}
	s.writeTable(w, http.StatusOK, sess, nil)
}

func (s *Server) exportTable(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	f, err := export.ParseFormat(r.PathValue("format"))
	if err != nil {
		writeError(w, err, nil)
		return
	}
	var buf bytes.Buffer
	res, err := sess.Export(&buf, f, r.URL.Query().Get("name"))
	if err != nil {
		writeError(w, err, sess)
		return
	}
	w.Header().Set("Content-Type", f.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.FileName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) exportToDB(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if s.sink == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "database export is not configured"})
		return
	}
	res, err := sess.ExportTo(s.sink, r.URL.Query().Get("name"))
	if err != nil {
		writeError(w, err, sess)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"result": res, "status": sess.Status()})
}
