package http

import (
	"net/http"

	"mkoba/internal/core"
	"mkoba/internal/export"
	"mkoba/internal/log"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypePDF  = "application/pdf"
)

func (s *Server) handleListPeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := s.ledger.ListPeriods(r.Context())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	out := make([]periodDTO, 0, len(periods))
	for _, p := range periods {
		out = append(out, toPeriod(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreatePeriod(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	var req createPeriodRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	p, err := s.ledger.CreatePeriod(r.Context(), sess, req.Year)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPeriod(p))
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	view, err := s.ledger.View(r.Context(), sess, r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, toLedger(view))
}

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		writeError(w, r, log.OpInitialize, err)
		return
	}
	var req initializeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpInitialize, err)
		return
	}
	start, err := parseMonth("month", req.Month)
	if err != nil {
		writeError(w, r, log.OpInitialize, err)
		return
	}
	view, err := s.ledger.InitializePeriod(r.Context(), sess, start)
	if err != nil {
		writeError(w, r, log.OpInitialize, err)
		return
	}
	writeJSON(w, http.StatusOK, toLedger(view))
}

func (s *Server) handleAppendMonth(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	view, err := s.ledger.AppendMonth(r.Context(), sess)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, toLedger(view))
}

// handleSetContribution upserts one cell and answers with the ledger as
// re-read after the write.
func (s *Server) handleSetContribution(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		writeError(w, r, log.OpUpsert, err)
		return
	}
	var req contributionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpUpsert, err)
		return
	}
	month, err := parseMonth("month", req.Month)
	if err != nil {
		writeError(w, r, log.OpUpsert, err)
		return
	}
	amount, err := core.ParseMoney(req.Amount)
	if err != nil {
		writeError(w, r, log.OpUpsert, err)
		return
	}
	view, err := s.ledger.SetContribution(r.Context(), sess, req.MemberID, month, amount)
	if err != nil {
		writeError(w, r, log.OpUpsert, err)
		return
	}
	writeJSON(w, http.StatusOK, toLedger(view))
}

func (s *Server) handleRecordPayout(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		writeError(w, r, log.OpUpsert, err)
		return
	}
	var req payoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpUpsert, err)
		return
	}
	amount, err := core.ParseMoney(req.Amount)
	if err != nil {
		writeError(w, r, log.OpUpsert, err)
		return
	}
	summary, err := s.ledger.RecordPayout(r.Context(), sess, req.MemberID, amount)
	if err != nil {
		writeError(w, r, log.OpUpsert, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummary(summary))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	summary, err := s.ledger.Summary(r.Context(), sess)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummary(summary))
}

func (s *Server) handleExportSpreadsheet(w http.ResponseWriter, r *http.Request) {
	art, ok := s.export(w, r)
	if !ok {
		return
	}
	writeAttachment(w, contentTypeXLSX, export.SpreadsheetName, art.Spreadsheet)
}

func (s *Server) handleExportDocument(w http.ResponseWriter, r *http.Request) {
	art, ok := s.export(w, r)
	if !ok {
		return
	}
	writeAttachment(w, contentTypePDF, export.DocumentName, art.Document)
}

func (s *Server) export(w http.ResponseWriter, r *http.Request) (export.Artifacts, bool) {
	sess, err := session(r)
	if err != nil {
		writeError(w, r, log.OpExport, err)
		return export.Artifacts{}, false
	}
	from, err := optionalMonth(r, "from")
	if err != nil {
		writeError(w, r, log.OpExport, err)
		return export.Artifacts{}, false
	}
	to, err := optionalMonth(r, "to")
	if err != nil {
		writeError(w, r, log.OpExport, err)
		return export.Artifacts{}, false
	}
	art, err := s.ledger.Export(r.Context(), sess, from, to)
	if err != nil {
		writeError(w, r, log.OpExport, err)
		return export.Artifacts{}, false
	}
	return art, true
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	facts, err := s.ledger.Audit(r.Context(), limit)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	out := make([]auditDTO, 0, len(facts))
	for _, f := range facts {
		out = append(out, toAudit(f))
	}
	writeJSON(w, http.StatusOK, out)
}
