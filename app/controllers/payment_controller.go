package controllers

import (
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/alirogz/goshop-partialpay/app/models"
)

// POST /admin/payments/import
// Accepts a multipart upload in "file" or the CSV as request body.
func (server *Server) AdminImportStatement(w http.ResponseWriter, r *http.Request, admin *models.User) {
	var src io.Reader = r.Body
	bank := strings.TrimSpace(r.URL.Query().Get("bank"))

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			_ = renderer.JSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid upload"})
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			_ = renderer.JSON(w, http.StatusBadRequest, map[string]string{"error": "File not found"})
			return
		}
		defer file.Close()
		src = file
		if b := strings.TrimSpace(r.FormValue("bank")); b != "" {
			bank = b
		}
	}
	if bank == "" {
		bank = "BANK"
	}

	lines, err := models.ParseStatementCSV(src, bank)
	if err != nil {
		_ = renderer.JSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid statement file"})
		return
	}

	imported := 0
	for i := range lines {
		if err := server.DB.Create(&lines[i]).Error; err != nil {
			log.Println("[bank] insert error:", err)
			continue
		}
		imported++
	}

	_ = renderer.JSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"imported": imported,
	})
}

// POST /admin/payments/auto-match
func (server *Server) AdminAutoMatchPayments(w http.ResponseWriter, r *http.Request, admin *models.User) {
	matched, err := models.AutoMatchPending(r.Context(), server.DB, server.lifecycle())
	if err != nil {
		writeError(w, err)
		return
	}

	_ = renderer.JSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"message": "Auto-match finished",
		"matched": matched,
	})
}

// GET /admin/payments/lines
func (server *Server) AdminStatementLines(w http.ResponseWriter, r *http.Request, admin *models.User) {
	var lines []models.BankStatementLine
	q := server.DB.Order("id desc").Limit(50)
	if r.URL.Query().Get("unmatched") == "1" {
		q = q.Where("matched = ?", false)
	}
	if err := q.Find(&lines).Error; err != nil {
		writeError(w, err)
		return
	}

	data := make([]map[string]interface{}, 0, len(lines))
	for _, l := range lines {
		data = append(data, map[string]interface{}{
			"id":                     l.ID,
			"bank":                   l.Bank,
			"amount":                 money(l.Amount),
			"note":                   l.Note,
			"trx_time":               l.TrxTime,
			"matched":                l.Matched,
			"matched_transaction_id": l.MatchedTransactionID,
		})
	}

	_ = renderer.JSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"count":  len(data),
		"data":   data,
	})
}
