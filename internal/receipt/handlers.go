package receipt

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// writeJSON encodes v with the given status
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	setCORSHeaders(w)
	writeJSON(w, status, map[string]string{"error": message})
}

// handleListReceipts returns a list of all receipts
func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.service.ListReceipts()
	if err != nil {
		slog.Error("Error listing receipts", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, receipts)
}

// handleListGroups returns receipts with rail refunds grouped under their purchase
func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.service.Groups()
	if err != nil {
		slog.Error("Error grouping receipts", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

// handleSummary returns totals across all receipts
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.service.Summary()
	if err != nil {
		slog.Error("Error summarizing receipts", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleGetReceipt returns a single receipt
func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Receipt ID required", http.StatusBadRequest)
		return
	}
	receipt, err := s.service.GetReceipt(id)
	if err != nil {
		corsError(w, "Receipt not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// handleAnnotateReceipt sets the category and billing status of a receipt
func (s *Server) handleAnnotateReceipt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Receipt ID required", http.StatusBadRequest)
		return
	}

	var a Annotation
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	receipt, err := s.service.Annotate(id, a)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			corsError(w, "Receipt not found", http.StatusNotFound)
			return
		}
		slog.Error("Error annotating receipt", "id", id, "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// handleDeleteReceipt deletes a receipt
func (s *Server) handleDeleteReceipt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Receipt ID required", http.StatusBadRequest)
		return
	}
	if err := s.service.DeleteReceipt(id); err != nil {
		if errors.Is(err, ErrNotFound) {
			corsError(w, "Receipt not found", http.StatusNotFound)
			return
		}
		corsError(w, "Error deleting receipt", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// parseRequest is the body of POST /api/receipts/parse
type parseRequest struct {
	Vendor     string    `json:"vendor"`
	MessageID  string    `json:"message_id"`
	Subject    string    `json:"subject"`
	ReceivedAt time.Time `json:"received_at"`
	Body       string    `json:"body"`
}

// handleParseMessage parses one pasted message and stores the result
func (s *Server) handleParseMessage(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	vendor, ok := ParseVendor(req.Vendor)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "Unknown vendor: "+req.Vendor)
		return
	}
	if req.Body == "" {
		writeJSONError(w, http.StatusBadRequest, "Message body required")
		return
	}
	if req.ReceivedAt.IsZero() {
		req.ReceivedAt = time.Now()
	}

	receipt, err := s.service.ParseMessage(r.Context(), vendor, &Message{
		ID:         req.MessageID,
		Subject:    req.Subject,
		ReceivedAt: req.ReceivedAt,
		Body:       req.Body,
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, receipt)
	case errors.Is(err, ErrDuplicate):
		writeJSONError(w, http.StatusConflict, "Receipt already recorded")
	case errors.Is(err, ErrSubjectMismatch), errors.Is(err, ErrExtractionFailed):
		writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		slog.Error("Error parsing message", "vendor", vendor, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Internal server error")
	}
}
