package controllers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/alirogz/goshop-partialpay/app/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// rpcCall is a JSON-RPC 2.0 request as sent by the shop front-end. Callers
// that post the params object directly are accepted too, Envelope is false
// for them and the answer is sent without envelope.
type rpcCall struct {
	Envelope bool
	ID       json.RawMessage
	Params   json.RawMessage
}

type rpcEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result"`
}

var errBadRequest = errors.New("malformed request body")

func readRPC(r *http.Request) (rpcCall, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return rpcCall{}, err
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return rpcCall{}, nil
	}

	var env rpcEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return rpcCall{}, errBadRequest
	}
	if env.JSONRPC != "" {
		return rpcCall{Envelope: true, ID: env.ID, Params: env.Params}, nil
	}

	return rpcCall{Params: body}, nil
}

// bind decodes the call params into v. Missing params leave v untouched.
func (c rpcCall) bind(v interface{}) error {
	if len(c.Params) == 0 || bytes.Equal(c.Params, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(c.Params, v); err != nil {
		return errBadRequest
	}
	return nil
}

func writeRPC(w http.ResponseWriter, call rpcCall, status int, result interface{}) {
	if !call.Envelope {
		_ = renderer.JSON(w, status, result)
		return
	}

	id := call.ID
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	_ = renderer.JSON(w, status, rpcResponse{JSONRPC: "2.0", ID: id, Result: result})
}

// writeRPCError answers like the shop routes always did: a 200 result holding
// {error: message} for user errors, a 500 for anything else.
func writeRPCError(w http.ResponseWriter, call rpcCall, err error) {
	if msg, ok := models.UserMessage(err); ok {
		writeRPC(w, call, http.StatusOK, map[string]interface{}{"error": msg})
		return
	}
	if errors.Is(err, errBadRequest) {
		writeRPC(w, call, http.StatusBadRequest, map[string]interface{}{"error": "Invalid request"})
		return
	}

	log.Printf("[http] internal error: %v", err)
	writeRPC(w, call, http.StatusInternalServerError, map[string]interface{}{"error": "Internal server error"})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrPaymentInProgress):
		return http.StatusConflict
	case errors.Is(err, models.ErrInvalidAccessToken):
		return http.StatusForbidden
	case errors.Is(err, models.ErrNoOrder):
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func money(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}
