package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"dietledger/internal/services"
)

var errBadRequest = errors.New("bad request")

// amountField accepts both 12.5 and "12,5" so clients can forward user input
// untouched.
type amountField string

func (a *amountField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = amountField(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("amount must be a number or a string: %w", err)
	}
	*a = amountField(n.String())
	return nil
}

type entryRequest struct {
	Category string      `json:"category"`
	FoodItem string      `json:"food_item"`
	Amount   amountField `json:"amount"`
	Unit     string      `json:"unit"`
	Notes    string      `json:"notes"`
}

func (e entryRequest) input() services.EntryInput {
	return services.EntryInput{
		Category: sanitizeInput(e.Category),
		FoodItem: sanitizeInput(e.FoodItem),
		Amount:   string(e.Amount),
		Unit:     e.Unit,
		Notes:    sanitizeInput(e.Notes),
	}
}

type addEntryRequest struct {
	Date string `json:"date"`
	entryRequest
}

type batchRequest struct {
	Date    string         `json:"date"`
	Entries []entryRequest `json:"entries"`
}

type resetRequest struct {
	Date string `json:"date"`
}

// decodeJSON reads exactly one JSON object into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return err
		}
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: body must hold a single JSON object", errBadRequest)
	}
	return nil
}

// pathInt parses a numeric path segment.
func pathInt(r *http.Request, name string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(r.PathValue(name)))
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", errBadRequest, name)
	}
	return v, nil
}

// queryInt parses an optional numeric query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative number", errBadRequest, name)
	}
	return n, nil
}

// sanitizeInput drops control characters except tab and newlines.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
