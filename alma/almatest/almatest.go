// Package almatest provides an in-process fake of the catalog item API for
// tests.
package almatest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/justapithecus/anxeod/types"
)

// APIKey is the key the fake server accepts.
const APIKey = "test-key"

// Item describes one catalog item served by the fake.
type Item struct {
	Barcode   string
	Title     string
	MMSID     string
	HoldingID string
	PID       string

	ProcessType types.CodeDesc
	BaseStatus  types.CodeDesc
	Library     types.CodeDesc
	Location    types.CodeDesc
}

// JSON renders the item the way the API does, including fields the engine
// does not model.
func (i Item) JSON() []byte {
	doc := map[string]any{
		"bib_data": map[string]any{
			"mms_id": i.MMSID,
			"title":  i.Title,
			"author": "Test Author",
		},
		"holding_data": map[string]any{
			"holding_id":  i.HoldingID,
			"call_number": "QA76 .T4",
		},
		"item_data": map[string]any{
			"pid":                    i.PID,
			"barcode":                i.Barcode,
			"process_type":           i.ProcessType,
			"base_status":            i.BaseStatus,
			"library":                i.Library,
			"location":               i.Location,
			"public_note":            "fixture",
			"creation_date":          "2020-01-01Z",
			"requested":              false,
			"physical_material_type": map[string]any{"value": "BOOK", "desc": "Book"},
		},
		"link": "https://api.example.edu/items/" + i.PID,
	}
	// the API sends &, < and > unescaped
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(doc)
	return bytes.TrimRight(buf.Bytes(), "\n")
}

// Put records one update request received by the fake.
type Put struct {
	MMSID     string
	HoldingID string
	PID       string
	Query     url.Values
	Body      map[string]any
	Raw       []byte
}

// Server is a fake item API.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	items      map[string]Item
	lookupErrs map[string]string
	failLookup map[string]bool
	rejectPut  map[string]string
	puts       []Put
	gets       int
}

// NewServer starts a fake item API closed on test cleanup.
func NewServer(tb testing.TB) *Server {
	tb.Helper()
	s := &Server{
		items:      make(map[string]Item),
		lookupErrs: make(map[string]string),
		failLookup: make(map[string]bool),
		rejectPut:  make(map[string]string),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /items", s.handleLookup)
	mux.HandleFunc("PUT /bibs/{mms}/holdings/{hid}/items/{pid}", s.handleUpdate)
	s.Server = httptest.NewServer(mux)
	tb.Cleanup(s.Close)
	return s
}

// ItemRoot is the lookup endpoint.
func (s *Server) ItemRoot() string { return s.URL + "/items" }

// PutTemplate is the update endpoint template.
func (s *Server) PutTemplate() string {
	return s.URL + "/bibs/{MMSID}/holdings/{HOLDING_ID}/items/{ITEM_PID}"
}

// Add registers items by barcode.
func (s *Server) Add(items ...Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range items {
		s.items[it.Barcode] = it
	}
}

// Item returns the current state of a registered item.
func (s *Server) Item(barcode string) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[barcode]
	return it, ok
}

// LookupError makes lookups of barcode return an error envelope with msg.
func (s *Server) LookupError(barcode, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookupErrs[barcode] = msg
}

// FailLookup makes lookups of barcode return a non-JSON 503.
func (s *Server) FailLookup(barcode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLookup[barcode] = true
}

// RejectUpdate makes updates of barcode return an error envelope with msg.
func (s *Server) RejectUpdate(barcode, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectPut[barcode] = msg
}

// Puts returns the update requests received so far.
func (s *Server) Puts() []Put {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Put(nil), s.puts...)
}

// Gets returns the number of lookups received so far.
func (s *Server) Gets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets
}

// Envelope renders an API error envelope.
func Envelope(code, msg string) []byte {
	data, _ := json.Marshal(map[string]any{
		"errorsExist": true,
		"errorList": map[string]any{
			"error": []map[string]string{{"errorCode": code, "errorMessage": msg, "trackingId": "E01-TEST"}},
		},
		"result": nil,
	})
	return data
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.gets++
	barcode := r.URL.Query().Get("item_barcode")
	it, found := s.items[barcode]
	errMsg, hasErr := s.lookupErrs[barcode]
	fail := s.failLookup[barcode]
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Query().Get("apikey") != APIKey:
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write(Envelope("UNAUTHORIZED", "API-key not defined or not configured to allow this API."))
	case fail:
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, "<html>service unavailable</html>")
	case hasErr:
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write(Envelope("402999", errMsg))
	case !found:
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write(Envelope("401689", fmt.Sprintf("No items found for barcode %s.", barcode)))
	default:
		_, _ = w.Write(it.JSON())
	}
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("apikey") != APIKey {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write(Envelope("UNAUTHORIZED", "API-key not defined or not configured to allow this API."))
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rec, err := types.DecodeItemRecord(body)
	if err != nil || rec.Error != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.puts = append(s.puts, Put{
		MMSID:     r.PathValue("mms"),
		HoldingID: r.PathValue("hid"),
		PID:       r.PathValue("pid"),
		Query:     r.URL.Query(),
		Body:      doc,
		Raw:       body,
	})
	rejectMsg, reject := s.rejectPut[rec.Barcode]
	if !reject {
		it := s.items[rec.Barcode]
		it.ProcessType = rec.ProcessType
		it.BaseStatus = rec.BaseStatus
		it.Library = rec.Library
		it.Location = rec.Location
		s.items[rec.Barcode] = it
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if reject {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write(Envelope("401890", rejectMsg))
		return
	}
	_, _ = w.Write(body)
}
