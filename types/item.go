package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// CodeDesc is a coded item field as returned by the item API,
// e.g. {"value": "HAY", "desc": "John Hay Library"}.
// A nil Desc corresponds to JSON null.
type CodeDesc struct {
	Value string  `json:"value"`
	Desc  *string `json:"desc"`
}

// Code returns a CodeDesc with a non-null description.
func Code(value, desc string) CodeDesc {
	return CodeDesc{Value: value, Desc: &desc}
}

// Cleared is the process type of an item with no active process.
var Cleared = CodeDesc{}

// Equal reports whether c and o have the same value and description.
func (c CodeDesc) Equal(o CodeDesc) bool {
	if c.Value != o.Value {
		return false
	}
	if c.Desc == nil || o.Desc == nil {
		return c.Desc == nil && o.Desc == nil
	}
	return *c.Desc == *o.Desc
}

// String renders c as compact JSON with keys in desc, value order.
func (c CodeDesc) String() string {
	b, err := marshalNoEscape(struct {
		Desc  *string `json:"desc"`
		Value string  `json:"value"`
	}{c.Desc, c.Value})
	if err != nil {
		return c.Value
	}
	return string(b)
}

// notFoundPhrase is the message fragment the item API uses when a barcode
// has no item. Matching is case-insensitive.
const notFoundPhrase = "no items found for barcode"

// GatewayError is an error envelope returned by the item API.
type GatewayError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func (e *GatewayError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("item api error %s: %s", e.Code, e.Message)
	}
	return "item api error: " + e.Message
}

// NotFound reports whether the envelope says the barcode has no item.
func (e *GatewayError) NotFound() bool {
	return e != nil && strings.Contains(strings.ToLower(e.Message), notFoundPhrase)
}

// ErrIncompleteRecord is returned when a fetched record lacks identity or
// classification fields.
var ErrIncompleteRecord = errors.New("incomplete item record")

// ItemRecord is a typed view over one item as returned by the item API.
//
// Either Error is set and every other field is zero, or every identity and
// classification field is populated. DecodeItemRecord enforces this.
//
// The record keeps the raw JSON it was decoded from. Marshalling re-emits
// that JSON and replaces only the fields changed through Set, so fields the
// item API returns but this package does not model survive an update.
type ItemRecord struct {
	Barcode   string
	Title     string
	MMSID     string
	HoldingID string
	ItemPID   string

	ProcessType CodeDesc
	BaseStatus  CodeDesc
	Library     CodeDesc
	Location    CodeDesc

	Error *GatewayError

	sections map[string]json.RawMessage
	item     map[string]json.RawMessage
	dirty    map[Field]bool
}

type errorEnvelope struct {
	ErrorsExist bool `json:"errorsExist"`
	ErrorList   struct {
		Error []struct {
			ErrorCode    string `json:"errorCode"`
			ErrorMessage string `json:"errorMessage"`
		} `json:"error"`
	} `json:"errorList"`
}

// DecodeErrorEnvelope returns the gateway error carried by data, if any.
func DecodeErrorEnvelope(data []byte) (*GatewayError, bool) {
	var env errorEnvelope
	if err := json.Unmarshal(data, &env); err != nil || !env.ErrorsExist {
		return nil, false
	}
	ge := &GatewayError{}
	if len(env.ErrorList.Error) > 0 {
		ge.Code = env.ErrorList.Error[0].ErrorCode
		ge.Message = env.ErrorList.Error[0].ErrorMessage
	}
	return ge, true
}

// DecodeItemRecord decodes an item API response body. An error envelope
// yields a record with Error set and a nil error; malformed or partial
// records yield an error.
func DecodeItemRecord(data []byte) (*ItemRecord, error) {
	if ge, ok := DecodeErrorEnvelope(data); ok {
		return &ItemRecord{Error: ge}, nil
	}

	var sections map[string]json.RawMessage
	if err := json.Unmarshal(data, &sections); err != nil {
		return nil, fmt.Errorf("decode item record: %w", err)
	}

	var bib struct {
		MMSID flexString `json:"mms_id"`
		Title string     `json:"title"`
	}
	var holding struct {
		HoldingID flexString `json:"holding_id"`
	}
	var item struct {
		PID         flexString `json:"pid"`
		Barcode     flexString `json:"barcode"`
		ProcessType *CodeDesc  `json:"process_type"`
		BaseStatus  *CodeDesc  `json:"base_status"`
		Library     *CodeDesc  `json:"library"`
		Location    *CodeDesc  `json:"location"`
	}
	var itemRaw map[string]json.RawMessage

	if err := unmarshalSection(sections, "bib_data", &bib); err != nil {
		return nil, err
	}
	if err := unmarshalSection(sections, "holding_data", &holding); err != nil {
		return nil, err
	}
	if err := unmarshalSection(sections, "item_data", &item); err != nil {
		return nil, err
	}
	if err := unmarshalSection(sections, "item_data", &itemRaw); err != nil {
		return nil, err
	}

	var missing []string
	check := func(name string, ok bool) {
		if !ok {
			missing = append(missing, name)
		}
	}
	check("bib_data.mms_id", bib.MMSID != "")
	check("holding_data.holding_id", holding.HoldingID != "")
	check("item_data.pid", item.PID != "")
	check("item_data.barcode", item.Barcode != "")
	check("item_data.process_type", item.ProcessType != nil)
	check("item_data.base_status", item.BaseStatus != nil)
	check("item_data.library", item.Library != nil)
	check("item_data.location", item.Location != nil)
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrIncompleteRecord, strings.Join(missing, ", "))
	}

	return &ItemRecord{
		Barcode:     string(item.Barcode),
		Title:       bib.Title,
		MMSID:       string(bib.MMSID),
		HoldingID:   string(holding.HoldingID),
		ItemPID:     string(item.PID),
		ProcessType: *item.ProcessType,
		BaseStatus:  *item.BaseStatus,
		Library:     *item.Library,
		Location:    *item.Location,
		sections:    sections,
		item:        itemRaw,
	}, nil
}

func unmarshalSection(sections map[string]json.RawMessage, key string, v any) error {
	raw, ok := sections[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return fmt.Errorf("%w: missing %s", ErrIncompleteRecord, key)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// Get returns the current value of field.
func (r *ItemRecord) Get(field Field) CodeDesc {
	switch field {
	case FieldProcessType:
		return r.ProcessType
	case FieldBaseStatus:
		return r.BaseStatus
	case FieldLibrary:
		return r.Library
	case FieldLocation:
		return r.Location
	}
	return CodeDesc{}
}

// Set overwrites field and marks it for inclusion in the marshalled record.
func (r *ItemRecord) Set(field Field, value CodeDesc) {
	switch field {
	case FieldProcessType:
		r.ProcessType = value
	case FieldBaseStatus:
		r.BaseStatus = value
	case FieldLibrary:
		r.Library = value
	case FieldLocation:
		r.Location = value
	default:
		return
	}
	if r.dirty == nil {
		r.dirty = make(map[Field]bool)
	}
	r.dirty[field] = true
}

// Changed returns the fields modified through Set, in report order.
func (r *ItemRecord) Changed() []Field {
	var out []Field
	for _, f := range Fields {
		if r.dirty[f] {
			out = append(out, f)
		}
	}
	return out
}

// Clone returns a deep copy of r. Mutating the clone never affects r.
func (r *ItemRecord) Clone() *ItemRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.ProcessType = r.ProcessType.clone()
	c.BaseStatus = r.BaseStatus.clone()
	c.Library = r.Library.clone()
	c.Location = r.Location.clone()
	if r.Error != nil {
		ge := *r.Error
		c.Error = &ge
	}
	c.sections = cloneRaw(r.sections)
	c.item = cloneRaw(r.item)
	if r.dirty != nil {
		c.dirty = make(map[Field]bool, len(r.dirty))
		for k, v := range r.dirty {
			c.dirty[k] = v
		}
	}
	return &c
}

func (c CodeDesc) clone() CodeDesc {
	if c.Desc == nil {
		return c
	}
	d := *c.Desc
	return CodeDesc{Value: c.Value, Desc: &d}
}

func cloneRaw(m map[string]json.RawMessage) map[string]json.RawMessage {
	if m == nil {
		return nil
	}
	out := make(map[string]json.RawMessage, len(m))
	for k, v := range m {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// MarshalJSON emits the full record with changed fields replaced.
func (r *ItemRecord) MarshalJSON() ([]byte, error) {
	if r.Error != nil {
		return nil, fmt.Errorf("cannot marshal error record: %w", r.Error)
	}
	if r.sections == nil {
		return nil, fmt.Errorf("%w: record was not decoded from the item api", ErrIncompleteRecord)
	}

	top := cloneRaw(r.sections)
	if len(r.dirty) > 0 {
		item := cloneRaw(r.item)
		for _, f := range r.Changed() {
			b, err := marshalNoEscape(r.Get(f))
			if err != nil {
				return nil, fmt.Errorf("encode %s: %w", f, err)
			}
			item[string(f)] = b
		}
		b, err := marshalNoEscape(item)
		if err != nil {
			return nil, fmt.Errorf("encode item_data: %w", err)
		}
		top["item_data"] = b
	}
	return marshalNoEscape(top)
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}
