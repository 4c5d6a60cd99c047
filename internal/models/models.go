package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Field names shared between the query and create paths.
const (
	FieldID          = "Id"
	FieldName        = "Name"
	FieldDescription = "Description"
	FieldParentID    = "ParentId"
	FieldContentType = "ContentType"
	FieldBody        = "Body"
	FieldAttributes  = "attributes"

	ObjectAttachment = "Attachment"
)

// AttachmentFields lists the keys every attachment query must select.
var AttachmentFields = []string{FieldID, FieldName, FieldDescription, FieldParentID, FieldContentType}

// Session is the authenticated state of one org. It is copied by value and never
// mutated after authentication.
type Session struct {
	InstanceURL string
	AccessToken string
}

func (s Session) Valid() bool {
	return s.InstanceURL != "" && s.AccessToken != ""
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	InstanceURL string `json:"instance_url"`
	ID          string `json:"id"`
	TokenType   string `json:"token_type"`
	IssuedAt    string `json:"issued_at"`
	Signature   string `json:"signature"`
}

type Attributes struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// Record is one sObject row as returned by a SOQL query.
type Record struct {
	Attributes Attributes
	Fields     map[string]any
}

func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	r.Fields = make(map[string]any, len(raw))
	for k, v := range raw {
		if k != FieldAttributes {
			r.Fields[k] = v
		}
	}

	r.Attributes = Attributes{}
	if attrs, ok := raw[FieldAttributes].(map[string]any); ok {
		r.Attributes.Type, _ = attrs["type"].(string)
		r.Attributes.URL, _ = attrs["url"].(string)
	}
	return nil
}

func (r Record) ID() string {
	return r.String(FieldID)
}

func (r Record) Type() string {
	return r.Attributes.Type
}

// String returns the field as a string, or "" when it is absent, null or not a string.
func (r Record) String(field string) string {
	s, _ := r.Fields[field].(string)
	return s
}

// Payload returns a copy of the fields without the server-managed keys.
func (r Record) Payload() map[string]any {
	out := make(map[string]any, len(r.Fields))
	for k, v := range r.Fields {
		if k == FieldID || k == FieldAttributes {
			continue
		}
		out[k] = v
	}
	return out
}

type AttachmentRecord struct {
	ID          string `json:"Id"`
	Name        string `json:"Name"`
	Description string `json:"Description"`
	ParentID    string `json:"ParentId"`
	ContentType string `json:"ContentType"`
}

// NewAttachmentRecord checks that rec carries every attachment field and that the
// identifying ones are non-empty.
func NewAttachmentRecord(rec Record) (AttachmentRecord, error) {
	for _, f := range AttachmentFields {
		if _, ok := rec.Fields[f]; !ok {
			return AttachmentRecord{}, fmt.Errorf("attachment %q: missing field %s", rec.ID(), f)
		}
	}
	for _, f := range []string{FieldID, FieldName, FieldParentID} {
		if rec.String(f) == "" {
			return AttachmentRecord{}, fmt.Errorf("attachment %q: field %s must be a non-empty string", rec.ID(), f)
		}
	}

	return AttachmentRecord{
		ID:          rec.String(FieldID),
		Name:        rec.String(FieldName),
		Description: rec.String(FieldDescription),
		ParentID:    rec.String(FieldParentID),
		ContentType: rec.String(FieldContentType),
	}, nil
}

// Fields returns the creatable fields of the attachment. Id and Body are never included.
func (a AttachmentRecord) Fields() map[string]any {
	return map[string]any{
		FieldName:        a.Name,
		FieldDescription: a.Description,
		FieldParentID:    a.ParentID,
		FieldContentType: a.ContentType,
	}
}

type QueryResponse struct {
	TotalSize int      `json:"totalSize"`
	Done      bool     `json:"done"`
	Records   []Record `json:"records"`
}

type CreateResponse struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Errors  []any  `json:"errors"`
}

// IdMap maps source-org record ids to target-org record ids. It is written during
// parent creation and frozen before any attachment is transferred; lookups after
// Freeze need no locking by callers.
type IdMap struct {
	mu     sync.RWMutex
	ids    map[string]string
	frozen bool
}

func NewIdMap() *IdMap {
	return &IdMap{ids: make(map[string]string)}
}

func (m *IdMap) Put(sourceID, targetID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.frozen {
		panic("models: IdMap.Put after Freeze")
	}
	m.ids[sourceID] = targetID
}

func (m *IdMap) Lookup(sourceID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.ids[sourceID]
	return id, ok
}

func (m *IdMap) Freeze() {
	m.mu.Lock()
	m.frozen = true
	m.mu.Unlock()
}

func (m *IdMap) Frozen() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.frozen
}

func (m *IdMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}

// SourceIDs returns the mapped source ids in sorted order.
func (m *IdMap) SourceIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.ids))
	for k := range m.ids {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Snapshot returns a copy of the mapping.
func (m *IdMap) Snapshot() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.ids))
	for k, v := range m.ids {
		out[k] = v
	}
	return out
}
