package processor

import (
	"context"
	"fmt"
	"sync"

	"github.com/ORAITApps/attachment-migrator/internal/auth"
	"github.com/ORAITApps/attachment-migrator/internal/models"
	"github.com/ORAITApps/attachment-migrator/internal/salesforce"
)

type createCall struct {
	ObjectType string
	Fields     map[string]any
	Content    []byte
}

// fakeOrg is an in-memory OrgClient. Unset maps behave as empty.
type fakeOrg struct {
	mu sync.Mutex

	instance    string
	records     []models.Record
	queryErr    error
	attachments []models.AttachmentRecord
	attachErr   error
	contents    map[string][]byte
	createErr   func(objectType string, fields map[string]any) error

	queries           []string
	attachmentQueries []string
	fetched           []string
	created           []createCall
	nextID            int
}

func (f *fakeOrg) InstanceURL() string {
	return f.instance
}

func (f *fakeOrg) Query(ctx context.Context, soql string) ([]models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, soql)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.records, nil
}

func (f *fakeOrg) QueryAttachments(ctx context.Context, soql string) ([]models.AttachmentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attachmentQueries = append(f.attachmentQueries, soql)
	if f.attachErr != nil {
		return nil, f.attachErr
	}
	return f.attachments, nil
}

func (f *fakeOrg) FetchContent(ctx context.Context, id string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, id)
	content, ok := f.contents[id]
	if !ok {
		return nil, &salesforce.FetchError{ID: id, StatusCode: 404, Body: `[{"errorCode":"NOT_FOUND"}]`}
	}
	return content, nil
}

func (f *fakeOrg) CreateRecord(ctx context.Context, objectType string, fields map[string]any) (string, error) {
	return f.create(objectType, fields, nil)
}

func (f *fakeOrg) CreateAttachment(ctx context.Context, fields map[string]any, content []byte) (string, error) {
	return f.create(models.ObjectAttachment, fields, content)
}

func (f *fakeOrg) create(objectType string, fields map[string]any, content []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		if err := f.createErr(objectType, fields); err != nil {
			return "", err
		}
	}
	f.nextID++
	f.created = append(f.created, createCall{ObjectType: objectType, Fields: fields, Content: content})
	return fmt.Sprintf("NEW%03d", f.nextID), nil
}

func (f *fakeOrg) createdOf(objectType string) []createCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []createCall
	for _, c := range f.created {
		if c.ObjectType == objectType {
			out = append(out, c)
		}
	}
	return out
}

// connectorFor returns the source org for the "source" domain and target otherwise.
func connectorFor(source, target *fakeOrg) Connector {
	return func(ctx context.Context, creds auth.Credentials) (OrgClient, error) {
		if creds.Domain == "https://source.example.com" {
			return source, nil
		}
		return target, nil
	}
}

func account(id, name string) models.Record {
	return models.Record{
		Attributes: models.Attributes{Type: "Account"},
		Fields:     map[string]any{"Id": id, "Name": name, "Phone": "555"},
	}
}

func attachment(id, parentID, contentType string) models.AttachmentRecord {
	return models.AttachmentRecord{ID: id, Name: id + ".bin", Description: "desc " + id, ParentID: parentID, ContentType: contentType}
}
