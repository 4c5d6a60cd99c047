package processor

import (
	"context"
	"net/http"

	"github.com/ORAITApps/attachment-migrator/internal/auth"
	"github.com/ORAITApps/attachment-migrator/internal/models"
	"github.com/ORAITApps/attachment-migrator/internal/salesforce"
)

// OrgClient is the subset of salesforce.Client the migrator drives.
type OrgClient interface {
	InstanceURL() string
	Query(ctx context.Context, soql string) ([]models.Record, error)
	QueryAttachments(ctx context.Context, soql string) ([]models.AttachmentRecord, error)
	FetchContent(ctx context.Context, attachmentID string) ([]byte, error)
	CreateRecord(ctx context.Context, objectType string, fields map[string]any) (string, error)
	CreateAttachment(ctx context.Context, fields map[string]any, content []byte) (string, error)
}

// Connector authenticates against one org and returns a client bound to its session.
type Connector func(ctx context.Context, creds auth.Credentials) (OrgClient, error)

// SalesforceConnector authenticates with the password grant and builds a REST client.
func SalesforceConnector(httpClient *http.Client, opts ...salesforce.Option) Connector {
	return func(ctx context.Context, creds auth.Credentials) (OrgClient, error) {
		session, err := auth.Authenticate(ctx, httpClient, creds)
		if err != nil {
			return nil, err
		}
		clientOpts := append([]salesforce.Option{salesforce.WithHTTPClient(httpClient)}, opts...)
		return salesforce.NewClient(session, clientOpts...), nil
	}
}
