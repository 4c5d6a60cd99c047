package processor

import (
	"fmt"
	"strings"

	"github.com/ORAITApps/attachment-migrator/internal/models"
)

// Plan describes what one run migrates.
type Plan struct {
	// ParentQuery selects the parent records to re-create in the target org.
	ParentQuery string `mapstructure:"parent_query" yaml:"parent_query"`
	// AttachmentQuery selects the attachments to transfer. When empty, the
	// attachments of every created parent are selected.
	AttachmentQuery string `mapstructure:"attachment_query" yaml:"attachment_query"`
	// ParentObjectType is used for parents whose query row carries no type.
	ParentObjectType    string    `mapstructure:"parent_object_type" yaml:"parent_object_type"`
	ParentTransform     Transform `mapstructure:"parent_transform" yaml:"parent_transform"`
	AttachmentTransform Transform `mapstructure:"attachment_transform" yaml:"attachment_transform"`
}

func (p Plan) Validate() error {
	if strings.TrimSpace(p.ParentQuery) == "" {
		return fmt.Errorf("parent query is required")
	}
	if err := p.ParentTransform.validate(); err != nil {
		return fmt.Errorf("parent transform: %w", err)
	}
	if err := p.AttachmentTransform.validate(models.FieldParentID, models.FieldBody); err != nil {
		return fmt.Errorf("attachment transform: %w", err)
	}
	return nil
}

// attachmentQueryFor selects the attachments of the given source parents.
func attachmentQueryFor(parentIDs []string) string {
	quoted := make([]string, len(parentIDs))
	for i, id := range parentIDs {
		quoted[i] = "'" + escapeSOQL(id) + "'"
	}
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s IN (%s)",
		strings.Join(models.AttachmentFields, ", "),
		models.ObjectAttachment,
		models.FieldParentID,
		strings.Join(quoted, ","))
}

var soqlEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func escapeSOQL(s string) string {
	return soqlEscaper.Replace(s)
}
