package processor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ORAITApps/attachment-migrator/internal/auth"
	"github.com/ORAITApps/attachment-migrator/internal/ids"
	"github.com/ORAITApps/attachment-migrator/internal/metrics"
	"github.com/ORAITApps/attachment-migrator/internal/models"
	"github.com/ORAITApps/attachment-migrator/internal/report"
	"github.com/ORAITApps/attachment-migrator/internal/salesforce"
)

// Phase names used in logs, metrics and PhaseError.
const (
	PhaseAuthenticate     = "authenticate"
	PhaseFetchParents     = "fetch_parents"
	PhaseCreateParents    = "create_parents"
	PhaseFetchAttachments = "fetch_attachments"
	PhaseTransfer         = "transfer"
)

// ContentStore keeps a local copy of transferred bodies.
type ContentStore interface {
	Save(parentID, attachmentID, name string, content []byte) (string, error)
}

// Migrator moves parents and their attachments from Source to Target.
type Migrator struct {
	Connect Connector
	Source  auth.Credentials
	Target  auth.Credentials
	Plan    Plan
	// Workers bounds concurrent attachment transfers. Values below 1 mean 1.
	Workers  int
	Logger   *zap.Logger
	Reporter Reporter
	Store    ContentStore
	Metrics  *metrics.Metrics
}

// Run executes the migration. Once anything may have been written to the target org,
// an aborting error is returned together with the partial report.
func (m *Migrator) Run(ctx context.Context) (*report.Report, error) {
	if m.Connect == nil {
		return nil, fmt.Errorf("migrator has no connector")
	}
	if err := m.Plan.Validate(); err != nil {
		return nil, err
	}
	if m.Logger == nil {
		m.Logger = zap.NewNop()
	}
	if m.Reporter == nil {
		m.Reporter = nopReporter{}
	}

	rep := &report.Report{RunID: ids.New(), StartedAt: time.Now().UTC()}
	log := m.Logger.With(zap.String("run_id", rep.RunID))

	m.Reporter.SetStatus("Authenticating...")
	source, err := m.Connect(ctx, m.Source)
	if err != nil {
		return nil, &PhaseError{Phase: PhaseAuthenticate, Err: fmt.Errorf("source org: %w", err)}
	}
	target, err := m.Connect(ctx, m.Target)
	if err != nil {
		return nil, &PhaseError{Phase: PhaseAuthenticate, Err: fmt.Errorf("target org: %w", err)}
	}
	rep.SourceInstanceURL = source.InstanceURL()
	rep.TargetInstanceURL = target.InstanceURL()
	log.Info("authenticated",
		zap.String("source_instance_url", rep.SourceInstanceURL),
		zap.String("target_instance_url", rep.TargetInstanceURL))
	m.Reporter.Log("Authenticated source %s and target %s", rep.SourceInstanceURL, rep.TargetInstanceURL)
	m.Reporter.SetProgress(0.1)

	m.Reporter.SetStatus("Fetching parent records...")
	parents, err := source.Query(ctx, m.Plan.ParentQuery)
	if err != nil {
		return nil, &PhaseError{Phase: PhaseFetchParents, Err: err}
	}
	log.Info("fetched parent records", zap.Int("count", len(parents)))
	m.Reporter.Log("Retrieved %d parent records", len(parents))

	m.Reporter.SetStatus("Creating parent records...")
	idMap := models.NewIdMap()
	rep.Parents, err = m.createParents(ctx, log, target, parents, idMap)
	idMap.Freeze()
	rep.IDMap = idMap.Snapshot()
	if err != nil {
		return m.finish(rep), &PhaseError{Phase: PhaseCreateParents, Err: err}
	}
	m.Reporter.SetProgress(0.4)

	m.Reporter.SetStatus("Fetching attachments...")
	attachments, err := m.fetchAttachments(ctx, source, idMap)
	if err != nil {
		return m.finish(rep), &PhaseError{Phase: PhaseFetchAttachments, Err: err}
	}
	log.Info("fetched attachment records", zap.Int("count", len(attachments)))
	m.Reporter.Log("Retrieved %d attachments", len(attachments))
	m.Reporter.SetProgress(0.5)

	m.Reporter.SetStatus("Transferring attachments...")
	rep.Attachments, err = m.transfer(ctx, log, source, target, attachments, idMap)
	m.finish(rep)
	if err != nil {
		return rep, &PhaseError{Phase: PhaseTransfer, Err: err}
	}

	s := rep.Summary()
	log.Info("migration finished",
		zap.Int("parents_created", s.Parents.Created),
		zap.Int("parents_failed", s.Parents.Failed),
		zap.Int("attachments_created", s.Attachments.Created),
		zap.Int("attachments_failed", s.Attachments.Failed))
	m.Reporter.SetProgress(1.0)
	m.Reporter.SetStatus("Completed")
	return rep, nil
}

func (m *Migrator) finish(rep *report.Report) *report.Report {
	rep.FinishedAt = time.Now().UTC()
	return rep
}

// createParents re-creates every parent sequentially. Only a cancelled context stops it
// early; create failures are recorded and skipped.
func (m *Migrator) createParents(ctx context.Context, log *zap.Logger, target OrgClient, parents []models.Record, idMap *models.IdMap) ([]report.Outcome, error) {
	outcomes := make([]report.Outcome, 0, len(parents))
	for i, rec := range parents {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}

		objectType := rec.Type()
		if objectType == "" {
			objectType = m.Plan.ParentObjectType
		}
		out := report.Outcome{ObjectType: objectType, SourceID: rec.ID()}

		payload := m.Plan.ParentTransform.Apply(rec.Payload())
		newID, err := target.CreateRecord(ctx, objectType, payload)
		if err != nil {
			outcomes = append(outcomes, m.fail(log, PhaseCreateParents, out, err))
		} else {
			idMap.Put(rec.ID(), newID)
			outcomes = append(outcomes, m.created(log, PhaseCreateParents, out, newID))
		}
		m.Reporter.SetProgress(0.1 + 0.3*float64(i+1)/float64(len(parents)))
	}
	return outcomes, nil
}

func (m *Migrator) fetchAttachments(ctx context.Context, source OrgClient, idMap *models.IdMap) ([]models.AttachmentRecord, error) {
	soql := m.Plan.AttachmentQuery
	if soql == "" {
		if idMap.Len() == 0 {
			return nil, nil
		}
		soql = attachmentQueryFor(idMap.SourceIDs())
	}
	return source.QueryAttachments(ctx, soql)
}

// transfer moves attachments in query order. With Workers > 1 transfers overlap, but
// outcomes keep the query order. idMap must already be frozen.
func (m *Migrator) transfer(ctx context.Context, log *zap.Logger, source, target OrgClient, attachments []models.AttachmentRecord, idMap *models.IdMap) ([]report.Outcome, error) {
	if !idMap.Frozen() {
		panic("processor: transfer started before the id map was frozen")
	}

	outcomes := make([]report.Outcome, len(attachments))
	var done atomic.Int64

	g := new(errgroup.Group)
	g.SetLimit(max(m.Workers, 1))
	for i, att := range attachments {
		if ctx.Err() != nil {
			break
		}
		i, att := i, att
		g.Go(func() error {
			outcomes[i] = m.transferOne(ctx, log, source, target, att, idMap)
			n := done.Add(1)
			m.Reporter.SetProgress(0.5 + 0.5*float64(n)/float64(len(attachments)))
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		for i, att := range attachments {
			if outcomes[i].Status == "" {
				outcomes[i] = report.Outcome{
					ObjectType: models.ObjectAttachment,
					SourceID:   att.ID,
					Status:     report.StatusFailed,
					Error:      err.Error(),
				}
			}
		}
		return outcomes, err
	}
	return outcomes, nil
}

func (m *Migrator) transferOne(ctx context.Context, log *zap.Logger, source, target OrgClient, att models.AttachmentRecord, idMap *models.IdMap) report.Outcome {
	out := report.Outcome{ObjectType: models.ObjectAttachment, SourceID: att.ID}

	newParentID, ok := idMap.Lookup(att.ParentID)
	if !ok {
		return m.fail(log, PhaseTransfer, out, &UnresolvedParentError{AttachmentID: att.ID, ParentID: att.ParentID})
	}

	content, err := source.FetchContent(ctx, att.ID)
	if err != nil {
		return m.fail(log, PhaseTransfer, out, err)
	}
	m.Metrics.AddBytes(len(content))

	if m.Store != nil {
		if path, err := m.Store.Save(att.ParentID, att.ID, att.Name, content); err != nil {
			log.Warn("could not save attachment locally", zap.String("source_id", att.ID), zap.Error(err))
		} else {
			log.Debug("saved attachment locally", zap.String("source_id", att.ID), zap.String("path", path))
		}
	}

	if att.ContentType == "" {
		att.ContentType = DetectContentType(content)
	}
	att.ParentID = newParentID

	fields := m.Plan.AttachmentTransform.Apply(att.Fields())
	newID, err := target.CreateAttachment(ctx, fields, content)
	if err != nil {
		return m.fail(log, PhaseTransfer, out, err)
	}
	return m.created(log, PhaseTransfer, out, newID)
}

func (m *Migrator) created(log *zap.Logger, phase string, out report.Outcome, targetID string) report.Outcome {
	out.TargetID = targetID
	out.Status = report.StatusCreated

	log.Info("record created",
		zap.String("phase", phase),
		zap.String("object_type", out.ObjectType),
		zap.String("source_id", out.SourceID),
		zap.String("target_id", targetID))
	m.Reporter.Log("Created %s %s -> %s", out.ObjectType, out.SourceID, targetID)
	m.Metrics.Record(phase, string(report.StatusCreated))
	return out
}

func (m *Migrator) fail(log *zap.Logger, phase string, out report.Outcome, err error) report.Outcome {
	out.Status = report.StatusFailed
	out.Error = err.Error()
	out.StatusCode, out.Body = salesforce.StatusAndBody(err)

	fields := []zap.Field{
		zap.String("phase", phase),
		zap.String("object_type", out.ObjectType),
		zap.String("source_id", out.SourceID),
		zap.Error(err),
	}
	if out.StatusCode != 0 {
		fields = append(fields, zap.Int("status_code", out.StatusCode), zap.String("body", out.Body))
	}

	var unresolved *UnresolvedParentError
	if errors.As(err, &unresolved) {
		log.Warn("skipping attachment", fields...)
	} else {
		log.Error("record failed", fields...)
	}
	m.Reporter.Log("Error: %s %s: %v", out.ObjectType, out.SourceID, err)
	m.Metrics.Record(phase, string(report.StatusFailed))
	return out
}
