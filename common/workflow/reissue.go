package workflow

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/landrecords/portal/common/apperr"
	"github.com/landrecords/portal/common/models"
)

// ReissueRequest asks for a fresh artifact of an entity's current document
type ReissueRequest struct {
	Kind     models.Kind
	EntityID uuid.UUID
	ActorID  string
}

// Reissue renders the entity's current document again as a new artifact.
// The old document record is marked superseded and its file is left intact.
// The status does not change; the reissue is logged as a self transition.
func (x *Executor) Reissue(ctx context.Context, req ReissueRequest) (*Result, error) {
	entity, err := x.load(ctx, req.Kind, req.EntityID)
	if err != nil {
		return nil, err
	}
	if entity.Document == nil {
		return nil, apperr.Newf(apperr.CodeInvalidArgument, "%s %s has no document to reissue", entity.Kind, entity.ID)
	}
	role, err := x.authorize(ctx, entity.Kind, entity.Status, req.ActorID)
	if err != nil {
		return nil, err
	}

	var res *Result
	err = x.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := x.relock(ctx, tx, entity); err != nil {
			return err
		}

		now := x.now().UTC()
		after := entity.Clone()
		after.UpdatedAt = now
		after.Version++

		ref := ""
		if entity.ReferenceNo != nil {
			ref = *entity.ReferenceNo
		}
		old := entity.Document
		doc, err := x.produce(ctx, after, old.DocumentType, ref, req.ActorID, now)
		if err != nil {
			return err
		}
		if doc.Hash == old.Hash {
			return apperr.New(apperr.CodeInvalidArgument, "reissue produced an identical document")
		}
		if err := tx.SaveDocument(ctx, doc); err != nil {
			return fmt.Errorf("failed to save document record: %w", err)
		}
		if err := tx.SupersedeDocument(ctx, old.DocumentType, old.Hash, doc.Hash); err != nil {
			return fmt.Errorf("failed to supersede document: %w", err)
		}
		after.Document = doc.Ref()

		updated, err := x.update(ctx, tx, entity, after)
		if err != nil {
			return err
		}
		rec, err := x.appendRecord(ctx, tx, entity, updated, req.ActorID, role, doc, now)
		if err != nil {
			return err
		}
		res = &Result{Entity: updated, Document: doc, Record: rec}
		return nil
	})
	if err != nil {
		return nil, err
	}

	x.log.WithContext(ctx).WithEntity(string(entity.Kind), entity.ID.String()).WithActor(req.ActorID).
		Info("document reissued", "document_type", res.Document.DocumentType, "hash", res.Document.Hash,
			"superseded", entity.Document.Hash)
	x.notify(ctx, entity, res, EventDocumentReissued, req.ActorID)
	return res, nil
}
