package executor

import (
	"context"
	"time"

	"github.com/maxdata-sh/max/internal/connector"
	"github.com/maxdata-sh/max/internal/engine"
	"github.com/maxdata-sh/max/internal/id"
	"github.com/maxdata-sh/max/internal/ref"
	"github.com/maxdata-sh/max/internal/syncplan"
	"github.com/maxdata-sh/max/internal/task"
	maxerrors "github.com/maxdata-sh/max/pkg/errors"
)

const defaultBatchSize = 50

var (
	errUnknownPayload = maxerrors.Define(
		"execution.unknown_payload",
		"task {task} carries unknown payload kind {kind}",
		maxerrors.InvariantViolated,
	)
	errLoaderFailed = maxerrors.Define(
		"execution.loader_failed",
		"loader {loader} failed: {cause}",
		maxerrors.HasLoaderName,
	)
)

// ConnectorRunner executes tasks against a connector's loaders, storing
// results through the engine and stamping per-field sync metadata.
type ConnectorRunner struct {
	resolver     connector.Resolver
	installation connector.Installation
	eng          engine.Engine
	meta         engine.SyncMeta
	batchSize    int
	now          func() time.Time
}

// NewConnectorRunner wires a runner to one installation's resolver, engine,
// and sync metadata.
func NewConnectorRunner(res connector.Resolver, inst connector.Installation, eng engine.Engine, meta engine.SyncMeta) *ConnectorRunner {
	return &ConnectorRunner{
		resolver:     res,
		installation: inst,
		eng:          eng,
		meta:         meta,
		batchSize:    defaultBatchSize,
		now:          time.Now,
	}
}

// Run dispatches on the task's payload kind. It returns child templates for
// the executor to insert; it never writes to the task store itself.
func (r *ConnectorRunner) Run(ctx context.Context, t task.Task) ([]task.Template, error) {
	switch t.Payload.Kind {
	case task.PayloadSyncStep:
		return r.runStep(ctx, t)
	case task.PayloadLoadFields:
		return nil, r.runLoadFields(ctx, t)
	case task.PayloadLoadCollection:
		return r.runLoadCollection(ctx, t)
	case task.PayloadSyncGroup:
		// Aggregation nodes carry no work of their own.
		return nil, nil
	}
	return nil, errUnknownPayload.New(maxerrors.Props{
		"task": string(t.ID),
		"kind": string(t.Payload.Kind),
	})
}

// runStep resolves the step's target against the engine and spawns the
// per-operation children.
func (r *ConnectorRunner) runStep(ctx context.Context, t task.Task) ([]task.Template, error) {
	payload := t.Payload.SyncStep
	if payload == nil {
		return nil, errUnknownPayload.New(maxerrors.Props{"task": string(t.ID), "kind": "sync-step"})
	}
	step := payload.Step

	var (
		refs     []ref.Ref
		children []task.Template
	)
	switch step.Target.Kind {
	case syncplan.TargetRoot, syncplan.TargetOne:
		if step.Target.Ref != nil {
			refs = []ref.Ref{*step.Target.Ref}
		}
	case syncplan.TargetAll:
		page, err := r.eng.LoadPage(ctx, step.Target.Type, engine.Refs(), &engine.Page{
			Cursor: payload.Cursor,
			Size:   r.batchSize,
		})
		if err != nil {
			return nil, err
		}
		refs = make([]ref.Ref, 0, len(page.Entities))
		for _, entity := range page.Entities {
			refs = append(refs, entity.Ref)
		}
		if page.HasMore {
			// Continue resolving the same step from the next cursor.
			children = append(children, task.Template{
				Payload: task.Payload{
					Kind:     task.PayloadSyncStep,
					SyncStep: &task.SyncStepPayload{Step: step, Cursor: page.Cursor},
				},
			})
		}
	}

	ops, err := r.expandOperation(step, refs)
	if err != nil {
		return nil, err
	}
	return append(children, ops...), nil
}

func (r *ConnectorRunner) expandOperation(step syncplan.Step, refs []ref.Ref) ([]task.Template, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	switch step.Op.Kind {
	case syncplan.OpLoadFields:
		// Partition fields by the loader that provides them; one child per
		// loader per ref chunk.
		byLoader := make(map[id.LoaderName][]id.FieldName)
		var loaderOrder []id.LoaderName
		for _, field := range step.Op.Fields {
			name, err := r.resolver.LoaderFor(refType(refs), field)
			if err != nil {
				return nil, err
			}
			if _, seen := byLoader[name]; !seen {
				loaderOrder = append(loaderOrder, name)
			}
			byLoader[name] = append(byLoader[name], field)
		}
		var out []task.Template
		for _, loaderName := range loaderOrder {
			fields := byLoader[loaderName]
			for _, chunk := range chunkRefs(refs, r.batchSize) {
				out = append(out, task.Template{
					Payload: task.Payload{
						Kind: task.PayloadLoadFields,
						LoadFields: &task.LoadFieldsPayload{
							Refs:   chunk,
							Loader: loaderName,
							Fields: fields,
						},
					},
				})
			}
		}
		return out, nil
	case syncplan.OpLoadCollection:
		out := make([]task.Template, 0, len(refs))
		for _, parent := range refs {
			out = append(out, task.Template{
				Payload: task.Payload{
					Kind: task.PayloadLoadCollection,
					LoadCollection: &task.LoadCollectionPayload{
						Parent: parent,
						Field:  step.Op.Field,
					},
				},
			})
		}
		return out, nil
	}
	return nil, errUnknownPayload.New(maxerrors.Props{"task": "", "kind": string(step.Op.Kind)})
}

func (r *ConnectorRunner) runLoadFields(ctx context.Context, t task.Task) error {
	payload := t.Payload.LoadFields
	if payload == nil {
		return errUnknownPayload.New(maxerrors.Props{"task": string(t.ID), "kind": "load-fields"})
	}
	loader, err := r.resolver.FieldLoader(payload.Loader)
	if err != nil {
		return err
	}
	inputs, err := loader.LoadFields(ctx, r.installation.Context(), payload.Refs, payload.Fields)
	if err != nil {
		return errLoaderFailed.Wrap(err, maxerrors.Props{"loader": string(payload.Loader)})
	}
	for _, input := range inputs {
		stored, err := r.eng.Store(ctx, input)
		if err != nil {
			return err
		}
		if err := r.meta.RecordFieldSync(ctx, stored, payload.Fields, r.now()); err != nil {
			return err
		}
	}
	return nil
}

func (r *ConnectorRunner) runLoadCollection(ctx context.Context, t task.Task) ([]task.Template, error) {
	payload := t.Payload.LoadCollection
	if payload == nil {
		return nil, errUnknownPayload.New(maxerrors.Props{"task": string(t.ID), "kind": "load-collection"})
	}
	loaderName, err := r.resolver.LoaderFor(payload.Parent.Type, payload.Field)
	if err != nil {
		return nil, err
	}
	loader, err := r.resolver.CollectionLoader(loaderName)
	if err != nil {
		return nil, err
	}
	page, err := loader.LoadCollection(ctx, r.installation.Context(), payload.Parent, payload.Field, payload.Cursor)
	if err != nil {
		return nil, errLoaderFailed.Wrap(err, maxerrors.Props{"loader": string(loaderName)})
	}

	members := make([]ref.Ref, 0, len(page.Items))
	for _, item := range page.Items {
		stored, err := r.eng.Store(ctx, item)
		if err != nil {
			return nil, err
		}
		members = append(members, stored)
	}
	// Record membership on the parent even when the page is empty so the
	// parent entity itself is materialised.
	if _, err := r.eng.Store(ctx, engine.EntityInput{
		Ref:    payload.Parent,
		Fields: map[id.FieldName]any{payload.Field: members},
	}); err != nil {
		return nil, err
	}

	if page.HasMore {
		return []task.Template{{
			Payload: task.Payload{
				Kind: task.PayloadLoadCollection,
				LoadCollection: &task.LoadCollectionPayload{
					Parent: payload.Parent,
					Field:  payload.Field,
					Cursor: page.Cursor,
				},
			},
		}}, nil
	}
	return nil, nil
}

func refType(refs []ref.Ref) id.EntityType {
	if len(refs) == 0 {
		return ""
	}
	return refs[0].Type
}

func chunkRefs(refs []ref.Ref, size int) [][]ref.Ref {
	if size <= 0 {
		size = defaultBatchSize
	}
	var out [][]ref.Ref
	for start := 0; start < len(refs); start += size {
		end := start + size
		if end > len(refs) {
			end = len(refs)
		}
		out = append(out, refs[start:end])
	}
	return out
}
