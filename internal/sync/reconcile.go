package sync

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"

	"github.com/xelth-com/arcasync/internal/metrics"
	"github.com/xelth-com/arcasync/internal/prestashop"
)

// Op identifies the operation a failure belongs to
type Op string

const (
	OpCreate   Op = "create"
	OpUpdate   Op = "update"
	OpDelete   Op = "delete"
	OpStock    Op = "stock"
	OpDiscount Op = "discount"
	OpImages   Op = "images"
	OpIndex    Op = "index"
	OpLookup   Op = "lookup"
)

// Failure is one recorded per-item error
type Failure struct {
	Key  string `json:"key"`
	Op   Op     `json:"op"`
	Err  string `json:"error"`
	Body string `json:"body,omitempty"`
}

// Observer receives per-pass events; nil fields are ignored
type Observer struct {
	Job       string
	Log       *log.Logger
	OnFailure func(Failure)
}

// Logger returns the pass logger, the process logger when unset
func (o Observer) Logger() *log.Logger {
	if o.Log != nil {
		return o.Log
	}
	return log.Default()
}

// Result summarizes a pass
type Result struct {
	Kind           string    `json:"kind"`
	Created        int       `json:"created"`
	Updated        int       `json:"updated"`
	Deleted        int       `json:"deleted"`
	Skipped        int       `json:"skipped"`
	Failed         int       `json:"failed"`
	Failures       []Failure `json:"failures,omitempty"`
	Processed      []string  `json:"processed,omitempty"`
	DeletesSkipped bool      `json:"deletesSkipped,omitempty"`
	Cancelled      bool      `json:"cancelled,omitempty"`
	// Counters specific to a job, e.g. customers created by the importer
	Extra map[string]int `json:"extra,omitempty"`

	obs Observer
}

// NewResult starts an empty result reporting to obs
func NewResult(kind string, obs Observer) *Result {
	return &Result{Kind: kind, obs: obs}
}

// Fail records a per-item failure. The remote response body, when any, is
// kept for the log and never returned to HTTP callers.
func (r *Result) Fail(key string, op Op, err error) {
	f := Failure{Key: key, Op: op, Err: err.Error(), Body: prestashop.ResponseBody(err)}
	r.Failed++
	r.Failures = append(r.Failures, f)

	if f.Body != "" {
		r.obs.Logger().Printf("❌ %s %s %s: %v | %s", r.Kind, op, key, err, f.Body)
	} else {
		r.obs.Logger().Printf("❌ %s %s %s: %v", r.Kind, op, key, err)
	}
	metrics.RecordOperation(r.obs.Job, string(op), err)
	if r.obs.OnFailure != nil {
		r.obs.OnFailure(f)
	}
}

// Succeeded counts a successful operation in the metrics
func (r *Result) Succeeded(op Op) {
	metrics.RecordOperation(r.obs.Job, string(op), nil)
}

// Count increments a job specific counter
func (r *Result) Count(name string) {
	if r.Extra == nil {
		r.Extra = map[string]int{}
	}
	r.Extra[name]++
}

// Logger returns the logger of the pass
func (r *Result) Logger() *log.Logger {
	return r.obs.Logger()
}

// Merge adds the counts and failures of other to r
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}
	r.Created += other.Created
	r.Updated += other.Updated
	r.Deleted += other.Deleted
	r.Skipped += other.Skipped
	r.Failed += other.Failed
	r.Failures = append(r.Failures, other.Failures...)
	r.Processed = append(r.Processed, other.Processed...)
	r.DeletesSkipped = r.DeletesSkipped || other.DeletesSkipped
	r.Cancelled = r.Cancelled || other.Cancelled
	for k, v := range other.Extra {
		if r.Extra == nil {
			r.Extra = map[string]int{}
		}
		r.Extra[k] += v
	}
}

// Pass describes one reconciliation of local items against a remote index
type Pass[T any] struct {
	Kind  string
	Items []T
	Key   func(T) string
	Index *Index

	Create func(ctx context.Context, item T) (string, error)
	Update func(ctx context.Context, item T, remote Resource) (string, error)
	Delete func(ctx context.Context, remote Resource) error

	// Unchanged reports that the remote already matches the item; the update is skipped
	Unchanged func(item T, remote Resource) bool
	// AfterUpsert runs after a successful create or update and records its own failures
	AfterUpsert func(ctx context.Context, item T, remoteID string, res *Result)

	// Protected remote ids are never deleted
	Protected map[string]bool
	// KeepDuplicates leaves remote resources sharing an unmatched key in place
	KeepDuplicates bool

	Observer Observer
}

// Reconcile upserts every local item and then deletes the remote resources
// with no local counterpart. A failing item never aborts the pass; deletes
// are skipped when the index is unusable or the pass did not complete.
func Reconcile[T any](ctx context.Context, p Pass[T]) *Result {
	res := NewResult(p.Kind, p.Observer)
	logger := p.Observer.Logger()

	idx := p.Index
	if idx == nil {
		idx = &Index{ByID: map[string]Resource{}, ByKey: map[string]Resource{}}
	}

	unmatched := make(map[string]bool, len(idx.ByKey))
	for key := range idx.ByKey {
		unmatched[key] = true
	}
	created := make(map[string]string)

	logger.Printf("📦 Reconciling %d %s against %d remote", len(p.Items), p.Kind, len(idx.ByID))

	for _, item := range p.Items {
		if ctx.Err() != nil {
			res.Cancelled = true
			logger.Printf("⚠️  %s pass cancelled: %v", p.Kind, ctx.Err())
			break
		}

		key := p.Key(item)
		if key == "" {
			res.Skipped++
			continue
		}
		delete(unmatched, key)

		remote, exists := idx.ByKey[key]
		if !exists {
			if id, ok := created[key]; ok {
				remote, exists = Resource{ID: id, Key: key}, true
			}
		}

		var (
			remoteID string
			op       Op
		)
		err := Safely(func() error {
			var err error
			switch {
			case exists && p.Unchanged != nil && p.Unchanged(item, remote):
				remoteID, op = remote.ID, ""
			case exists:
				op = OpUpdate
				remoteID, err = p.Update(ctx, item, remote)
				if remoteID == "" {
					remoteID = remote.ID
				}
			default:
				op = OpCreate
				remoteID, err = p.Create(ctx, item)
			}
			return err
		})
		if err != nil {
			if op == "" {
				op = OpUpdate
			}
			res.Fail(key, op, err)
			continue
		}

		switch op {
		case OpCreate:
			res.Created++
			created[key] = remoteID
		case OpUpdate:
			res.Updated++
		default:
			res.Skipped++
		}
		if op != "" {
			res.Succeeded(op)
		}
		res.Processed = append(res.Processed, key)

		if p.AfterUpsert != nil && remoteID != "" {
			if err := Safely(func() error {
				p.AfterUpsert(ctx, item, remoteID, res)
				return nil
			}); err != nil {
				failOp := op
				if failOp == "" {
					failOp = OpUpdate
				}
				res.Fail(key, failOp, err)
			}
		}
	}

	switch {
	case idx.Err != nil:
		res.DeletesSkipped = true
		logger.Printf("⚠️  Skipping %s deletes, remote index unavailable: %v", p.Kind, idx.Err)
	case res.Cancelled:
		res.DeletesSkipped = true
	case p.Delete == nil:
	default:
		var doomed []Resource
		for _, r := range idx.Resources {
			if first, ok := idx.ByKey[r.Key]; ok && first.ID == r.ID && unmatched[r.Key] {
				doomed = append(doomed, r)
			}
		}
		if !p.KeepDuplicates {
			// a duplicate goes only with its key; a matched key keeps every copy
			for _, dup := range idx.Duplicates {
				if unmatched[dup.Key] {
					doomed = append(doomed, dup)
				}
			}
		}
		for _, r := range doomed {
			if p.Protected[r.ID] {
				continue
			}
			if ctx.Err() != nil {
				res.Cancelled = true
				break
			}
			if err := Safely(func() error { return p.Delete(ctx, r) }); err != nil {
				res.Fail(r.Key, OpDelete, fmt.Errorf("id %s: %w", r.ID, err))
				continue
			}
			res.Deleted++
			res.Succeeded(OpDelete)
		}
	}

	logger.Printf("✅ %s: created %d, updated %d, deleted %d, skipped %d, failed %d",
		p.Kind, res.Created, res.Updated, res.Deleted, res.Skipped, res.Failed)
	return res
}

// ForEach runs fn for every item with the same per-item isolation as
// Reconcile. Errors are recorded under op.
func ForEach[T any](ctx context.Context, kind string, op Op, items []T, key func(T) string, obs Observer, fn func(ctx context.Context, item T) error) *Result {
	res := NewResult(kind, obs)
	for _, item := range items {
		if ctx.Err() != nil {
			res.Cancelled = true
			break
		}
		k := key(item)
		if err := Safely(func() error { return fn(ctx, item) }); err != nil {
			res.Fail(k, op, err)
			continue
		}
		res.Updated++
		res.Succeeded(op)
		res.Processed = append(res.Processed, k)
	}
	obs.Logger().Printf("✅ %s: updated %d, failed %d", kind, res.Updated, res.Failed)
	return res
}

// Safely turns a panic into an error so one item cannot take down a pass
func Safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ PANIC: %v\n%s", r, debug.Stack())
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
