package etl

import "context"

// Source pulls one page of raw records from a supermarket API. The
// returned cursor resumes extraction at the next page; an empty cursor
// signals end-of-data. FetchPage must be resumable from any cursor it
// previously returned. Transient failures are wrapped with Transient.
type Source interface {
	FetchPage(ctx context.Context, cursor string) (records []RawRecord, next string, err error)
}

// Transformer maps a raw record onto the canonical model. It is pure and
// deterministic; a malformed record yields a *ValidationError.
type Transformer interface {
	Transform(raw RawRecord) (CanonicalRecord, error)
}

// Loader delivers a batch of canonical records to the target system.
// Delivery must be an idempotent upsert keyed by source plus identifier:
// re-delivering an already committed record is a no-op. A nil return
// means the whole batch is durably accepted. Errors are classified as
// *TransientError (retry the batch), *RecordError (drop one record,
// retry the rest) or anything else (fatal).
type Loader interface {
	Deliver(ctx context.Context, batch []CanonicalRecord) error
}
