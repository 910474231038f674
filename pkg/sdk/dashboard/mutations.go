package dashboard

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/ShakedSchnarch/spearhead/pkg/sdk"
	"github.com/ShakedSchnarch/spearhead/pkg/sdk/ingest"
	"github.com/ShakedSchnarch/spearhead/pkg/sdk/query"
	"github.com/ShakedSchnarch/spearhead/pkg/sdk/syncer"
)

// EnsureSynced runs the automatic sync for the current session once.
func (d *Dashboard) EnsureSynced(ctx context.Context) (bool, error) {
	return d.sync.EnsureSynced(ctx, d.store.State())
}

// StartAutoSync syncs automatically on every new session identity until
// the returned func is called.
func (d *Dashboard) StartAutoSync(ctx context.Context) func() {
	return d.sync.Watch(ctx, d.store)
}

// Sync runs a user-initiated sync. An empty target means the default
// target of the current session.
func (d *Dashboard) Sync(ctx context.Context, target string) (sdk.SyncResult, error) {
	return d.sync.Sync(ctx, d.store.State(), target)
}

// Export opens the spreadsheet export of the current week. Platoon exports
// use the selected platoon. The caller must close the stream.
func (d *Dashboard) Export(ctx context.Context, kind sdk.ExportKind) (*sdk.ExportStream, error) {
	st := d.store.State()
	input := sdk.ExportInput{Kind: kind, Week: st.Week}
	if kind == sdk.ExportPlatoon {
		if st.Platoon == "" {
			return nil, ErrPlatoonRequired
		}
		input.Platoon = st.Platoon
	}

	stream, err := d.client.Export(ctx, input)
	d.report("Export", err)
	return stream, err
}

// Import uploads a file for kind. On success the queries that depend on
// imported data are marked stale; on failure cached data is left as is.
func (d *Dashboard) Import(ctx context.Context, kind, filename string, content io.Reader) (*sdk.ImportResult, error) {
	result, err := d.client.Import(ctx, kind, filename, content)
	if err != nil {
		d.report("Upload", err)
		return nil, err
	}
	d.cache.Invalidate(query.Match(d.Scope(), syncer.InvalidatedResources...))
	return result, nil
}

// IngestManual validates hand-edited input against the schema of kind and
// uploads it. Malformed input returns *ingest.ValidationError and is not sent.
func (d *Dashboard) IngestManual(ctx context.Context, kind ingest.Kind, raw []byte) (*sdk.ImportResult, error) {
	if _, err := d.validator.Validate(kind, raw); err != nil {
		if _, ok := ingest.AsValidationError(err); ok {
			return nil, err
		}
		return nil, fmt.Errorf("manual %s ingestion: %w", kind, err)
	}
	return d.Import(ctx, string(kind), string(kind)+".json", bytes.NewReader(raw))
}
