package branding

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/nextmovecargo/branding/internal/services"
	"github.com/nextmovecargo/branding/internal/testutil"
	"github.com/nextmovecargo/branding/pkg/plugin"
)

type recordingBus struct {
	mu     sync.Mutex
	events []plugin.Event
}

func (b *recordingBus) Publish(_ context.Context, e plugin.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
	return nil
}

func (b *recordingBus) topics() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.events))
	for i, e := range b.events {
		out[i] = e.Topic
	}
	return out
}

// faultyRepo wraps a working repository and injects errors.
type faultyRepo struct {
	services.SettingsRepository
	getErr    error
	setErr    error
	deleteErr error
}

func (r *faultyRepo) Get(ctx context.Context, key string) (*services.Setting, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	return r.SettingsRepository.Get(ctx, key)
}

func (r *faultyRepo) Set(ctx context.Context, key, value string) (*services.Setting, error) {
	if r.setErr != nil {
		return nil, r.setErr
	}
	return r.SettingsRepository.Set(ctx, key, value)
}

func (r *faultyRepo) Delete(ctx context.Context, key string) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	return r.SettingsRepository.Delete(ctx, key)
}

func newTestService(t *testing.T, repo services.SettingsRepository) (*Service, *recordingBus) {
	t.Helper()
	bus := &recordingBus{}
	svc, err := NewService(repo, bus, zap.NewNop())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, bus
}

func storedDoc(t *testing.T, repo services.SettingsRepository) Document {
	t.Helper()
	row, err := repo.Get(context.Background(), SettingsKey)
	if err != nil {
		t.Fatalf("repo.Get: %v", err)
	}
	doc, err := ParseDocument([]byte(row.Value))
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	return doc
}

func TestGetSettings_no_row_returns_defaults(t *testing.T) {
	svc, _ := newTestService(t, services.NewMemorySettingsRepository())

	snap := svc.Load(context.Background())
	if snap.Source != SourceDefault {
		t.Errorf("Source = %q, want %q", snap.Source, SourceDefault)
	}
	if snap.Revision != 0 {
		t.Errorf("Revision = %d, want 0", snap.Revision)
	}
	if diff := cmp.Diff(Defaults(), snap.Doc); diff != "" {
		t.Errorf("doc mismatch (-want +got):\n%s", diff)
	}
}

func TestGetSettings_read_error_falls_back(t *testing.T) {
	repo := &faultyRepo{
		SettingsRepository: services.NewMemorySettingsRepository(),
		getErr:             errors.New("connection refused"),
	}
	svc, _ := newTestService(t, repo)

	snap := svc.Load(context.Background())
	if snap.Source != SourceFallback {
		t.Errorf("Source = %q, want %q", snap.Source, SourceFallback)
	}
	if diff := cmp.Diff(Defaults(), snap.Doc); diff != "" {
		t.Errorf("doc mismatch (-want +got):\n%s", diff)
	}
}

func TestGetSettings_corrupt_row_falls_back(t *testing.T) {
	repo := services.NewMemorySettingsRepository()
	if _, err := repo.Set(context.Background(), SettingsKey, `["not","an","object"]`); err != nil {
		t.Fatalf("Set: %v", err)
	}
	svc, _ := newTestService(t, repo)

	snap := svc.Load(context.Background())
	if snap.Source != SourceFallback {
		t.Errorf("Source = %q, want %q", snap.Source, SourceFallback)
	}
	if snap.Revision != 1 {
		t.Errorf("Revision = %d, want 1 so a conditional write can repair the row", snap.Revision)
	}
	if diff := cmp.Diff(Defaults(), snap.Doc); diff != "" {
		t.Errorf("doc mismatch (-want +got):\n%s", diff)
	}
}

func TestGetSettings_null_row_value(t *testing.T) {
	repo := services.NewMemorySettingsRepository()
	if _, err := repo.Set(context.Background(), SettingsKey, `null`); err != nil {
		t.Fatalf("Set: %v", err)
	}
	svc, _ := newTestService(t, repo)

	snap := svc.Load(context.Background())
	if snap.Source != SourceStored {
		t.Errorf("Source = %q, want %q", snap.Source, SourceStored)
	}
	if diff := cmp.Diff(Defaults(), snap.Doc); diff != "" {
		t.Errorf("doc mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdate_partial_patch_writes_full_document(t *testing.T) {
	repo := services.NewMemorySettingsRepository()
	svc, bus := newTestService(t, repo)
	ctx := context.Background()

	snap, err := svc.Update(ctx, Document{"platform_name": "Acme"}, WriteOptions{Actor: "admin@acme"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	want := Defaults()
	want["platform_name"] = "Acme"
	if diff := cmp.Diff(want, storedDoc(t, repo)); diff != "" {
		t.Errorf("stored doc mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, snap.Doc); diff != "" {
		t.Errorf("returned doc mismatch (-want +got):\n%s", diff)
	}
	if snap.Revision != 1 || snap.UpdatedAt.IsZero() {
		t.Errorf("snapshot revision=%d updated=%v, want revision 1 and a timestamp", snap.Revision, snap.UpdatedAt)
	}
	if diff := cmp.Diff([]string{TopicUpdated}, bus.topics()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	ev := bus.events[0].Payload.(ChangeEvent)
	if ev.Actor != "admin@acme" || ev.Revision != 1 {
		t.Errorf("event payload = %+v", ev)
	}
}

func TestUpdate_round_trip(t *testing.T) {
	svc, _ := newTestService(t, services.NewMemorySettingsRepository())
	ctx := context.Background()

	if _, err := svc.Update(ctx, Document{"tagline": "first"}, WriteOptions{}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	previous := svc.GetSettings(ctx)

	hero := Defaults().Section("hero")
	hero["title"] = "Second"
	patch := Document{"primary_color": "#000000", "hero": hero}
	if _, err := svc.Update(ctx, patch, WriteOptions{}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got := svc.GetSettings(ctx)
	want := previous.Clone()
	for k, v := range patch {
		want[k] = v
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	if got["tagline"] != "first" {
		t.Errorf("tagline = %v, earlier update lost", got["tagline"])
	}
}

func TestUpdate_write_error_propagates(t *testing.T) {
	boom := errors.New("disk full")
	repo := &faultyRepo{SettingsRepository: services.NewMemorySettingsRepository(), setErr: boom}
	svc, bus := newTestService(t, repo)

	_, err := svc.Update(context.Background(), Document{"tagline": "x"}, WriteOptions{})
	if !errors.Is(err, boom) {
		t.Fatalf("Update error = %v, want wrapped %v", err, boom)
	}
	if len(bus.topics()) != 0 {
		t.Errorf("events published on failed write: %v", bus.topics())
	}
}

func TestUpdate_rejects_invalid_patch(t *testing.T) {
	repo := services.NewMemorySettingsRepository()
	svc, _ := newTestService(t, repo)

	_, err := svc.Update(context.Background(), Document{"hero": "not an object"}, WriteOptions{})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Update error = %v, want *ValidationError", err)
	}
	if _, err := repo.Get(context.Background(), SettingsKey); !errors.Is(err, services.ErrNotFound) {
		t.Errorf("invalid patch was persisted: %v", err)
	}
}

func TestUpdate_if_revision(t *testing.T) {
	svc, _ := newTestService(t, services.NewMemorySettingsRepository())
	ctx := context.Background()
	rev := func(n int64) *int64 { return &n }

	first, err := svc.Update(ctx, Document{"tagline": "a"}, WriteOptions{IfRevision: rev(0)})
	if err != nil {
		t.Fatalf("Update(if 0): %v", err)
	}

	_, err = svc.Update(ctx, Document{"tagline": "stale"}, WriteOptions{IfRevision: rev(0)})
	if !errors.Is(err, ErrRevisionConflict) {
		t.Fatalf("stale Update error = %v, want ErrRevisionConflict", err)
	}

	second, err := svc.Update(ctx, Document{"tagline": "b"}, WriteOptions{IfRevision: rev(first.Revision)})
	if err != nil {
		t.Fatalf("Update(if %d): %v", first.Revision, err)
	}
	if second.Revision != first.Revision+1 {
		t.Errorf("Revision = %d, want %d", second.Revision, first.Revision+1)
	}
	if got := svc.GetSettings(ctx)["tagline"]; got != "b" {
		t.Errorf("tagline = %v, want b", got)
	}
}

func TestUpdate_revision_from_before_reset_conflicts(t *testing.T) {
	repo, err := services.NewSQLiteSettingsRepository(context.Background(), testutil.NewStore(t))
	if err != nil {
		t.Fatalf("NewSQLiteSettingsRepository: %v", err)
	}
	svc, _ := newTestService(t, repo)
	ctx := context.Background()
	rev := func(n int64) *int64 { return &n }

	before, err := svc.Update(ctx, Document{"tagline": "before"}, WriteOptions{})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := svc.Reset(ctx, "admin"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	after, err := svc.Update(ctx, Document{"tagline": "after"}, WriteOptions{})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if after.Revision <= before.Revision {
		t.Fatalf("revision after reset = %d, want > %d", after.Revision, before.Revision)
	}

	_, err = svc.Update(ctx, Document{"tagline": "stale"}, WriteOptions{IfRevision: rev(before.Revision)})
	if !errors.Is(err, ErrRevisionConflict) {
		t.Fatalf("Update(if %d) error = %v, want ErrRevisionConflict", before.Revision, err)
	}
	if got := svc.GetSettings(ctx)["tagline"]; got != "after" {
		t.Errorf("tagline = %v, want after", got)
	}
}

func TestUpdate_last_write_wins_without_revision(t *testing.T) {
	svc, _ := newTestService(t, services.NewMemorySettingsRepository())
	ctx := context.Background()

	if _, err := svc.Update(ctx, Document{"tagline": "a"}, WriteOptions{}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := svc.Update(ctx, Document{"tagline": "b"}, WriteOptions{}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := svc.GetSettings(ctx)["tagline"]; got != "b" {
		t.Errorf("tagline = %v, want b", got)
	}
}

func TestUpdatePath_keeps_siblings(t *testing.T) {
	repo, err := services.NewSQLiteSettingsRepository(context.Background(), testutil.NewStore(t))
	if err != nil {
		t.Fatalf("NewSQLiteSettingsRepository: %v", err)
	}
	svc, _ := newTestService(t, repo)
	ctx := context.Background()

	if _, err := svc.UpdatePath(ctx, "pages.about.title", "Custom Title", WriteOptions{}); err != nil {
		t.Fatalf("UpdatePath: %v", err)
	}

	got := svc.GetSettings(ctx)
	title, _ := GetPath(got, "pages.about.title")
	subtitle, _ := GetPath(got, "pages.about.subtitle")
	wantSubtitle, _ := GetPath(Defaults(), "pages.about.subtitle")
	if title != "Custom Title" {
		t.Errorf("pages.about.title = %v", title)
	}
	if subtitle != wantSubtitle {
		t.Errorf("pages.about.subtitle = %v, want %v", subtitle, wantSubtitle)
	}
	if diff := cmp.Diff(Defaults().Section("pages")["contact"], got.Section("pages")["contact"]); diff != "" {
		t.Errorf("pages.contact changed (-want +got):\n%s", diff)
	}
}

func TestUpdatePath_invalid_path(t *testing.T) {
	svc, _ := newTestService(t, services.NewMemorySettingsRepository())
	_, err := svc.UpdatePath(context.Background(), "pages..title", "x", WriteOptions{})
	if !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("UpdatePath error = %v, want ErrInvalidPath", err)
	}
}

func TestUpdatePath_rejects_object_leaf_in_section(t *testing.T) {
	svc, _ := newTestService(t, services.NewMemorySettingsRepository())
	_, err := svc.UpdatePath(context.Background(), "hero.title.deep", "x", WriteOptions{})
	if !errors.Is(err, ErrSchemaValidation) {
		t.Fatalf("UpdatePath error = %v, want ErrSchemaValidation", err)
	}
}

func TestReset(t *testing.T) {
	repo := services.NewMemorySettingsRepository()
	svc, bus := newTestService(t, repo)
	ctx := context.Background()

	if _, err := svc.Update(ctx, Document{"primary_color": "#ff0000"}, WriteOptions{}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	doc, err := svc.Reset(ctx, "admin")
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if diff := cmp.Diff(Defaults(), doc); diff != "" {
		t.Errorf("Reset result mismatch (-want +got):\n%s", diff)
	}
	if _, err := repo.Get(ctx, SettingsKey); !errors.Is(err, services.ErrNotFound) {
		t.Errorf("row still present after reset: %v", err)
	}
	snap := svc.Load(ctx)
	if snap.Source != SourceDefault {
		t.Errorf("Source after reset = %q, want %q", snap.Source, SourceDefault)
	}
	if diff := cmp.Diff(Defaults(), snap.Doc); diff != "" {
		t.Errorf("GetSettings after reset mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{TopicUpdated, TopicReset}, bus.topics()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestReset_without_row(t *testing.T) {
	svc, _ := newTestService(t, services.NewMemorySettingsRepository())
	if _, err := svc.Reset(context.Background(), ""); err != nil {
		t.Fatalf("Reset on empty store: %v", err)
	}
}

func TestReset_delete_error_propagates(t *testing.T) {
	boom := errors.New("permission denied")
	repo := &faultyRepo{SettingsRepository: services.NewMemorySettingsRepository(), deleteErr: boom}
	svc, _ := newTestService(t, repo)

	if _, err := svc.Reset(context.Background(), ""); !errors.Is(err, boom) {
		t.Fatalf("Reset error = %v, want wrapped %v", err, boom)
	}
}
