package services

import (
	"context"
	"errors"
	"testing"
)

// runRepositoryContract exercises the behaviour every SettingsRepository
// backend must share.
func runRepositoryContract(t *testing.T, newRepo func(t *testing.T) SettingsRepository) {
	t.Helper()

	t.Run("get missing returns ErrNotFound", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Get(context.Background(), "branding")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("Get() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("set then get", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		got, err := repo.Set(ctx, "branding", `{"platform_name":"Acme"}`)
		if err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		if got.Revision != 1 {
			t.Errorf("Revision = %d, want 1", got.Revision)
		}
		if got.UpdatedAt.IsZero() {
			t.Error("UpdatedAt is zero")
		}

		read, err := repo.Get(ctx, "branding")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		assertJSONEqual(t, read.Value, `{"platform_name":"Acme"}`)
		if read.Revision != 1 {
			t.Errorf("Revision = %d, want 1", read.Revision)
		}
	})

	t.Run("set replaces value and bumps revision", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		if _, err := repo.Set(ctx, "branding", `{"a":1}`); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		got, err := repo.Set(ctx, "branding", `{"b":2}`)
		if err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		if got.Revision != 2 {
			t.Errorf("Revision = %d, want 2", got.Revision)
		}

		read, err := repo.Get(ctx, "branding")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		assertJSONEqual(t, read.Value, `{"b":2}`)
	})

	t.Run("keys are independent", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		if _, err := repo.Set(ctx, "branding", `{}`); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		if _, err := repo.Get(ctx, "other"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Get(other) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("set if revision", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		first, err := repo.SetIfRevision(ctx, "branding", `{"v":1}`, 0)
		if err != nil {
			t.Fatalf("SetIfRevision(0) error = %v", err)
		}
		if first.Revision != 1 {
			t.Errorf("Revision = %d, want 1", first.Revision)
		}

		if _, err := repo.SetIfRevision(ctx, "branding", `{"v":2}`, 0); !errors.Is(err, ErrRevisionMismatch) {
			t.Fatalf("SetIfRevision(0) on existing row error = %v, want ErrRevisionMismatch", err)
		}
		if _, err := repo.SetIfRevision(ctx, "branding", `{"v":2}`, 7); !errors.Is(err, ErrRevisionMismatch) {
			t.Fatalf("SetIfRevision(7) error = %v, want ErrRevisionMismatch", err)
		}

		second, err := repo.SetIfRevision(ctx, "branding", `{"v":2}`, 1)
		if err != nil {
			t.Fatalf("SetIfRevision(1) error = %v", err)
		}
		if second.Revision != 2 {
			t.Errorf("Revision = %d, want 2", second.Revision)
		}

		read, err := repo.Get(ctx, "branding")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		assertJSONEqual(t, read.Value, `{"v":2}`)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		if _, err := repo.Set(ctx, "branding", `{}`); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		if err := repo.Delete(ctx, "branding"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if err := repo.Delete(ctx, "branding"); err != nil {
			t.Fatalf("second Delete() error = %v", err)
		}
		if _, err := repo.Get(ctx, "branding"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Get() after delete error = %v, want ErrNotFound", err)
		}
	})

	t.Run("revision keeps increasing across delete", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		var before *Setting
		for range 3 {
			var err error
			if before, err = repo.Set(ctx, "branding", `{}`); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
		}
		if err := repo.Delete(ctx, "branding"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if _, err := repo.Get(ctx, "branding"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Get() after delete error = %v, want ErrNotFound", err)
		}

		got, err := repo.Set(ctx, "branding", `{"v":"new"}`)
		if err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		if got.Revision <= before.Revision {
			t.Errorf("Revision after delete = %d, want > %d", got.Revision, before.Revision)
		}
		read, err := repo.Get(ctx, "branding")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if read.Revision != got.Revision {
			t.Errorf("Get() revision = %d, want %d", read.Revision, got.Revision)
		}
	})

	t.Run("stale revision from before delete is rejected", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		stale, err := repo.SetIfRevision(ctx, "branding", `{"v":1}`, 0)
		if err != nil {
			t.Fatalf("SetIfRevision(0) error = %v", err)
		}
		if err := repo.Delete(ctx, "branding"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		fresh, err := repo.SetIfRevision(ctx, "branding", `{"v":2}`, 0)
		if err != nil {
			t.Fatalf("SetIfRevision(0) after delete error = %v", err)
		}
		if fresh.Revision <= stale.Revision {
			t.Fatalf("Revision = %d, want > %d", fresh.Revision, stale.Revision)
		}

		if _, err := repo.SetIfRevision(ctx, "branding", `{"v":3}`, stale.Revision); !errors.Is(err, ErrRevisionMismatch) {
			t.Fatalf("SetIfRevision(%d) error = %v, want ErrRevisionMismatch", stale.Revision, err)
		}
		read, err := repo.Get(ctx, "branding")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		assertJSONEqual(t, read.Value, `{"v":2}`)
	})
}
