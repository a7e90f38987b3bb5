package quality

import (
	"context"
	"errors"
	"testing"

	"github.com/sideline/sideline/internal/testutil"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	t.Cleanup(tdb.Close)
	return NewService(tdb.Conn, testutil.NopLogger())
}

func TestProfileCRUD(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateProfile(ctx, CreateProfileInput{
		Name:            "Fights Only",
		UpgradesAllowed: true,
		Cutoff:          10,
		Items: []QualityItem{
			{Quality: "HDTV-720p", Allowed: true},
			{Name: "WEB 1080p", Qualities: []string{"WEB-DL-1080p", "WEBRip-1080p"}, Allowed: true},
		},
		MinFormatScore: -100,
	})
	if err != nil {
		t.Fatalf("CreateProfile() error = %v", err)
	}
	if created.ID == 0 {
		t.Fatal("CreateProfile() returned zero ID")
	}

	got, err := svc.GetProfile(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if got.Name != "Fights Only" {
		t.Errorf("Name = %q, want Fights Only", got.Name)
	}
	if !got.UpgradesAllowed {
		t.Error("UpgradesAllowed = false, want true")
	}
	if got.MinFormatScore != -100 {
		t.Errorf("MinFormatScore = %d, want -100", got.MinFormatScore)
	}
	if len(got.Items) != 2 {
		t.Fatalf("Items length = %d, want 2", len(got.Items))
	}
	if got.Items[1].Name != "WEB 1080p" || len(got.Items[1].Qualities) != 2 {
		t.Errorf("grouped item round-trip failed: %+v", got.Items[1])
	}

	got.Items[0].Allowed = false
	updated, err := svc.UpdateProfile(ctx, created.ID, CreateProfileInput{
		Name:            "Fights Only v2",
		UpgradesAllowed: false,
		Cutoff:          11,
		Items:           got.Items,
	})
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if updated.Name != "Fights Only v2" {
		t.Errorf("updated Name = %q", updated.Name)
	}
	if updated.UpgradesAllowed {
		t.Error("updated UpgradesAllowed = true, want false")
	}
	if updated.Items[0].Allowed {
		t.Error("updated Items[0].Allowed = true, want false")
	}

	if err := svc.DeleteProfile(ctx, created.ID); err != nil {
		t.Fatalf("DeleteProfile() error = %v", err)
	}
	if _, err := svc.GetProfile(ctx, created.ID); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("GetProfile() after delete error = %v, want ErrProfileNotFound", err)
	}
}

func TestCreateProfileValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input CreateProfileInput
	}{
		{"empty name", CreateProfileInput{Items: []QualityItem{{Quality: "HDTV-720p", Allowed: true}}}},
		{"no items", CreateProfileInput{Name: "Bare"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.CreateProfile(ctx, tt.input); !errors.Is(err, ErrInvalidProfile) {
				t.Errorf("CreateProfile() error = %v, want ErrInvalidProfile", err)
			}
		})
	}
}

func TestUpdateProfileNotFound(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.UpdateProfile(context.Background(), 9999, CreateProfileInput{
		Name:  "Ghost",
		Items: []QualityItem{{Quality: "HDTV-720p", Allowed: true}},
	})
	if !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("UpdateProfile() error = %v, want ErrProfileNotFound", err)
	}
}

func TestEnsureDefaults(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if err := svc.EnsureDefaults(ctx); err != nil {
		t.Fatalf("EnsureDefaults() error = %v", err)
	}

	profiles, err := svc.ListProfiles(ctx)
	if err != nil {
		t.Fatalf("ListProfiles() error = %v", err)
	}
	if len(profiles) != 3 {
		t.Fatalf("ListProfiles() returned %d profiles, want 3", len(profiles))
	}

	names := map[string]bool{}
	for _, p := range profiles {
		names[p.Name] = true
	}
	for _, want := range []string{"Any", "HD-1080p", "Ultra-HD"} {
		if !names[want] {
			t.Errorf("default profile %q missing", want)
		}
	}

	// Second run must not duplicate.
	if err := svc.EnsureDefaults(ctx); err != nil {
		t.Fatalf("EnsureDefaults() second run error = %v", err)
	}
	profiles, _ = svc.ListProfiles(ctx)
	if len(profiles) != 3 {
		t.Errorf("EnsureDefaults() duplicated profiles, got %d", len(profiles))
	}
}

func TestFormatCRUD(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	specs := []Specification{
		{Name: "x265", Type: "release_title", Value: `\bx265\b`, Required: true},
		{Name: "not cam", Type: "release_title", Value: `\bcam\b`, Negate: true, Required: true},
	}
	created, err := svc.CreateFormat(ctx, "Efficient Encode", specs)
	if err != nil {
		t.Fatalf("CreateFormat() error = %v", err)
	}

	got, err := svc.GetFormat(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetFormat() error = %v", err)
	}
	if got.Name != "Efficient Encode" {
		t.Errorf("Name = %q", got.Name)
	}
	if len(got.Specifications) != 2 {
		t.Fatalf("Specifications length = %d, want 2", len(got.Specifications))
	}
	if !got.Specifications[1].Negate {
		t.Error("Negate flag lost in round-trip")
	}

	updated, err := svc.UpdateFormat(ctx, created.ID, "Efficient", specs[:1])
	if err != nil {
		t.Fatalf("UpdateFormat() error = %v", err)
	}
	if updated.Name != "Efficient" || len(updated.Specifications) != 1 {
		t.Errorf("UpdateFormat() = %q with %d specs", updated.Name, len(updated.Specifications))
	}

	if err := svc.DeleteFormat(ctx, created.ID); err != nil {
		t.Fatalf("DeleteFormat() error = %v", err)
	}
	if _, err := svc.GetFormat(ctx, created.ID); !errors.Is(err, ErrFormatNotFound) {
		t.Errorf("GetFormat() after delete error = %v, want ErrFormatNotFound", err)
	}

	if _, err := svc.UpdateFormat(ctx, 9999, "Ghost", nil); !errors.Is(err, ErrFormatNotFound) {
		t.Errorf("UpdateFormat() missing id error = %v, want ErrFormatNotFound", err)
	}
}
