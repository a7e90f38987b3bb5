package rootfolder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sideline/sideline/internal/testutil"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	t.Cleanup(tdb.Close)
	return NewService(tdb.Conn, testutil.NopLogger())
}

func TestCreateRootFolder(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	dir := t.TempDir()

	folder, err := svc.Create(ctx, CreateRootFolderInput{Path: dir, Name: "Sports"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if folder.Name != "Sports" {
		t.Errorf("Name = %q, want Sports", folder.Name)
	}
	if folder.Path != dir {
		t.Errorf("Path = %q, want %q", folder.Path, dir)
	}
	if !folder.Accessible {
		t.Error("Accessible = false for existing directory")
	}
}

func TestCreateRootFolderDefaultsName(t *testing.T) {
	svc := newTestService(t)
	dir := t.TempDir()

	folder, err := svc.Create(context.Background(), CreateRootFolderInput{Path: dir})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if folder.Name != filepath.Base(dir) {
		t.Errorf("Name = %q, want %q", folder.Name, filepath.Base(dir))
	}
}

func TestCreateRootFolderValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	dir := t.TempDir()

	file := filepath.Join(dir, "not-a-dir.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Create(ctx, CreateRootFolderInput{Path: filepath.Join(dir, "missing")}); !errors.Is(err, ErrPathNotFound) {
		t.Errorf("missing path error = %v, want ErrPathNotFound", err)
	}
	if _, err := svc.Create(ctx, CreateRootFolderInput{Path: file}); !errors.Is(err, ErrPathNotDirectory) {
		t.Errorf("file path error = %v, want ErrPathNotDirectory", err)
	}

	if _, err := svc.Create(ctx, CreateRootFolderInput{Path: dir}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := svc.Create(ctx, CreateRootFolderInput{Path: dir}); !errors.Is(err, ErrPathAlreadyExists) {
		t.Errorf("duplicate path error = %v, want ErrPathAlreadyExists", err)
	}
}

func TestRootFolderAccessibility(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	parent := t.TempDir()
	dir := filepath.Join(parent, "library")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	folder, err := svc.Create(ctx, CreateRootFolderInput{Path: dir})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Remove the directory behind the stored folder; listing should
	// report it inaccessible rather than fail.
	if err := os.Remove(dir); err != nil {
		t.Fatal(err)
	}

	folders, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(folders) != 1 {
		t.Fatalf("List() returned %d folders, want 1", len(folders))
	}
	if folders[0].Accessible {
		t.Error("Accessible = true for removed directory")
	}

	got, err := svc.Get(ctx, folder.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Accessible {
		t.Error("Get() Accessible = true for removed directory")
	}
}

func TestDeleteRootFolder(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	folder, err := svc.Create(ctx, CreateRootFolderInput{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := svc.Delete(ctx, folder.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := svc.Get(ctx, folder.ID); !errors.Is(err, ErrRootFolderNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrRootFolderNotFound", err)
	}
	if err := svc.Delete(ctx, folder.ID); !errors.Is(err, ErrRootFolderNotFound) {
		t.Errorf("Delete() missing id error = %v, want ErrRootFolderNotFound", err)
	}
}

func TestRemotePathMappings(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	mapping, err := svc.CreateMapping(ctx, CreateMappingInput{
		Host:       "seedbox.example",
		RemotePath: "/downloads/complete",
		LocalPath:  "/mnt/seedbox/complete",
	})
	if err != nil {
		t.Fatalf("CreateMapping() error = %v", err)
	}

	mappings, err := svc.ListMappings(ctx)
	if err != nil {
		t.Fatalf("ListMappings() error = %v", err)
	}
	if len(mappings) != 1 {
		t.Fatalf("ListMappings() returned %d, want 1", len(mappings))
	}
	if mappings[0].Host != "seedbox.example" {
		t.Errorf("Host = %q", mappings[0].Host)
	}

	if err := svc.DeleteMapping(ctx, mapping.ID); err != nil {
		t.Fatalf("DeleteMapping() error = %v", err)
	}
	if err := svc.DeleteMapping(ctx, mapping.ID); !errors.Is(err, ErrMappingNotFound) {
		t.Errorf("DeleteMapping() missing id error = %v, want ErrMappingNotFound", err)
	}
}

func TestCreateMappingValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input CreateMappingInput
	}{
		{"missing host", CreateMappingInput{RemotePath: "/r", LocalPath: "/l"}},
		{"missing remote", CreateMappingInput{Host: "h", LocalPath: "/l"}},
		{"missing local", CreateMappingInput{Host: "h", RemotePath: "/r"}},
		{"blank host", CreateMappingInput{Host: "   ", RemotePath: "/r", LocalPath: "/l"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.CreateMapping(ctx, tt.input); !errors.Is(err, ErrInvalidMapping) {
				t.Errorf("CreateMapping() error = %v, want ErrInvalidMapping", err)
			}
		})
	}
}
