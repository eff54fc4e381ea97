package blob

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func storesUnderTest(t *testing.T) map[string]Store {
	t.Helper()
	fsStore, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	s3Store, _ := newMockS3(t, "")
	return map[string]Store{
		"fs":     fsStore,
		"memory": NewMemory(),
		"s3":     s3Store,
	}
}

func readAll(t *testing.T, s Store, key string) string {
	t.Helper()
	_, rc, err := s.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get(%s): %v", key, err)
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestStoreContract(t *testing.T) {
	t.Parallel()
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			info, err := store.Put(ctx, "sweep/mandelbrotArea_Pure.txt", strings.NewReader("6400 50 1.587500\n"), PutOptions{ContentType: "text/plain"})
			if err != nil {
				t.Fatalf("Put: %v", err)
			}
			if info.Key != "sweep/mandelbrotArea_Pure.txt" || info.Size != 17 {
				t.Errorf("unexpected info %+v", info)
			}

			// Put replaces existing content.
			if _, err := store.Put(ctx, "sweep/mandelbrotArea_Pure.txt", strings.NewReader("a\nb\n"), PutOptions{}); err != nil {
				t.Fatalf("overwrite: %v", err)
			}
			if got := readAll(t, store, "sweep/mandelbrotArea_Pure.txt"); got != "a\nb\n" {
				t.Errorf("content after overwrite = %q", got)
			}
			if _, err := store.Put(ctx, "sweep/mandelbrotArea_LHS.txt", strings.NewReader("c\n"), PutOptions{}); err != nil {
				t.Fatal(err)
			}
			if _, err := store.Put(ctx, "trueArea.txt", strings.NewReader("t\n"), PutOptions{}); err != nil {
				t.Fatal(err)
			}

			head, err := store.Head(ctx, "sweep/mandelbrotArea_LHS.txt")
			if err != nil || head.Size != 2 {
				t.Errorf("Head = %+v, %v", head, err)
			}

			list, err := store.List(ctx, "sweep/")
			if err != nil {
				t.Fatal(err)
			}
			if len(list) != 2 || list[0].Key != "sweep/mandelbrotArea_LHS.txt" || list[1].Key != "sweep/mandelbrotArea_Pure.txt" {
				t.Errorf("List(sweep/) = %+v", list)
			}

			if _, _, err := store.Get(ctx, "missing.txt"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
			}
			if _, err := store.Head(ctx, "missing.txt"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Head(missing) error = %v, want ErrNotFound", err)
			}

			ok, err := store.Delete(ctx, "trueArea.txt")
			if err != nil || !ok {
				t.Errorf("Delete = %v, %v", ok, err)
			}
			ok, err = store.Delete(ctx, "trueArea.txt")
			if err != nil || ok {
				t.Errorf("second Delete = %v, %v; want false, nil", ok, err)
			}
		})
	}
}

func TestFilesystemRejectsEscapingKeys(t *testing.T) {
	t.Parallel()
	store, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"", "  ", "../x", "/etc/passwd", "a/../../b", "data.meta"} {
		if _, err := store.Put(context.Background(), key, strings.NewReader("x"), PutOptions{}); err == nil {
			t.Errorf("Put(%q) should fail", key)
		}
	}
}

func TestFilesystemReadsForeignFiles(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	store, err := NewFilesystem(root)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "trueArea.txt"), []byte("True Area of the Mandelbrot set samples is 1.506600\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if got := readAll(t, store, "trueArea.txt"); !strings.HasSuffix(got, "1.506600\n") {
		t.Errorf("content = %q", got)
	}
	list, err := store.List(context.Background(), "")
	if err != nil || len(list) != 1 {
		t.Errorf("List = %+v, %v", list, err)
	}
}

func TestOpen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, err := Open(ctx, Config{Driver: DriverMemory})
	if err != nil || s.Driver() != DriverMemory {
		t.Errorf("memory: %v %v", s, err)
	}
	s, err = Open(ctx, Config{Root: t.TempDir()})
	if err != nil || s.Driver() != DriverFilesystem {
		t.Errorf("default: %v %v", s, err)
	}
	if _, err := Open(ctx, Config{Driver: "tape"}); err == nil {
		t.Error("expected an error for an unknown driver")
	}
	if _, err := Open(ctx, Config{Driver: DriverS3}); err == nil {
		t.Error("expected an error for s3 without a bucket")
	}
}
