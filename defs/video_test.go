package defs

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
)

func TestRoomName(t *testing.T) {
	c := DefaultCatalog()
	re := map[int]*regexp.Regexp{
		1: regexp.MustCompile(`^movie-[0-9a-z]{8}$`),
		2: regexp.MustCompile(`^basketball-[0-9a-z]{8}$`),
	}
	for id, r := range re {
		v, err := c.Find(id)
		if err != nil {
			t.Fatal(err)
		}
		a, b := NewRoomName(v), NewRoomName(v)
		if !r.MatchString(a) {
			t.Errorf("room name %q", a)
		}
		if a == b {
			t.Errorf("room names repeat: %q", a)
		}
	}
}

func TestFindUnknown(t *testing.T) {
	if _, err := DefaultCatalog().Find(42); !errors.Is(err, ErrUnknownVideo) {
		t.Fatalf("expected ErrUnknownVideo, got %v", err)
	}
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "videos.yaml")
	cont := `videos:
  - id: 7
    title: Sintel
    url: https://example.com/sintel.mp4
  - id: 8
    title: Tears of Steel
    url: https://example.com/tos.mp4
    prefix: tos
`
	if err := os.WriteFile(name, []byte(cont), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadCatalog(name)
	if err != nil {
		t.Fatal(err)
	}
	if len(c) != 2 || c.First().Title != "Sintel" {
		t.Fatalf("unexpected catalog %+v", c)
	}
	if c[0].Prefix != "video" || c[1].Prefix != "tos" {
		t.Errorf("prefixes %q %q", c[0].Prefix, c[1].Prefix)
	}
}

func TestLoadCatalogDuplicate(t *testing.T) {
	name := filepath.Join(t.TempDir(), "videos.yaml")
	cont := "videos:\n  - {id: 1, url: a}\n  - {id: 1, url: b}\n"
	if err := os.WriteFile(name, []byte(cont), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCatalog(name); err == nil {
		t.Fatal("duplicate ids accepted")
	}
}

func TestLoadCatalogNullEntry(t *testing.T) {
	name := filepath.Join(t.TempDir(), "videos.yaml")
	cont := "videos:\n  - {id: 1, url: a}\n  - ~\n"
	if err := os.WriteFile(name, []byte(cont), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCatalog(name); err == nil {
		t.Fatal("null entry accepted")
	}
}

func TestLoadCatalogDefault(t *testing.T) {
	c, err := LoadCatalog("")
	if err != nil || len(c) != 2 {
		t.Fatalf("%v %v", c, err)
	}
}
