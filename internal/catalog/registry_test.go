package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestNewRegistry(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "naxx.json", `{
		"id": 533,
		"name": "Naxxramas",
		"shortname": "naxx",
		"items": [{"id": 22798, "name": "Might of Menethil", "quality": 4}],
		"bosses": [{"id": 15990, "name": "Kel'Thuzad"}],
		"npcs": [{"id": 15990, "name": "Kel'Thuzad", "boss_id": 15990}]
	}`)
	writeFile(t, dir, "aq40.yaml", `
id: 531
name: Temple of Ahn'Qiraj
shortname: aq40
items:
  - id: 21839
    name: Scepter of the False Prophet
    quality: 4
`)
	writeFile(t, dir, "notes.txt", "ignored")

	r, err := NewRegistry(dir)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	if r.Len() != 2 {
		t.Fatalf("Len = %d, want 2", r.Len())
	}

	// Ordered by id regardless of file name order.
	list := r.List()
	if list[0].ID != 531 || list[1].ID != 533 {
		t.Errorf("List order = [%d %d], want [531 533]", list[0].ID, list[1].ID)
	}

	naxx, ok := r.ByID(533)
	if !ok {
		t.Fatal("ByID(533) not found")
	}
	if naxx.Shortname != "naxx" || len(naxx.Items) != 1 || naxx.Items[0].ID != 22798 {
		t.Errorf("naxx = %+v", naxx)
	}

	aq, ok := r.ByID(531)
	if !ok {
		t.Fatal("ByID(531) not found")
	}
	if aq.Items[0].Name != "Scepter of the False Prophet" {
		t.Errorf("aq item = %+v", aq.Items[0])
	}

	if _, ok := r.ByID(999); ok {
		t.Error("ByID(999) returned an instance")
	}
}

func TestNewRegistry_MissingDir(t *testing.T) {
	if _, err := NewRegistry(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("missing directory accepted")
	}
}

func TestNewRegistry_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.json", `{"id": "not a number"`)

	if _, err := NewRegistry(dir); err == nil {
		t.Fatal("malformed instance file accepted")
	}
}
