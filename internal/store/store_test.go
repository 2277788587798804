package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/hasta/internal/detector"
	"github.com/ayusman/hasta/internal/palmprint"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func testTemplate(t *testing.T) *palmprint.Template {
	t.Helper()
	template, err := palmprint.Build(detector.OpenPalmLandmarks())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return template
}

func TestRegister_AndLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	template := testTemplate(t)

	reg, err := s.Register("555-1111", template)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if reg.Identity != "555-1111" {
		t.Errorf("identity = %q, want %q", reg.Identity, "555-1111")
	}
	if reg.Signature != template.Signature {
		t.Errorf("signature = %q, want %q", reg.Signature, template.Signature)
	}
	if !reg.RegisteredAt.Equal(reg.LastUsed) {
		t.Error("expected registeredAt == lastUsed on a fresh registration")
	}

	loaded, err := s.Load("555-1111")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded == nil {
		t.Fatal("Load() returned nil for registered identity")
	}

	if loaded.Signature != reg.Signature {
		t.Errorf("loaded signature = %q, want %q", loaded.Signature, reg.Signature)
	}
	if len(loaded.NormalizedDistances) != palmprint.NumMeasurements {
		t.Errorf("loaded normalized distances = %d entries, want %d",
			len(loaded.NormalizedDistances), palmprint.NumMeasurements)
	}
	for key, v := range reg.NormalizedDistances {
		if loaded.NormalizedDistances[key] != v {
			t.Errorf("normalized %q = %f, want %f", key, loaded.NormalizedDistances[key], v)
		}
	}
	if !loaded.RegisteredAt.Equal(reg.RegisteredAt) {
		t.Errorf("loaded registeredAt = %v, want %v", loaded.RegisteredAt, reg.RegisteredAt)
	}
}

func TestLoad_MissingIdentity(t *testing.T) {
	s := newTestStore(t)

	reg, err := s.Load("555-0000")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if reg != nil {
		t.Errorf("Load() = %+v, want nil for missing identity", reg)
	}
}

func TestRegister_Duplicate(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Register("555-3333", testTemplate(t)); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}

	before, err := os.ReadFile(filepath.Join(s.Dir(), "555-3333.json"))
	if err != nil {
		t.Fatalf("read record: %v", err)
	}

	// Build a slightly different template for the second attempt
	hand := detector.ShiftedPalmLandmarks(5, 5, 1.1)
	second, err := palmprint.Build(hand)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	_, err = s.Register("555-3333", second)
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("second Register() error = %v, want ErrAlreadyRegistered", err)
	}

	after, err := os.ReadFile(filepath.Join(s.Dir(), "555-3333.json"))
	if err != nil {
		t.Fatalf("read record: %v", err)
	}
	if string(before) != string(after) {
		t.Error("existing record changed after failed duplicate registration")
	}
}

func TestLoad_CorruptRecordSelfHeals(t *testing.T) {
	s := newTestStore(t)

	path := filepath.Join(s.Dir(), "555-2222.json")
	if err := os.WriteFile(path, []byte("{not valid json"), 0o644); err != nil {
		t.Fatalf("write corrupt record: %v", err)
	}

	reg, err := s.Load("555-2222")
	if err != nil {
		t.Fatalf("Load() error = %v, corrupt records must not propagate", err)
	}
	if reg != nil {
		t.Errorf("Load() = %+v, want nil for corrupt record", reg)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("corrupt record file still exists, want deleted")
	}

	summaries, err := s.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	for _, sum := range summaries {
		if sum.Identity == "555-2222" {
			t.Error("List() includes identity whose record was corrupt")
		}
	}
}

func TestLoad_InvalidRecordSelfHeals(t *testing.T) {
	s := newTestStore(t)

	// Structurally valid JSON that fails record validation
	path := filepath.Join(s.Dir(), "555-4444.json")
	record := `{"identity":"555-4444","signature":"short","normalizedDistances":{},"rawDistances":{},"registeredAt":"2025-01-02T03:04:05Z","lastUsed":"2025-01-02T03:04:05Z"}`
	if err := os.WriteFile(path, []byte(record), 0o644); err != nil {
		t.Fatalf("write record: %v", err)
	}

	reg, err := s.Load("555-4444")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if reg != nil {
		t.Errorf("Load() = %+v, want nil for invalid record", reg)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("invalid record file still exists, want deleted")
	}
}

func TestLoad_NonHexSignatureSelfHeals(t *testing.T) {
	s := newTestStore(t)

	// Right length, wrong alphabet
	path := filepath.Join(s.Dir(), "555-5555.json")
	record := `{"identity":"555-5555","signature":"zzzzzzzzzzzzzzzz","normalizedDistances":{"index_knuckle_wrist":1.2},"rawDistances":{"index_knuckle_wrist":120},"registeredAt":"2025-01-02T03:04:05Z","lastUsed":"2025-01-02T03:04:05Z"}`
	if err := os.WriteFile(path, []byte(record), 0o644); err != nil {
		t.Fatalf("write record: %v", err)
	}

	reg, err := s.Load("555-5555")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if reg != nil {
		t.Errorf("Load() = %+v, want nil for non-hex signature", reg)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("record with non-hex signature still exists, want deleted")
	}
}

func TestLoad_UnknownFieldsRejected(t *testing.T) {
	s := newTestStore(t)

	path := filepath.Join(s.Dir(), "555-5555.json")
	record := `{"identity":"555-5555","signature":"0123456789abcdef","normalizedDistances":{"middle_knuckle_wrist":1.0},"rawDistances":{"middle_knuckle_wrist":150.0},"registeredAt":"2025-01-02T03:04:05Z","lastUsed":"2025-01-02T03:04:05Z","extra":"field"}`
	if err := os.WriteFile(path, []byte(record), 0o644); err != nil {
		t.Fatalf("write record: %v", err)
	}

	reg, err := s.Load("555-5555")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if reg != nil {
		t.Error("Load() accepted a record with unknown fields")
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Register("555-6666", testTemplate(t)); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	existed, err := s.Delete("555-6666")
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if !existed {
		t.Error("Delete() = false, want true for existing record")
	}

	existed, err = s.Delete("555-6666")
	if err != nil {
		t.Fatalf("second Delete() error = %v", err)
	}
	if existed {
		t.Error("second Delete() = true, want false")
	}
}

func TestTouch_UpdatesLastUsedOnly(t *testing.T) {
	s := newTestStore(t)

	reg, err := s.Register("555-7777", testTemplate(t))
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	if err := s.Touch("555-7777"); err != nil {
		t.Fatalf("Touch() error = %v", err)
	}

	loaded, err := s.Load("555-7777")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded == nil {
		t.Fatal("Load() returned nil")
	}

	if !loaded.LastUsed.After(reg.LastUsed) {
		t.Errorf("lastUsed = %v, want after %v", loaded.LastUsed, reg.LastUsed)
	}
	if !loaded.RegisteredAt.Equal(reg.RegisteredAt) {
		t.Errorf("registeredAt changed: %v, want %v", loaded.RegisteredAt, reg.RegisteredAt)
	}
}

func TestTouch_NotRegistered(t *testing.T) {
	s := newTestStore(t)

	err := s.Touch("555-8888")
	if !errors.Is(err, ErrNotRegistered) {
		t.Errorf("Touch() error = %v, want ErrNotRegistered", err)
	}
}

func TestList_SortedAndComplete(t *testing.T) {
	s := newTestStore(t)

	for _, identity := range []string{"555-0002", "555-0001", "555-0003"} {
		if _, err := s.Register(identity, testTemplate(t)); err != nil {
			t.Fatalf("Register(%s) error = %v", identity, err)
		}
	}

	summaries, err := s.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	if len(summaries) != 3 {
		t.Fatalf("List() = %d records, want 3", len(summaries))
	}

	want := []string{"555-0001", "555-0002", "555-0003"}
	for i, sum := range summaries {
		if sum.Identity != want[i] {
			t.Errorf("summaries[%d].Identity = %q, want %q", i, sum.Identity, want[i])
		}
		if sum.RegisteredAt.IsZero() || sum.LastUsed.IsZero() {
			t.Errorf("summaries[%d] has zero timestamps", i)
		}
	}
}

func TestSave_LeavesNoTempFiles(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Register("555-9999", testTemplate(t)); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	entries, err := os.ReadDir(s.Dir())
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".tmp") {
			t.Errorf("temp file %q left behind after save", entry.Name())
		}
	}
}

func TestInvalidIdentity(t *testing.T) {
	s := newTestStore(t)

	for _, identity := range []string{"", "../escape", "a/b", `a\b`, ".."} {
		if _, err := s.Load(identity); !errors.Is(err, ErrInvalidIdentity) {
			t.Errorf("Load(%q) error = %v, want ErrInvalidIdentity", identity, err)
		}
		if _, err := s.Register(identity, testTemplate(t)); !errors.Is(err, ErrInvalidIdentity) {
			t.Errorf("Register(%q) error = %v, want ErrInvalidIdentity", identity, err)
		}
	}
}
