package record

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/wricardo/kiosk-shell/kiosk/view"
)

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "kiosk.json")
	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("Failed to create file store: %v", err)
	}

	t.Run("load before save", func(t *testing.T) {
		if _, err := store.Load(); !errors.Is(err, ErrNoRecord) {
			t.Errorf("Expected ErrNoRecord, got %v", err)
		}
	})

	t.Run("save and load", func(t *testing.T) {
		if err := store.Save(Info{Name: "Lobby", Mode: ModeDid}); err != nil {
			t.Fatalf("Failed to save record: %v", err)
		}
		info, err := store.Load()
		if err != nil {
			t.Fatalf("Failed to load record: %v", err)
		}
		if info.Name != "Lobby" || info.Mode != ModeDid {
			t.Errorf("Unexpected record: %+v", info)
		}
		if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
			t.Error("Temporary file should not remain after save")
		}
	})

	t.Run("reject empty name", func(t *testing.T) {
		if err := store.Save(Info{Mode: "kiosk"}); err == nil {
			t.Error("Expected error for empty name")
		}
	})

	t.Run("corrupt file", func(t *testing.T) {
		if err := os.WriteFile(path, []byte("{"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := store.Load(); err == nil || errors.Is(err, ErrNoRecord) {
			t.Errorf("Expected unmarshal error, got %v", err)
		}
	})

	t.Run("reset", func(t *testing.T) {
		if err := store.Reset(); err != nil {
			t.Fatalf("Failed to reset: %v", err)
		}
		if err := store.Reset(); err != nil {
			t.Errorf("Reset of missing record should succeed, got %v", err)
		}
		if _, err := store.Load(); !errors.Is(err, ErrNoRecord) {
			t.Errorf("Expected ErrNoRecord after reset, got %v", err)
		}
	})
}

func TestModePlacer(t *testing.T) {
	store := &MemoryStore{}
	host := view.StaticHost{Width: 1920, Height: 1080}
	p := NewModePlacer(store, host, nil)

	tests := []struct {
		name string
		info *Info
		want view.Rect
	}{
		{"no record", nil, view.Rect{X: 0, Y: 0, Width: 1920, Height: 980}},
		{"did mode", &Info{Name: "Lobby", Mode: ModeDid}, view.Rect{X: 0, Y: 100, Width: 1920, Height: 980}},
		{"other mode", &Info{Name: "Lobby", Mode: "kiosk"}, view.Rect{X: 0, Y: 0, Width: 1920, Height: 980}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_ = store.Reset()
			if tt.info != nil {
				if err := store.Save(*tt.info); err != nil {
					t.Fatal(err)
				}
			}
			if got := p.Placement(); got != tt.want {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
		})
	}
}
