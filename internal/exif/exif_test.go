package exif

import (
	"bytes"
	"image"
	"image/jpeg"
	"testing"
)

func TestExtract_GarbageBytes(t *testing.T) {
	rec := Extract([]byte("definitely not an image"))
	if rec == nil {
		t.Fatal("Extract returned nil")
	}
	if !rec.Taken.IsZero() || rec.Camera != "" || rec.HasGPS || rec.Location() != "" {
		t.Errorf("expected empty record, got %+v", rec)
	}
}

func TestExtract_EmptyInput(t *testing.T) {
	rec := Extract(nil)
	if rec == nil || rec.HasGPS {
		t.Fatalf("expected empty record, got %+v", rec)
	}
}

func TestExtract_JPEGWithoutExif(t *testing.T) {
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode test jpeg: %v", err)
	}

	rec := Extract(buf.Bytes())
	if rec == nil {
		t.Fatal("Extract returned nil")
	}
	if !rec.Taken.IsZero() || rec.Camera != "" || rec.HasGPS {
		t.Errorf("expected empty record for exif-less jpeg, got %+v", rec)
	}
}

func TestCameraLabel(t *testing.T) {
	tests := []struct {
		mk, model, want string
	}{
		{"Canon", "EOS 5D", "Canon EOS 5D"},
		{"Canon", "", "Canon"},
		{"", "EOS 5D", "EOS 5D"},
		{"", "", ""},
		{"  Nikon  ", "  D750  ", "Nikon D750"},
	}
	for _, tt := range tests {
		if got := cameraLabel(tt.mk, tt.model); got != tt.want {
			t.Errorf("cameraLabel(%q, %q) = %q, want %q", tt.mk, tt.model, got, tt.want)
		}
	}
}

func TestRecordLocation(t *testing.T) {
	rec := &Record{}
	if rec.Location() != "" {
		t.Error("fresh record should have no location")
	}
	rec.SetLocation("Berlin")
	if rec.Location() != "Berlin" {
		t.Errorf("Location() = %q, want Berlin", rec.Location())
	}
}
