package domain

import "testing"

func TestProcessObjectRequestValidate(t *testing.T) {
	valid := ProcessObjectRequest{ObjectKey: "uploads/2026/cat.png"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid request, got error: %v", err)
	}

	if err := (ProcessObjectRequest{}).Validate(); err == nil {
		t.Fatal("expected validation error for empty object_key")
	}

	if err := (ProcessObjectRequest{ObjectKey: "   "}).Validate(); err == nil {
		t.Fatal("expected validation error for blank object_key")
	}

	if err := (ProcessObjectRequest{ObjectKey: "/etc/passwd"}).Validate(); err == nil {
		t.Fatal("expected validation error for absolute object_key")
	}

	if err := (ProcessObjectRequest{ObjectKey: "uploads/../secrets.png"}).Validate(); err == nil {
		t.Fatal("expected validation error for parent traversal")
	}
}

func TestUsageLogPixelsProcessed(t *testing.T) {
	log := NewUsageLog("req-1", SourceTypeUpload, 640, 480, 18)
	if log.PixelsProcessed != 640*480*18 {
		t.Fatalf("expected %d pixels processed, got %d", 640*480*18, log.PixelsProcessed)
	}
	if log.CreatedAt.IsZero() {
		t.Fatal("expected created_at to be set")
	}
}
