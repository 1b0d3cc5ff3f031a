package archive

import (
	"context"
	"errors"
	"testing"
	"time"
)

// MockObjectStore is a mock implementation of ObjectStore for testing.
type MockObjectStore struct {
	WriteObjectFunc func(ctx context.Context, bucket, object, contentType string, data []byte) error
	ReadObjectFunc  func(ctx context.Context, bucket, object string) ([]byte, error)
}

func (m *MockObjectStore) WriteObject(ctx context.Context, bucket, object, contentType string, data []byte) error {
	if m.WriteObjectFunc != nil {
		return m.WriteObjectFunc(ctx, bucket, object, contentType, data)
	}
	return nil
}

func (m *MockObjectStore) ReadObject(ctx context.Context, bucket, object string) ([]byte, error) {
	if m.ReadObjectFunc != nil {
		return m.ReadObjectFunc(ctx, bucket, object)
	}
	return nil, nil
}

func TestArchiveImport(t *testing.T) {
	var gotBucket, gotObject, gotType string
	store := &MockObjectStore{
		WriteObjectFunc: func(ctx context.Context, bucket, object, contentType string, data []byte) error {
			gotBucket, gotObject, gotType = bucket, object, contentType
			return nil
		},
	}

	a := New(store, "statements")
	a.now = func() time.Time { return time.Date(2025, 3, 7, 23, 0, 0, 0, time.UTC) }

	uri, err := a.ArchiveImport(context.Background(), "discover march.csv", "abc123", []byte("a,b"))
	if err != nil {
		t.Fatalf("ArchiveImport failed: %v", err)
	}

	wantObject := "imports/2025/03/07/abc123-discover_march.csv"
	if gotBucket != "statements" || gotObject != wantObject || gotType != "text/csv" {
		t.Errorf("unexpected write: bucket=%s object=%s type=%s", gotBucket, gotObject, gotType)
	}
	if uri != "gs://statements/"+wantObject {
		t.Errorf("unexpected uri %s", uri)
	}
}

func TestArchiveImport_WriteError(t *testing.T) {
	store := &MockObjectStore{
		WriteObjectFunc: func(ctx context.Context, bucket, object, contentType string, data []byte) error {
			return errors.New("permission denied")
		},
	}

	_, err := New(store, "b").ArchiveImport(context.Background(), "x.csv", "h", nil)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestFetch(t *testing.T) {
	store := &MockObjectStore{
		ReadObjectFunc: func(ctx context.Context, bucket, object string) ([]byte, error) {
			if bucket != "b" || object != "imports/2025/01/01/h-x.csv" {
				t.Errorf("unexpected read %s/%s", bucket, object)
			}
			return []byte("data"), nil
		},
	}

	data, err := New(store, "b").Fetch(context.Background(), "gs://b/imports/2025/01/01/h-x.csv")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(data) != "data" {
		t.Errorf("unexpected data %q", data)
	}

	if _, err := New(store, "b").Fetch(context.Background(), "s3://b/x"); err == nil {
		t.Error("expected error for non-gs URI")
	}
}

func TestObjectName(t *testing.T) {
	at := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		fileName string
		want     string
	}{
		{"plain", "synovus.csv", "imports/2024/12/31/h-synovus.csv"},
		{"unix path", "/tmp/in/synovus.csv", "imports/2024/12/31/h-synovus.csv"},
		{"windows path", `C:\Users\me\cap one.csv`, "imports/2024/12/31/h-cap_one.csv"},
		{"empty", "", "imports/2024/12/31/h-upload.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ObjectName(at, tt.fileName, "h"); got != tt.want {
				t.Errorf("ObjectName(%q) = %q, want %q", tt.fileName, got, tt.want)
			}
		})
	}
}

func TestParseURI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{"gs://bucket/a/b.csv", "bucket", "a/b.csv", false},
		{"gs://bucket", "", "", true},
		{"gs:///obj", "", "", true},
		{"https://bucket/obj", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, err := ParseURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseURI(%q) error = %v, wantErr %v", tt.uri, err, tt.wantErr)
			}
			if bucket != tt.wantBucket || object != tt.wantObject {
				t.Errorf("ParseURI(%q) = %q, %q", tt.uri, bucket, object)
			}
		})
	}
}

func TestFileName(t *testing.T) {
	if got := FileName("gs://b/imports/2025/03/01/ab12-discover.csv"); got != "discover.csv" {
		t.Errorf("FileName = %q", got)
	}
	if got := FileName("gs://b/plain.csv"); got != "plain.csv" {
		t.Errorf("FileName = %q", got)
	}
}
