package s3blob

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/peterldowns/testy/check"
)

func TestWithScheme(t *testing.T) {
	tests := []struct {
		endpoint string
		ssl      bool
		want     string
	}{
		{"http://localhost:9000", true, "http://localhost:9000"},
		{"https://r2.example.com", false, "https://r2.example.com"},
		{"localhost:9000", false, "http://localhost:9000"},
		{"minio.internal:9000", true, "https://minio.internal:9000"},
	}
	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			check.Equal(t, tt.want, withScheme(tt.endpoint, tt.ssl))
		})
	}
}

func TestContentTypeFor(t *testing.T) {
	check.Equal(t, "application/x-ndjson", contentTypeFor("archive/2026-04/s1/bids.jsonl"))
	check.Equal(t, "application/json", contentTypeFor("archive/2026-04/s1/manifest.json"))
	check.Equal(t, "application/octet-stream", contentTypeFor("archive/2026-04/s1/raw"))
}

func TestIsNotFound(t *testing.T) {
	status := func(code int) error {
		return &smithyhttp.ResponseError{
			Response: &smithyhttp.Response{Response: &http.Response{StatusCode: code}},
			Err:      errors.New("response error"),
		}
	}
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil},
		{name: "no such key", err: &smithy.GenericAPIError{Code: "NoSuchKey"}, want: true},
		{name: "wrapped not found", err: fmt.Errorf("get: %w", &smithy.GenericAPIError{Code: "NotFound"}), want: true},
		{name: "bare 404", err: status(http.StatusNotFound), want: true},
		{name: "forbidden", err: status(http.StatusForbidden)},
		{name: "access denied", err: &smithy.GenericAPIError{Code: "AccessDenied"}},
		{name: "timeout", err: context.DeadlineExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check.Equal(t, tt.want, isNotFound(tt.err))
		})
	}
}

func TestNew_RequiresBucketAndRegion(t *testing.T) {
	_, err := New(context.Background(), ClientConfig{Region: "us-east-1"})
	check.Error(t, err)
	_, err = New(context.Background(), ClientConfig{Bucket: "auctiond-archive"})
	check.Error(t, err)
}
