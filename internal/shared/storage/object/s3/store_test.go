package s3

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func TestApplyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "owner/shot.png", want: "owner/shot.png"},
		{name: "simple prefix", prefix: "root", key: "owner/shot.png", want: "root/owner/shot.png"},
		{name: "prefix trailing slash", prefix: "root/", key: "owner/shot.png", want: "root/owner/shot.png"},
		{name: "prefix and key slashes", prefix: "/root/", key: "/owner/shot.png", want: "root/owner/shot.png"},
		{name: "nested prefix", prefix: "root/sub", key: "owner/shot.png", want: "root/sub/owner/shot.png"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := applyPrefix(tt.prefix, tt.key); got != tt.want {
				t.Fatalf("applyPrefix(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
			}
		})
	}
}

func TestNewStorageKey(t *testing.T) {
	key, err := newStorageKey("guest:abc", "my shot.png")
	if err != nil {
		t.Fatalf("newStorageKey: %v", err)
	}
	if !strings.HasSuffix(key, "_my shot.png") {
		t.Fatalf("unexpected key %q", key)
	}
	if strings.Contains(key, "guest:abc") {
		t.Fatalf("user id must be hashed, got %q", key)
	}
	if _, err := newStorageKey("u", "../etc/passwd"); err == nil {
		t.Fatalf("expected traversal name to be rejected")
	}
}

func newTestStore() *Store {
	cfg := aws.Config{
		Region:      "us-east-1",
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider("AKID", "SECRET", "")),
	}
	client := s3.NewFromConfig(cfg)
	return &Store{client: client, presign: s3.NewPresignClient(client), bucket: "bucket", prefix: "screenshots"}
}

func TestPresignPutSignedHeaders(t *testing.T) {
	store := newTestStore()

	out, err := store.PresignPut(context.Background(), "guest:g1", "shot.png", "image/png", 5*time.Minute)
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if strings.HasPrefix(out.Key, "screenshots/") {
		t.Fatalf("returned key must not carry the bucket prefix: %s", out.Key)
	}
	if out.Headers["Content-Type"] != "image/png" {
		t.Fatalf("expected content type header, got %v", out.Headers)
	}

	parsed, err := url.Parse(out.URL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if !strings.Contains(parsed.Path, "screenshots/") {
		t.Fatalf("expected prefixed object path, got %s", parsed.Path)
	}

	signed := parsed.Query().Get("X-Amz-SignedHeaders")
	if signed == "" {
		t.Fatalf("expected X-Amz-SignedHeaders")
	}
	if strings.Contains(signed, "content-length") {
		t.Fatalf("unexpected content-length in signed headers: %s", signed)
	}
	if !strings.Contains(signed, "host") {
		t.Fatalf("expected host in signed headers: %s", signed)
	}
}
