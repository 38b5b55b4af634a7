package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	storage_go "github.com/supabase-community/storage-go"
)

// SupabaseStore persists artifacts in a Supabase Storage bucket and returns
// public object URLs.
type SupabaseStore struct {
	client  *storage_go.Client
	bucket  string
	baseURL string
}

// NewSupabaseStore constructs a store for the given project URL, service-role
// key, and bucket.
func NewSupabaseStore(supabaseURL, serviceRoleKey, bucket string) (*SupabaseStore, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(supabaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("storage: supabase url is required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("storage: supabase bucket is required")
	}
	client := storage_go.NewClient(baseURL+"/storage/v1", serviceRoleKey, nil)
	return &SupabaseStore{client: client, bucket: bucket, baseURL: baseURL}, nil
}

// Put uploads the bytes under key with upsert enabled, so redelivered stages
// overwrite their previous output instead of failing on conflict.
func (s *SupabaseStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	upsert := true
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err = s.client.UploadFile(s.bucket, cleanKey, bytes.NewReader(data), storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return "", fmt.Errorf("storage: supabase upload: %w", err)
	}
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, cleanKey), nil
}
