package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestMemoryStore_ReadWrite(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if s.Contains(ctx, "k") {
		t.Fatal("Contains() = true on empty store")
	}
	if _, err := s.Read(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Read() error = %v, want ErrNotFound", err)
	}

	entry := &Entry{Value: 5, Args: []any{2, 3}, CreatedAt: time.Unix(0, 0)}
	if err := s.Write(ctx, "k", entry); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !s.Contains(ctx, "k") {
		t.Fatal("Contains() = false after Write")
	}

	got, err := s.Read(ctx, "k")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got != entry {
		t.Errorf("Read() = %+v, want %+v", got, entry)
	}

	replacement := &Entry{Value: 6}
	if err := s.Write(ctx, "k", replacement); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if got, _ := s.Read(ctx, "k"); got != replacement {
		t.Error("Write should replace the previous entry")
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestMemoryStore_WriteRejects(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	tests := []struct {
		name    string
		key     string
		entry   *Entry
		wantErr error
	}{
		{"nil entry", "k", nil, ErrNilEntry},
		{"empty key", "", &Entry{}, ErrInvalidKey},
		{"blank key", "   ", &Entry{}, ErrInvalidKey},
		{"newline", "a\nb", &Entry{}, ErrInvalidKey},
		{"too long", strings.Repeat("k", MaxKeyLength+1), &Entry{}, ErrKeyTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Write(ctx, tt.key, tt.entry); !errors.Is(err, tt.wantErr) {
				t.Errorf("Write() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestMemoryStore_Concurrent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := "k" + string(rune('a'+i%5))
			_ = s.Write(ctx, key, &Entry{Value: i})
			_ = s.Contains(ctx, key)
			_, _ = s.Read(ctx, key)
		}(i)
	}
	wg.Wait()

	if s.Len() != 5 {
		t.Errorf("Len() = %d, want 5", s.Len())
	}
}
