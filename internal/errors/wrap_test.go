package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorWrapper(t *testing.T) {
	t.Parallel()
	wrapper := NewWrapper("engine", "load_keywords")

	t.Run("Wrap returns nil for nil error", func(t *testing.T) {
		result := wrapper.Wrap(nil, "Không thể tải từ khóa")
		if result != nil {
			t.Errorf("expected nil, got %v", result)
		}
	})

	t.Run("Wrap creates WrappedError", func(t *testing.T) {
		baseErr := errors.New("open keywords.csv: permission denied")
		wrapped := wrapper.Wrap(baseErr, "Không thể tải từ khóa")

		var wrappedErr *WrappedError
		if !errors.As(wrapped, &wrappedErr) {
			t.Fatal("expected WrappedError type")
		}
		if wrappedErr.Module != "engine" {
			t.Errorf("expected module 'engine', got '%s'", wrappedErr.Module)
		}
		if wrappedErr.Operation != "load_keywords" {
			t.Errorf("expected operation 'load_keywords', got '%s'", wrappedErr.Operation)
		}
		if !errors.Is(wrapped, baseErr) {
			t.Error("wrapped error should unwrap to base error")
		}
	})

	t.Run("Wrapf formats message", func(t *testing.T) {
		wrapped := wrapper.Wrapf(ErrNotFound, "Không tìm thấy tệp: %s", "emotion.csv")
		if got := GetUserMessage(wrapped); got != "Không tìm thấy tệp: emotion.csv" {
			t.Errorf("unexpected user message %q", got)
		}
	})
}

func TestGetUserMessage(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain", errors.New("boom"), "boom"},
		{"wrapped", NewWrapper("m", "op").Wrap(ErrInitialization, "Khởi tạo thất bại"), "Khởi tạo thất bại"},
		{
			"wrapped twice by fmt",
			fmt.Errorf("outer: %w", NewWrapper("m", "op").Wrap(ErrInitialization, "Khởi tạo thất bại")),
			"Khởi tạo thất bại",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := GetUserMessage(tt.err); got != tt.want {
				t.Errorf("GetUserMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWrappedErrorFormat(t *testing.T) {
	t.Parallel()
	err := NewWrapper("rag", "build_index").Wrap(errors.New("empty corpus"), "Không có tài liệu")
	want := "[rag:build_index] Không có tài liệu: empty corpus"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
