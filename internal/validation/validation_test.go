package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{"simple", "family.txt", nil},
		{"nested", "data/trees/family.txt", nil},
		{"unicode", "données/arbre.txt", nil},
		{"empty", "", ErrEmptyPath},
		{"too long", strings.Repeat("a", MaxPathLength+1), ErrPathTooLong},
		{"null byte", "family\x00.txt", ErrInvalidCharacter},
		{"control character", "family\n.txt", ErrInvalidCharacter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidatePath(%q) error = %v, want nil", tt.path, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidatePath(%q) error = %v, want %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestCheckSize(t *testing.T) {
	if err := CheckSize(10, 10); err != nil {
		t.Errorf("CheckSize(10, 10) = %v", err)
	}
	if err := CheckSize(11, 10); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("CheckSize(11, 10) = %v, want ErrFileTooLarge", err)
	}
	if err := CheckSize(1<<40, 0); err != nil {
		t.Errorf("CheckSize with no limit = %v", err)
	}
}

func TestTreeID(t *testing.T) {
	tests := []struct {
		path    string
		want    string
		wantErr bool
	}{
		{"family.txt", "family", false},
		{"/data/smith-family.txt.gz", "smith-family", false},
		{"trees/jones.xz", "jones", false},
		{"tree.json", "tree", false},
		{"plain", "plain", false},
		{".txt", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := TreeID(tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("TreeID(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("TreeID(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"family", "family", false},
		{"  spaced  ", "spaced", false},
		{"a/b\\c", "a_b_c", false},
		{"bell\a", "bell", false},
		{"--flag", "flag", false},
		{"", "", true},
		{strings.Repeat("x", MaxFilenameLength+1), "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := SanitizeFilename(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SanitizeFilename(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDetectCompression(t *testing.T) {
	tests := []struct {
		name string
		head []byte
		want Compression
	}{
		{"gzip", []byte{0x1f, 0x8b, 0x08, 0x00}, CompressionGzip},
		{"xz", []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00, 0x00}, CompressionXZ},
		{"text", []byte("A1;M;John"), CompressionNone},
		{"short", []byte{0x1f}, CompressionNone},
		{"empty", nil, CompressionNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectCompression(tt.head); got != tt.want {
				t.Errorf("DetectCompression() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsLikelyText(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		want bool
	}{
		{"ascii", []byte("A1;M;John Smith;b:1900\n"), true},
		{"utf8", []byte("A1;F;Zoë Brontë\n"), true},
		{"empty", nil, true},
		{"null byte", []byte("A1\x00M"), false},
		{"mostly control", []byte{0x01, 0x02, 0x03, 'a'}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsLikelyText(tt.buf); got != tt.want {
				t.Errorf("IsLikelyText(%q) = %v, want %v", tt.buf, got, tt.want)
			}
		})
	}
}
