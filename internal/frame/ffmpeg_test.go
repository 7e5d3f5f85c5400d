package frame

import "testing"

func TestNewClampsQuality(t *testing.T) {
	tests := []struct {
		name    string
		quality int
		want    int
	}{
		{"zero falls back", 0, DefaultJPEGQuality},
		{"negative falls back", -2, DefaultJPEGQuality},
		{"over scale falls back", 50, DefaultJPEGQuality},
		{"valid kept", 2, 2},
		{"upper bound kept", 31, 31},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New("ffmpeg", "ffprobe", "", tt.quality)
			if f.jpegQuality != tt.want {
				t.Errorf("jpegQuality = %d, want %d", f.jpegQuality, tt.want)
			}
		})
	}
}

func TestParseProbeDuration(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    float64
		wantErr bool
	}{
		{"valid", `{"format":{"duration":"12.480000"}}`, 12.48, false},
		{"integer seconds", `{"format":{"duration":"8"}}`, 8, false},
		{"missing duration", `{"format":{}}`, 0, true},
		{"not json", `ffprobe: error`, 0, true},
		{"bad number", `{"format":{"duration":"N/A"}}`, 0, true},
		{"empty", ``, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseProbeDuration([]byte(tt.data))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseProbeDuration failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("parseProbeDuration = %v, want %v", got, tt.want)
			}
		})
	}
}
