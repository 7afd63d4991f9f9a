package ingestion

import (
	"errors"
	"strings"
	"testing"
)

func TestDetectType(t *testing.T) {
	tests := []struct {
		filename    string
		contentType string
		want        FileType
		wantErr     bool
	}{
		{"blood_panel.PDF", "", FileTypePDF, false},
		{"discharge.html", "", FileTypeHTML, false},
		{"notes.txt", "application/octet-stream", FileTypeText, false},
		{"upload", "application/pdf", FileTypePDF, false},
		{"upload", "text/html; charset=utf-8", FileTypeHTML, false},
		{"xray.png", "image/png", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.filename+"/"+tt.contentType, func(t *testing.T) {
			got, err := DetectType(tt.filename, tt.contentType)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedType) {
					t.Fatalf("expected ErrUnsupportedType, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("got %q err=%v, want %q", got, err, tt.want)
			}
		})
	}
}

func TestExtractHTMLDropsChrome(t *testing.T) {
	page := `<html><head><style>p{color:red}</style></head><body>
		<nav>Home | Reports</nav>
		<h1>Lipid Panel</h1>
		<p>Total cholesterol 182 mg/dL.</p><p>LDL 101 mg/dL.</p>
		<script>track()</script>
		<footer>Copyright Clinic</footer>
	</body></html>`

	text, err := Extract(FileTypeHTML, []byte(page))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	for _, unwanted := range []string{"track()", "Copyright", "Home | Reports", "color:red"} {
		if strings.Contains(text, unwanted) {
			t.Errorf("extracted text still contains %q: %q", unwanted, text)
		}
	}
	if !strings.Contains(text, "Total cholesterol 182 mg/dL.") || !strings.Contains(text, "LDL 101 mg/dL.") {
		t.Errorf("report body missing from %q", text)
	}
	if strings.Contains(text, "mg/dL.LDL") {
		t.Errorf("paragraphs ran together: %q", text)
	}
}

func TestExtractTextNormalizesWhitespace(t *testing.T) {
	text, err := Extract(FileTypeText, []byte("  Glucose:\t 92   mg/dL\r\n\r\n\r\n\r\nA1C: 5.4%  "))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if text != "Glucose: 92 mg/dL\n\nA1C: 5.4%" {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestExtractRejectsEmptyAndInvalid(t *testing.T) {
	if _, err := Extract(FileTypeText, []byte(" \n\t ")); !errors.Is(err, ErrNoText) {
		t.Errorf("expected ErrNoText for blank text, got %v", err)
	}
	if _, err := Extract(FileTypeText, []byte{0xff, 0xfe, 0x00}); !errors.Is(err, ErrNoText) {
		t.Errorf("expected ErrNoText for invalid utf-8, got %v", err)
	}
	if _, err := Extract(FileTypeHTML, []byte("<html><body><script>x()</script></body></html>")); !errors.Is(err, ErrNoText) {
		t.Errorf("expected ErrNoText for script-only page, got %v", err)
	}
	if _, err := Extract(FileType("docx"), []byte("x")); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("expected ErrUnsupportedType, got %v", err)
	}
	if _, err := Extract(FileTypePDF, []byte("not a pdf")); err == nil {
		t.Error("expected an error for a corrupt pdf")
	}
}
