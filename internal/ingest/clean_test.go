package ingest

import "testing"

func TestCleanDescription(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{
			name:   "strips tags and lowercases",
			input:  "<p>Build APIs</p>",
			expect: "build apis",
		},
		{
			name:   "br tags become separators",
			input:  "Line one<br><br/>Line two",
			expect: "line one line two",
		},
		{
			name:   "decodes entities",
			input:  "C&amp;C skills &gt; none",
			expect: "c&c skills > none",
		},
		{
			name:   "collapses whitespace",
			input:  "  too \t many\n\n spaces  ",
			expect: "too many spaces",
		},
		{
			name:   "empty input",
			input:  "",
			expect: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := CleanDescription(tt.input); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}

func TestNormalizeHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input  string
		expect string
	}{
		{"Uniq Id", "uniq_id"},
		{"Job Description", "job_description"},
		{"  Job Title ", "job_title"},
		{"category", "category"},
	}

	for _, tt := range tests {
		if got := normalizeHeader(tt.input); got != tt.expect {
			t.Fatalf("normalizeHeader(%q) = %q, expected %q", tt.input, got, tt.expect)
		}
	}
}

func TestMetaValue(t *testing.T) {
	t.Parallel()

	if v := metaValue(""); v != nil {
		t.Fatalf("expected nil for empty cell, got %v", v)
	}
	if v := metaValue("true"); v != true {
		t.Fatalf("expected true, got %v", v)
	}
	if v := metaValue("False"); v != false {
		t.Fatalf("expected false, got %v", v)
	}
	if v := metaValue("12.5"); v != 12.5 {
		t.Fatalf("expected 12.5, got %v", v)
	}
	if v := metaValue("Austin, TX"); v != "Austin, TX" {
		t.Fatalf("expected string passthrough, got %v", v)
	}
}
