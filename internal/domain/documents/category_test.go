package documents

import "testing"

func TestParseCategory(t *testing.T) {
	tests := []struct {
		raw  string
		want Category
		ok   bool
	}{
		{raw: "iqama", want: CategoryIqama, ok: true},
		{raw: "id_copy", want: CategoryIDCopy, ok: true},
		{raw: "resume", want: CategoryResume, ok: true},
		{raw: "Resume", ok: false},
		{raw: " passport", ok: false},
		{raw: "", ok: false},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.raw, func(t *testing.T) {
			got, ok := ParseCategory(tc.raw)
			if ok != tc.ok || got != tc.want {
				t.Fatalf("ParseCategory(%q) = %q, %v; want %q, %v", tc.raw, got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestDisplayName(t *testing.T) {
	want := map[Category]string{
		CategoryIqama:       "Iqama",
		CategoryIDCopy:      "Id Copy",
		CategoryPassport:    "Passport",
		CategoryCertificate: "Certificate",
		CategoryResume:      "Resume",
	}
	for c, name := range want {
		if got := c.DisplayName(); got != name {
			t.Fatalf("%s display name = %q, want %q", c, got, name)
		}
	}
	if got := len(ListCategories()); got != 5 {
		t.Fatalf("expected 5 categories, got %d", got)
	}
}
