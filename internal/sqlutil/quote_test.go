package sqlutil

import "testing"

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"users", "`users`"},
		{"user_data", "`user_data`"},
		{"select", "`select`"},         // reserved word
		{"first name", "`first name`"}, // space in name
		{"user`data", "`user``data`"},  // backtick in name
		{"a`b`c", "`a``b``c`"},
		{"", "``"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := QuoteIdentifier(tt.input)
			if result != tt.expected {
				t.Errorf("QuoteIdentifier(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestQualifiedColumn(t *testing.T) {
	if got := QualifiedColumn("p_category", "name"); got != "`p_category`.`name`" {
		t.Errorf("QualifiedColumn = %q", got)
	}
	if got := QualifiedColumn("p", "we`ird"); got != "`p`.`we``ird`" {
		t.Errorf("QualifiedColumn escaping = %q", got)
	}
}

func TestTableAs(t *testing.T) {
	if got := TableAs("products", "p"); got != "`products` AS `p`" {
		t.Errorf("TableAs = %q", got)
	}
}
