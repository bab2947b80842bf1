package flavor

import "testing"

func TestParseBarkBatch(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     int
	}{
		{
			name:     "plain array",
			response: `[{"line":"SPLAT!","emotion":"excited"},{"line":"EWW!","emotion":"disgusted"}]`,
			want:     2,
		},
		{
			name: "fenced array with prose",
			response: "Sure! Here are your barks:\n```json\n" +
				`[{"line":"TOO CLOSE!","emotion":"scared"}]` + "\n```",
			want: 1,
		},
		{
			name:     "empty lines dropped",
			response: `[{"line":"","emotion":"excited"},{"line":"  ","emotion":"cocky"},{"line":"ZOOM!","emotion":"excited"}]`,
			want:     1,
		},
		{
			name:     "malformed json",
			response: `{"line":"NOT AN ARRAY"}`,
			want:     0,
		},
		{
			name:     "not json at all",
			response: "I cannot help with that.",
			want:     0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := parseBarkBatch(tt.response)
			if len(items) != tt.want {
				t.Fatalf("expected %d items, got %d: %+v", tt.want, len(items), items)
			}
			for _, item := range items {
				if item.Line == "" {
					t.Fatalf("parsed item with empty line")
				}
			}
		})
	}
}

func TestParseBarkBatchUnknownEmotionDefaultsExcited(t *testing.T) {
	items := parseBarkBatch(`[{"line":"HUH?","emotion":"bewildered"}]`)
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].Emotion != EmotionExcited {
		t.Fatalf("expected excited, got %q", items[0].Emotion)
	}
}

func TestParseGraffitiBatch(t *testing.T) {
	response := `[
		{"text":"FLUSH OR\nBE FLUSHED","style":"dripping"},
		{"text":"","style":"bold"},
		{"text":"TURD LIFE","style":"airbrush"}
	]`
	items := parseGraffitiBatch(response)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Style != StyleDripping {
		t.Fatalf("expected dripping, got %q", items[0].Style)
	}
	// Unknown style falls back to crude rather than dropping the tag.
	if items[1].Style != StyleCrude {
		t.Fatalf("expected crude, got %q", items[1].Style)
	}
}

func TestParseSingleLine(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{"plain", "Tell my logs I loved them.", "Tell my logs I loved them."},
		{"quoted", `"Flushed before my time."`, "Flushed before my time."},
		{"fenced multiline", "```\nWell, that stunk.\nExtra line.\n```", "Well, that stunk."},
		{"whitespace only", "   \n  ", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseSingleLine(tt.response); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
