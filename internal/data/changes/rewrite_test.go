package changes

import "testing"

func TestAuthorRewriter_Apply(t *testing.T) {
	r := NewAuthorRewriter("", "")

	tests := []struct {
		name       string
		in         ChangeSummary
		wantAuthor string
		wantDesc   string
	}{
		{
			name:       "marker with trailing text",
			in:         ChangeSummary{Number: 1, Author: "robomerge", Description: "#ROBOMERGE-AUTHOR: alice extra text"},
			wantAuthor: "alice",
			wantDesc:   "ROBOMERGE: extra text",
		},
		{
			name:       "multi-line description keeps remaining lines",
			in:         ChangeSummary{Number: 2, Author: "robomerge", Description: "#ROBOMERGE-AUTHOR: bob\nMerged fix from //depot/Dev"},
			wantAuthor: "bob",
			wantDesc:   "ROBOMERGE: Merged fix from //depot/Dev",
		},
		{
			name:       "no marker",
			in:         ChangeSummary{Number: 3, Author: "carol", Description: "Fix crash on startup"},
			wantAuthor: "carol",
			wantDesc:   "Fix crash on startup",
		},
		{
			name:       "marker without author",
			in:         ChangeSummary{Number: 4, Author: "robomerge", Description: "#ROBOMERGE-AUTHOR:   "},
			wantAuthor: "robomerge",
			wantDesc:   "#ROBOMERGE-AUTHOR:   ",
		},
		{
			name:       "marker not at start",
			in:         ChangeSummary{Number: 5, Author: "dave", Description: "see #ROBOMERGE-AUTHOR: eve"},
			wantAuthor: "dave",
			wantDesc:   "see #ROBOMERGE-AUTHOR: eve",
		},
		{
			name:       "author only",
			in:         ChangeSummary{Number: 6, Author: "robomerge", Description: "#ROBOMERGE-AUTHOR: alice"},
			wantAuthor: "alice",
			wantDesc:   "ROBOMERGE:",
		},
		{
			name:       "author then blank line",
			in:         ChangeSummary{Number: 7, Author: "robomerge", Description: "#ROBOMERGE-AUTHOR: alice \n"},
			wantAuthor: "alice",
			wantDesc:   "ROBOMERGE:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Apply(tt.in)
			if got.Author != tt.wantAuthor {
				t.Fatalf("author: want %q, got %q", tt.wantAuthor, got.Author)
			}
			if got.Description != tt.wantDesc {
				t.Fatalf("description: want %q, got %q", tt.wantDesc, got.Description)
			}
			if got.Number != tt.in.Number {
				t.Fatalf("number must not change: want %d, got %d", tt.in.Number, got.Number)
			}
		})
	}
}

func TestAuthorRewriter_CustomMarkerAndApplyAll(t *testing.T) {
	r := NewAuthorRewriter("[bot-for]", "BOT:")
	list := []ChangeSummary{
		{Number: 2, Author: "ci", Description: "[bot-for] frank rebuilt shaders"},
		{Number: 1, Author: "gina", Description: "plain"},
	}
	r.ApplyAll(list)

	if list[0].Author != "frank" || list[0].Description != "BOT: rebuilt shaders" {
		t.Fatalf("unexpected rewrite: %+v", list[0])
	}
	if list[1].Author != "gina" {
		t.Fatalf("unexpected rewrite of unmarked change: %+v", list[1])
	}
}
