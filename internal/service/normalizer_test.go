package service

import (
	"errors"
	"testing"

	"facetrust/internal/domain"
)

func TestCanonicalHeader_AppliesAliases(t *testing.T) {
	header := []string{"\ufeffPID", " Image_ID ", "version", "order_presented", "masc_choice", "notes"}
	got := CanonicalHeader(header)

	want := []string{"participant_id", "face_id", "face_view", "trial_order", "masculinity_choice", "notes"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("column %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestDetectFormat(t *testing.T) {
	cases := []struct {
		name   string
		header []string
		want   domain.SourceFormat
	}{
		{
			name:   "long",
			header: []string{"participant_id", "face_id", "face_view", "question_type", "response", "timestamp"},
			want:   domain.FormatLong,
		},
		{
			name:   "wide with aliases",
			header: []string{"pid", "image_id", "version", "trust_rating", "timestamp"},
			want:   domain.FormatWide,
		},
		{
			name:   "wide without trial columns",
			header: []string{"participant_id", "face_id", "face_view", "timestamp"},
			want:   domain.FormatUnknown,
		},
		{
			name:   "unrelated csv",
			header: []string{"a", "b", "c"},
			want:   domain.FormatUnknown,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DetectFormat(CanonicalHeader(tc.header))
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestNormalizeFaceView(t *testing.T) {
	cases := map[string]string{
		"Left":       "left",
		"LEFT_HALF":  "left",
		"right-side": "right",
		"FullFace":   "full",
		"toggle":     "toggle",
		"survey":     "survey",
		"profile_34": "profile_34",
		" Right ":    "right",
	}
	for raw, want := range cases {
		if got := NormalizeFaceView(raw); got != want {
			t.Fatalf("NormalizeFaceView(%q): expected %q, got %q", raw, want, got)
		}
	}
}

func TestNormalizeWideRow(t *testing.T) {
	canonical := CanonicalHeader([]string{"pid", "image_id", "version", "trust_rating", "masc_choice", "fem_choice", "order_presented", "timestamp", "notes"})
	row := []string{"P001", "F12", "Left", "5.5", "masc", "fem", "3", "2025-03-10T14:30:00", "ok"}

	rec, err := NormalizeWideRow(canonical, row)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if rec.ParticipantID != "P001" || rec.FaceID != "F12" || rec.FaceView != "left" {
		t.Fatalf("unexpected key fields: %+v", rec)
	}
	if rec.TrustRating == nil || *rec.TrustRating != 5.5 {
		t.Fatalf("expected trust rating 5.5, got %v", rec.TrustRating)
	}
	if rec.TrialOrder == nil || *rec.TrialOrder != 3 {
		t.Fatalf("expected trial order 3, got %v", rec.TrialOrder)
	}
	if rec.Extra["notes"] != "ok" {
		t.Fatalf("expected notes in extra, got %v", rec.Extra)
	}
}

func TestNormalizeWideRow_NonNumericRatingKept(t *testing.T) {
	canonical := []string{"participant_id", "face_id", "face_view", "trust_rating", "timestamp"}
	row := []string{"P001", "F1", "left", "N/A", "2025-03-10"}

	rec, err := NormalizeWideRow(canonical, row)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if rec.TrustRating != nil {
		t.Fatalf("expected nil trust rating for N/A, got %v", *rec.TrustRating)
	}
	if rec.TrustRatingRaw != "N/A" {
		t.Fatalf("expected raw value preserved, got %q", rec.TrustRatingRaw)
	}
}

func TestNormalizeWideRow_DropsBadRows(t *testing.T) {
	canonical := []string{"participant_id", "face_id", "face_view", "trust_rating", "timestamp"}

	if _, err := NormalizeWideRow(canonical, []string{"", "F1", "left", "5", "2025-03-10"}); !errors.Is(err, ErrRowMissingParticipant) {
		t.Fatalf("expected ErrRowMissingParticipant, got %v", err)
	}
	if _, err := NormalizeWideRow(canonical, []string{"P001", "F1", "left", "5", "not-a-date"}); !errors.Is(err, ErrRowBadTimestamp) {
		t.Fatalf("expected ErrRowBadTimestamp, got %v", err)
	}
}

func TestNormalizeLongRow(t *testing.T) {
	canonical := []string{"participant_id", "face_id", "face_view", "question_type", "response", "timestamp"}
	obs, err := NormalizeLongRow(canonical, []string{"P002", "F3", "Right", "Trust_Rating", "6", "2025-03-11 09:00:00"})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if obs.QuestionType != "trust_rating" {
		t.Fatalf("expected lowercased question type, got %q", obs.QuestionType)
	}
	if obs.FaceView != "right" {
		t.Fatalf("expected normalized view, got %q", obs.FaceView)
	}
}

func TestParseTimestamp_Layouts(t *testing.T) {
	for _, raw := range []string{
		"2025-03-10T14:30:00Z",
		"2025-03-10T14:30:00",
		"2025-03-10 14:30",
		"2025-03-10",
	} {
		if _, err := parseTimestamp(raw); err != nil {
			t.Fatalf("parseTimestamp(%q): %v", raw, err)
		}
	}
	if _, err := parseTimestamp("10/03/2025"); err == nil {
		t.Fatal("expected error for unsupported layout")
	}
}
