package scorer

import (
	"errors"
	"testing"

	"github.com/ppiankov/telemeter-reporter/internal/models"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name  string
		value float64
		goal  float64
		want  Status
	}{
		{name: "below_goal", value: 95.0, goal: 96.0, want: StatusDanger},
		{name: "just_above_goal", value: 96.005, goal: 96.0, want: StatusCaution},
		{name: "exactly_goal", value: 96.0, goal: 96.0, want: StatusCaution},
		{name: "comfortably_above", value: 97.0, goal: 96.0, want: StatusSuccess},
		{name: "at_threshold", value: 96.5, goal: 96.49, want: StatusSuccess},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.value, tc.goal); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestClassifyResultUnavailable(t *testing.T) {
	got := ClassifyResult(models.SLIFailure(errors.New("timeout")), 99)
	if got != StatusUnavailable {
		t.Fatalf("expected unavailable, got %s", got)
	}
}

func TestSummarize(t *testing.T) {
	m := &models.Matrix{Rows: []models.Row{
		{DisplayName: "a", Cells: []models.Cell{
			{Rule: "up", Goal: 99, SLI: models.SLIValue(99.5)},
			{Rule: "api", Goal: 99, SLI: models.SLIValue(98)},
		}},
		{DisplayName: "b", Cells: []models.Cell{
			{Rule: "up", Goal: 99, SLI: models.SLIValue(99.001)},
			{Rule: "api", Goal: 99, SLI: models.SLIFailure(errors.New("empty"))},
		}},
	}}

	got := Summarize(m)
	want := Summary{Success: 1, Caution: 1, Danger: 1, Unavailable: 1}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
	if got.Total() != 4 {
		t.Fatalf("expected total 4, got %d", got.Total())
	}
	if Summarize(nil).Total() != 0 {
		t.Fatal("expected empty summary for nil matrix")
	}
}
