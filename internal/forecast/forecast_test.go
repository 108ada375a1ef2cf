package forecast

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trustvault/backend/internal/models"
)

func day(d int) time.Time {
	return time.Date(2024, time.January, d, 0, 0, 0, 0, time.UTC)
}

func approved(amount int64, d int) Point {
	return Point{
		Amount:    decimal.NewFromInt(amount),
		CreatedAt: day(d),
		Status:    models.TransactionApproved,
	}
}

func TestCompletionDate(t *testing.T) {
	t.Run("steady contributions project a date", func(t *testing.T) {
		points := []Point{
			approved(100, 1),
			approved(150, 8),
			approved(200, 15),
			approved(250, 22),
		}

		est := CompletionDate(points, decimal.NewFromInt(2000))
		if est.CompletionDate == nil {
			t.Fatalf("expected a projected date, got message %q", est.Message)
		}
		if est.DailyRate <= 0 {
			t.Errorf("DailyRate = %v, want positive", est.DailyRate)
		}
		if !est.CompletionDate.After(day(22)) {
			t.Errorf("projected date %s not after the last contribution", est.CompletionDate)
		}
	})

	t.Run("only approved points count", func(t *testing.T) {
		points := []Point{
			{Amount: decimal.NewFromInt(500), CreatedAt: day(1), Status: models.TransactionPending},
			{Amount: decimal.NewFromInt(500), CreatedAt: day(2), Status: models.TransactionRejected},
		}
		est := CompletionDate(points, decimal.NewFromInt(1000))
		if est.CompletionDate != nil {
			t.Error("projection from non-approved points")
		}
		if est.Message != "No approved transactions yet." {
			t.Errorf("Message = %q", est.Message)
		}
	})

	t.Run("goal already reached", func(t *testing.T) {
		points := []Point{approved(600, 1), approved(600, 8)}
		est := CompletionDate(points, decimal.NewFromInt(1000))
		if est.CompletionDate != nil {
			t.Error("expected no projection when the goal is reached")
		}
	})

	t.Run("single point is insufficient", func(t *testing.T) {
		est := CompletionDate([]Point{approved(100, 1)}, decimal.NewFromInt(1000))
		if est.CompletionDate != nil {
			t.Error("expected no projection from one point")
		}
		if est.Message != "Goal already reached or insufficient data." {
			t.Errorf("Message = %q", est.Message)
		}
	})

	t.Run("no points at all", func(t *testing.T) {
		est := CompletionDate(nil, decimal.NewFromInt(1000))
		if est.Message != "No approved transactions yet." {
			t.Errorf("Message = %q", est.Message)
		}
	})

	t.Run("unsorted input is handled", func(t *testing.T) {
		points := []Point{
			approved(250, 22),
			approved(100, 1),
			approved(200, 15),
			approved(150, 8),
		}
		est := CompletionDate(points, decimal.NewFromInt(2000))
		if est.CompletionDate == nil {
			t.Fatalf("expected a projected date, got message %q", est.Message)
		}
	})
}

func TestLeastSquares(t *testing.T) {
	t.Run("perfect line recovered", func(t *testing.T) {
		xs := []float64{0, 1, 2, 3}
		ys := []float64{1, 3, 5, 7}
		slope, intercept := leastSquares(xs, ys)
		if slope < 1.999 || slope > 2.001 {
			t.Errorf("slope = %v, want 2", slope)
		}
		if intercept < 0.999 || intercept > 1.001 {
			t.Errorf("intercept = %v, want 1", intercept)
		}
	})

	t.Run("vertical stack degenerates to the mean", func(t *testing.T) {
		slope, intercept := leastSquares([]float64{2, 2}, []float64{10, 20})
		if slope != 0 {
			t.Errorf("slope = %v, want 0", slope)
		}
		if intercept != 15 {
			t.Errorf("intercept = %v, want 15", intercept)
		}
	})
}
