// Package forecast estimates when a group will reach a savings goal.
//
// The estimate is a least-squares line fit over cumulative approved
// amounts versus days since the first contribution. It is a standalone
// numeric helper with no bearing on transaction correctness.
package forecast

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trustvault/backend/internal/models"
)

// Point is one contribution considered by the fit.
type Point struct {
	Amount    decimal.Decimal
	CreatedAt time.Time
	Status    models.TransactionStatus
}

// Estimate is the result of a goal projection.
type Estimate struct {
	// CompletionDate is the projected date the goal is reached; nil when
	// no projection is possible.
	CompletionDate *time.Time `json:"predictedCompletionDate"`

	// DailyRate is the fitted savings rate in currency units per day.
	DailyRate float64 `json:"currentRate"`

	// Message explains the outcome in user-facing terms.
	Message string `json:"message"`
}

// CompletionDate projects when cumulative approved contributions reach
// goal. Only approved points count. Returns a message-only estimate when
// there are fewer than two approved points, the goal is already reached,
// or the trend is flat or negative.
func CompletionDate(points []Point, goal decimal.Decimal) Estimate {
	approved := make([]Point, 0, len(points))
	for _, p := range points {
		if p.Status == models.TransactionApproved {
			approved = append(approved, p)
		}
	}
	if len(approved) == 0 {
		return Estimate{Message: "No approved transactions yet."}
	}

	sort.Slice(approved, func(i, j int) bool {
		return approved[i].CreatedAt.Before(approved[j].CreatedAt)
	})

	start := approved[0].CreatedAt
	xs := make([]float64, len(approved))
	ys := make([]float64, len(approved))
	running := decimal.Zero
	for i, p := range approved {
		running = running.Add(p.Amount)
		xs[i] = p.CreatedAt.Sub(start).Hours() / 24
		ys[i] = running.InexactFloat64()
	}

	goalF := goal.InexactFloat64()
	if len(approved) < 2 || ys[len(ys)-1] >= goalF {
		return Estimate{Message: "Goal already reached or insufficient data."}
	}

	slope, intercept := leastSquares(xs, ys)
	if slope <= 0 {
		return Estimate{DailyRate: round2(slope), Message: "No positive saving trend detected."}
	}

	daysToGoal := (goalF - intercept) / slope
	date := start.AddDate(0, 0, int(daysToGoal))
	return Estimate{
		CompletionDate: &date,
		DailyRate:      round2(slope),
		Message:        "At your current pace, you'll reach your goal by " + date.Format("2006-01-02") + ".",
	}
}

// leastSquares fits y = slope*x + intercept.
func leastSquares(xs, ys []float64) (slope, intercept float64) {
	n := float64(len(xs))
	var sumX, sumY, sumXY, sumXX float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
		sumXY += xs[i] * ys[i]
		sumXX += xs[i] * xs[i]
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, sumY / n
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
