package scoring

import (
	"context"
	"slices"
	"time"

	"github.com/okian/tally/internal/domain/errs"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/week"
)

// Tie is the leader of a comparison dimension with equal scores.
const Tie = "tie"

// Trend window bounds, in weeks.
const (
	MinTrendWeeks = 1
	MaxTrendWeeks = 52
)

// PersonScoreView merges one person's total and current-week standing.
// People without assignments in a window get zeroes, never gaps.
type PersonScoreView struct {
	PersonID           int64   `json:"personId"`
	PersonName         string  `json:"personName"`
	TotalScore         int64   `json:"totalScore"`
	TotalAssignments   int     `json:"totalAssignments"`
	TotalAverageScore  float64 `json:"totalAverageScore"`
	TotalRank          int     `json:"totalRank"`
	WeeklyScore        int64   `json:"weeklyScore"`
	WeeklyAssignments  int     `json:"weeklyAssignments"`
	WeeklyAverageScore float64 `json:"weeklyAverageScore"`
	WeeklyRank         int     `json:"weeklyRank"`
	week.Window
}

// ComparisonSummary holds the differences person1 - person2.
type ComparisonSummary struct {
	TotalScoreDifference  int64  `json:"totalScoreDifference"`
	WeeklyScoreDifference int64  `json:"weeklyScoreDifference"`
	TotalLeader           string `json:"totalLeader"`
	WeeklyLeader          string `json:"weeklyLeader"`
}

// Comparison puts two people side by side.
type Comparison struct {
	Person1    PersonScoreView   `json:"person1"`
	Person2    PersonScoreView   `json:"person2"`
	Comparison ComparisonSummary `json:"comparison"`
}

// Summary describes a set of scores. Every field is zero for an empty set.
type Summary struct {
	Min     int64   `json:"min"`
	Max     int64   `json:"max"`
	Average float64 `json:"average"`
	Median  float64 `json:"median"`
}

// Statistics summarizes total and current-week scores of everybody.
type Statistics struct {
	TotalPersons       int                `json:"totalPersons"`
	TotalScoreStats    Summary            `json:"totalScoreStats"`
	WeeklyScoreStats   Summary            `json:"weeklyScoreStats"`
	TopPerformer       *PersonScore       `json:"topPerformer"`
	BottomPerformer    *PersonScore       `json:"bottomPerformer"`
	TopWeeklyPerformer *WeeklyPersonScore `json:"topWeeklyPerformer"`
	Week               week.Window        `json:"week"`
}

// TrendPoint is one week of a person's history.
type TrendPoint struct {
	week.Window
	WeeklyScore     int64 `json:"weeklyScore"`
	AssignmentCount int   `json:"assignmentCount"`
}

// Trends is a person's weekly history, oldest week first.
type Trends struct {
	PersonID   int64        `json:"personId"`
	PersonName string       `json:"personName"`
	Weeks      []TrendPoint `json:"weeks"`
}

// PersonScore returns the merged total and current-week view of person id.
func (e *Engine) PersonScore(ctx context.Context, id int64) (PersonScoreView, error) {
	const op = "scoring.person"
	p, err := e.findPerson(ctx, op, id)
	if err != nil {
		return PersonScoreView{}, err
	}
	totals, weekly, err := e.both(ctx)
	if err != nil {
		return PersonScoreView{}, e.fail(ctx, op, err)
	}
	return view(p, totals, weekly, e.CurrentWeek()), nil
}

// Compare puts person id1 next to person id2.
func (e *Engine) Compare(ctx context.Context, id1, id2 int64) (Comparison, error) {
	const op = "scoring.compare"
	if id1 == id2 {
		return Comparison{}, errs.Validationf(op, "cannot compare the same person (%d) to themself", id1)
	}
	p1, err := e.findPerson(ctx, op, id1)
	if err != nil {
		return Comparison{}, err
	}
	p2, err := e.findPerson(ctx, op, id2)
	if err != nil {
		return Comparison{}, err
	}
	totals, weekly, err := e.both(ctx)
	if err != nil {
		return Comparison{}, e.fail(ctx, op, err)
	}

	w := e.CurrentWeek()
	v1, v2 := view(p1, totals, weekly, w), view(p2, totals, weekly, w)
	return Comparison{
		Person1: v1,
		Person2: v2,
		Comparison: ComparisonSummary{
			TotalScoreDifference:  v1.TotalScore - v2.TotalScore,
			WeeklyScoreDifference: v1.WeeklyScore - v2.WeeklyScore,
			TotalLeader:           leader(v1.TotalScore, v2.TotalScore, p1.Name, p2.Name),
			WeeklyLeader:          leader(v1.WeeklyScore, v2.WeeklyScore, p1.Name, p2.Name),
		},
	}, nil
}

// Statistics summarizes everybody's scores. An empty system yields zero
// summaries and nil performers.
func (e *Engine) Statistics(ctx context.Context) (Statistics, error) {
	totals, weekly, err := e.both(ctx)
	if err != nil {
		return Statistics{}, e.fail(ctx, "scoring.statistics", err)
	}
	st := Statistics{TotalPersons: len(totals), Week: e.CurrentWeek()}

	totalValues := make([]int64, len(totals))
	for i, s := range totals {
		totalValues[i] = s.TotalScore
	}
	weeklyValues := make([]int64, len(weekly))
	for i, s := range weekly {
		weeklyValues[i] = s.WeeklyScore
	}
	st.TotalScoreStats = summarize(totalValues)
	st.WeeklyScoreStats = summarize(weeklyValues)

	if len(totals) > 0 {
		top, bottom := totals[0], totals[len(totals)-1]
		st.TopPerformer, st.BottomPerformer = &top, &bottom
	}
	if len(weekly) > 0 {
		top := weekly[0]
		st.TopWeeklyPerformer = &top
	}
	return st, nil
}

// Trends returns the weekly score of person id for the given number of
// weeks ending with the current one, oldest first.
func (e *Engine) Trends(ctx context.Context, id int64, weeks int) (Trends, error) {
	const op = "scoring.trends"
	if weeks < MinTrendWeeks || weeks > MaxTrendWeeks {
		return Trends{}, errs.Validationf(op, "weeks must be between %d and %d, got %d", MinTrendWeeks, MaxTrendWeeks, weeks)
	}
	p, err := e.findPerson(ctx, op, id)
	if err != nil {
		return Trends{}, err
	}
	rows, err := e.store.ListAssignmentsByPerson(ctx, id)
	if err != nil {
		return Trends{}, e.fail(ctx, op, err)
	}

	windows := week.Last(e.now().In(e.loc), weeks)
	points := make([]TrendPoint, len(windows))
	for i, w := range windows {
		points[i].Window = w
	}
	for _, a := range rows {
		i, found := slices.BinarySearchFunc(windows, a.AssignedAt, func(w week.Window, t time.Time) int {
			switch {
			case w.End.Before(t):
				return -1
			case w.Start.After(t):
				return 1
			}
			return 0
		})
		if found {
			points[i].WeeklyScore += a.ItemValue
			points[i].AssignmentCount++
		}
	}
	return Trends{PersonID: p.ID, PersonName: p.Name, Weeks: points}, nil
}

func (e *Engine) both(ctx context.Context) ([]PersonScore, []WeeklyPersonScore, error) {
	totals, err := e.totals(ctx)
	if err != nil {
		return nil, nil, err
	}
	weekly, err := e.weekly(ctx, e.CurrentWeek())
	if err != nil {
		return nil, nil, err
	}
	return totals, weekly, nil
}

func view(p model.Person, totals []PersonScore, weekly []WeeklyPersonScore, w week.Window) PersonScoreView {
	v := PersonScoreView{PersonID: p.ID, PersonName: p.Name, Window: w}
	for _, s := range totals {
		if s.PersonID == p.ID {
			v.TotalScore, v.TotalAssignments, v.TotalAverageScore, v.TotalRank =
				s.TotalScore, s.AssignmentCount, s.AverageScore, s.Rank
			break
		}
	}
	for _, s := range weekly {
		if s.PersonID == p.ID {
			v.WeeklyScore, v.WeeklyAssignments, v.WeeklyAverageScore, v.WeeklyRank =
				s.WeeklyScore, s.AssignmentCount, s.AverageScore, s.Rank
			break
		}
	}
	return v
}

func leader(score1, score2 int64, name1, name2 string) string {
	switch {
	case score1 > score2:
		return name1
	case score2 > score1:
		return name2
	}
	return Tie
}

func summarize(values []int64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	var sum int64
	for _, v := range sorted {
		sum += v
	}
	n := len(sorted)
	median := float64(sorted[n/2])
	if n%2 == 0 {
		median = float64(sorted[n/2-1]+sorted[n/2]) / 2
	}
	return Summary{
		Min:     sorted[0],
		Max:     sorted[n-1],
		Average: round2(float64(sum) / float64(n)),
		Median:  median,
	}
}
