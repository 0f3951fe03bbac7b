package github

import (
	"time"

	"devpulse/internal/models"

	gh "github.com/google/go-github/v62/github"
)

// ContributionDays is the length of the contribution series, ending today (UTC).
const ContributionDays = 365

const dayLayout = "2006-01-02"

// Activity is what a sync derives from the fetched events window.
type Activity struct {
	Commits       int
	PullRequests  int
	Issues        int
	Contributions models.ContributionSeries
}

// Summarize counts commits, pull requests and issues in events and spreads
// them over a per-day series. Push events contribute the length of their commit
// list, pull request, issue and create events contribute one each. Days with no
// events in the window report zero.
func Summarize(events []*gh.Event, now time.Time) Activity {
	var a Activity
	perDay := make(map[string]int)
	for _, e := range events {
		weight := 0
		switch e.GetType() {
		case "PushEvent":
			n := pushCommits(e)
			a.Commits += n
			weight = n
		case "PullRequestEvent":
			a.PullRequests++
			weight = 1
		case "IssuesEvent":
			a.Issues++
			weight = 1
		case "CreateEvent":
			weight = 1
		}
		if weight > 0 && e.CreatedAt != nil {
			perDay[e.GetCreatedAt().UTC().Format(dayLayout)] += weight
		}
	}
	a.Contributions = contributionSeries(perDay, now)
	return a
}

func pushCommits(e *gh.Event) int {
	payload, err := e.ParsePayload()
	if err != nil {
		return 0
	}
	push, ok := payload.(*gh.PushEvent)
	if !ok {
		return 0
	}
	return len(push.Commits)
}

func contributionSeries(perDay map[string]int, now time.Time) models.ContributionSeries {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	series := make(models.ContributionSeries, 0, ContributionDays)
	for i := ContributionDays - 1; i >= 0; i-- {
		date := today.AddDate(0, 0, -i).Format(dayLayout)
		series = append(series, models.ContributionDay{Date: date, Count: perDay[date]})
	}
	return series
}
