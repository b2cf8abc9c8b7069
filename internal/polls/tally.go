package polls

import (
	"math"

	"github.com/raven-chat/backend/internal/models"
)

// tally joins a poll with its vote counts. Options keep display order and
// percentages are of all vote records, rounded to two decimals.
func tally(p *models.Poll, counts models.VoteCounts) models.PollResult {
	res := models.PollResult{
		ID:            p.ID,
		ChannelID:     p.ChannelID,
		Question:      p.Question,
		IsMultiChoice: p.IsMultiChoice,
		IsAnonymous:   p.IsAnonymous,
		CreatedBy:     p.CreatedBy,
		CreatedAt:     p.CreatedAt,
		VoterCount:    counts.Voters,
		Options:       make([]models.OptionResult, 0, len(p.Options)),
	}
	for _, o := range p.Options {
		res.TotalVotes += counts.ByOption[o.ID]
	}
	for _, o := range p.Options {
		n := counts.ByOption[o.ID]
		var pct float64
		if res.TotalVotes > 0 {
			pct = math.Round(float64(n)*10000/float64(res.TotalVotes)) / 100
		}
		res.Options = append(res.Options, models.OptionResult{PollOption: o, Votes: n, Percent: pct})
	}
	return res
}
