package windowing

import (
	"log/slog"

	"github.com/petasbytes/chatloop/message"
)

// Stats summarizes the result of window preparation.
//
// Fields:
// - Total: estimated tokens for the returned window, pinned messages included.
// - Budget: the input token budget used.
// - Pinned: leading system messages always kept.
// - IncludedGroups: number of groups included, pinned messages excluded.
// - SkippedGroups: total groups minus IncludedGroups.
// - OverBudgetNewest: true when the pinned messages plus the newest group exceed Budget.
type Stats struct {
	Total            int
	Budget           int
	Pinned           int
	IncludedGroups   int
	SkippedGroups    int
	OverBudgetNewest bool
}

// PrepareSendWindow returns the messages of msgs (oldest→newest) that fit within
// budget using the TokenCounter, without splitting groups.
//
// Rules:
// - Leading system messages are pinned and always come first.
// - Include whole groups scanning newest→oldest while total ≤ budget.
// - If the newest group alone does not fit next to the pinned messages, return
// an empty window and set OverBudgetNewest.
// - If budget ≤ 0, return an empty window (OverBudgetNewest set when msgs is not empty).
func PrepareSendWindow(msgs []message.Message, budget int, c TokenCounter) ([]message.Message, Stats) {
	if len(msgs) == 0 {
		return nil, Stats{Budget: budget}
	}

	pinned := 0
	for pinned < len(msgs) && msgs[pinned].Role == message.RoleSystem {
		pinned++
	}
	rest := msgs[pinned:]
	groups := GroupBlocks(rest)

	if budget <= 0 {
		return nil, Stats{Budget: budget, Pinned: pinned, SkippedGroups: len(groups), OverBudgetNewest: true}
	}

	total := 0
	for _, m := range msgs[:pinned] {
		total += c.CountMessage(m)
	}
	if total > budget {
		slog.Debug("windowing: pinned messages over budget", "budget", budget, "cost", total)
		return nil, Stats{Budget: budget, Pinned: pinned, SkippedGroups: len(groups), OverBudgetNewest: true}
	}

	included := 0
	startIdx := len(groups) // exclusive sentinel; lowered as groups are included
	for gi := len(groups) - 1; gi >= 0; gi-- {
		cost := c.CountGroup(groups[gi], rest)
		if total+cost > budget {
			if included == 0 {
				slog.Debug("windowing: newest group over budget", "budget", budget, "cost", cost, "pinned_cost", total)
				return nil, Stats{Budget: budget, Pinned: pinned, SkippedGroups: len(groups), OverBudgetNewest: true}
			}
			break
		}
		total += cost
		included++
		startIdx = gi
	}

	window := make([]message.Message, 0, pinned+len(rest))
	window = append(window, msgs[:pinned]...)
	if included > 0 {
		window = append(window, rest[groups[startIdx].Start:]...)
	}
	return window, Stats{
		Total:          total,
		Budget:         budget,
		Pinned:         pinned,
		IncludedGroups: included,
		SkippedGroups:  len(groups) - included,
	}
}
