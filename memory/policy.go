// Retention policies for conversation memory.
//
// Information Hiding:
// - Eviction rules hidden behind the Policy interface
// - Policies never reorder surviving messages
package memory

import "github.com/mkallio/loom/model"

// TrimReport describes the outcome of one policy application.
type TrimReport struct {
	// Evicted is the number of messages removed.
	Evicted int
	// BudgetExceeded is set when a token budget could not be met because
	// the most recent user message alone exceeds it. The message is kept;
	// the overrun is reported instead of silently violated.
	BudgetExceeded bool
}

// Policy decides which messages survive a trim. Implementations must keep
// surviving messages in their original order.
type Policy interface {
	// trim returns the surviving messages and a report. The returned
	// slice aliases the input; callers own copying.
	trim(msgs []model.Message) ([]model.Message, TrimReport)
}

// Unbounded retains every message.
type Unbounded struct{}

func (Unbounded) trim(msgs []model.Message) ([]model.Message, TrimReport) {
	return msgs, TrimReport{}
}

// SlidingWindow keeps only the Max most recently appended messages,
// truncating oldest-first.
type SlidingWindow struct {
	Max int
}

func (p SlidingWindow) trim(msgs []model.Message) ([]model.Message, TrimReport) {
	if p.Max <= 0 || len(msgs) <= p.Max {
		return msgs, TrimReport{}
	}
	evicted := len(msgs) - p.Max
	return msgs[evicted:], TrimReport{Evicted: evicted}
}

// TokenBudget evicts the oldest non-system messages until the total token
// count of the kept messages is at most Max. System messages and the most
// recent user message are never evicted; if that user message alone
// exceeds the budget the overrun is reported via TrimReport.
type TokenBudget struct {
	Max int
}

func (p TokenBudget) trim(msgs []model.Message) ([]model.Message, TrimReport) {
	total := 0
	for _, m := range msgs {
		total += m.TokenCount
	}
	if p.Max <= 0 || total <= p.Max {
		return msgs, TrimReport{}
	}

	lastUser := -1
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == model.RoleUser {
			lastUser = i
			break
		}
	}

	var report TrimReport
	kept := make([]model.Message, 0, len(msgs))
	for i, m := range msgs {
		protected := m.Role == model.RoleSystem || i == lastUser
		if total > p.Max && !protected {
			total -= m.TokenCount
			report.Evicted++
			continue
		}
		kept = append(kept, m)
	}

	if total > p.Max {
		report.BudgetExceeded = true
	}
	return kept, report
}
