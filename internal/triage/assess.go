package triage

import (
	"github.com/linnemanlabs/vitaltriage/internal/features"
)

// Scorecard tallies one model's predictions against labeled examples. A
// prediction counts as positive when the model reached emergency.
type Scorecard struct {
	Model          string
	TP, FP, TN, FN int
	// ByCategory counts examples per predicted category, split by label.
	ByCategory map[Category][2]int
}

func (c *Scorecard) add(label int, p Prediction) {
	positive := p.Category == CategoryEmergency
	switch {
	case positive && label == 1:
		c.TP++
	case positive:
		c.FP++
	case label == 1:
		c.FN++
	default:
		c.TN++
	}
	counts := c.ByCategory[p.Category]
	counts[label]++
	c.ByCategory[p.Category] = counts
}

// Total is the number of examples scored.
func (c *Scorecard) Total() int { return c.TP + c.FP + c.TN + c.FN }

// Accuracy is the share of examples classified correctly.
func (c *Scorecard) Accuracy() float64 { return ratio(c.TP+c.TN, c.Total()) }

// Precision is TP / (TP + FP), or 0 when nothing was predicted positive.
func (c *Scorecard) Precision() float64 { return ratio(c.TP, c.TP+c.FP) }

// Recall is TP / (TP + FN), or 0 when there are no positive labels.
func (c *Scorecard) Recall() float64 { return ratio(c.TP, c.TP+c.FN) }

// F1 is the harmonic mean of precision and recall.
func (c *Scorecard) F1() float64 {
	p, r := c.Precision(), c.Recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// Confusion returns the matrix as [[TN, FP], [FN, TP]], rows by true label.
func (c *Scorecard) Confusion() [2][2]int {
	return [2][2]int{{c.TN, c.FP}, {c.FN, c.TP}}
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

// Assessment scores labeled examples with every model of an engine at the
// engine's thresholds. It is not safe for concurrent use.
type Assessment struct {
	engine *Engine
	cards  []*Scorecard
}

// NewAssessment returns an empty assessment with one scorecard per model.
func NewAssessment(e *Engine) *Assessment {
	names := e.ModelNames()
	cards := make([]*Scorecard, len(names))
	for i, n := range names {
		cards[i] = &Scorecard{Model: n, ByCategory: make(map[Category][2]int, 3)}
	}
	return &Assessment{engine: e, cards: cards}
}

// Add scores one example with every model. A label other than 0 or 1 is a
// validation error, and a failed example is not counted for any model.
func (a *Assessment) Add(ex features.Example) error {
	if ex.Label != 0 && ex.Label != 1 {
		return &features.ValidationError{Field: "label", Reason: "must be 0 or 1"}
	}
	th := a.engine.Thresholds()
	preds := make([]Prediction, len(a.engine.models))
	for i, m := range a.engine.models {
		p, err := Classify(ex.Vector, m, th)
		if err != nil {
			return err
		}
		preds[i] = p
	}
	// tally only once every model scored, so cards stay aligned
	for i, p := range preds {
		a.cards[i].add(ex.Label, p)
	}
	return nil
}

// Scorecards returns the tallies in model configuration order.
func (a *Assessment) Scorecards() []*Scorecard { return a.cards }
