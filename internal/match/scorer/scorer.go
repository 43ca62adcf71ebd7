// Package scorer computes the confidence that a lost declaration and a found
// document refer to the same physical document.
//
// Score is pure and deterministic: same inputs, same output, no I/O. Missing
// OCR fields contribute zero rather than disqualifying the pair, because a
// human may still confirm on partial evidence.
package scorer

import (
	"time"

	itemsmodels "findmyid/internal/items/models"
	"findmyid/internal/match/models"
)

// Criterion names, in the fixed order they are evaluated and reported.
const (
	CriterionName      = "name_similarity"
	CriterionBirthDate = "birth_date"
	CriterionDocNumber = "document_number"
	CriterionDateGap   = "date_proximity"
	CriterionLocation  = "location_proximity"
)

// Signal weights. They sum to 1 so the confidence needs no renormalization.
const (
	weightName      = 0.35
	weightBirthDate = 0.25
	weightDocNumber = 0.15
	weightDateGap   = 0.15
	weightLocation  = 0.10
)

// matchedCutoff marks a signal as a strong contributor in the criteria list.
const matchedCutoff = 0.85

// dateGapHorizonDays is where temporal proximity bottoms out.
const dateGapHorizonDays = 365

// Result is a scored pair: the clipped weighted confidence plus the ordered
// nonzero criteria that produced it.
type Result struct {
	Confidence float64
	Criteria   []models.Criterion
}

// Score evaluates a (lost, found) pair. Inputs are read-only snapshots.
func Score(lost *itemsmodels.LostItem, found *itemsmodels.FoundItem) Result {
	var res Result

	res.add(CriterionName, weightName, nameSimilarity(lost, found))
	res.add(CriterionBirthDate, weightBirthDate, birthDateSimilarity(lost, found))
	res.add(CriterionDocNumber, weightDocNumber, docNumberSimilarity(lost, found))
	res.add(CriterionDateGap, weightDateGap, dateProximity(lost.LostDate, found.FoundDate))
	res.add(CriterionLocation, weightLocation, locationSimilarity(lost.LostLocation, found.FoundLocation))

	if res.Confidence > 1 {
		res.Confidence = 1
	}
	return res
}

// add records one signal. Zero contributions are omitted from the criteria
// list; the confidence accumulates the weighted contribution.
func (r *Result) add(name string, weight, signal float64) {
	contribution := weight * signal
	if contribution <= 0 {
		return
	}
	r.Criteria = append(r.Criteria, models.Criterion{
		Name:    name,
		Weight:  contribution,
		Matched: signal >= matchedCutoff,
	})
	r.Confidence += contribution
}

func nameSimilarity(lost *itemsmodels.LostItem, found *itemsmodels.FoundItem) float64 {
	lostTokens := tokens(lost.FirstName + " " + lost.LastName)
	foundTokens := tokens(found.FirstName + " " + found.LastName)
	return tokenSimilarity(lostTokens, foundTokens)
}

func birthDateSimilarity(lost *itemsmodels.LostItem, found *itemsmodels.FoundItem) float64 {
	if found.DateOfBirth == nil || lost.DateOfBirth.IsZero() {
		return 0
	}
	a, b := dateOnly(lost.DateOfBirth), dateOnly(*found.DateOfBirth)
	switch {
	case a.Equal(b):
		return 1
	case absDays(a, b) <= 1:
		// One day off is a typical OCR digit error, not a different person.
		return 0.5
	default:
		return 0
	}
}

func docNumberSimilarity(lost *itemsmodels.LostItem, found *itemsmodels.FoundItem) float64 {
	a, b := normalizeDocNumber(lost.DocumentNumber), normalizeDocNumber(found.DocumentNumber)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	return similarity(a, b)
}

// dateProximity rewards a found date shortly after the loss. A found date
// before the lost date contributes nothing: the document cannot have been
// found before it was lost. Larger gaps reduce the signal monotonically.
func dateProximity(lostDate, foundDate time.Time) float64 {
	if lostDate.IsZero() || foundDate.IsZero() {
		return 0
	}
	a, b := dateOnly(lostDate), dateOnly(foundDate)
	if b.Before(a) {
		return 0
	}
	gap := daysBetween(a, b)
	if gap >= dateGapHorizonDays {
		return 0
	}
	return 1 - float64(gap)/float64(dateGapHorizonDays)
}

func locationSimilarity(lostLocation, foundLocation string) float64 {
	a, b := tokens(lostLocation), tokens(foundLocation)
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if fold(lostLocation) == fold(foundLocation) {
		return 1
	}
	return tokenSimilarity(a, b)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}

func absDays(a, b time.Time) int {
	d := daysBetween(a, b)
	if d < 0 {
		return -d
	}
	return d
}
