package analysis

// Summary is everything the batch keeps about one product: the report
// with its scores, the keyword row and the sampled review texts.
type Summary struct {
	ProductID       string
	Report          Report
	Scores          Scores
	Keywords        []WordCount
	PositiveSamples []string
	NegativeSamples []string
}

// Overall is the mean of the category scores, or NeutralScore when there
// are none.
func (s Scores) Overall() float64 {
	if len(s) == 0 {
		return NeutralScore
	}
	var sum float64
	for _, c := range s {
		sum += c.Score
	}
	return sum / float64(len(s))
}
