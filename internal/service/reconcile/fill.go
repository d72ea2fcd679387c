package reconcile

import (
	"time"

	"CandleKeep/internal/domain/models"
	"CandleKeep/internal/domain/repository"
)

// gapTolerance is the slack factor before a spacing between adjacent candles
// counts as a gap worth filling.
const gapTolerance = 1.5

// FillGaps inserts linearly interpolated candles wherever adjacent candles
// are spaced more than 1.5 bucket widths apart. Synthetic candles carry zero
// volume and are never persisted; they are recomputed on every call. Unknown
// timeframes pass through unmodified.
func FillGaps(candles []models.Candle, tf repository.Timeframe) []models.Candle {
	d, ok := tf.Duration()
	if !ok || len(candles) < 2 {
		return candles
	}

	out := make([]models.Candle, 0, len(candles))
	for i := 0; i < len(candles)-1; i++ {
		curr, next := candles[i], candles[i+1]
		out = append(out, curr)

		gap := next.Time.Sub(curr.Time)
		if float64(gap) <= gapTolerance*float64(d) {
			continue
		}

		missing := int(gap/d) - 1
		if missing < 1 {
			continue
		}

		step := (next.Close - curr.Close) / float64(missing+1)
		for k := 1; k <= missing; k++ {
			price := curr.Close + float64(k)*step
			out = append(out, models.Candle{
				Time:       curr.Time.Add(time.Duration(k) * d),
				Symbol:     curr.Symbol,
				Timeframe:  string(tf),
				Open:       price,
				High:       price,
				Low:        price,
				Close:      price,
				Volume:     0,
				Provenance: models.ProvenanceSynthetic,
			})
		}
	}
	out = append(out, candles[len(candles)-1])
	return out
}
