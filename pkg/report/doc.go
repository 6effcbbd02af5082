// Package report renders key recovery traces as interactive HTML charts:
// the class separation of both hypotheses per round against the classifier
// thresholds, the recovered prefix length, and, when the victim's exponent
// is known, how many leading bits are correct.
//
//	collector := report.NewCollector(0.5, 0.3).WithTrueExponent(d)
//	search.WithObserver(trace.Observe(collector))
//	...
//	err := collector.RenderFile("attack.html")
package report
