package revalidate

// Metrics receives one call per Fetch outcome. Coalesced is called for
// every caller that shared another caller's in-flight request.
type Metrics interface {
	Fresh()
	NotModified()
	Failed()
	Coalesced()
}

// NoopMetrics ignores every event
type NoopMetrics struct{}

func (NoopMetrics) Fresh()       {}
func (NoopMetrics) NotModified() {}
func (NoopMetrics) Failed()      {}
func (NoopMetrics) Coalesced()   {}

func observe(m Metrics, o Outcome) {
	switch o {
	case Fresh:
		m.Fresh()
	case NotModified:
		m.NotModified()
	default:
		m.Failed()
	}
}
