package local

import "github.com/poiesic/docingest/core"

// Monitor observes the stages of a query.
type Monitor interface {
	Start(query string)
	AfterSimilaritySearch(ids []string)
	VerbatimHit(id string)
	Finish(results []core.QueryResult)
}

type noopMonitor struct{}

var _ Monitor = noopMonitor{}

func (noopMonitor) Start(string)                   {}
func (noopMonitor) AfterSimilaritySearch([]string) {}
func (noopMonitor) VerbatimHit(string)             {}
func (noopMonitor) Finish([]core.QueryResult)      {}
