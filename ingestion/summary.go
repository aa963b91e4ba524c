package ingestion

import (
	"fmt"
	"io"
)

// Summary totals one run of a source.
type Summary struct {
	Source      string
	Discovered  int
	Processed   int
	Cached      int
	Skipped     int
	Errors      int
	ChunksAdded int
	IndexCount  int
	DryRun      bool

	// Planned holds the first MaxPlanned items a dry run would process and
	// Pending their full count.
	Planned []string
	Pending int

	// Failed lists the items that could not be processed or committed.
	Failed []string

	// Unprocessed lists shard files left for the next run.
	Unprocessed []string
}

// Total is the number of items accounted for.
func (s *Summary) Total() int {
	return s.Processed + s.Cached + s.Skipped + s.Errors
}

// WriteTo prints the summary as key: value lines.
func (s *Summary) WriteTo(w io.Writer) (int64, error) {
	var lines []string
	if s.DryRun {
		lines = append(lines, fmt.Sprintf("Would process %d items:", s.Pending))
		for _, item := range s.Planned {
			lines = append(lines, "  "+item)
		}
		if more := s.Pending - len(s.Planned); more > 0 {
			lines = append(lines, fmt.Sprintf("  ... and %d more", more))
		}
		lines = append(lines, fmt.Sprintf("Cached: %d", s.Cached))
	} else {
		lines = append(lines,
			fmt.Sprintf("Source: %s", s.Source),
			fmt.Sprintf("Processed: %d", s.Processed),
			fmt.Sprintf("Cached: %d", s.Cached),
			fmt.Sprintf("Skipped: %d", s.Skipped),
			fmt.Sprintf("Errors: %d", s.Errors),
			fmt.Sprintf("Chunks added: %d", s.ChunksAdded),
			fmt.Sprintf("Total in collection: %d", s.IndexCount),
		)
		if len(s.Unprocessed) > 0 {
			lines = append(lines, fmt.Sprintf("Unprocessed shards: %d", len(s.Unprocessed)))
		}
	}

	var total int64
	for _, line := range lines {
		n, err := fmt.Fprintln(w, line)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
