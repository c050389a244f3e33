package compress

import "github.com/mantra-hq/mantra-releases-sub000/internal/session"

// ChangeStats counts edits by kind, straight from the overlay.
type ChangeStats struct {
	Deleted  int
	Modified int
	Inserted int
}

func (c ChangeStats) Total() int { return c.Deleted + c.Modified + c.Inserted }

type Stats struct {
	OriginalTotal   int
	CompressedTotal int
	// SavedTokens is negative when edits grow the session.
	SavedTokens     int
	SavedPercentage float64
	Changes         ChangeStats
}

// ComputeStats totals original and compressed token counts. Every
// insertion counts toward the compressed total, in range or not.
func ComputeStats(originals []session.Message, ov Overlay, estimate TokenEstimator, extract ContentExtractor) Stats {
	var stats Stats
	for _, msg := range originals {
		original := estimate(extract(msg.Content))
		stats.OriginalTotal += original

		op, ok := ov.Operation(msg.ID)
		switch {
		case !ok:
			stats.CompressedTotal += original
		case op.Kind == OpModify:
			stats.CompressedTotal += estimate(op.Content)
		}
	}
	for _, ins := range ov.insertions {
		stats.CompressedTotal += estimate(extract(ins.Message.Content))
	}

	stats.SavedTokens = stats.OriginalTotal - stats.CompressedTotal
	if stats.OriginalTotal > 0 {
		stats.SavedPercentage = float64(stats.SavedTokens) / float64(stats.OriginalTotal) * 100
	}
	stats.Changes = countChanges(ov)
	return stats
}

func countChanges(ov Overlay) ChangeStats {
	var c ChangeStats
	for _, op := range ov.ops {
		switch op.Kind {
		case OpDelete:
			c.Deleted++
		case OpModify:
			c.Modified++
		}
	}
	c.Inserted = len(ov.insertions)
	return c
}
