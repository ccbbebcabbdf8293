package listq

// Meta describes the fetched page. Pointer fields are nil when the
// request's pagination strategy has no use for them: cursor requests
// carry no offsets or page numbers, offset requests no cursors.
type Meta struct {
	HasNextPage     bool `json:"has_next_page"`
	HasPreviousPage bool `json:"has_previous_page"`

	StartCursor *string `json:"start_cursor,omitempty"`
	EndCursor   *string `json:"end_cursor,omitempty"`

	CurrentOffset  *int `json:"current_offset,omitempty"`
	NextOffset     *int `json:"next_offset,omitempty"`
	PreviousOffset *int `json:"previous_offset,omitempty"`

	CurrentPage  *int `json:"current_page,omitempty"`
	NextPage     *int `json:"next_page,omitempty"`
	PreviousPage *int `json:"previous_page,omitempty"`

	PageSize int `json:"page_size"`

	// TotalCount and TotalPages are -1 when counting was skipped.
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`

	Query *Query `json:"-"`
}

// NewMeta assembles page metadata. It is pure: fetched is the raw row
// count before the look-ahead row is trimmed, and probeHit reports
// whether the mirrored one-row probe behind the cursor found anything
// (cursor strategy only; pass false when no probe ran). totalCount is
// -1 when counting was skipped.
func NewMeta(q *Query, totalCount, fetched int, probeHit bool, start, end *string) *Meta {
	m := &Meta{
		PageSize:   q.Limit,
		TotalCount: totalCount,
		TotalPages: -1,
		Query:      q,
	}
	if totalCount >= 0 {
		m.TotalPages = ceilDiv(totalCount, q.Limit)
	}

	hasMore := fetched > q.Limit

	switch q.Pagination {
	case PaginateCursor:
		if q.Backward {
			m.HasPreviousPage = hasMore
			m.HasNextPage = probeHit
		} else {
			m.HasNextPage = hasMore
			m.HasPreviousPage = probeHit
		}
		m.StartCursor = start
		m.EndCursor = end

	default:
		if totalCount >= 0 {
			m.HasNextPage = q.Offset+q.Limit < totalCount
		} else {
			m.HasNextPage = hasMore
		}
		m.HasPreviousPage = q.Offset > 0

		current := ceilDiv(q.Offset, q.Limit) + 1
		if m.TotalPages >= 1 && current > m.TotalPages {
			current = m.TotalPages
		}

		m.CurrentOffset = ptr(q.Offset)
		m.CurrentPage = ptr(current)
		if m.HasNextPage {
			m.NextOffset = ptr(q.Offset + q.Limit)
			m.NextPage = ptr(current + 1)
		}
		if m.HasPreviousPage {
			prevOffset := q.Offset - q.Limit
			if prevOffset < 0 {
				prevOffset = 0
			}
			prevPage := current - 1
			if prevPage < 1 {
				prevPage = 1
			}
			m.PreviousOffset = ptr(prevOffset)
			m.PreviousPage = ptr(prevPage)
		}
	}

	return m
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

func ptr[T any](v T) *T {
	return &v
}
