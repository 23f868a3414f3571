package service

import (
	"time"

	"github.com/unclebandit/practicehub-backend/internal/model"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Pagination is the list envelope every paged endpoint returns.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

func newPagination(page, pageSize, total int) Pagination {
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
		TotalPages: (total + pageSize - 1) / pageSize,
	}
}

func nowOr(clock func() time.Time) time.Time {
	if clock != nil {
		return clock()
	}
	return time.Now().UTC()
}

// canModifyCampaign: the creator or a super admin.
func canModifyCampaign(actor model.Actor, c *model.Campaign) bool {
	return actor.IsSuperAdmin() || c.CreatedBy == actor.ID
}
