package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Page represents pagination parameters
type Page struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Normalize clamps page to >= 1 and limit to [1, MaxLimit], using DefaultLimit when unset.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

// PaginationResponse represents pagination metadata
type PaginationResponse struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

// ParsePage extracts page and limit from the query string.
func ParsePage(c *gin.Context) Page {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultLimit)))
	return Page{Page: page, Limit: limit}.Normalize()
}

// ParseList reads a multi-valued parameter given either as repeated keys
// (?category=a&category=b) or comma separated (?category=a,b).
func ParseList(c *gin.Context, key string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, raw := range c.QueryArray(key) {
		for _, item := range strings.Split(raw, ",") {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			if _, dup := seen[item]; dup {
				continue
			}
			seen[item] = struct{}{}
			out = append(out, item)
		}
	}
	return out
}

// EscapeLike escapes LIKE wildcards so user input matches literally.
func EscapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// ApplySearch applies a case-insensitive substring search to specified fields
func ApplySearch(query *gorm.DB, search string, searchFields []string) *gorm.DB {
	search = strings.TrimSpace(search)
	if search == "" || len(searchFields) == 0 {
		return query
	}

	conditions := make([]string, len(searchFields))
	args := make([]interface{}, len(searchFields))
	pattern := "%" + EscapeLike(search) + "%"

	for i, field := range searchFields {
		conditions[i] = fmt.Sprintf("%s ILIKE ?", field)
		args[i] = pattern
	}

	whereClause := "(" + strings.Join(conditions, " OR ") + ")"
	return query.Where(whereClause, args...)
}

// ApplyPagination applies pagination to a GORM query
func ApplyPagination(query *gorm.DB, page Page) *gorm.DB {
	return query.Offset(page.Offset()).Limit(page.Limit)
}

// BuildPaginationResponse creates pagination metadata
func BuildPaginationResponse(page Page, total int64) PaginationResponse {
	if page.Limit < 1 {
		page.Limit = DefaultLimit
	}
	totalPages := (total + int64(page.Limit) - 1) / int64(page.Limit)

	return PaginationResponse{
		Page:       page.Page,
		Limit:      page.Limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page.Page < int(totalPages),
		HasPrev:    page.Page > 1,
	}
}
