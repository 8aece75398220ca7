package domain

import (
	"strconv"
	"strings"
)

// ListParams are the list query parameters shared by every paged domain.
// Filter carries the domain-specific narrowing (category for content,
// difficulty for tasks).
type ListParams struct {
	Filter      string
	Page        int
	PageSize    int
	SearchQuery string
}

const (
	DefaultPage     = 1
	DefaultPageSize = 12
)

func (p ListParams) Normalize() ListParams {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	p.Filter = strings.TrimSpace(p.Filter)
	p.SearchQuery = strings.TrimSpace(p.SearchQuery)
	return p
}

// Range returns the inclusive zero-based row window for the page.
func (p ListParams) Range() (from, to int) {
	p = p.Normalize()
	from = (p.Page - 1) * p.PageSize
	return from, from + p.PageSize - 1
}

type keyFactory struct {
	domain     EntityDomain
	filterName string
}

var (
	ContentKeys = keyFactory{domain: DomainContent, filterName: "category"}
	StoryKeys   = keyFactory{domain: DomainStory}
	TaskKeys    = keyFactory{domain: DomainTask, filterName: "difficulty"}
	ProfileKeys = keyFactory{domain: DomainProfile}
)

func (f keyFactory) Domain() EntityDomain { return f.domain }

func (f keyFactory) List(params ListParams) CacheKey {
	params = params.Normalize()
	filterName := f.filterName
	if filterName == "" {
		filterName = "filter"
	}
	return NewCacheKey(f.domain, OperationList,
		filterName, params.Filter,
		"page", strconv.Itoa(params.Page),
		"pageSize", strconv.Itoa(params.PageSize),
		"searchQuery", params.SearchQuery,
	)
}

func (f keyFactory) Lists() KeyPattern {
	return DomainPattern(f.domain, OperationList)
}

func (f keyFactory) Detail(id string) CacheKey {
	return NewCacheKey(f.domain, OperationDetail, "id", id)
}

func (f keyFactory) Comments(id string) CacheKey {
	return NewCacheKey(f.domain, OperationComments, "id", id)
}

func (f keyFactory) Attempts(userID UserID) CacheKey {
	return NewCacheKey(f.domain, OperationAttempts, "user", string(userID))
}

func (f keyFactory) All() KeyPattern {
	return KeyPattern{Domain: f.domain}
}

// UserScoped matches every key of any domain bound to the given user.
func UserScoped(userID UserID) []KeyPattern {
	return []KeyPattern{
		{Operation: OperationAttempts, Params: map[string]string{"user": string(userID)}},
		ExactPattern(ProfileKeys.Detail(string(userID))),
	}
}
