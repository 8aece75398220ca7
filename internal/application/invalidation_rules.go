package application

import (
	"github.com/bnema/pathfinder/internal/cache"
	"github.com/bnema/pathfinder/internal/domain"
)

const (
	KindContentFavorite cache.MutationKind = "content.favorite"
	KindContentView     cache.MutationKind = "content.view"
	KindContentComment  cache.MutationKind = "content.comment"

	KindStoryCreate   cache.MutationKind = "story.create"
	KindStoryUpdate   cache.MutationKind = "story.update"
	KindStoryDelete   cache.MutationKind = "story.delete"
	KindStoryLike     cache.MutationKind = "story.like"
	KindStoryFavorite cache.MutationKind = "story.favorite"
	KindStoryComment  cache.MutationKind = "story.comment"

	KindTaskStart    cache.MutationKind = "task.start"
	KindTaskStep     cache.MutationKind = "task.step"
	KindTaskComplete cache.MutationKind = "task.complete"

	KindProfileUpdate cache.MutationKind = "profile.update"
)

func detailOf(d domain.EntityDomain) cache.Target {
	return cache.Exact(func(s cache.Subject) domain.CacheKey {
		return domain.NewCacheKey(d, domain.OperationDetail, "id", s.ID)
	})
}

func parentDetailOf(d domain.EntityDomain) cache.Target {
	return cache.Exact(func(s cache.Subject) domain.CacheKey {
		return domain.NewCacheKey(d, domain.OperationDetail, "id", s.ParentID)
	})
}

func parentCommentsOf(d domain.EntityDomain) cache.Target {
	return cache.Exact(func(s cache.Subject) domain.CacheKey {
		return domain.NewCacheKey(d, domain.OperationComments, "id", s.ParentID)
	})
}

func commentsOf(d domain.EntityDomain) cache.Target {
	return cache.Exact(func(s cache.Subject) domain.CacheKey {
		return domain.NewCacheKey(d, domain.OperationComments, "id", s.ID)
	})
}

func listsOf(d domain.EntityDomain) cache.Target {
	return cache.Pattern(d, domain.OperationList)
}

func userAttempts() cache.Target {
	return cache.Exact(func(s cache.Subject) domain.CacheKey {
		return domain.TaskKeys.Attempts(s.UserID)
	})
}

// InvalidationRules is the dependency table between mutations and the cache
// keys they make stale. Counts shown in list views are denormalized, so most
// writes touch the lists of their domain too.
func InvalidationRules() []cache.Rule {
	return []cache.Rule{
		{Kind: KindContentFavorite, Invalidate: []cache.Target{detailOf(domain.DomainContent), listsOf(domain.DomainContent)}},
		{Kind: KindContentView, Invalidate: []cache.Target{detailOf(domain.DomainContent)}},
		{Kind: KindContentComment, Invalidate: []cache.Target{
			parentCommentsOf(domain.DomainContent),
			parentDetailOf(domain.DomainContent),
			listsOf(domain.DomainContent),
		}},

		{Kind: KindStoryCreate, Invalidate: []cache.Target{listsOf(domain.DomainStory)}},
		{Kind: KindStoryUpdate, Invalidate: []cache.Target{listsOf(domain.DomainStory)}},
		{
			Kind:       KindStoryDelete,
			Invalidate: []cache.Target{listsOf(domain.DomainStory)},
			Remove:     []cache.Target{detailOf(domain.DomainStory), commentsOf(domain.DomainStory)},
		},
		{Kind: KindStoryLike, Invalidate: []cache.Target{detailOf(domain.DomainStory), listsOf(domain.DomainStory)}},
		{Kind: KindStoryFavorite, Invalidate: []cache.Target{detailOf(domain.DomainStory), listsOf(domain.DomainStory)}},
		{Kind: KindStoryComment, Invalidate: []cache.Target{
			parentCommentsOf(domain.DomainStory),
			parentDetailOf(domain.DomainStory),
			listsOf(domain.DomainStory),
		}},

		{Kind: KindTaskStart, Invalidate: []cache.Target{userAttempts(), listsOf(domain.DomainTask)}},
		{Kind: KindTaskStep, Invalidate: []cache.Target{userAttempts()}},
		{Kind: KindTaskComplete, Invalidate: []cache.Target{
			userAttempts(),
			listsOf(domain.DomainTask),
			parentDetailOf(domain.DomainTask),
		}},

		{Kind: KindProfileUpdate, Invalidate: []cache.Target{detailOf(domain.DomainProfile)}},
	}
}
