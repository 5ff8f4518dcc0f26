package crawler

import "github.com/nao1215/contactscan/internal/model"

// crawlState is owned by a single Crawl call and never shared.
type crawlState struct {
	target model.CrawlTarget

	// discovered holds every normalized URL ever enqueued.
	discovered map[string]bool

	// visited holds URLs that have been popped for fetching.
	visited map[string]bool

	frontier []string

	// limit caps len(discovered) so the frontier stops growing.
	limit int

	pagesFetched int
	pagesFailed  int

	record model.ContactRecord
}

func newCrawlState(target model.CrawlTarget, limit int) *crawlState {
	return &crawlState{
		target:     target,
		discovered: make(map[string]bool),
		visited:    make(map[string]bool),
		frontier:   make([]string, 0, limit),
		limit:      limit,
		record:     model.ContactRecord{Website: target.String()},
	}
}

// enqueue adds pageURL to the back of the frontier unless it was seen
// before or the discovery limit is reached.
func (s *crawlState) enqueue(pageURL string) bool {
	key := normalizeURL(pageURL)
	if s.discovered[key] || len(s.discovered) >= s.limit {
		return false
	}
	s.discovered[key] = true
	s.frontier = append(s.frontier, key)
	return true
}

// next pops the oldest unvisited URL and marks it visited.
func (s *crawlState) next() (string, bool) {
	for len(s.frontier) > 0 {
		u := s.frontier[0]
		s.frontier = s.frontier[1:]
		if s.visited[u] {
			continue
		}
		s.visited[u] = true
		return u, true
	}
	return "", false
}
