package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/blevesearch/bleve"

	"github.com/lwhela12/the-hive-sub001/models"
)

const searchBoardPostsSchema = `{
	"type": "object",
	"properties": {
		"query": {"type": "string", "minLength": 1},
		"limit": {"type": "integer", "minimum": 1, "maximum": 25}
	},
	"required": ["query"],
	"additionalProperties": false
}`

// How many recent posts to pull into the per-call index. The board window is
// small enough that indexing it fresh per search beats keeping a shared index
// in sync with writes.
const searchIndexLimit = 200

type boardDoc struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Category string `json:"category"`
	Author   string `json:"author"`
}

type boardHit struct {
	PostID     string  `json:"post_id"`
	Title      string  `json:"title"`
	Author     string  `json:"author"`
	Category   string  `json:"category,omitempty"`
	ReplyCount int     `json:"reply_count"`
	Score      float64 `json:"score"`
}

func (r *Registry) registerSearchTools() {
	r.register("search_board_posts",
		"Full-text search over recent community board posts. Returns post ids usable with get_board_post.",
		searchBoardPostsSchema, r.searchBoardPosts)
}

func (r *Registry) searchBoardPosts(ctx context.Context, scope Scope, input json.RawMessage) (string, Effects, error) {
	var in struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return "", Effects{}, err
	}
	if in.Limit == 0 {
		in.Limit = 10
	}

	since := time.Now().AddDate(0, 0, -r.cfg.BoardWindowDays)
	posts, err := r.store.ListRecentBoardPosts(ctx, scope.CommunityID, since, searchIndexLimit)
	if err != nil {
		return "", Effects{}, err
	}
	if len(posts) == 0 {
		return `[]`, Effects{}, nil
	}

	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return "", Effects{}, fmt.Errorf("open search index: %w", err)
	}
	defer index.Close()

	byID := make(map[string]models.BoardPost, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
		doc := boardDoc{Title: p.Title, Body: p.Body, Category: p.Category, Author: p.AuthorName}
		if err := index.Index(p.ID, doc); err != nil {
			return "", Effects{}, fmt.Errorf("index post %s: %w", p.ID, err)
		}
	}

	query := bleve.NewQueryStringQuery(in.Query)
	searchReq := bleve.NewSearchRequestOptions(query, in.Limit, 0, false)
	res, err := index.Search(searchReq)
	if err != nil {
		return "", Effects{}, fmt.Errorf("search: %w", err)
	}

	hits := make([]boardHit, 0, len(res.Hits))
	for _, h := range res.Hits {
		p, ok := byID[h.ID]
		if !ok {
			continue
		}
		hits = append(hits, boardHit{
			PostID:     p.ID,
			Title:      p.Title,
			Author:     p.AuthorName,
			Category:   p.Category,
			ReplyCount: p.ReplyCount,
			Score:      h.Score,
		})
	}
	content, err := jsonContent(hits)
	return content, Effects{}, err
}
