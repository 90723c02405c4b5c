package tools

import (
	"context"
	"encoding/json"
)

const emptyObjectSchema = `{
	"type": "object",
	"additionalProperties": false
}`

const getBoardPostSchema = `{
	"type": "object",
	"properties": {
		"post_id": {"type": "string", "minLength": 1}
	},
	"required": ["post_id"],
	"additionalProperties": false
}`

func (r *Registry) registerReadTools() {
	r.register("list_my_wishes",
		"List all of the member's wishes, private and open.",
		emptyObjectSchema, r.listMyWishes)
	r.register("list_my_skills",
		"List the skills the member has recorded.",
		emptyObjectSchema, r.listMySkills)
	r.register("list_peer_skills",
		"List skills other community members offer.",
		emptyObjectSchema, r.listPeerSkills)
	r.register("list_open_wishes",
		"List open wishes other community members have published.",
		emptyObjectSchema, r.listOpenWishes)
	r.register("get_featured_project",
		"Get the community's current featured project, if one is set.",
		emptyObjectSchema, r.getFeaturedProject)
	r.register("list_members",
		"List the members of the community with their display names and bios.",
		emptyObjectSchema, r.listMembers)
	r.register("get_board_post",
		"Fetch one board post in full, including its body.",
		getBoardPostSchema, r.getBoardPost)
}

func (r *Registry) listMyWishes(ctx context.Context, scope Scope, _ json.RawMessage) (string, Effects, error) {
	wishes, err := r.store.ListWishes(ctx, scope.CommunityID, scope.UserID)
	if err != nil {
		return "", Effects{}, err
	}
	content, err := jsonContent(wishes)
	return content, Effects{}, err
}

func (r *Registry) listMySkills(ctx context.Context, scope Scope, _ json.RawMessage) (string, Effects, error) {
	skills, err := r.store.ListSkills(ctx, scope.CommunityID, scope.UserID)
	if err != nil {
		return "", Effects{}, err
	}
	content, err := jsonContent(skills)
	return content, Effects{}, err
}

func (r *Registry) listPeerSkills(ctx context.Context, scope Scope, _ json.RawMessage) (string, Effects, error) {
	skills, err := r.store.ListPeerSkills(ctx, scope.CommunityID, scope.UserID)
	if err != nil {
		return "", Effects{}, err
	}
	content, err := jsonContent(skills)
	return content, Effects{}, err
}

func (r *Registry) listOpenWishes(ctx context.Context, scope Scope, _ json.RawMessage) (string, Effects, error) {
	wishes, err := r.store.ListOpenWishes(ctx, scope.CommunityID, scope.UserID)
	if err != nil {
		return "", Effects{}, err
	}
	content, err := jsonContent(wishes)
	return content, Effects{}, err
}

func (r *Registry) getFeaturedProject(ctx context.Context, scope Scope, _ json.RawMessage) (string, Effects, error) {
	project, found, err := r.store.GetFeaturedProject(ctx, scope.CommunityID)
	if err != nil {
		return "", Effects{}, err
	}
	if !found {
		return `{"featured": null}`, Effects{}, nil
	}
	content, err := jsonContent(project)
	return content, Effects{}, err
}

func (r *Registry) listMembers(ctx context.Context, scope Scope, _ json.RawMessage) (string, Effects, error) {
	members, err := r.store.ListMembers(ctx, scope.CommunityID)
	if err != nil {
		return "", Effects{}, err
	}
	content, err := jsonContent(members)
	return content, Effects{}, err
}

func (r *Registry) getBoardPost(ctx context.Context, scope Scope, input json.RawMessage) (string, Effects, error) {
	var in struct {
		PostID string `json:"post_id"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return "", Effects{}, err
	}
	post, found, err := r.store.GetBoardPost(ctx, scope.CommunityID, in.PostID)
	if err != nil {
		return "", Effects{}, err
	}
	if !found {
		return `{"post": null}`, Effects{}, nil
	}
	content, err := jsonContent(post)
	return content, Effects{}, err
}
