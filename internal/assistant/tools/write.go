package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lwhela12/the-hive-sub001/models"
)

const storeGoalSchema = `{
	"type": "object",
	"properties": {
		"title": {"type": "string", "minLength": 1},
		"detail": {"type": "string"},
		"visibility": {"type": "string", "enum": ["private", "open"]}
	},
	"required": ["title"],
	"additionalProperties": false
}`

const storeSkillSchema = `{
	"type": "object",
	"properties": {
		"name": {"type": "string", "minLength": 1},
		"detail": {"type": "string"}
	},
	"required": ["name"],
	"additionalProperties": false
}`

const publishWishSchema = `{
	"type": "object",
	"properties": {
		"wish_id": {"type": "string", "minLength": 1}
	},
	"required": ["wish_id"],
	"additionalProperties": false
}`

const fulfillWishSchema = publishWishSchema

const updateProfileSchema = `{
	"type": "object",
	"properties": {
		"display_name": {"type": "string", "minLength": 1},
		"bio": {"type": "string"}
	},
	"additionalProperties": false
}`

const completeOnboardingSchema = `{
	"type": "object",
	"additionalProperties": false
}`

const upsertNotesSchema = `{
	"type": "object",
	"properties": {
		"notes": {"type": "string"}
	},
	"required": ["notes"],
	"additionalProperties": false
}`

func (r *Registry) registerWriteTools() {
	r.register("store_goal",
		"Record a goal or wish for the member. Wishes start private unless visibility is set to open.",
		storeGoalSchema, r.storeGoal)
	r.register("store_skill",
		"Record a skill the member can offer to the community.",
		storeSkillSchema, r.storeSkill)
	r.register("publish_wish",
		"Make one of the member's private wishes visible to the whole community.",
		publishWishSchema, r.publishWish)
	r.register("fulfill_wish",
		"Mark one of the member's wishes as fulfilled.",
		fulfillWishSchema, r.fulfillWish)
	r.register("update_profile",
		"Update the member's display name and/or bio. Only the fields given change.",
		updateProfileSchema, r.updateProfile)
	r.register("complete_onboarding",
		"Mark the member's first-time setup as finished.",
		completeOnboardingSchema, r.completeOnboarding)
	r.register("upsert_notes",
		"Replace the assistant's private notes about the member.",
		upsertNotesSchema, r.upsertNotes)
}

func (r *Registry) storeGoal(ctx context.Context, scope Scope, input json.RawMessage) (string, Effects, error) {
	var in struct {
		Title      string `json:"title"`
		Detail     string `json:"detail"`
		Visibility string `json:"visibility"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return "", Effects{}, err
	}
	visibility := models.WishVisibilityPrivate
	if in.Visibility == string(models.WishVisibilityOpen) {
		visibility = models.WishVisibilityOpen
	}
	id, err := r.store.CreateWish(ctx, scope.CommunityID, scope.UserID, in.Title, in.Detail, visibility)
	if err != nil {
		return "", Effects{}, err
	}
	content, err := jsonContent(map[string]string{"wish_id": id, "visibility": string(visibility)})
	return content, Effects{}, err
}

func (r *Registry) storeSkill(ctx context.Context, scope Scope, input json.RawMessage) (string, Effects, error) {
	var in struct {
		Name   string `json:"name"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return "", Effects{}, err
	}
	id, err := r.store.AddSkill(ctx, scope.CommunityID, scope.UserID, in.Name, in.Detail)
	if err != nil {
		return "", Effects{}, err
	}
	content, err := jsonContent(map[string]string{"skill_id": id})
	return content, Effects{SkillsAdded: 1}, err
}

func (r *Registry) publishWish(ctx context.Context, scope Scope, input json.RawMessage) (string, Effects, error) {
	var in struct {
		WishID string `json:"wish_id"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return "", Effects{}, err
	}
	if err := r.store.PublishWish(ctx, scope.CommunityID, scope.UserID, in.WishID); err != nil {
		return "", Effects{}, wishError(in.WishID, err)
	}
	content, err := jsonContent(map[string]string{"wish_id": in.WishID, "visibility": string(models.WishVisibilityOpen)})
	return content, Effects{}, err
}

func (r *Registry) fulfillWish(ctx context.Context, scope Scope, input json.RawMessage) (string, Effects, error) {
	var in struct {
		WishID string `json:"wish_id"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return "", Effects{}, err
	}
	if err := r.store.FulfillWish(ctx, scope.CommunityID, scope.UserID, in.WishID); err != nil {
		return "", Effects{}, wishError(in.WishID, err)
	}
	content, err := jsonContent(map[string]string{"wish_id": in.WishID, "status": string(models.WishStatusFulfilled)})
	return content, Effects{}, err
}

func (r *Registry) updateProfile(ctx context.Context, scope Scope, input json.RawMessage) (string, Effects, error) {
	var in struct {
		DisplayName *string `json:"display_name"`
		Bio         *string `json:"bio"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return "", Effects{}, err
	}
	if in.DisplayName == nil && in.Bio == nil {
		return "", Effects{}, fmt.Errorf("nothing to update: provide display_name and/or bio")
	}
	if err := r.store.UpdateProfile(ctx, scope.CommunityID, scope.UserID, in.DisplayName, in.Bio); err != nil {
		return "", Effects{}, err
	}
	content, err := jsonContent(map[string]string{"status": "updated"})
	return content, Effects{}, err
}

func (r *Registry) completeOnboarding(ctx context.Context, scope Scope, _ json.RawMessage) (string, Effects, error) {
	if err := r.store.SetOnboardingComplete(ctx, scope.CommunityID, scope.UserID); err != nil {
		return "", Effects{}, err
	}
	content, err := jsonContent(map[string]string{"status": "onboarding complete"})
	return content, Effects{OnboardingComplete: true}, err
}

func (r *Registry) upsertNotes(ctx context.Context, scope Scope, input json.RawMessage) (string, Effects, error) {
	var in struct {
		Notes string `json:"notes"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return "", Effects{}, err
	}
	if err := r.store.UpsertNotes(ctx, scope.CommunityID, scope.UserID, in.Notes); err != nil {
		return "", Effects{}, err
	}
	content, err := jsonContent(map[string]string{"status": "saved"})
	return content, Effects{}, err
}

func wishError(wishID string, err error) error {
	if err == models.ErrNotFound {
		return fmt.Errorf("wish %s not found for this member", wishID)
	}
	return err
}
