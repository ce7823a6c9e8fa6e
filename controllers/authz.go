package controllers

import (
	"fmt"

	"github.com/avosk/litepress/models"
)

// EditDecision is the outcome of the ownership gate on post mutation:
// either the actor may proceed, or they are sent elsewhere. Denial is a
// redirect, never an error — "you may not do this" is not "this does not
// exist".
type EditDecision struct {
	Allowed  bool
	Redirect string
}

// CanEdit returns Allowed only when the actor is the post's author. Everyone
// else is redirected to the post detail page. Anonymous actors never reach
// this check; routing requires authentication first.
func CanEdit(actorID uint, post *models.Post) EditDecision {
	if actorID == post.UserID {
		return EditDecision{Allowed: true}
	}
	return EditDecision{Redirect: fmt.Sprintf("/posts/%d/", post.ID)}
}
