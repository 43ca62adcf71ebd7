package testutil

import (
	"net/http"

	"findmyid/pkg/domain"
	"findmyid/pkg/requestcontext"
)

// AsActor attaches an authenticated actor to the request context, simulating
// what the auth middleware does for a valid bearer token.
func AsActor(req *http.Request, userID domain.UserID, role domain.Role) *http.Request {
	ctx := requestcontext.WithActor(req.Context(), requestcontext.Actor{
		UserID: userID,
		Role:   role,
	})
	return req.WithContext(ctx)
}

// AsCitizen attaches a citizen actor with a fresh user ID and returns both.
func AsCitizen(req *http.Request) (*http.Request, domain.UserID) {
	userID := domain.NewUserID()
	return AsActor(req, userID, domain.RoleCitizen), userID
}
