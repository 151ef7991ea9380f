package handler

import (
	"net/http"
	"strconv"

	"proconnect/internal/api/middleware"
	"proconnect/internal/common"
	"proconnect/internal/domain/model"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// pagination reads ?page=&pageSize= with the same defaults everywhere.
func pagination(r *http.Request) (page, pageSize int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page <= 0 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(r.URL.Query().Get("pageSize"))
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}
	return page, pageSize
}

func currentUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return nil, false
	}
	return user, true
}
