package http

import (
	"net/http"
	"strconv"

	"github.com/JeremyJS20/PersonalFinanceManagement/internal/auth"
	"github.com/JeremyJS20/PersonalFinanceManagement/internal/core"
	"github.com/JeremyJS20/PersonalFinanceManagement/internal/events"
	applog "github.com/JeremyJS20/PersonalFinanceManagement/internal/log"
)

type groupJSON struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Icon            string `json:"icon"`
	TransactionType string `json:"transaction_type"`
}

type categoryJSON struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Icon    string `json:"icon"`
	GroupID int64  `json:"group_id"`
}

type categoriesPage struct {
	ActiveTab       string
	ExpenseGroups   []core.CategoryGroup
	IncomeGroups    []core.CategoryGroup
	TotalCategories int64
	CategoryLimit   int
	ProgressPct     int
	Errors          map[string]string
	Form            map[string]string
}

// buildCategoriesPage assembles everything the categories view needs:
// the resolved tab, the user's groups split by type, and the category
// allowance progress.
func (s *Server) buildCategoriesPage(w http.ResponseWriter, r *http.Request, userID int64) (categoriesPage, error) {
	page := categoriesPage{ActiveTab: string(resolveTab(w, r)), CategoryLimit: s.categoryLimit}

	groups, err := s.store.ListCategoryGroups(r.Context(), userID)
	if err != nil {
		return page, err
	}
	for _, g := range groups {
		if g.TransactionType == core.Income {
			page.IncomeGroups = append(page.IncomeGroups, g)
		} else {
			page.ExpenseGroups = append(page.ExpenseGroups, g)
		}
	}

	total, err := s.store.CountCategories(r.Context(), userID)
	if err != nil {
		return page, err
	}
	page.TotalCategories = total
	page.ProgressPct = categoryProgress(total, s.categoryLimit)
	return page, nil
}

func (s *Server) handleCategoriesPage(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	page, err := s.buildCategoriesPage(w, r, userID)
	if err != nil {
		applog.FromContext(r.Context()).Error("Categories page failed", "error", err, applog.FieldUserID, userID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.render(w, r, "categories.html", page)
}

// rerenderCategoriesPage re-renders the listing with inline form errors
// for standard submissions.
func (s *Server) rerenderCategoriesPage(w http.ResponseWriter, r *http.Request, verr *core.ValidationError, form map[string]string) {
	userID, _ := auth.UserID(r.Context())
	page, err := s.buildCategoriesPage(w, r, userID)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	page.Errors = verr.Fields
	page.Form = form
	s.render(w, r, "categories.html", page)
}

func groupFromForm(r *http.Request, userID int64) *core.CategoryGroup {
	return &core.CategoryGroup{
		UserID:          userID,
		Name:            formValue(r, "name"),
		Icon:            formValueDefault(r, "icon", core.DefaultGroupIcon),
		TransactionType: core.TransactionType(formValueDefault(r, "transaction_type", string(core.Expenses))),
		Description:     formValue(r, "description"),
	}
}

func (s *Server) handleCategoryGroupCreate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	group := groupFromForm(r, userID)
	rerender := func(w http.ResponseWriter, r *http.Request, verr *core.ValidationError) {
		s.rerenderCategoriesPage(w, r, verr, map[string]string{
			"name":        group.Name,
			"icon":        group.Icon,
			"description": group.Description,
		})
	}

	if err := group.Validate(); err != nil {
		s.respondMutationError(w, r, err, "/categories/", rerender)
		return
	}
	if err := s.store.CreateCategoryGroup(r.Context(), group); err != nil {
		s.respondMutationError(w, r, err, "/categories/", rerender)
		return
	}

	applog.FromContext(r.Context()).Info("Category group created",
		applog.FieldOperation, applog.OpCreate,
		applog.FieldGroupID, group.ID,
		applog.FieldUserID, userID)
	s.publishEvent(r.Context(), events.EntityCategoryGroup, events.ActionCreated, group.ID, userID)

	s.respondMutationSuccess(w, r, "/categories/", "group", groupJSON{
		ID:              group.ID,
		Name:            group.Name,
		Icon:            group.Icon,
		TransactionType: string(group.TransactionType),
	})
}

func (s *Server) handleCategoryGroupUpdate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	group := groupFromForm(r, userID)
	group.ID = pathID(r)

	if err := group.Validate(); err != nil {
		s.respondMutationError(w, r, err, "/categories/", nil)
		return
	}
	if err := s.store.UpdateCategoryGroup(r.Context(), userID, group); err != nil {
		s.respondMutationError(w, r, err, "/categories/", nil)
		return
	}

	applog.FromContext(r.Context()).Info("Category group updated",
		applog.FieldOperation, applog.OpUpdate,
		applog.FieldGroupID, group.ID,
		applog.FieldUserID, userID)
	s.publishEvent(r.Context(), events.EntityCategoryGroup, events.ActionUpdated, group.ID, userID)

	s.respondMutationSuccess(w, r, "/categories/", "group", groupJSON{
		ID:              group.ID,
		Name:            group.Name,
		Icon:            group.Icon,
		TransactionType: string(group.TransactionType),
	})
}

func (s *Server) handleCategoryGroupDelete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	groupID := pathID(r)

	if err := s.store.DeleteCategoryGroup(r.Context(), userID, groupID); err != nil {
		s.respondMutationError(w, r, err, "/categories/", nil)
		return
	}

	applog.FromContext(r.Context()).Info("Category group deleted",
		applog.FieldOperation, applog.OpDelete,
		applog.FieldGroupID, groupID,
		applog.FieldUserID, userID)
	s.publishEvent(r.Context(), events.EntityCategoryGroup, events.ActionDeleted, groupID, userID)

	s.respondMutationSuccess(w, r, "/categories/", "", nil)
}

func categoryFromForm(r *http.Request) *core.Category {
	groupID, _ := strconv.ParseInt(formValue(r, "group"), 10, 64)
	return &core.Category{
		GroupID:     groupID,
		Name:        formValue(r, "name"),
		Icon:        formValueDefault(r, "icon", core.DefaultCategoryIcon),
		Description: formValue(r, "description"),
	}
}

func (s *Server) handleCategoryCreate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	category := categoryFromForm(r)
	rerender := func(w http.ResponseWriter, r *http.Request, verr *core.ValidationError) {
		s.rerenderCategoriesPage(w, r, verr, map[string]string{
			"name":        category.Name,
			"icon":        category.Icon,
			"description": category.Description,
		})
	}

	if err := category.Validate(); err != nil {
		s.respondMutationError(w, r, err, "/categories/", rerender)
		return
	}
	if err := s.store.CreateCategory(r.Context(), userID, category); err != nil {
		s.respondMutationError(w, r, err, "/categories/", rerender)
		return
	}

	applog.FromContext(r.Context()).Info("Category created",
		applog.FieldOperation, applog.OpCreate,
		applog.FieldCategoryID, category.ID,
		applog.FieldGroupID, category.GroupID,
		applog.FieldUserID, userID)
	s.publishEvent(r.Context(), events.EntityCategory, events.ActionCreated, category.ID, userID)

	s.respondMutationSuccess(w, r, "/categories/", "category", categoryJSON{
		ID:      category.ID,
		Name:    category.Name,
		Icon:    category.Icon,
		GroupID: category.GroupID,
	})
}

func (s *Server) handleCategoryUpdate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	category := categoryFromForm(r)
	category.ID = pathID(r)

	if err := category.Validate(); err != nil {
		s.respondMutationError(w, r, err, "/categories/", nil)
		return
	}
	if err := s.store.UpdateCategory(r.Context(), userID, category); err != nil {
		s.respondMutationError(w, r, err, "/categories/", nil)
		return
	}

	applog.FromContext(r.Context()).Info("Category updated",
		applog.FieldOperation, applog.OpUpdate,
		applog.FieldCategoryID, category.ID,
		applog.FieldUserID, userID)
	s.publishEvent(r.Context(), events.EntityCategory, events.ActionUpdated, category.ID, userID)

	s.respondMutationSuccess(w, r, "/categories/", "category", categoryJSON{
		ID:      category.ID,
		Name:    category.Name,
		Icon:    category.Icon,
		GroupID: category.GroupID,
	})
}

func (s *Server) handleCategoryDelete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	categoryID := pathID(r)

	if err := s.store.DeleteCategory(r.Context(), userID, categoryID); err != nil {
		s.respondMutationError(w, r, err, "/categories/", nil)
		return
	}

	applog.FromContext(r.Context()).Info("Category deleted",
		applog.FieldOperation, applog.OpDelete,
		applog.FieldCategoryID, categoryID,
		applog.FieldUserID, userID)
	s.publishEvent(r.Context(), events.EntityCategory, events.ActionDeleted, categoryID, userID)

	s.respondMutationSuccess(w, r, "/categories/", "", nil)
}
