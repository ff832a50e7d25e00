package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"github.com/labstack/echo/v4"

	"travelbuddy-api/domain"
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store Store, auth Authenticator, deduper Deduper, events *Publisher, logger *log.Logger) {
	e.GET("/api/checklists", getChecklists(store, auth, logger))
	e.POST("/api/checklists", postChecklist(store, auth, deduper, events, logger))
	e.PUT("/api/checklists/:id", putChecklist(store, auth, deduper, events, logger))
	e.DELETE("/api/checklists/:id", deleteChecklist(store, auth, events, logger))
	e.POST("/api/checklists/:id/collaborators", postCollaborator(store, auth, events, logger))
	e.DELETE("/api/checklists/:id/collaborators/:identity", deleteCollaborator(store, auth, events, logger))
	e.GET("/api/profile", getProfile(auth))
	e.POST("/api/signout", postSignout(store, auth, deduper, events, logger))
	e.GET("/healthz", healthz())
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func getChecklists(store Store, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics := newChecklistRequestMetrics(logger, "/api/checklists")
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		userID, authErr := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.JSON(http.StatusUnauthorized, errorResponse{Error: authErr.Error()})
			return err
		}

		categoryParam := strings.TrimSpace(c.QueryParam("category"))
		category := domain.Category(categoryParam)
		if categoryParam != "" && !category.Valid() {
			metrics.SetErrorStage("invalid_category")
			err = c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid category"})
			return err
		}
		metrics.SetCategory(categoryParam)

		cache, cacheErr := domain.NewCache(store, userID)
		if cacheErr != nil {
			metrics.SetErrorStage("auth")
			err = c.JSON(http.StatusUnauthorized, errorResponse{Error: cacheErr.Error()})
			return err
		}

		loadStart := time.Now()
		loadErr := cache.Load(ctx)
		metrics.ObserveLoad(time.Since(loadStart))
		if loadErr != nil {
			metrics.SetErrorStage("storage")
			c.Logger().Error(loadErr)
			err = c.JSON(http.StatusInternalServerError, errorResponse{Error: "checklist store unavailable"})
			return err
		}

		var lists []domain.Checklist
		if categoryParam == "" {
			lists = cache.All()
		} else {
			lists = make([]domain.Checklist, 0, cache.Len())
			for cl := range cache.ByCategory(category) {
				lists = append(lists, cl)
			}
		}
		metrics.SetChecklistsReturned(len(lists))

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, checklistsResponse{Checklists: lists, Revision: cache.Revision()})
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func postChecklist(store Store, auth Authenticator, deduper Deduper, events *Publisher, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.JSON(http.StatusUnauthorized, errorResponse{Error: err.Error()})
		}

		var req checklistRequest
		if err := decodeBody(c.Request().Body, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}

		key, dup := claimIdempotency(ctx, c, deduper, userID, logger)
		if dup {
			return c.JSON(http.StatusConflict, errorResponse{Error: "duplicate request"})
		}

		created, rev, err := createChecklist(ctx, store, userID, req)
		if err != nil {
			releaseIdempotency(deduper, userID, key, logger)
			switch {
			case errors.Is(err, domain.ErrInvalidChecklist):
				return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
			default:
				c.Logger().Error(err)
				return c.JSON(http.StatusInternalServerError, errorResponse{Error: "checklist store unavailable"})
			}
		}

		publishActivity(events, store, logger, userID, domain.Event{
			EntityID: created.ID,
			Type:     domain.EventChecklistCreated,
			Data:     eventData(created),
		})

		return c.JSON(http.StatusCreated, checklistResponse{Checklist: created, Revision: rev})
	}
}

// createChecklist takes the quick path for a bare title and the draft
// session path when the payload carries items, so both land in the
// store as a single write.
func createChecklist(ctx context.Context, store Store, userID string, req checklistRequest) (domain.Checklist, domain.Revision, error) {
	if len(req.Items) == 0 {
		cache, err := domain.NewCache(store, userID)
		if err != nil {
			return domain.Checklist{}, 0, err
		}
		return cache.Create(ctx, req.Title, req.Category)
	}

	sess := domain.NewDraftSession(store, userID, req.Category)
	if sess.BeginTitleEdit() {
		sess.ConfirmTitle(req.Title)
	}
	stageItems(sess, req.Items)
	rev, err := sess.Save(ctx)
	if err != nil {
		return domain.Checklist{}, 0, err
	}
	return sess.Checklist(), rev, nil
}

func putChecklist(store Store, auth Authenticator, deduper Deduper, events *Publisher, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.JSON(http.StatusUnauthorized, errorResponse{Error: err.Error()})
		}

		var req checklistRequest
		if err := decodeBody(c.Request().Body, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}

		cache, err := domain.NewCache(store, userID)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, errorResponse{Error: err.Error()})
		}
		if err := cache.Load(ctx); err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "checklist store unavailable"})
		}
		base, ok := cache.Get(c.Param("id"))
		if !ok {
			return c.JSON(http.StatusNotFound, errorResponse{Error: "checklist not found"})
		}

		key, dup := claimIdempotency(ctx, c, deduper, userID, logger)
		if dup {
			return c.JSON(http.StatusConflict, errorResponse{Error: "duplicate request"})
		}

		sess := domain.NewEditSession(store, userID, base)
		sess.OnSaved(func(rev domain.Revision) {
			if err := cache.Refresh(ctx, rev); err != nil {
				logger.WithFields(log.Fields{"user": userID, "checklist": base.ID}).Warnf("cache refresh failed: %v", err)
			}
		})
		if req.Title != "" && req.Title != base.Title {
			if sess.BeginTitleEdit() {
				sess.ConfirmTitle(req.Title)
			}
		}
		stageItems(sess, req.Items)

		rev, err := sess.Save(ctx)
		if err != nil {
			releaseIdempotency(deduper, userID, key, logger)
			switch {
			case errors.Is(err, domain.ErrInvalidChecklist):
				return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
			case errors.Is(err, domain.ErrEditInProgress):
				return c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
			default:
				c.Logger().Error(err)
				return c.JSON(http.StatusInternalServerError, errorResponse{Error: "checklist store unavailable"})
			}
		}

		saved := sess.Checklist()
		publishActivity(events, store, logger, userID, domain.Event{
			EntityID: saved.ID,
			Type:     domain.EventChecklistSaved,
			Data:     eventData(saved),
		})

		return c.JSON(http.StatusOK, checklistResponse{Checklist: saved, Revision: rev})
	}
}

// stageItems reconciles the payload's item list onto the session one
// staged edit at a time: trailing items are deleted from the tail so
// earlier indices stay valid, surviving items get text and checkbox
// diffs, and the remainder is appended. Lines loaded without a checkbox
// keep their state; toggling cannot invent one.
func stageItems(sess *domain.EditSession, want []domain.Item) {
	have := sess.Checklist().Items
	for i := len(have) - 1; i >= len(want); i-- {
		if sess.SelectItem(i) {
			sess.DeleteItem()
		}
	}
	if len(have) > len(want) {
		have = have[:len(want)]
	}
	for i := range have {
		if want[i].Text != have[i].Text {
			if sess.SelectItem(i) {
				sess.UpdateText(want[i].Text)
			}
		}
		if want[i].Checked != have[i].Checked &&
			want[i].Checked != domain.CheckNone && have[i].Checked != domain.CheckNone {
			sess.Toggle(i)
		}
	}
	for _, it := range want[len(have):] {
		before := len(sess.Checklist().Items)
		sess.AddItem(it.Text)
		if len(sess.Checklist().Items) > before && it.Checked == domain.CheckOn {
			sess.Toggle(before)
		}
	}
}

func deleteChecklist(store Store, auth Authenticator, events *Publisher, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.JSON(http.StatusUnauthorized, errorResponse{Error: err.Error()})
		}

		cache, err := domain.NewCache(store, userID)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, errorResponse{Error: err.Error()})
		}
		if err := cache.Load(ctx); err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "checklist store unavailable"})
		}

		id := c.Param("id")
		_, err = cache.Delete(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return c.JSON(http.StatusNotFound, errorResponse{Error: "checklist not found"})
			}
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "checklist store unavailable"})
		}

		publishActivity(events, store, logger, userID, domain.Event{
			EntityID: id,
			Type:     domain.EventChecklistDeleted,
		})

		return c.JSON(http.StatusOK, revisionResponse{Revision: cache.Revision()})
	}
}

func postCollaborator(store Store, auth Authenticator, events *Publisher, logger *log.Logger) echo.HandlerFunc {
	return collaboratorHandler(store, auth, events, logger, domain.EventCollaboratorAdded,
		func(ctx context.Context, col *domain.Collaborators, identity string) (domain.Revision, error) {
			return col.Add(ctx, identity)
		})
}

func deleteCollaborator(store Store, auth Authenticator, events *Publisher, logger *log.Logger) echo.HandlerFunc {
	return collaboratorHandler(store, auth, events, logger, domain.EventCollaboratorRemoved,
		func(ctx context.Context, col *domain.Collaborators, identity string) (domain.Revision, error) {
			return col.Remove(ctx, identity)
		})
}

func collaboratorHandler(store Store, auth Authenticator, events *Publisher, logger *log.Logger, eventType string,
	op func(context.Context, *domain.Collaborators, string) (domain.Revision, error)) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.JSON(http.StatusUnauthorized, errorResponse{Error: err.Error()})
		}

		identity := c.Param("identity")
		if identity == "" {
			var req collaboratorRequest
			if err := decodeBody(c.Request().Body, &req); err != nil {
				return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
			}
			identity = req.Identity
		}
		if strings.TrimSpace(identity) == "" {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "missing collaborator identity"})
		}

		cache, err := domain.NewCache(store, userID)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, errorResponse{Error: err.Error()})
		}
		if err := cache.Load(ctx); err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "checklist store unavailable"})
		}
		base, ok := cache.Get(c.Param("id"))
		if !ok {
			return c.JSON(http.StatusNotFound, errorResponse{Error: "checklist not found"})
		}

		sess := domain.NewEditSession(store, userID, base)
		col := sess.Collaborators()
		rev, err := op(ctx, col, identity)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrNotShared):
				return c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
			case errors.Is(err, domain.ErrNotFound):
				return c.JSON(http.StatusNotFound, errorResponse{Error: "checklist not found"})
			default:
				c.Logger().Error(err)
				return c.JSON(http.StatusInternalServerError, errorResponse{Error: "checklist store unavailable"})
			}
		}

		publishActivity(events, store, logger, userID, domain.Event{
			EntityID: base.ID,
			Type:     eventType,
			Data:     eventData(collaboratorRequest{Identity: identity}),
		})

		return c.JSON(http.StatusOK, collaboratorsResponse{SharedWith: col.List(), Revision: rev})
	}
}

func getProfile(auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		profile, err := auth.ProfileFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.JSON(http.StatusUnauthorized, errorResponse{Error: err.Error()})
		}
		return c.JSON(http.StatusOK, profile)
	}
}

// postSignout records the sign-out on the activity queue. The event is
// the whole operation here, so unlike checklist mutations a failed
// inline enqueue fails the request and re-opens the idempotency key.
func postSignout(store Store, auth Authenticator, deduper Deduper, events *Publisher, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.JSON(http.StatusUnauthorized, errorResponse{Error: err.Error()})
		}

		key, dup := claimIdempotency(ctx, c, deduper, userID, logger)
		if dup {
			return c.NoContent(http.StatusAccepted)
		}

		ev := domain.Event{Type: domain.EventUserSignedOut}
		if events != nil && events.Publish(userID, ev, key) {
			return c.NoContent(http.StatusAccepted)
		}
		if err := store.EnqueueEvent(ctx, userID, ev); err != nil {
			releaseIdempotency(deduper, userID, key, logger)
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to record sign-out"})
		}
		return c.NoContent(http.StatusAccepted)
	}
}

func decodeBody(body io.Reader, dst any) error {
	lr := io.LimitReader(body, mutationMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// claimIdempotency is best effort: a broken deduper degrades to
// at-least-once instead of failing the mutation.
func claimIdempotency(ctx context.Context, c echo.Context, deduper Deduper, userID string, logger *log.Logger) (key string, dup bool) {
	key = strings.TrimSpace(c.Request().Header.Get("Idempotency-Key"))
	if key == "" || deduper == nil {
		return "", false
	}
	added, err := deduper.Add(ctx, userID, key)
	if err != nil {
		logger.Warnf("idempotency check unavailable: %v", err)
		return "", false
	}
	return key, !added
}

func releaseIdempotency(deduper Deduper, userID, key string, logger *log.Logger) {
	if key == "" || deduper == nil {
		return
	}
	if err := deduper.Remove(context.Background(), userID, key); err != nil {
		logger.Errorf("dedupe rollback failed, err: %v, key: %s, user: %s", err, key, userID)
	}
}

// publishActivity hands the event to the async publisher, falling back
// to an inline enqueue when the buffer is saturated. Checklist events
// are best effort: an enqueue failure is logged, never surfaced.
func publishActivity(events *Publisher, store Store, logger *log.Logger, userID string, ev domain.Event) {
	if events != nil {
		if events.Publish(userID, ev, "") {
			return
		}
		if logger != nil {
			logger.Warn("publish buffer saturated; enqueueing inline")
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.EnqueueEvent(ctx, userID, ev); err != nil && logger != nil {
		logger.Warnf("activity enqueue failed, type: %s, user: %s, err: %v", ev.Type, userID, err)
	}
}

func eventData(v any) sonic.NoCopyRawMessage {
	b, err := sonic.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
