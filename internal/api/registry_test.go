package api

import (
	"gift_registry/internal/domain"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRegistry_Defaults(t *testing.T) {
	e := newEnv(t)
	token, userID := e.register("a@x.com")

	w := e.do(http.MethodPost, "/api/registries", gin.H{"couple_names": "Ann & Bob", "slug": "ann-bob", "event_date": "2027-06-01"}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	reg := decode(t, w)
	assert.Equal(t, "AED", reg["currency"])
	assert.Equal(t, "modern", reg["theme"])
	assert.Equal(t, userID, reg["owner_id"])
	assert.Equal(t, false, reg["locked"])
	assert.Equal(t, []any{}, reg["collaborators"])
}

func TestCreateRegistry_DuplicateSlug(t *testing.T) {
	e := newEnv(t)
	token, _ := e.register("a@x.com")
	other, _ := e.register("b@x.com")
	e.createRegistry(token, "test-reg")

	w := e.do(http.MethodPost, "/api/registries", gin.H{"couple_names": "C & D", "slug": "test-reg"}, other)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreateRegistry_Validation(t *testing.T) {
	e := newEnv(t)
	token, _ := e.register("a@x.com")

	for _, body := range []gin.H{
		{"couple_names": "A", "slug": "Bad Slug"},
		{"couple_names": "A", "slug": "ab"},
		{"couple_names": "A", "slug": "-abc"},
		{"slug": "fine-slug"},
		{"couple_names": "A", "slug": "fine-slug", "event_date": "June 1st"},
	} {
		w := e.do(http.MethodPost, "/api/registries", body, token)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code, body)
	}
	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodPost, "/api/registries", gin.H{"couple_names": "A", "slug": "abc"}, "").Code)
}

func TestListMyRegistries_IncludesCollaborations(t *testing.T) {
	e := newEnv(t)
	ann, _ := e.register("a@x.com")
	bob, _ := e.register("b@x.com")
	carol, _ := e.register("c@x.com")

	mine := e.createRegistry(ann, "ann-reg")
	shared := e.createRegistry(bob, "bob-reg")
	e.createRegistry(carol, "carol-reg")

	w := e.do(http.MethodPost, "/api/registries/"+shared+"/collaborators", gin.H{"email": "A@x.com"}, bob)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = e.do(http.MethodGet, "/api/registries", nil, ann)
	require.Equal(t, http.StatusOK, w.Code)
	list := decodeList(t, w)
	require.Len(t, list, 2)
	// newest first
	assert.Equal(t, shared, list[0]["id"])
	assert.Equal(t, mine, list[1]["id"])
}

func TestGetRegistry_Access(t *testing.T) {
	e := newEnv(t)
	ann, _ := e.register("a@x.com")
	stranger, _ := e.register("s@x.com")
	admin, _ := e.register("admin@example.com")
	id := e.createRegistry(ann, "ann-reg")

	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, "/api/registries/"+id, nil, ann).Code)
	assert.Equal(t, http.StatusForbidden, e.do(http.MethodGet, "/api/registries/"+id, nil, stranger).Code)
	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, "/api/registries/"+id, nil, admin).Code)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/api/registries/missing", nil, ann).Code)
}

func TestUpdateRegistry_Partial(t *testing.T) {
	e := newEnv(t)
	ann, _ := e.register("a@x.com")
	id := e.createRegistry(ann, "ann-reg")
	e.createRegistry(ann, "taken-slug")

	w := e.do(http.MethodPut, "/api/registries/"+id, gin.H{"location": "Dubai", "currency": "usd"}, ann)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	reg := decode(t, w)
	assert.Equal(t, "Dubai", reg["location"])
	assert.Equal(t, "USD", reg["currency"])
	assert.Equal(t, "Ann & Bob", reg["couple_names"])
	assert.Equal(t, "ann-reg", reg["slug"])

	assert.Equal(t, http.StatusConflict, e.do(http.MethodPut, "/api/registries/"+id, gin.H{"slug": "taken-slug"}, ann).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, e.do(http.MethodPut, "/api/registries/"+id, gin.H{"slug": "NO"}, ann).Code)

	// keeping its own slug is not a conflict
	assert.Equal(t, http.StatusOK, e.do(http.MethodPut, "/api/registries/"+id, gin.H{"slug": "ann-reg"}, ann).Code)
}

func TestUpdateRegistry_CollaboratorCanEditStrangerCannot(t *testing.T) {
	e := newEnv(t)
	ann, _ := e.register("a@x.com")
	bob, _ := e.register("b@x.com")
	stranger, _ := e.register("s@x.com")
	id := e.createRegistry(ann, "ann-reg")
	require.Equal(t, http.StatusOK, e.do(http.MethodPost, "/api/registries/"+id+"/collaborators", gin.H{"email": "b@x.com"}, ann).Code)

	assert.Equal(t, http.StatusOK, e.do(http.MethodPut, "/api/registries/"+id, gin.H{"theme": "classic"}, bob).Code)
	assert.Equal(t, http.StatusForbidden, e.do(http.MethodPut, "/api/registries/"+id, gin.H{"theme": "classic"}, stranger).Code)

	// only the owner deletes or manages collaborators
	assert.Equal(t, http.StatusForbidden, e.do(http.MethodDelete, "/api/registries/"+id, nil, bob).Code)
	assert.Equal(t, http.StatusForbidden, e.do(http.MethodPost, "/api/registries/"+id+"/collaborators", gin.H{"email": "s@x.com"}, bob).Code)
}

func TestLockedRegistry_RejectsWritesUntilUnlocked(t *testing.T) {
	e := newEnv(t)
	ann, _ := e.register("a@x.com")
	admin, _ := e.register("admin@example.com")
	id := e.createRegistry(ann, "locked-reg")
	fundID := e.createFund(ann, id, gin.H{"title": "Flights", "goal": 1000})

	w := e.do(http.MethodPost, "/api/admin/registries/"+id+"/lock", gin.H{"locked": true, "reason": "review"}, admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, decode(t, w)["locked"])

	assert.Equal(t, http.StatusLocked, e.do(http.MethodPut, "/api/registries/"+id, gin.H{"location": "X"}, ann).Code)
	assert.Equal(t, http.StatusLocked, e.do(http.MethodDelete, "/api/registries/"+id, nil, ann).Code)
	assert.Equal(t, http.StatusLocked, e.do(http.MethodPost, "/api/registries/"+id+"/funds", gin.H{"title": "T"}, ann).Code)
	assert.Equal(t, http.StatusLocked, e.do(http.MethodPost, "/api/contributions", gin.H{"fund_id": fundID, "amount": 5}, "").Code)

	// still readable by the owner, hidden from the public
	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, "/api/registries/"+id, nil, ann).Code)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/api/public/registries/locked-reg", nil, "").Code)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/api/funds/"+fundID+"/contributions", nil, "").Code)

	w = e.do(http.MethodPost, "/api/admin/registries/"+id+"/lock", gin.H{"locked": false}, admin)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(http.MethodPut, "/api/registries/"+id, gin.H{"location": "Abu Dhabi"}, ann)
	require.Equal(t, http.StatusOK, w.Code)
	w = e.do(http.MethodGet, "/api/registries/"+id, nil, ann)
	reg := decode(t, w)
	assert.Equal(t, "Abu Dhabi", reg["location"])
	assert.Nil(t, reg["lock_reason"])
}

func TestDeleteRegistry_Cascades(t *testing.T) {
	e := newEnv(t)
	ann, _ := e.register("a@x.com")
	id := e.createRegistry(ann, "doomed")
	fundID := e.createFund(ann, id, gin.H{"title": "Flights", "goal": 100})
	e.contribute(gin.H{"fund_id": fundID, "amount": 10})

	keep := e.createRegistry(ann, "keeper")
	keepFund := e.createFund(ann, keep, gin.H{"title": "Hotel", "goal": 100})
	e.contribute(gin.H{"fund_id": keepFund, "amount": 20})

	w := e.do(http.MethodDelete, "/api/registries/"+id, nil, ann)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, decode(t, w)["ok"])

	var n int64
	e.db.Model(&domain.Registry{}).Where("id = ?", id).Count(&n)
	assert.Zero(t, n)
	e.db.Model(&domain.Fund{}).Where("registry_id = ?", id).Count(&n)
	assert.Zero(t, n)
	e.db.Model(&domain.Contribution{}).Where("fund_id = ?", fundID).Count(&n)
	assert.Zero(t, n)
	e.db.Model(&domain.Contribution{}).Where("fund_id = ?", keepFund).Count(&n)
	assert.Equal(t, int64(1), n)
}

func TestPublicRegistry_VisibleFundsOrderedWithProgress(t *testing.T) {
	e := newEnv(t)
	ann, _ := e.register("a@x.com")
	id := e.createRegistry(ann, "pub-reg")

	second := e.createFund(ann, id, gin.H{"title": "Second", "goal": 200, "order": 2})
	first := e.createFund(ann, id, gin.H{"title": "First", "goal": 0, "order": 1})
	pinned := e.createFund(ann, id, gin.H{"title": "Pinned", "goal": 100, "order": 9, "pinned": true})
	hidden := e.createFund(ann, id, gin.H{"title": "Hidden", "goal": 50, "visible": false})

	e.contribute(gin.H{"fund_id": pinned, "amount": 150})
	e.contribute(gin.H{"fund_id": second, "amount": 50})
	e.contribute(gin.H{"fund_id": first, "amount": 5})
	e.contribute(gin.H{"fund_id": hidden, "amount": 1000})

	w := e.do(http.MethodGet, "/api/public/registries/pub-reg", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)

	funds := body["funds"].([]any)
	require.Len(t, funds, 3)
	ids := []any{}
	for _, f := range funds {
		ids = append(ids, f.(map[string]any)["id"])
	}
	assert.Equal(t, []any{pinned, first, second}, ids)

	assert.Equal(t, float64(100), funds[0].(map[string]any)["progress"]) // capped
	assert.Equal(t, float64(0), funds[1].(map[string]any)["progress"])   // zero goal
	assert.Equal(t, float64(25), funds[2].(map[string]any)["progress"])
	assert.Equal(t, float64(205), body["totals"].(map[string]any)["raised"])

	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/api/public/registries/nope", nil, "").Code)
}

func TestPublicRegistry_ProgressRoundsHalfToEven(t *testing.T) {
	e := newEnv(t)
	ann, _ := e.register("a@x.com")
	id := e.createRegistry(ann, "half-reg")
	low := e.createFund(ann, id, gin.H{"title": "Low", "goal": 1000, "order": 1})
	high := e.createFund(ann, id, gin.H{"title": "High", "goal": 1000, "order": 2})
	e.contribute(gin.H{"fund_id": low, "amount": 125})
	e.contribute(gin.H{"fund_id": high, "amount": 375})

	w := e.do(http.MethodGet, "/api/public/registries/half-reg", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	funds := decode(t, w)["funds"].([]any)
	require.Len(t, funds, 2)
	assert.Equal(t, float64(12), funds[0].(map[string]any)["progress"])
	assert.Equal(t, float64(38), funds[1].(map[string]any)["progress"])
}

func TestProgress(t *testing.T) {
	cases := []struct {
		raised, goal float64
		want         int
	}{
		{0, 100, 0},
		{125, 1000, 12},
		{375, 1000, 38},
		{999, 1000, 100},
		{150, 100, 100},
		{10, 0, 0},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, progress(c.raised, c.goal), "%v of %v", c.raised, c.goal)
	}
}

func TestCollaborators_AddRemove(t *testing.T) {
	e := newEnv(t)
	ann, _ := e.register("a@x.com")
	_, bobID := e.register("b@x.com")
	id := e.createRegistry(ann, "ann-reg")

	w := e.do(http.MethodPost, "/api/registries/"+id+"/collaborators", gin.H{"email": "b@x.com"}, ann)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{bobID}, decode(t, w)["collaborators"])

	// adding twice is a no-op
	w = e.do(http.MethodPost, "/api/registries/"+id+"/collaborators", gin.H{"email": "b@x.com"}, ann)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{bobID}, decode(t, w)["collaborators"])

	assert.Equal(t, http.StatusNotFound, e.do(http.MethodPost, "/api/registries/"+id+"/collaborators", gin.H{"email": "ghost@x.com"}, ann).Code)

	w = e.do(http.MethodDelete, "/api/registries/"+id+"/collaborators/"+bobID, nil, ann)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{}, decode(t, w)["collaborators"])
}

func TestAuditLog(t *testing.T) {
	e := newEnv(t)
	ann, _ := e.register("a@x.com")
	stranger, _ := e.register("s@x.com")
	id := e.createRegistry(ann, "audited")
	fundID := e.createFund(ann, id, gin.H{"title": "Flights"})
	e.contribute(gin.H{"fund_id": fundID, "amount": 10})
	require.Equal(t, http.StatusOK, e.do(http.MethodPut, "/api/registries/"+id, gin.H{"theme": "classic"}, ann).Code)

	w := e.do(http.MethodGet, "/api/registries/"+id+"/audit", nil, ann)
	require.Equal(t, http.StatusOK, w.Code)
	logs := decodeList(t, w)
	require.Len(t, logs, 4)
	assert.Equal(t, domain.ActionRegistryUpdate, logs[0]["action"])
	assert.Equal(t, domain.ActionContributionCreate, logs[1]["action"])
	assert.Nil(t, logs[1]["user_id"])
	assert.Equal(t, domain.ActionFundCreate, logs[2]["action"])
	assert.Equal(t, domain.ActionRegistryCreate, logs[3]["action"])

	assert.Equal(t, http.StatusForbidden, e.do(http.MethodGet, "/api/registries/"+id+"/audit", nil, stranger).Code)
}

func TestAuditLog_FailedWriteKeepsOperation(t *testing.T) {
	e := newEnv(t)
	ann, _ := e.register("a@x.com")
	require.NoError(t, e.db.Migrator().DropTable(&domain.AuditLog{}))

	id := e.createRegistry(ann, "unaudited")
	fundID := e.createFund(ann, id, gin.H{"title": "Flights", "goal": 100})
	e.contribute(gin.H{"fund_id": fundID, "amount": 10})

	var regs, funds, contributions int64
	e.db.Model(&domain.Registry{}).Where("id = ?", id).Count(&regs)
	e.db.Model(&domain.Fund{}).Where("registry_id = ?", id).Count(&funds)
	e.db.Model(&domain.Contribution{}).Where("fund_id = ?", fundID).Count(&contributions)
	assert.Equal(t, int64(1), regs)
	assert.Equal(t, int64(1), funds)
	assert.Equal(t, int64(1), contributions)
}
